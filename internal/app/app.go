package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/florianilch/whoop-auth/internal/credentials"
	"github.com/florianilch/whoop-auth/internal/tokensource"
	"github.com/florianilch/whoop-auth/internal/tokenstore"
)

// App wires configuration, credential resolution, storage and the token manager together.
type App struct {
	cfg      *Config
	settings tokenstore.Store
	tokens   tokenstore.Store
	lookup   credentials.LookupFunc

	prompter   credentials.Prompter
	interactor Interactor
	transport  http.RoundTripper
}

// Option configures an App.
type Option func(*App)

// WithPrompter lets credential resolution fall back to asking the user.
func WithPrompter(prompter credentials.Prompter) Option {
	return func(a *App) {
		a.prompter = prompter
	}
}

// WithLoginInteractor enables interactive login.
func WithLoginInteractor(interactor Interactor) Option {
	return func(a *App) {
		a.interactor = interactor
	}
}

// WithLookup replaces the process environment as first credential source.
func WithLookup(lookup credentials.LookupFunc) Option {
	return func(a *App) {
		a.lookup = lookup
	}
}

// WithTransport sets the base transport for token endpoint requests.
func WithTransport(transport http.RoundTripper) Option {
	return func(a *App) {
		a.transport = transport
	}
}

// New creates a new App instance.
// No I/O is performed apart from reading the optional dotenv file.
func New(cfg *Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	settings, err := cfg.Auth.NewSettingsStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create settings store: %w", err)
	}

	tokens, err := cfg.Auth.NewTokenStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create token store: %w", err)
	}

	a := &App{
		cfg:      cfg,
		settings: settings,
		tokens:   tokens,
		lookup:   credentials.OSLookup,
	}
	for _, opt := range opts {
		opt(a)
	}

	if cfg.EnvFile != "" {
		dotenv, err := credentials.DotenvLookup(cfg.EnvFile)
		if err != nil {
			return nil, err
		}
		// Process environment wins over the dotenv file
		a.lookup = credentials.ChainLookup(a.lookup, dotenv)
	}

	return a, nil
}

// Credentials resolves the client identity from environment, settings or prompt.
func (a *App) Credentials(ctx context.Context) (credentials.Credentials, error) {
	opts := []credentials.ResolverOption{credentials.WithLookup(a.lookup)}
	if a.prompter != nil {
		opts = append(opts, credentials.WithPrompter(a.prompter))
	}

	resolver, err := credentials.NewResolver(a.settings, opts...)
	if err != nil {
		return credentials.Credentials{}, err
	}
	return resolver.Resolve(ctx)
}

// Manager resolves the client credentials and returns a token Manager bound to them.
func (a *App) Manager(ctx context.Context) (*Manager, error) {
	creds, err := a.Credentials(ctx)
	if err != nil {
		return nil, err
	}

	authorizerOpts := []tokensource.AuthorizerOption{tokensource.WithTimeout(a.cfg.HTTP.Timeout)}
	if a.transport != nil {
		authorizerOpts = append(authorizerOpts, tokensource.WithTransport(a.transport))
	}
	authorizer := tokensource.NewAuthorizer(creds, a.cfg.Endpoint(), authorizerOpts...)

	managerOpts := []ManagerOption{WithRefreshTimeout(a.cfg.HTTP.Timeout)}
	if a.interactor != nil {
		managerOpts = append(managerOpts, WithInteractor(a.interactor))
	}

	slog.DebugContext(ctx, "token manager ready", "storage", a.cfg.Auth.Storage)
	return NewManager(authorizer, a.tokens, managerOpts...)
}
