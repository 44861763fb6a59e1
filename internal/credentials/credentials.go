package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/florianilch/whoop-auth/internal/tokenstore"
)

// Environment variables recognized by Resolver.
const (
	EnvClientID     = "WHOOP_CLIENT_ID"
	EnvClientSecret = "WHOOP_CLIENT_SECRET"
	EnvRedirectURI  = "WHOOP_REDIRECT_URI"
)

// DefaultRedirectURI is used when no redirect URI was configured or entered.
const DefaultRedirectURI = "https://www.google.com"

// Settings document keys.
const (
	keyClientID     = "client_id"
	keyClientSecret = "client_secret"
	keyRedirectURI  = "redirect_uri"
)

// Credentials identifies the OAuth client. It does not change once resolved.
type Credentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RedirectURI  string `json:"redirect_uri"`
}

// Document converts the credentials to their persisted form.
func (c Credentials) Document() tokenstore.Document {
	return tokenstore.Document{
		keyClientID:     c.ClientID,
		keyClientSecret: c.ClientSecret,
		keyRedirectURI:  c.RedirectURI,
	}
}

// FromDocument reads credentials from a settings document. Non-string values are ignored.
func FromDocument(doc tokenstore.Document) Credentials {
	get := func(key string) string {
		v, _ := doc[key].(string)
		return strings.TrimSpace(v)
	}
	return Credentials{
		ClientID:     get(keyClientID),
		ClientSecret: get(keyClientSecret),
		RedirectURI:  get(keyRedirectURI),
	}
}

// ErrNoPrompter is wrapped by ConfigurationError when values are missing and
// nothing can ask the user for them.
var ErrNoPrompter = errors.New("interactive input unavailable")

// ConfigurationError reports client credentials that could not be obtained.
type ConfigurationError struct {
	// Missing lists the unresolved settings keys.
	Missing []string
	Err     error
}

func (e *ConfigurationError) Error() string {
	msg := "client credentials unavailable"
	if len(e.Missing) > 0 {
		msg += fmt.Sprintf(" (missing %s; set %s and %s)", strings.Join(e.Missing, ", "), EnvClientID, EnvClientSecret)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func missingFields(c Credentials) []string {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, keyClientID)
	}
	if c.ClientSecret == "" {
		missing = append(missing, keyClientSecret)
	}
	return missing
}

// Prompter asks the user for a single value. When the user enters nothing,
// defaultValue is returned. Secret values should not be echoed.
type Prompter interface {
	Prompt(ctx context.Context, label, defaultValue string, secret bool) (string, error)
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLookup replaces the environment lookup (os.LookupEnv by default).
func WithLookup(lookup LookupFunc) ResolverOption {
	return func(r *Resolver) {
		r.lookup = lookup
	}
}

// WithPrompter enables interactive input for values no other source provides.
func WithPrompter(prompter Prompter) ResolverOption {
	return func(r *Resolver) {
		r.prompter = prompter
	}
}

// Resolver determines the client credentials for a session.
type Resolver struct {
	settings tokenstore.Store
	lookup   LookupFunc
	prompter Prompter
}

// NewResolver creates a Resolver that persists prompted values to settings.
func NewResolver(settings tokenstore.Store, opts ...ResolverOption) (*Resolver, error) {
	if settings == nil {
		return nil, fmt.Errorf("missing settings store")
	}

	r := &Resolver{
		settings: settings,
		lookup:   OSLookup,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.lookup == nil {
		r.lookup = OSLookup
	}
	return r, nil
}

// Resolve returns the client credentials. Environment values win over settings,
// settings win over the prompt. If anything was prompted, the full triple is
// saved to the settings store before returning.
func (r *Resolver) Resolve(ctx context.Context) (Credentials, error) {
	doc, err := r.settings.Load(ctx)
	if err != nil {
		return Credentials{}, fmt.Errorf("loading settings: %w", err)
	}
	stored := FromDocument(doc)

	creds := Credentials{
		ClientID:     firstNonEmpty(r.env(EnvClientID), stored.ClientID),
		ClientSecret: firstNonEmpty(r.env(EnvClientSecret), stored.ClientSecret),
		RedirectURI:  firstNonEmpty(r.env(EnvRedirectURI), stored.RedirectURI),
	}

	missing := missingFields(creds)
	if len(missing) == 0 {
		if creds.RedirectURI == "" {
			creds.RedirectURI = DefaultRedirectURI
		}
		return creds, nil
	}

	if r.prompter == nil {
		return Credentials{}, &ConfigurationError{Missing: missing, Err: ErrNoPrompter}
	}

	slog.InfoContext(ctx, "client credentials incomplete, prompting", "missing", missing)

	if creds.ClientID == "" {
		if creds.ClientID, err = r.prompt(ctx, "WHOOP Client ID", "", false); err != nil {
			return Credentials{}, err
		}
	}
	if creds.ClientSecret == "" {
		if creds.ClientSecret, err = r.prompt(ctx, "WHOOP Client Secret", "", true); err != nil {
			return Credentials{}, err
		}
	}
	if creds.RedirectURI == "" {
		if creds.RedirectURI, err = r.prompt(ctx, "Redirect URI", DefaultRedirectURI, false); err != nil {
			return Credentials{}, err
		}
	}

	if err := r.settings.Save(ctx, creds.Document()); err != nil {
		return Credentials{}, fmt.Errorf("saving settings: %w", err)
	}
	slog.InfoContext(ctx, "client credentials saved")

	return creds, nil
}

func (r *Resolver) env(key string) string {
	v, _ := r.lookup(key)
	return strings.TrimSpace(v)
}

func (r *Resolver) prompt(ctx context.Context, label, defaultValue string, secret bool) (string, error) {
	value, err := r.prompter.Prompt(ctx, label, defaultValue, secret)
	if err != nil {
		return "", &ConfigurationError{Missing: []string{label}, Err: err}
	}
	value = strings.TrimSpace(value)
	if value == "" {
		value = defaultValue
	}
	if value == "" {
		return "", &ConfigurationError{Missing: []string{label}, Err: errors.New("no value entered")}
	}
	return value, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
