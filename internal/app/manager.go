package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/florianilch/whoop-auth/internal/tokensource"
	"github.com/florianilch/whoop-auth/internal/tokenstore"
)

// ErrNotAuthenticated is returned when a token is requested before any login
// stored one. Only an interactive login resolves it.
var ErrNotAuthenticated = errors.New("not authenticated: run login first")

// ErrNoInteractor is returned by Login when no way of reaching the user was configured.
var ErrNoInteractor = errors.New("interactive login unavailable")

// ErrInteraction is wrapped when showing the URL to the user or reading their answer fails,
// e.g. stdin closed before a code was pasted.
var ErrInteraction = errors.New("login interaction failed")

// State describes what the Manager holds.
type State int

const (
	// StateNoToken means no token set has been stored.
	StateNoToken State = iota
	// StateHasAccess means an access token is cached and will be returned as is.
	StateHasAccess
	// StateNeedsRefresh means a token set exists without an access token.
	StateNeedsRefresh
)

func (s State) String() string {
	switch s {
	case StateNoToken:
		return "no_token"
	case StateHasAccess:
		return "has_access"
	case StateNeedsRefresh:
		return "needs_refresh"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Interactor shows the authorization URL to the user and collects what they paste back.
type Interactor interface {
	ShowAuthorizationURL(ctx context.Context, authURL string) error
	// ReadAuthorizationCode returns the bare code or the full redirect URL.
	ReadAuthorizationCode(ctx context.Context) (string, error)
}

// TokenClient talks to the token endpoint. Implemented by *tokensource.Authorizer.
type TokenClient interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (tokensource.TokenSet, error)
	Refresh(ctx context.Context, refreshToken string) (tokensource.TokenSet, error)
}

// Compile-time check that the WHOOP authorizer satisfies TokenClient
var _ TokenClient = (*tokensource.Authorizer)(nil)

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithInteractor enables Login.
func WithInteractor(interactor Interactor) ManagerOption {
	return func(m *Manager) {
		m.interactor = interactor
	}
}

// WithRefreshTimeout bounds a shared refresh, which runs detached from the
// context of whichever caller started it.
func WithRefreshTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		if timeout > 0 {
			m.refreshTimeout = timeout
		}
	}
}

// WithStateGenerator replaces the per-login random state (tests only need determinism).
func WithStateGenerator(generate func() string) ManagerOption {
	return func(m *Manager) {
		m.newState = generate
	}
}

// Manager owns the token set for the current user: it hands out the cached
// access token, refreshes it on demand and persists every change.
// Loading is deferred to the first call to avoid I/O during construction.
type Manager struct {
	client     TokenClient
	store      tokenstore.Store
	interactor Interactor
	newState   func() string

	// mu also serializes saves, so a refresh never persists over a newer login.
	mu     sync.Mutex
	loaded bool
	tokens tokensource.TokenSet
	// generation counts replacements of tokens; a refresh only commits onto the generation it started from.
	generation uint64

	refreshGroup   singleflight.Group
	refreshTimeout time.Duration
}

// refreshKey is shared by every refresh so only one request is in flight per Manager.
const refreshKey = "refresh"

// Compile-time check to ensure Manager implements oauth2.TokenSource
var _ oauth2.TokenSource = (*Manager)(nil)

// NewManager creates a Manager. No I/O is performed until the first call.
func NewManager(client TokenClient, store tokenstore.Store, opts ...ManagerOption) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("missing token client")
	}
	if store == nil {
		return nil, fmt.Errorf("missing token store")
	}

	m := &Manager{
		client:         client,
		store:          store,
		newState:       uuid.NewString,
		refreshTimeout: tokensource.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// snapshot returns a copy of the current token set, loading it from the store on first use.
// A failed load is retried on the next call.
func (m *Manager) snapshot(ctx context.Context) (tokensource.TokenSet, error) {
	tokens, _, err := m.snapshotGeneration(ctx)
	return tokens, err
}

func (m *Manager) snapshotGeneration(ctx context.Context) (tokensource.TokenSet, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.loadLocked(ctx); err != nil {
		return nil, 0, err
	}
	return m.tokens.Clone(), m.generation, nil
}

func (m *Manager) loadLocked(ctx context.Context) error {
	if m.loaded {
		return nil
	}
	doc, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading tokens: %w", err)
	}
	m.tokens = tokensource.TokenSet(doc)
	m.loaded = true
	return nil
}

// commitLocked persists tokens and swaps them in. The caller holds mu.
func (m *Manager) commitLocked(ctx context.Context, tokens tokensource.TokenSet) error {
	if err := m.store.Save(ctx, tokenstore.Document(tokens)); err != nil {
		return err
	}
	m.tokens = tokens.Clone()
	m.loaded = true
	m.generation++
	return nil
}

func stateOf(tokens tokensource.TokenSet) State {
	switch {
	case len(tokens) == 0:
		return StateNoToken
	case tokens.AccessToken() != "":
		return StateHasAccess
	default:
		return StateNeedsRefresh
	}
}

// State reports the lifecycle state of the stored token set.
func (m *Manager) State(ctx context.Context) (State, error) {
	tokens, err := m.snapshot(ctx)
	if err != nil {
		return StateNoToken, err
	}
	return stateOf(tokens), nil
}

// Expiry returns the expiry hint recorded at the last exchange or refresh.
// EnsureAccessToken never consults it.
func (m *Manager) Expiry(ctx context.Context) (time.Time, bool, error) {
	tokens, err := m.snapshot(ctx)
	if err != nil {
		return time.Time{}, false, err
	}
	expiry, ok := tokens.Expiry()
	return expiry, ok, nil
}

// EnsureAccessToken returns the cached access token without any network call,
// or refreshes when the stored set has none. Staleness of a cached token is only
// discovered by the upstream API rejecting it.
func (m *Manager) EnsureAccessToken(ctx context.Context) (string, error) {
	tokens, err := m.snapshot(ctx)
	if err != nil {
		return "", err
	}

	switch stateOf(tokens) {
	case StateNoToken:
		return "", ErrNotAuthenticated
	case StateHasAccess:
		return tokens.AccessToken(), nil
	default:
		return m.refreshShared(ctx, true)
	}
}

// RefreshAccessToken redeems the stored refresh token, merges the response into
// the token set, persists it and returns the new access token. On failure the
// stored set is left untouched in memory and on disk. Concurrent callers, including
// EnsureAccessToken, share a single request to the token endpoint.
func (m *Manager) RefreshAccessToken(ctx context.Context) (string, error) {
	return m.refreshShared(ctx, false)
}

// refreshShared joins the in-flight refresh or starts one. The shared call runs
// detached from ctx, bounded by refreshTimeout, so one caller giving up does not
// fail the others. A call started with onlyIfMissing returns the cached token if
// an access token has appeared by the time it runs.
func (m *Manager) refreshShared(ctx context.Context, onlyIfMissing bool) (string, error) {
	ch := m.refreshGroup.DoChan(refreshKey, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.refreshTimeout)
		defer cancel()
		return m.refresh(callCtx, onlyIfMissing)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			slog.DebugContext(ctx, "joined in-flight token refresh")
		}
		return res.Val.(string), nil
	}
}

func (m *Manager) refresh(ctx context.Context, onlyIfMissing bool) (string, error) {
	tokens, generation, err := m.snapshotGeneration(ctx)
	if err != nil {
		return "", err
	}
	switch stateOf(tokens) {
	case StateNoToken:
		return "", ErrNotAuthenticated
	case StateHasAccess:
		if onlyIfMissing {
			return tokens.AccessToken(), nil
		}
	}

	slog.InfoContext(ctx, "refreshing access token")

	update, err := m.client.Refresh(ctx, tokens.RefreshToken())
	if err != nil {
		slog.ErrorContext(ctx, "token refresh failed", "error", err)
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.generation != generation {
		// A login replaced the set while the request was in flight; its tokens are newer
		slog.InfoContext(ctx, "discarding refresh superseded by login")
		return m.tokens.AccessToken(), nil
	}

	merged := m.tokens.Merge(update)
	if err := m.commitLocked(ctx, merged); err != nil {
		return "", fmt.Errorf("persisting refreshed tokens: %w", err)
	}

	slog.InfoContext(ctx, "access token refreshed", "refresh_token_rotated", update.RefreshToken() != "")
	return merged.AccessToken(), nil
}

// Login runs the interactive authorization-code flow regardless of the current
// state and replaces any stored token set with the one obtained.
func (m *Manager) Login(ctx context.Context) (tokensource.TokenSet, error) {
	if m.interactor == nil {
		return nil, &tokensource.AuthorizationError{Err: ErrNoInteractor}
	}

	state := m.newState()
	authURL := m.client.AuthCodeURL(state)

	slog.InfoContext(ctx, "starting interactive login")
	if err := m.interactor.ShowAuthorizationURL(ctx, authURL); err != nil {
		return nil, &tokensource.AuthorizationError{Err: fmt.Errorf("%w: presenting authorization URL: %w", ErrInteraction, err)}
	}

	input, err := m.interactor.ReadAuthorizationCode(ctx)
	if err != nil {
		return nil, &tokensource.AuthorizationError{Err: fmt.Errorf("%w: reading authorization code: %w", ErrInteraction, err)}
	}

	code, err := tokensource.ParseRedirect(input, state)
	if err != nil {
		return nil, &tokensource.AuthorizationError{Err: err}
	}

	tokens, err := m.client.Exchange(ctx, code)
	if err != nil {
		slog.ErrorContext(ctx, "authorization code exchange failed", "error", err)
		return nil, err
	}

	m.mu.Lock()
	err = m.commitLocked(ctx, tokens)
	m.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("persisting tokens: %w", err)
	}

	slog.InfoContext(ctx, "login complete")
	return tokens.Clone(), nil
}

// Token implements oauth2.TokenSource on top of EnsureAccessToken.
// The returned token carries no expiry, so oauth2 never tries to refresh it itself.
func (m *Manager) Token() (*oauth2.Token, error) {
	// oauth2.TokenSource.Token() has no context parameter (legacy interface limitation)
	ctx := context.Background()

	accessToken, err := m.EnsureAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	tokens, err := m.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	return &oauth2.Token{
		AccessToken: accessToken,
		TokenType:   tokens.TokenType(),
	}, nil
}

// Client returns an HTTP client that authorizes every request with the current access token.
// base may be nil to use http.DefaultTransport.
func (m *Manager) Client(base http.RoundTripper) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{Source: m, Base: base},
	}
}
