package tokensource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/florianilch/whoop-auth/internal/credentials"
	"github.com/florianilch/whoop-auth/internal/tokenstore"
)

// DefaultTimeout bounds every token endpoint request.
const DefaultTimeout = 30 * time.Second

// maxResponseSize mirrors the limit oauth2 applies when reading token responses.
const maxResponseSize = 1 << 20

// AuthorizerOption configures an Authorizer.
type AuthorizerOption func(*authorizerConfig)

// authorizerConfig holds configuration for NewAuthorizer.
type authorizerConfig struct {
	baseTransport http.RoundTripper
	timeout       time.Duration
}

// WithTransport sets a custom base transport for token requests.
// If not provided, http.DefaultTransport is used.
func WithTransport(transport http.RoundTripper) AuthorizerOption {
	return func(c *authorizerConfig) {
		c.baseTransport = transport
	}
}

// WithTimeout overrides DefaultTimeout. Non-positive values are ignored.
func WithTimeout(timeout time.Duration) AuthorizerOption {
	return func(c *authorizerConfig) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// Authorizer drives the authorization-code and refresh-token grants for one client.
type Authorizer struct {
	config        *oauth2.Config
	baseTransport http.RoundTripper
	timeout       time.Duration
}

// NewAuthorizer creates an Authorizer for the given client credentials and endpoint.
// No I/O is performed.
func NewAuthorizer(creds credentials.Credentials, endpoint oauth2.Endpoint, opts ...AuthorizerOption) *Authorizer {
	cfg := &authorizerConfig{
		baseTransport: http.DefaultTransport,
		timeout:       DefaultTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Authorizer{
		config:        oauth2Config(creds, endpoint, Scopes),
		baseTransport: cfg.baseTransport,
		timeout:       cfg.timeout,
	}
}

func oauth2Config(creds credentials.Credentials, endpoint oauth2.Endpoint, scopes []string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  creds.RedirectURI,
		Scopes:       scopes,
		Endpoint:     endpoint,
	}
}

// BuildAuthorizationURL returns the WHOOP authorization URL carrying client_id,
// response_type=code, redirect_uri, the space-delimited scopes and state.
// The result is deterministic and no request is made.
func BuildAuthorizationURL(creds credentials.Credentials, scopes []string, state string) string {
	return oauth2Config(creds, Endpoint, scopes).AuthCodeURL(state)
}

// AuthCodeURL returns the authorization URL for this client with the fixed scope set.
func (a *Authorizer) AuthCodeURL(state string) string {
	return a.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for a token set (grant_type=authorization_code).
// Failures are returned as *AuthorizationError.
func (a *Authorizer) Exchange(ctx context.Context, code string) (TokenSet, error) {
	if code == "" {
		return nil, &AuthorizationError{Err: ErrMissingCode}
	}

	ctx, recorder := a.withRecordingClient(ctx)
	token, err := a.config.Exchange(ctx, code)
	if err != nil {
		status, body := upstreamDetails(err)
		return nil, &AuthorizationError{StatusCode: status, Body: body, Err: err}
	}

	return tokenSetFromResponse(token, recorder.body), nil
}

// Refresh redeems a refresh token for a new access token (grant_type=refresh_token).
// The returned set holds what the provider sent plus the expiry hint, minus a
// refresh token identical to the one presented; merging it into the stored set
// is the caller's job. Failures are returned as *RefreshError.
func (a *Authorizer) Refresh(ctx context.Context, refreshToken string) (TokenSet, error) {
	if refreshToken == "" {
		return nil, &RefreshError{Err: ErrNoRefreshToken}
	}

	ctx, recorder := a.withRecordingClient(ctx)
	// An empty access token forces the oauth2 token source to hit the token endpoint
	token, err := a.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		status, body := upstreamDetails(err)
		return nil, &RefreshError{StatusCode: status, Body: body, Err: err}
	}

	set := tokenSetFromResponse(token, recorder.body)
	// oauth2 carries the old refresh token over when none is reissued
	if set.RefreshToken() == refreshToken {
		delete(set, FieldRefreshToken)
	}
	return set, nil
}

// withRecordingClient injects a per-call HTTP client into ctx (oauth2.HTTPClient key)
// whose transport keeps a copy of the token response body.
func (a *Authorizer) withRecordingClient(ctx context.Context) (context.Context, *responseRecorder) {
	recorder := &responseRecorder{base: a.baseTransport}
	httpClient := &http.Client{
		Timeout:   a.timeout,
		Transport: recorder,
	}
	return context.WithValue(ctx, oauth2.HTTPClient, httpClient), recorder
}

// upstreamDetails extracts the HTTP status and body from an oauth2 token endpoint error.
func upstreamDetails(err error) (int, string) {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		return retrieveErr.Response.StatusCode, string(retrieveErr.Body)
	}
	return 0, ""
}

// tokenSetFromResponse builds a TokenSet from the raw JSON response, falling back to
// the fields oauth2 parsed when the body was not a JSON object (e.g. form-encoded).
func tokenSetFromResponse(token *oauth2.Token, raw []byte) TokenSet {
	set := TokenSet{}
	if doc, err := tokenstore.DecodeDocument(raw); err == nil {
		set = TokenSet(doc)
	}

	if set.AccessToken() == "" {
		set[FieldAccessToken] = token.AccessToken
	}
	if set.RefreshToken() == "" {
		delete(set, FieldRefreshToken)
		if token.RefreshToken != "" {
			set[FieldRefreshToken] = token.RefreshToken
		}
	}
	if _, ok := set[FieldTokenType]; !ok && token.TokenType != "" {
		set[FieldTokenType] = token.TokenType
	}
	if !token.Expiry.IsZero() {
		set[FieldExpiresAt] = token.Expiry.UTC().Format(time.RFC3339)
	}
	return set
}

// responseRecorder keeps a copy of the token endpoint's response body so fields
// oauth2.Token does not model survive into the TokenSet.
// The oauth2 package guarantees this transport only receives token endpoint requests.
type responseRecorder struct {
	base http.RoundTripper
	body []byte
}

// Compile-time check that responseRecorder implements http.RoundTripper.
var _ http.RoundTripper = (*responseRecorder)(nil)

// RoundTrip forwards the request and buffers the response body for both oauth2 and the recorder.
func (r *responseRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := r.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	original := resp.Body
	defer func() { _ = original.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 && isJSON(resp.Header.Get("Content-Type"), body) {
		r.body = body
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

func isJSON(contentType string, body []byte) bool {
	if strings.Contains(contentType, "json") {
		return true
	}
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
