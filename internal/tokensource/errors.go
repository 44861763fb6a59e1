package tokensource

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRefreshToken is returned when a refresh is attempted without a stored refresh token.
	ErrNoRefreshToken = errors.New("no refresh token available")
	// ErrMissingCode is returned when the pasted redirect carries no authorization code.
	ErrMissingCode = errors.New("authorization code missing")
	// ErrStateMismatch is returned when the pasted redirect belongs to a different login attempt.
	ErrStateMismatch = errors.New("state parameter does not match this login attempt")
	// ErrMalformedRedirect is returned when the pasted redirect URL cannot be parsed.
	ErrMalformedRedirect = errors.New("malformed redirect URL")
	// ErrAuthorizationDenied is returned when the redirect reports that the user or provider refused access.
	ErrAuthorizationDenied = errors.New("authorization denied")
)

// AuthorizationError reports a failed interactive login: the code exchange was
// rejected by the token endpoint, the request never completed, or the pasted
// redirect was unusable.
type AuthorizationError struct {
	// StatusCode is the token endpoint's HTTP status, 0 if no response was received.
	StatusCode int
	// Body is the token endpoint's response body as returned.
	Body string
	Err  error
}

func (e *AuthorizationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("authorization code exchange rejected: status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("authorization failed: %v", e.Err)
}

func (e *AuthorizationError) Unwrap() error {
	return e.Err
}

// Rejected reports whether the token endpoint answered with an error status.
func (e *AuthorizationError) Rejected() bool {
	return e.StatusCode != 0
}

// RefreshError reports a failed refresh. A rejection (e.g. revoked or expired
// refresh token) is terminal for the session and requires a new login.
type RefreshError struct {
	// StatusCode is the token endpoint's HTTP status, 0 if no response was received.
	StatusCode int
	// Body is the token endpoint's response body as returned.
	Body string
	Err  error
}

func (e *RefreshError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("token refresh rejected: status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("token refresh failed: %v", e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// Rejected reports whether the token endpoint answered with an error status.
func (e *RefreshError) Rejected() bool {
	return e.StatusCode != 0
}
