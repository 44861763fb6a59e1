package tokensource

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseRedirect extracts the authorization code from what the user pasted:
// either the bare code or the full redirect URL (or just its query string).
// When the pasted value carries a state it must equal wantState.
func ParseRedirect(input, wantState string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", ErrMissingCode
	}

	query, isRedirect, err := redirectQuery(input)
	if err != nil {
		return "", err
	}
	if !isRedirect {
		return input, nil
	}

	if reason := query.Get("error"); reason != "" {
		if desc := query.Get("error_description"); desc != "" {
			reason += ": " + desc
		}
		return "", fmt.Errorf("%w: %s", ErrAuthorizationDenied, reason)
	}

	if state := query.Get("state"); state != "" && wantState != "" && state != wantState {
		return "", ErrStateMismatch
	}

	code := query.Get("code")
	if code == "" {
		return "", ErrMissingCode
	}
	return code, nil
}

// redirectQuery returns the query of a pasted redirect URL or query string.
// Input that is neither is reported as not a redirect, so a bare code may
// contain '=' (base64 padding) without being mistaken for a query.
func redirectQuery(input string) (url.Values, bool, error) {
	if strings.Contains(input, "?") || strings.Contains(input, "://") {
		u, err := url.Parse(input)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %w", ErrMalformedRedirect, err)
		}
		query, err := url.ParseQuery(u.RawQuery)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %w", ErrMalformedRedirect, err)
		}
		return query, true, nil
	}

	if !strings.Contains(input, "=") {
		return nil, false, nil
	}
	query, err := url.ParseQuery(input)
	if err != nil || !(query.Has("code") || query.Has("error")) {
		return nil, false, nil
	}
	return query, true, nil
}
