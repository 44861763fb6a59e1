package tokensource

import (
	"maps"
	"time"
)

// Well-known token set fields.
const (
	FieldAccessToken  = "access_token"
	FieldRefreshToken = "refresh_token"
	FieldTokenType    = "token_type"
	FieldExpiresIn    = "expires_in"
	FieldScope        = "scope"
	// FieldExpiresAt is stamped locally from expires_in; WHOOP never sends it.
	FieldExpiresAt = "expires_at"
)

// TokenSet is the provider's token response as an open mapping.
// Unknown fields are kept so nothing the provider adds is lost on save.
type TokenSet map[string]any

func (s TokenSet) str(key string) string {
	v, _ := s[key].(string)
	return v
}

// AccessToken returns the access token, or "" if absent.
func (s TokenSet) AccessToken() string { return s.str(FieldAccessToken) }

// RefreshToken returns the refresh token, or "" if absent.
func (s TokenSet) RefreshToken() string { return s.str(FieldRefreshToken) }

// TokenType returns the token type, defaulting to "Bearer".
func (s TokenSet) TokenType() string {
	if t := s.str(FieldTokenType); t != "" {
		return t
	}
	return "Bearer"
}

// Expiry returns the locally recorded expiry hint, if any.
func (s TokenSet) Expiry() (time.Time, bool) {
	raw := s.str(FieldExpiresAt)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Clone returns a shallow copy. Cloning nil yields an empty set.
func (s TokenSet) Clone() TokenSet {
	out := make(TokenSet, len(s)+4)
	maps.Copy(out, s)
	return out
}

// Merge returns a copy of s with every field of update written over it.
// Fields missing from update, such as a refresh token the provider did not
// reissue, keep their previous value.
func (s TokenSet) Merge(update TokenSet) TokenSet {
	out := s.Clone()
	maps.Copy(out, update)
	return out
}
