package tokensource

import (
	"golang.org/x/oauth2"
)

// Endpoint defines the OAuth2 endpoints for the WHOOP API.
// WHOOP expects client credentials in the form body (client_secret_post).
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://api.prod.whoop.com/oauth/oauth2/auth",
	TokenURL:  "https://api.prod.whoop.com/oauth/oauth2/token", //nolint:gosec // endpoint URL, not a credential
	AuthStyle: oauth2.AuthStyleInParams,
}

// Scopes is the fixed set of capabilities requested on every login.
// "offline" is what makes WHOOP issue a refresh token.
var Scopes = []string{
	"offline",
	"read:profile",
	"read:recovery",
	"read:sleep",
	"read:workout",
}
