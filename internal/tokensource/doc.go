// Package tokensource talks to the WHOOP OAuth2 endpoints: it builds the
// authorization URL, exchanges a pasted authorization code for a token set,
// and redeems a refresh token for a new access token.
//
// WHOOP's token responses may carry fields beyond the ones oauth2.Token
// models, so every call returns a TokenSet holding the raw response fields.
//
// # OAuth2 Authorization Flow
//
//	auth := tokensource.NewAuthorizer(creds, tokensource.Endpoint)
//	authURL := auth.AuthCodeURL(state)
//	// User approves and is redirected to creds.RedirectURI?code=...&state=...
//	code, err := tokensource.ParseRedirect(pasted, state)
//	set, err := auth.Exchange(ctx, code)
//
// # Refresh
//
//	set, err := auth.Refresh(ctx, stored.RefreshToken())
//	stored = stored.Merge(set)
//
// # Custom Base Transport
//
// Configure a custom base transport for token requests (e.g., for proxies or
// tests) and the request timeout:
//
//	auth := tokensource.NewAuthorizer(
//		creds,
//		tokensource.Endpoint,
//		tokensource.WithTransport(customTransport),
//		tokensource.WithTimeout(10*time.Second),
//	)
package tokensource
