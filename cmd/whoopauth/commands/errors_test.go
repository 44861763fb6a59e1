package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/whoop-auth/internal/app"
	"github.com/florianilch/whoop-auth/internal/credentials"
	"github.com/florianilch/whoop-auth/internal/tokensource"
	"github.com/florianilch/whoop-auth/internal/tokenstore"
)

func TestExplain(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantHint string
	}{
		{
			name:     "missing credentials",
			err:      &credentials.ConfigurationError{Missing: []string{"client_id"}, Err: credentials.ErrNoPrompter},
			wantCode: exitConfiguration,
			wantHint: credentials.EnvClientID,
		},
		{
			name:     "not authenticated",
			err:      fmt.Errorf("token: %w", app.ErrNotAuthenticated),
			wantCode: exitNotAuthenticated,
			wantHint: "whoopauth login",
		},
		{
			name:     "refresh rejected",
			err:      &tokensource.RefreshError{StatusCode: 400, Body: `{"error":"invalid_grant"}`},
			wantCode: exitAuthorization,
			wantHint: "whoopauth login",
		},
		{
			name:     "no refresh token",
			err:      &tokensource.RefreshError{Err: tokensource.ErrNoRefreshToken},
			wantCode: exitAuthorization,
			wantHint: "whoopauth login",
		},
		{
			name:     "refresh network failure",
			err:      &tokensource.RefreshError{Err: &url.Error{Op: "Post", URL: "https://api.prod.whoop.com/oauth/oauth2/token", Err: errors.New("dial tcp: connection refused")}},
			wantCode: exitNetwork,
			wantHint: "network",
		},
		{
			name:     "exchange rejected",
			err:      &tokensource.AuthorizationError{StatusCode: 401, Body: "bad code"},
			wantCode: exitAuthorization,
			wantHint: "fresh code",
		},
		{
			name:     "state mismatch",
			err:      &tokensource.AuthorizationError{Err: tokensource.ErrStateMismatch},
			wantCode: exitAuthorization,
			wantHint: "fresh code",
		},
		{
			name:     "exchange network failure",
			err:      &tokensource.AuthorizationError{Err: fmt.Errorf("token request: %w", context.DeadlineExceeded)},
			wantCode: exitNetwork,
			wantHint: "network",
		},
		{
			name:     "refresh with unexpected response",
			err:      &tokensource.RefreshError{Err: errors.New("oauth2: server response missing access_token")},
			wantCode: exitAuthorization,
			wantHint: "whoopauth login",
		},
		{
			name:     "stdin closed during login",
			err:      &tokensource.AuthorizationError{Err: fmt.Errorf("%w: reading authorization code: %w", app.ErrInteraction, io.EOF)},
			wantCode: exitConfiguration,
			wantHint: "interactive terminal",
		},
		{
			name:     "no interactor",
			err:      &tokensource.AuthorizationError{Err: app.ErrNoInteractor},
			wantCode: exitConfiguration,
			wantHint: "interactive terminal",
		},
		{
			name: "malformed pasted redirect",
			err: &tokensource.AuthorizationError{Err: fmt.Errorf("%w: %w", tokensource.ErrMalformedRedirect,
				&url.Error{Op: "parse", URL: "https://x/%zz", Err: errors.New("invalid URL escape")})},
			wantCode: exitAuthorization,
			wantHint: "fresh code",
		},
		{
			name:     "storage",
			err:      fmt.Errorf("persisting tokens: %w", &tokenstore.StorageError{Op: "save", Location: "/tmp/tokens.json", Err: errors.New("permission denied")}),
			wantCode: exitStorage,
			wantHint: "/tmp/tokens.json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := explain(tt.err)

			var exitErr cli.ExitCoder
			require.ErrorAs(t, got, &exitErr)
			assert.Equal(t, tt.wantCode, exitErr.ExitCode())
			assert.Contains(t, got.Error(), tt.wantHint)
		})
	}
}

func TestExplain_Passthrough(t *testing.T) {
	assert.NoError(t, explain(nil))

	other := errors.New("boom")
	assert.Equal(t, other, explain(other))

	assert.ErrorIs(t, explain(&tokensource.AuthorizationError{Err: context.Canceled}), context.Canceled)
}
