package commands

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/whoop-auth/internal/app"
	"github.com/florianilch/whoop-auth/internal/credentials"
	"github.com/florianilch/whoop-auth/internal/tokensource"
	"github.com/florianilch/whoop-auth/internal/tokenstore"
)

// Exit codes let scripts tell failure classes apart.
const (
	exitConfiguration    = 2
	exitNotAuthenticated = 3
	exitAuthorization    = 4
	exitNetwork          = 5
	exitStorage          = 6
)

const (
	hintNetwork = "hint: check your network connection and retry"
	hintRelogin = "hint: run `whoopauth login` again and paste a fresh code"
)

// explain maps a failure onto an exit code and a hint telling the user what to do next.
func explain(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}

	var (
		cfgErr     *credentials.ConfigurationError
		storageErr *tokenstore.StorageError
		authErr    *tokensource.AuthorizationError
		refreshErr *tokensource.RefreshError
	)

	switch {
	case errors.As(err, &cfgErr):
		return exit(err, fmt.Sprintf("hint: export %s and %s, or run `whoopauth setup` interactively",
			credentials.EnvClientID, credentials.EnvClientSecret), exitConfiguration)
	case errors.Is(err, app.ErrNotAuthenticated):
		return exit(err, "hint: run `whoopauth login`", exitNotAuthenticated)
	case errors.Is(err, app.ErrInteraction), errors.Is(err, app.ErrNoInteractor):
		return exit(err, "hint: run `whoopauth login` from an interactive terminal", exitConfiguration)
	case errors.As(err, &refreshErr):
		if !refreshErr.Rejected() && isNetworkFailure(err) {
			return exit(err, hintNetwork, exitNetwork)
		}
		return exit(err, "hint: the refresh token is no longer valid, run `whoopauth login`", exitAuthorization)
	case errors.As(err, &authErr):
		if !authErr.Rejected() && isNetworkFailure(err) {
			return exit(err, hintNetwork, exitNetwork)
		}
		return exit(err, hintRelogin, exitAuthorization)
	case errors.As(err, &storageErr):
		return exit(err, fmt.Sprintf("hint: check that %s is readable and writable", storageErr.Location), exitStorage)
	default:
		return err
	}
}

func exit(err error, hint string, code int) error {
	return cli.Exit(fmt.Sprintf("%v\n%s", err, hint), code)
}

// isNetworkFailure reports whether the token endpoint could not be reached or did not answer in time.
// Malformed pasted redirects are excluded even though url.Parse reports them as *url.Error.
func isNetworkFailure(err error) bool {
	if errors.Is(err, tokensource.ErrMalformedRedirect) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
