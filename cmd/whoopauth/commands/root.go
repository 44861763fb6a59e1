package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/whoop-auth/internal/app"
	"github.com/florianilch/whoop-auth/internal/console"
	"github.com/florianilch/whoop-auth/internal/observability"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string, version string) error {
	cmd := &cli.Command{
		Name:    "whoopauth",
		Usage:   "WHOOP OAuth token helper",
		Version: version,
		// Exit codes are handled by main so deferred cleanup runs first
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file (default $WHOOPAUTH_CONFIG, then <user config dir>/whoop/config.toml)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "write logs to a rotating file instead of stderr",
			},
			&cli.StringFlag{
				Name:  "log-exporter",
				Usage: "export logs via OpenTelemetry (none|stdout|otlp-http|otlp-grpc)",
				Value: string(app.DefaultConfigLogExporter),
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "dotenv file consulted for WHOOP_CLIENT_ID/WHOOP_CLIENT_SECRET after the environment",
			},
			&cli.StringFlag{
				Name:  "auth--storage",
				Usage: "token storage (file|keyring|env)",
				Value: string(app.DefaultConfigAuthStorage),
			},
			&cli.StringFlag{
				Name:  "auth--token-file",
				Usage: "token file for file storage",
			},
			&cli.StringFlag{
				Name:  "auth--settings-file",
				Usage: "client settings file",
			},
			&cli.StringFlag{
				Name:  "auth--keyring-user",
				Usage: "keyring user for keyring storage",
			},
			&cli.StringFlag{
				Name:  "auth--env-key",
				Usage: "environment variable holding the token set for env storage",
			},
			&cli.DurationFlag{
				Name:  "http--timeout",
				Usage: "token endpoint request timeout",
				Value: app.DefaultConfigHTTPTimeout,
			},
		},
		Commands: []*cli.Command{
			setupCommand(),
			loginCommand(),
			tokenCommand(),
			refreshCommand(),
			statusCommand(),
		},
	}

	return cmd.Run(ctx, args)
}

// session is the per-invocation wiring shared by all commands.
type session struct {
	cfg      *app.Config
	app      *app.App
	shutdown observability.ShutdownFunc
}

func (s *session) close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.shutdown(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "flushing logs: %v\n", err)
	}
}

func newSession(ctx context.Context, cmd *cli.Command) (*session, error) {
	configPath, err := resolveConfigPath(cmd.String("config"), os.Environ(), app.DefaultConfigFile)
	if err != nil {
		return nil, err
	}

	cfg, err := loadConfig(configPath, cmd, os.Environ)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Set up observability before creating app
	shutdown, err := observability.Instrument(ctx, observability.Settings{
		Level:    cfg.LogLevel,
		Format:   string(cfg.LogFormat),
		File:     cfg.LogFile,
		Exporter: string(cfg.LogExporter),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up observability layer: %w", err)
	}

	con := console.Stdio()
	application, err := app.New(cfg,
		app.WithPrompter(con),
		app.WithLoginInteractor(con),
	)
	if err != nil {
		_ = shutdown(ctx)
		return nil, fmt.Errorf("failed to create app: %w", err)
	}

	return &session{cfg: cfg, app: application, shutdown: shutdown}, nil
}

// withManager runs fn with a token manager, translating failures into user-facing exits.
func withManager(ctx context.Context, cmd *cli.Command, fn func(*session, *app.Manager) error) error {
	s, err := newSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	manager, err := s.app.Manager(ctx)
	if err != nil {
		return explain(err)
	}
	return explain(fn(s, manager))
}

func setupCommand() *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "resolve client credentials, prompting for and saving any that are missing",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := newSession(ctx, cmd)
			if err != nil {
				return err
			}
			defer s.close(ctx)

			creds, err := s.app.Credentials(ctx)
			if err != nil {
				return explain(err)
			}
			_, err = fmt.Fprintf(cmd.Root().Writer, "client_id: %s\nredirect_uri: %s\nsettings: %s\n",
				creds.ClientID, creds.RedirectURI, s.cfg.Auth.SettingsFile)
			return err
		},
	}
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "authorize in the browser and store a new token set",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withManager(ctx, cmd, func(_ *session, m *app.Manager) error {
				if _, err := m.Login(ctx); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.Root().ErrWriter, "WHOOP access authorized.")
				return err
			})
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "print a usable access token, refreshing it if none is cached",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withManager(ctx, cmd, func(_ *session, m *app.Manager) error {
				token, err := m.EnsureAccessToken(ctx)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.Root().Writer, token)
				return err
			})
		},
	}
}

func refreshCommand() *cli.Command {
	return &cli.Command{
		Name:  "refresh",
		Usage: "redeem the stored refresh token for a new access token",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "print",
				Usage: "print the new access token",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withManager(ctx, cmd, func(_ *session, m *app.Manager) error {
				token, err := m.RefreshAccessToken(ctx)
				if err != nil {
					return err
				}
				if cmd.Bool("print") {
					_, err = fmt.Fprintln(cmd.Root().Writer, token)
					return err
				}
				_, err = fmt.Fprintln(cmd.Root().ErrWriter, "Access token refreshed.")
				return err
			})
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "show the stored token state without contacting WHOOP",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withManager(ctx, cmd, func(s *session, m *app.Manager) error {
				state, err := m.State(ctx)
				if err != nil {
					return err
				}
				out := cmd.Root().Writer
				_, _ = fmt.Fprintf(out, "state: %s\nstorage: %s\n", state, s.cfg.Auth.Storage)

				expiry, ok, err := m.Expiry(ctx)
				if err != nil {
					return err
				}
				if ok {
					remaining := time.Until(expiry).Round(time.Second)
					_, _ = fmt.Fprintf(out, "expires_at: %s (%s)\n", expiry.Format(time.RFC3339), describeRemaining(remaining))
				}
				return nil
			})
		},
	}
}

func describeRemaining(d time.Duration) string {
	if d <= 0 {
		return "probably expired"
	}
	return "in " + d.String()
}
