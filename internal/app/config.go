package app

import (
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/oauth2"

	"github.com/florianilch/whoop-auth/internal/tokensource"
	"github.com/florianilch/whoop-auth/internal/tokenstore"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// LogExporter selects where OpenTelemetry log records are shipped, if anywhere.
type LogExporter string

const (
	LogExporterNone     LogExporter = "none"
	LogExporterStdout   LogExporter = "stdout"
	LogExporterOTLPHTTP LogExporter = "otlp-http"
	LogExporterOTLPGRPC LogExporter = "otlp-grpc"
)

// TokenStorageType represents the different storage types supported for stored tokens.
type TokenStorageType string

const (
	TokenStorageTypeFile    TokenStorageType = "file"
	TokenStorageTypeEnv     TokenStorageType = "env"
	TokenStorageTypeKeyring TokenStorageType = "keyring"
)

// keyringService names the keyring entry holding the token set.
const keyringService = "whoop-auth-tokens"

// configDirName is the per-user directory below os.UserConfigDir.
const configDirName = "whoop"

// Default configuration values
const (
	DefaultConfigLogFormat   = LogFormatText
	DefaultConfigLogExporter = LogExporterNone
	DefaultConfigAuthStorage = TokenStorageTypeFile
	DefaultConfigHTTPTimeout = tokensource.DefaultTimeout
)

// AuthConfig describes where client settings and the token set are persisted.
type AuthConfig struct {
	// SettingsFile holds the client credentials (always a file, it is meant to be hand-editable).
	SettingsFile string `json:"settings_file" validate:"required"`

	// Storage configuration - where the token set lives
	Storage TokenStorageType `json:"storage" validate:"required,oneof=file env keyring"`

	// Storage-specific settings (mutually exclusive based on Storage type)
	TokenFile   string `json:"token_file,omitempty"`   // For file storage: path to token file
	EnvKey      string `json:"env_key,omitempty"`      // For env storage: environment variable holding the JSON token set
	KeyringUser string `json:"keyring_user,omitempty"` // For keyring storage: user identifier
}

// NewSettingsStore creates the store holding the client credentials.
func (a *AuthConfig) NewSettingsStore() (tokenstore.Store, error) {
	return tokenstore.NewFileStore(a.SettingsFile)
}

// NewTokenStore creates a token Store from the authentication configuration.
func (a *AuthConfig) NewTokenStore() (tokenstore.Store, error) {
	switch a.Storage {
	case TokenStorageTypeFile:
		return tokenstore.NewFileStore(a.TokenFile)
	case TokenStorageTypeEnv:
		return tokenstore.NewEnvStore(a.EnvKey)
	case TokenStorageTypeKeyring:
		return tokenstore.NewKeyringStore(keyringService, a.KeyringUser)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", a.Storage)
	}
}

// OAuthConfig holds the provider endpoints. Overridable for testing against a stub.
type OAuthConfig struct {
	AuthURL  string `json:"auth_url" validate:"required,url"`
	TokenURL string `json:"token_url" validate:"required,url"`
}

// HTTPConfig holds token endpoint client settings.
type HTTPConfig struct {
	// Timeout bounds each token endpoint request.
	Timeout time.Duration `json:"timeout" validate:"gte=0"`
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel    slog.Level  `json:"log_level"`
	LogFormat   LogFormat   `json:"log_format" validate:"oneof=text json"`
	LogFile     string      `json:"log_file,omitempty"`
	LogExporter LogExporter `json:"log_exporter" validate:"oneof=none stdout otlp-http otlp-grpc"`

	// EnvFile is an optional dotenv file consulted for client credentials after the process environment.
	EnvFile string `json:"env_file,omitempty"`

	Auth  AuthConfig  `json:"auth"`
	OAuth OAuthConfig `json:"oauth"`
	HTTP  HTTPConfig  `json:"http"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.LogExporter == "" {
		c.LogExporter = DefaultConfigLogExporter
	}
	if c.Auth.Storage == "" {
		c.Auth.Storage = DefaultConfigAuthStorage
	}
	if c.OAuth.AuthURL == "" {
		c.OAuth.AuthURL = tokensource.Endpoint.AuthURL
	}
	if c.OAuth.TokenURL == "" {
		c.OAuth.TokenURL = tokensource.Endpoint.TokenURL
	}
	if c.HTTP.Timeout == 0 {
		c.HTTP.Timeout = DefaultConfigHTTPTimeout
	}

	if c.Auth.SettingsFile == "" {
		dir, err := defaultConfigDir()
		if err != nil {
			return fmt.Errorf("auth.settings_file required (auto-detect failed: %w)", err)
		}
		c.Auth.SettingsFile = filepath.Join(dir, "settings.json")
	}

	// Dynamic defaults based on storage type
	switch c.Auth.Storage {
	case TokenStorageTypeFile:
		if c.Auth.TokenFile == "" {
			dir, err := defaultConfigDir()
			if err != nil {
				return fmt.Errorf("auth.token_file required (auto-detect failed: %w)", err)
			}
			c.Auth.TokenFile = filepath.Join(dir, "tokens.json")
		}
	case TokenStorageTypeKeyring:
		if c.Auth.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("auth.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Auth.KeyringUser = currentUser.Username
		}
	case TokenStorageTypeEnv:
		// env_key must be explicitly configured (no sensible default)
	}

	return nil
}

// DefaultConfigFile returns the config file read when none is named explicitly.
func DefaultConfigFile() (string, error) {
	dir, err := defaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

func defaultConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configDirName), nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	switch c.Auth.Storage {
	case TokenStorageTypeFile:
		if c.Auth.TokenFile == "" {
			return fmt.Errorf("token_file required for file storage")
		}
	case TokenStorageTypeEnv:
		if c.Auth.EnvKey == "" {
			return fmt.Errorf("env_key required for env storage")
		}
	case TokenStorageTypeKeyring:
		if c.Auth.KeyringUser == "" {
			return fmt.Errorf("keyring_user required for keyring storage")
		}
	}

	return nil
}

// Endpoint returns the OAuth2 endpoint described by the configuration.
func (c *Config) Endpoint() oauth2.Endpoint {
	endpoint := tokensource.Endpoint
	endpoint.AuthURL = c.OAuth.AuthURL
	endpoint.TokenURL = c.OAuth.TokenURL
	return endpoint
}
