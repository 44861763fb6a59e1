package app

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florianilch/whoop-auth/internal/tokensource"
	"github.com/florianilch/whoop-auth/internal/tokenstore"
)

func TestDefault(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, LogFormatText, cfg.LogFormat)
	assert.Equal(t, TokenStorageTypeFile, cfg.Auth.Storage)
	assert.Equal(t, "settings.json", filepath.Base(cfg.Auth.SettingsFile))
	assert.Equal(t, "tokens.json", filepath.Base(cfg.Auth.TokenFile))
	assert.Equal(t, configDirName, filepath.Base(filepath.Dir(cfg.Auth.TokenFile)))
	assert.Equal(t, tokensource.Endpoint, cfg.Endpoint())
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{
			Auth: AuthConfig{
				SettingsFile: "/tmp/whoop/settings.json",
				TokenFile:    "/tmp/whoop/tokens.json",
			},
		}
		require.NoError(t, cfg.ApplyDefaults())
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.LogFormat = "xml" },
			wantErr: "LogFormat",
		},
		{
			name:    "bad exporter",
			mutate:  func(c *Config) { c.LogExporter = "zipkin" },
			wantErr: "LogExporter",
		},
		{
			name:    "file storage without path",
			mutate:  func(c *Config) { c.Auth.TokenFile = "" },
			wantErr: "token_file",
		},
		{
			name:    "env storage without key",
			mutate:  func(c *Config) { c.Auth.Storage = TokenStorageTypeEnv },
			wantErr: "env_key",
		},
		{
			name:    "keyring storage without user",
			mutate:  func(c *Config) { c.Auth.Storage = TokenStorageTypeKeyring },
			wantErr: "keyring_user",
		},
		{
			name:    "negative timeout",
			mutate:  func(c *Config) { c.HTTP.Timeout = -1 },
			wantErr: "Timeout",
		},
		{
			name:    "token url not a url",
			mutate:  func(c *Config) { c.OAuth.TokenURL = "token" },
			wantErr: "TokenURL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestAuthConfig_NewTokenStore(t *testing.T) {
	dir := t.TempDir()

	file, err := (&AuthConfig{Storage: TokenStorageTypeFile, TokenFile: filepath.Join(dir, "t.json")}).NewTokenStore()
	require.NoError(t, err)
	assert.IsType(t, &tokenstore.FileStore{}, file)

	env, err := (&AuthConfig{Storage: TokenStorageTypeEnv, EnvKey: "WHOOP_TOKENS"}).NewTokenStore()
	require.NoError(t, err)
	assert.IsType(t, &tokenstore.EnvStore{}, env)

	keyring, err := (&AuthConfig{Storage: TokenStorageTypeKeyring, KeyringUser: "alice"}).NewTokenStore()
	require.NoError(t, err)
	assert.IsType(t, &tokenstore.KeyringStore{}, keyring)

	_, err = (&AuthConfig{Storage: "cloud"}).NewTokenStore()
	assert.Error(t, err)
}
