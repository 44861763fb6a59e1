package credentials

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florianilch/whoop-auth/internal/tokenstore"
)

// scriptedPrompter answers prompts in order and records the labels it was asked.
type scriptedPrompter struct {
	answers []string
	asked   []string
	err     error
}

func (p *scriptedPrompter) Prompt(_ context.Context, label, defaultValue string, _ bool) (string, error) {
	p.asked = append(p.asked, label)
	if p.err != nil {
		return "", p.err
	}
	if len(p.answers) == 0 {
		return defaultValue, nil
	}
	answer := p.answers[0]
	p.answers = p.answers[1:]
	return answer, nil
}

func envLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func newSettings(t *testing.T, doc tokenstore.Document) *tokenstore.FileStore {
	t.Helper()
	store, err := tokenstore.NewFileStore(filepath.Join(t.TempDir(), "whoop", "settings.json"))
	require.NoError(t, err)
	if doc != nil {
		require.NoError(t, store.Save(context.Background(), doc))
	}
	return store
}

func TestResolve_EnvironmentTakesPrecedence(t *testing.T) {
	settings := newSettings(t, tokenstore.Document{
		"client_id":     "settings-id",
		"client_secret": "settings-secret",
		"redirect_uri":  "https://settings.example.com",
	})
	resolver, err := NewResolver(settings, WithLookup(envLookup(map[string]string{
		EnvClientID:     "env-id",
		EnvClientSecret: "env-secret",
	})))
	require.NoError(t, err)

	creds, err := resolver.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Credentials{
		ClientID:     "env-id",
		ClientSecret: "env-secret",
		RedirectURI:  "https://settings.example.com",
	}, creds)
}

func TestResolve_PartialEnvironment(t *testing.T) {
	settings := newSettings(t, tokenstore.Document{
		"client_id":     "settings-id",
		"client_secret": "settings-secret",
	})
	resolver, err := NewResolver(settings, WithLookup(envLookup(map[string]string{
		EnvClientSecret: "env-secret",
		EnvClientID:     "   ",
	})))
	require.NoError(t, err)

	creds, err := resolver.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "settings-id", creds.ClientID)
	assert.Equal(t, "env-secret", creds.ClientSecret)
	assert.Equal(t, DefaultRedirectURI, creds.RedirectURI)
}

func TestResolve_ResolvedSourcesDoNotWriteSettings(t *testing.T) {
	settings := newSettings(t, nil)
	prompter := &scriptedPrompter{}
	resolver, err := NewResolver(settings,
		WithPrompter(prompter),
		WithLookup(envLookup(map[string]string{EnvClientID: "env-id", EnvClientSecret: "env-secret"})),
	)
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background())
	require.NoError(t, err)
	assert.Empty(t, prompter.asked)

	_, err = os.Stat(settings.Path())
	assert.True(t, errors.Is(err, os.ErrNotExist), "settings must not be written")
}

func TestResolve_PromptsAndPersists(t *testing.T) {
	settings := newSettings(t, nil)
	prompter := &scriptedPrompter{answers: []string{" prompted-id ", "prompted-secret", ""}}
	resolver, err := NewResolver(settings, WithPrompter(prompter), WithLookup(envLookup(nil)))
	require.NoError(t, err)

	creds, err := resolver.Resolve(context.Background())
	require.NoError(t, err)
	want := Credentials{ClientID: "prompted-id", ClientSecret: "prompted-secret", RedirectURI: DefaultRedirectURI}
	assert.Equal(t, want, creds)
	assert.Len(t, prompter.asked, 3)

	doc, err := settings.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, FromDocument(doc))
}

func TestResolve_PromptsOnlyMissingFields(t *testing.T) {
	settings := newSettings(t, tokenstore.Document{"redirect_uri": "https://example.com/cb"})
	prompter := &scriptedPrompter{answers: []string{"prompted-secret"}}
	resolver, err := NewResolver(settings,
		WithPrompter(prompter),
		WithLookup(envLookup(map[string]string{EnvClientID: "env-id"})),
	)
	require.NoError(t, err)

	creds, err := resolver.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"WHOOP Client Secret"}, prompter.asked)
	assert.Equal(t, Credentials{ClientID: "env-id", ClientSecret: "prompted-secret", RedirectURI: "https://example.com/cb"}, creds)

	doc, err := settings.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, creds, FromDocument(doc))
}

func TestResolve_NonInteractiveMissing(t *testing.T) {
	resolver, err := NewResolver(newSettings(t, nil), WithLookup(envLookup(nil)))
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background())
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, []string{"client_id", "client_secret"}, cfgErr.Missing)
	assert.ErrorIs(t, err, ErrNoPrompter)
}

func TestResolve_PromptFailure(t *testing.T) {
	prompter := &scriptedPrompter{err: errors.New("stdin closed")}
	resolver, err := NewResolver(newSettings(t, nil), WithPrompter(prompter), WithLookup(envLookup(nil)))
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background())
	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestResolve_BlankPromptAnswer(t *testing.T) {
	prompter := &scriptedPrompter{answers: []string{"  "}}
	resolver, err := NewResolver(newSettings(t, nil), WithPrompter(prompter), WithLookup(envLookup(nil)))
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background())
	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestResolve_SettingsLoadFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0600))
	store, err := tokenstore.NewFileStore(path)
	require.NoError(t, err)

	resolver, err := NewResolver(store, WithLookup(envLookup(nil)))
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background())
	var storageErr *tokenstore.StorageError
	assert.ErrorAs(t, err, &storageErr)
}

func TestCredentials_DocumentRoundTrip(t *testing.T) {
	settings := newSettings(t, nil)
	want := Credentials{ClientID: "id", ClientSecret: "secret", RedirectURI: "https://example.com"}
	require.NoError(t, settings.Save(context.Background(), want.Document()))

	doc, err := settings.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, FromDocument(doc))
}
