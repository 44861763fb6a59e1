package tokenstore

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvStore provides read-only access to a JSON document held in an environment variable.
// Suitable for scripted runs with a pre-minted token set, but refreshing needs writable storage.
type EnvStore struct {
	envKey string
	lookup func(string) (string, bool)
}

// Compile-time check to ensure EnvStore implements Store
var _ Store = (*EnvStore)(nil)

// NewEnvStore creates an EnvStore for the given environment variable.
// Returns error if the variable name is empty.
func NewEnvStore(envKey string) (*EnvStore, error) {
	if envKey == "" {
		return nil, fmt.Errorf("environment key cannot be empty")
	}

	return &EnvStore{
		envKey: envKey,
		lookup: os.LookupEnv,
	}, nil
}

// Load parses the variable's value as a JSON object. An unset or blank variable yields an empty document.
func (e *EnvStore) Load(ctx context.Context) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	value, _ := e.lookup(e.envKey)
	if strings.TrimSpace(value) == "" {
		return Document{}, nil
	}

	doc, err := DecodeDocument([]byte(value))
	if err != nil {
		return nil, &StorageError{Op: "load", Location: "$" + e.envKey, Err: err}
	}
	return doc, nil
}

// Save is not supported for environment variables (they are read-only).
func (e *EnvStore) Save(ctx context.Context, _ Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return &StorageError{Op: "save", Location: "$" + e.envKey, Err: ErrReadOnly}
}
