package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringStore provides OS-native secure credential storage for documents.
// Uses macOS Keychain, Windows Credential Manager, or Linux Secret Service.
// The document is stored as a single JSON-encoded secret.
type KeyringStore struct {
	service string
	user    string
}

// Compile-time check to ensure KeyringStore implements Store
var _ Store = (*KeyringStore)(nil)

// NewKeyringStore creates a KeyringStore for the OS-native credential storage
// (macOS Keychain, Windows Credential Manager, etc.) using the given service and user identifiers.
func NewKeyringStore(service, user string) (*KeyringStore, error) {
	if service == "" {
		return nil, fmt.Errorf("service cannot be empty")
	}
	if user == "" {
		return nil, fmt.Errorf("user cannot be empty")
	}

	return &KeyringStore{
		service: service,
		user:    user,
	}, nil
}

func (k *KeyringStore) location() string {
	return fmt.Sprintf("keyring %s/%s", k.service, k.user)
}

// Load returns the document from the system keyring. A missing entry yields an empty document.
func (k *KeyringStore) Load(ctx context.Context) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	secret, err := keyring.Get(k.service, k.user)
	if errors.Is(err, keyring.ErrNotFound) {
		return Document{}, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "load", Location: k.location(), Err: err}
	}
	if secret == "" {
		return Document{}, nil
	}

	doc, err := DecodeDocument([]byte(secret))
	if err != nil {
		return nil, &StorageError{Op: "load", Location: k.location(), Err: err}
	}
	return doc, nil
}

// Save persists the document to the system keyring, overwriting any existing value.
func (k *KeyringStore) Save(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if doc == nil {
		doc = Document{}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return &StorageError{Op: "save", Location: k.location(), Err: fmt.Errorf("encoding JSON: %w", err)}
	}

	if err := keyring.Set(k.service, k.user, string(data)); err != nil {
		return &StorageError{Op: "save", Location: k.location(), Err: err}
	}
	return nil
}
