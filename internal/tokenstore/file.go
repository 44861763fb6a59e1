package tokenstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FileStore provides atomic file-based document storage with secure permissions.
// Writes use temp file + rename for crash safety.
type FileStore struct {
	filePath string
}

// Compile-time check to ensure FileStore implements Store
var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore for the given path. Parent directories are
// created on first Save, not here, so pointing at a fresh location has no side effects.
func NewFileStore(filePath string) (*FileStore, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	return &FileStore{
		filePath: filePath,
	}, nil
}

// Path returns the location of the backing file.
func (f *FileStore) Path() string {
	return f.filePath
}

// Load returns the stored document. A missing or blank file yields an empty document.
func (f *FileStore) Load(ctx context.Context) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.filePath)
	if errors.Is(err, os.ErrNotExist) {
		return Document{}, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "load", Location: f.filePath, Err: err}
	}

	// Files are meant to be hand-editable, so loose permissions are reported, not rejected
	if info, err := os.Stat(f.filePath); err == nil && info.Mode().Perm()&0o077 != 0 {
		slog.WarnContext(ctx, "insecure permissions on stored document",
			"path", f.filePath, "mode", fmt.Sprintf("%04o", info.Mode().Perm()))
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return Document{}, nil
	}

	doc, err := DecodeDocument(data)
	if err != nil {
		return nil, &StorageError{Op: "load", Location: f.filePath, Err: err}
	}
	return doc, nil
}

// Save atomically writes the document as indented JSON using temp file + rename.
// Parent directories are created with 0700 and the file ends up with 0600.
func (f *FileStore) Save(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := f.write(ctx, doc); err != nil {
		return &StorageError{Op: "save", Location: f.filePath, Err: err}
	}
	return nil
}

func (f *FileStore) write(ctx context.Context, doc Document) error {
	if doc == nil {
		doc = Document{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(f.filePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	// Create secure temp file in same directory for atomic rename
	tempFile, err := os.CreateTemp(dir, "*.tmp")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()
	// Cleanup deferred for all exit paths
	defer func() { _ = os.Remove(tempName) }()
	defer func() { _ = tempFile.Close() }()

	if _, err := tempFile.Write(data); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}

	// Set secure file permissions (0600 = rw-------) before the file becomes visible
	if err := os.Chmod(tempName, 0600); err != nil {
		return err
	}

	// Atomic rename to final location
	return os.Rename(tempName, f.filePath)
}
