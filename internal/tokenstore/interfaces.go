package tokenstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
)

// Document is a JSON object as persisted by a Store.
type Document map[string]any

// Clone returns a shallow copy of the document. A nil document clones to an empty one.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	maps.Copy(out, d)
	return out
}

// DecodeDocument parses a JSON object. Numbers are kept as json.Number so
// integers beyond float64 precision survive a load and save unchanged.
func DecodeDocument(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	doc := Document{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding JSON: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("decoding JSON: unexpected data after document")
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

// Store reads and writes a single JSON document to persistent storage.
type Store interface {
	// Load returns the stored document, or an empty document if nothing has been saved yet.
	Load(ctx context.Context) (Document, error)

	// Save persists the document, replacing any previous one. Returns error if the
	// backend is read-only (e.g., environment variables) or the write fails.
	Save(ctx context.Context, doc Document) error
}

// ErrReadOnly is returned when saving to a backend that cannot be written.
var ErrReadOnly = errors.New("storage is read-only")

// StorageError reports a failed load or save. It is never retried.
type StorageError struct {
	Op       string // "load" or "save"
	Location string
	Err      error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Location, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
