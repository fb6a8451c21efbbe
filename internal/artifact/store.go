// Package artifact stores opaque binary video artifacts keyed by generated
// ids and resolves them to access locators.
package artifact

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("artifact not found")

// Store persists binary artifacts. Store failures are loud: a missing
// artifact cannot be substituted the way an invalid config can.
//
// Locators may be time-limited when the backing store signs its URLs;
// callers must not cache them indefinitely.
type Store interface {
	// Store writes data under a fresh unique id and returns the id.
	Store(ctx context.Context, data []byte) (string, error)
	// Locate returns an access locator for the id, or ErrNotFound.
	Locate(ctx context.Context, id string) (string, error)
	// Read returns the stored bytes for the id, or ErrNotFound.
	Read(ctx context.Context, id string) ([]byte, error)
	Close() error
}

// NewStore selects a filesystem-backed store when a directory is configured,
// otherwise an in-memory one. retention <= 0 disables expiry.
func NewStore(dir string, retention RetentionPolicy) (Store, error) {
	if dir == "" {
		return NewMemoryStore(retention), nil
	}
	return NewFSStore(dir, retention)
}
