package imagestore

import (
	"context"
	"errors"
)

// Store defines operations for persisting rendered session images.
// Images are keyed by (session, name); name carries a file extension
// for readability but content is stored as opaque bytes.
type Store interface {
	Put(ctx context.Context, session, name string, content []byte) error
	Get(ctx context.Context, session, name string) ([]byte, error)
	GetURL(ctx context.Context, session, name string) (string, error)
	List(ctx context.Context, session string) ([]string, error)
	// Purge removes every image belonging to the session.
	Purge(ctx context.Context, session string) error
}

var ErrNotFound = errors.New("image not found")
