// Package store is the opaque key/value blob store that snapshots engine
// state. Values are never interpreted here; the engine owns their encoding.
package store

import (
	"context"

	"github.com/pkg/errors"
)

// Store persists named blobs.
type Store interface {
	// Get returns the blob stored under key. ok is false when the key has
	// never been written.
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	// Put replaces the blob stored under key.
	Put(ctx context.Context, key string, data []byte) error
	// Close releases any underlying resources.
	Close() error
}

// ErrInvalidKey is returned for keys that cannot be stored.
var ErrInvalidKey = errors.New("invalid store key")

func validateKey(key string) error {
	if key == "" {
		return errors.Wrap(ErrInvalidKey, "empty key")
	}
	for _, r := range key {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' || r == '.') {
			return errors.Wrapf(ErrInvalidKey, "key %q", key)
		}
	}
	if key == "." || key == ".." {
		return errors.Wrapf(ErrInvalidKey, "key %q", key)
	}
	return nil
}
