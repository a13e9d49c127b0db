package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// FileStore keeps one file per key under a directory. Writes are atomic:
// the blob goes to a temp file first and is renamed into place.
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

// NewFileStore creates a FileStore rooted at dir. The directory is created
// lazily on first Put.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the directory holding the blobs.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Get implements Store.
func (s *FileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, errors.Wrapf(err, "failed to read %s", key)
	}
	return data, true, nil
}

// Put implements Store.
func (s *FileStore) Put(_ context.Context, key string, data []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create state directory")
	}

	target := s.path(key)
	tmpPath := target + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", key)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrapf(err, "failed to save %s", key)
	}
	return nil
}

// Close implements Store.
func (s *FileStore) Close() error { return nil }
