package kv

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps one JSON file per key under a directory. Writes go to a
// temporary file that is renamed into place, so readers never see a
// partial value.
type FileStore struct {
	dir   string
	mu    sync.Mutex
	cache sync.Map
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("kv directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create kv directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the backing directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cached, ok := s.cache.Load(key); ok {
		return append([]byte(nil), cached.([]byte)...), nil
	}
	data, err := os.ReadFile(s.keyPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read failed: %w", err)
	}
	s.cache.Store(key, data)
	return append([]byte(nil), data...), nil
}

func (s *FileStore) Save(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, ".kv-*")
	if err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write failed: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("write failed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.keyPath(key)); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}

	s.cache.Store(key, append([]byte(nil), data...))
	return nil
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Delete(key)
	if err := os.Remove(s.keyPath(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete failed: %w", err)
	}
	return nil
}

// keyPath escapes key into a single file name.
func (s *FileStore) keyPath(key string) string {
	return filepath.Join(s.dir, url.QueryEscape(key)+".json")
}
