package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps artifacts on the local filesystem. URIs are plain paths or file:// URIs.
type LocalStore struct{}

// NewLocalStore creates a new LocalStore.
func NewLocalStore() *LocalStore {
	return &LocalStore{}
}

// Read implements Store.
func (s *LocalStore) Read(ctx context.Context, uri string) ([]byte, error) {
	path := localPath(uri)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read %q: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	return data, nil
}

// Write implements Store. The file is written to a temporary sibling and renamed
// so readers never observe a partially written dataset.
func (s *LocalStore) Write(ctx context.Context, uri string, data []byte, contentType string) error {
	path := localPath(uri)
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %q: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %q: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %q: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %q: %w", path, err)
	}
	return nil
}

func localPath(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}

var _ Store = (*LocalStore)(nil)
