package upload

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// DiskStore stores uploads in a local directory, typically one served as
// static assets.
type DiskStore struct {
	dir string
}

// NewDiskStore creates dir if needed and returns a store writing into it.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskStore{dir: dir}, nil
}

// Dir returns the directory files are written to.
func (s *DiskStore) Dir() string {
	return s.dir
}

func (s *DiskStore) path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}

// Save writes r to dir/name. A partially written file is removed on error.
func (s *DiskStore) Save(_ context.Context, name, _ string, r io.Reader) (int64, error) {
	path := s.path(name)

	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}

	written, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return 0, err
	}

	return written, nil
}

func (s *DiskStore) Remove(_ context.Context, name string) error {
	err := os.Remove(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
