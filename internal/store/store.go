// Package store persists derivative files without ever replacing one that is
// already in place.
package store

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrExists is returned by WriteNew when the destination is already present.
var ErrExists = fs.ErrExist

// FileStore is the filesystem capability the derivative generator needs.
type FileStore interface {
	MkdirAll(dir string) error
	Exists(path string) bool
	// WriteNew atomically creates path with data, failing if path exists.
	WriteNew(path string, data []byte) error
	Open(path string) (io.ReadCloser, error)
}

// Local is a FileStore on the local disk. Temp files are staged next to the
// destination and hard-linked into place, so readers never observe a partial
// file and a concurrent writer that loses the race gets ErrExists.
type Local struct {
	dirPerm  os.FileMode
	filePerm os.FileMode
}

var _ FileStore = (*Local)(nil)

// NewLocal creates a local store with 0755 directories and 0644 files.
func NewLocal() *Local {
	return &Local{
		dirPerm:  0755,
		filePerm: 0644,
	}
}

func (l *Local) MkdirAll(dir string) error {
	return os.MkdirAll(dir, l.dirPerm)
}

func (l *Local) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (l *Local) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

func (l *Local) WriteNew(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".derivative-*")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Chmod(l.filePerm); err != nil {
		tmp.Close()
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Link(tmpName, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s: %w", path, ErrExists)
		}
		return fmt.Errorf("linking %s: %w", path, err)
	}
	return nil
}
