// Package storage provides the local-filesystem blob store for uploaded log
// files. Stored names are opaque and assigned by the caller; writes land in
// a temporary file first and are renamed into place so a stored name never
// exposes partial content.
package storage

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const storedSuffix = ".log"

// LocalStore keeps uploaded files in a single flat directory.
type LocalStore struct {
	dir    string
	logger *slog.Logger
}

// NewLocalStore creates the upload directory if needed and returns a store
// over it.
func NewLocalStore(dir string, logger *slog.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory %s: %w", dir, err)
	}
	return &LocalStore{
		dir:    dir,
		logger: logger.With("component", "local_store"),
	}, nil
}

// Dir returns the store's directory.
func (s *LocalStore) Dir() string {
	return s.dir
}

// SaveTemp streams r into a fresh temporary file in the store directory and
// returns the temporary name and byte count.
func (s *LocalStore) SaveTemp(r io.Reader) (string, int64, error) {
	f, err := os.CreateTemp(s.dir, "upload-*.tmp")
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temp file: %w", err)
	}

	written, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return "", 0, fmt.Errorf("failed to spool upload: %w", err)
	}
	return filepath.Base(f.Name()), written, nil
}

// Promote renames a temporary file to its final stored name. The rename is
// atomic on the same filesystem, so readers only ever see complete content.
func (s *LocalStore) Promote(tmpName, storedName string) error {
	if err := os.Rename(filepath.Join(s.dir, tmpName), filepath.Join(s.dir, storedName)); err != nil {
		return fmt.Errorf("failed to promote %s to %s: %w", tmpName, storedName, err)
	}
	return nil
}

// Discard removes a temporary file that lost a registration race or belongs
// to a duplicate upload.
func (s *LocalStore) Discard(tmpName string) error {
	if err := os.Remove(filepath.Join(s.dir, tmpName)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to discard temp file %s: %w", tmpName, err)
	}
	return nil
}

// Open opens stored content for scanning. The caller owns closing the
// handle; content logically deleted while the handle is open stays readable
// until close.
func (s *LocalStore) Open(storedName string) (io.ReadSeekCloser, error) {
	f, err := os.Open(filepath.Join(s.dir, storedName))
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Remove unlinks stored content. A name already gone is not an error; the
// registry decision that led here stands either way.
func (s *LocalStore) Remove(storedName string) error {
	if err := os.Remove(filepath.Join(s.dir, storedName)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", storedName, err)
	}
	return nil
}

// List returns the stored log files currently on disk, skipping temporary
// spool files.
func (s *LocalStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), storedSuffix) {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}
