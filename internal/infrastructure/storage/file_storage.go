// Package storage keeps generated quote documents on the local filesystem.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/travel-backoffice/internal/application/port"
)

const (
	dirPerm  fs.FileMode = 0o755
	filePerm fs.FileMode = 0o644
)

// ErrInvalidPath is returned for a document path outside the store
var ErrInvalidPath = errors.New("invalid document path")

// DocumentStore implements port.DocumentStore under a base directory
type DocumentStore struct {
	root   string
	logger *zap.Logger
}

// NewDocumentStore creates a DocumentStore rooted at baseDir, creating the
// directory when missing.
func NewDocumentStore(baseDir string, logger *zap.Logger) (*DocumentStore, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, errors.New("document store base directory is required")
	}
	root, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve document directory: %w", err)
	}
	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, fmt.Errorf("create document directory: %w", err)
	}
	return &DocumentStore{root: root, logger: logger}, nil
}

// Save replaces the document at path. Readers see either the old or the new
// content, never a partial write.
func (s *DocumentStore) Save(ctx context.Context, path string, content []byte) error {
	target, err := s.locate(path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*")
	if err != nil {
		return fmt.Errorf("stage %s: %w", path, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := writeSynced(tmp, content); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), filePerm); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("publish %s: %w", path, err)
	}
	committed = true

	s.logger.Debug("Document stored", zap.String("path", path), zap.Int("bytes", len(content)))
	return nil
}

// Read returns the document stored at path
func (s *DocumentStore) Read(ctx context.Context, path string) ([]byte, error) {
	target, err := s.locate(path)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(target)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return content, nil
}

// Exists reports whether a document is stored at path
func (s *DocumentStore) Exists(ctx context.Context, path string) bool {
	target, err := s.locate(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(target)
	return err == nil && info.Mode().IsRegular()
}

// locate maps a slash-separated document path to a file below the root
func (s *DocumentStore) locate(path string) (string, error) {
	local := filepath.FromSlash(path)
	if !filepath.IsLocal(local) || filepath.Clean(local) == "." {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return filepath.Join(s.root, local), nil
}

func writeSynced(f *os.File, content []byte) error {
	if _, err := f.Write(content); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

var _ port.DocumentStore = (*DocumentStore)(nil)
