package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"village-registry/internal/core/domain"

	"github.com/pkg/errors"
)

// FileStore keeps document artifacts in a local directory
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrapf(err, "create artifact dir %s", dir)
	}
	return &FileStore{dir: dir}, nil
}

// Save writes data under name and returns the stored path. Existing files
// are never overwritten.
func (s *FileStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := s.resolve(name)
	if err != nil {
		return "", err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", errors.Wrapf(err, "create artifact %s", name)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", errors.Wrapf(err, "write artifact %s", name)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", errors.Wrapf(err, "close artifact %s", name)
	}
	return path, nil
}

// Load reads an artifact written by Save
func (s *FileStore) Load(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.owns(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read artifact %s", path)
	}
	return data, nil
}

// Remove deletes an artifact. Missing files are not an error.
func (s *FileStore) Remove(ctx context.Context, path string) error {
	if err := s.owns(path); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "remove artifact %s", path)
	}
	return nil
}

// List returns the artifacts currently in the directory
func (s *FileStore) List(ctx context.Context) ([]domain.ArtifactInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "list artifacts in %s", s.dir)
	}

	out := make([]domain.ArtifactInfo, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// removed since ReadDir
			continue
		}
		out = append(out, domain.ArtifactInfo{
			Name:    e.Name(),
			Path:    filepath.Join(s.dir, e.Name()),
			ModTime: info.ModTime(),
		})
	}
	return out, nil
}

func (s *FileStore) resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", errors.Errorf("invalid artifact name %q", name)
	}
	return filepath.Join(s.dir, name), nil
}

func (s *FileStore) owns(path string) error {
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return errors.Errorf("artifact %q is outside %s", path, s.dir)
	}
	return nil
}
