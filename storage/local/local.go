// Package local is the filesystem storage backend.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kbukum/streamkit/logger"
	"github.com/kbukum/streamkit/storage"
)

func init() {
	storage.RegisterFactory(storage.ProviderLocal, func(_ context.Context, cfg storage.Config, _ *logger.Logger) (storage.Storage, error) {
		return NewStorage(cfg.BasePath)
	})
}

// Storage serves objects from a directory.
type Storage struct {
	basePath string
}

var _ storage.Storage = (*Storage)(nil)

// NewStorage creates a backend rooted at basePath, creating the directory
// when missing.
func NewStorage(basePath string) (*Storage, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve base path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("storage: create base directory: %w", err)
	}
	return &Storage{basePath: abs}, nil
}

func (s *Storage) resolve(p string) (string, string, error) {
	key, err := storage.CleanPath(p)
	if err != nil {
		return "", "", err
	}
	return key, filepath.Join(s.basePath, filepath.FromSlash(key)), nil
}

func mapErr(err error, key string) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	return fmt.Errorf("storage: %w", err)
}

// Open opens the file for key.
func (s *Storage) Open(_ context.Context, p string) (io.ReadCloser, error) {
	key, full, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, mapErr(err, key)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, mapErr(err, key)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	return f, nil
}

// Stat returns the file's metadata. Directories are not objects.
func (s *Storage) Stat(_ context.Context, p string) (storage.Object, error) {
	key, full, err := s.resolve(p)
	if err != nil {
		return storage.Object{}, err
	}
	info, err := os.Stat(full)
	if err != nil {
		return storage.Object{}, mapErr(err, key)
	}
	if info.IsDir() {
		return storage.Object{}, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	return object(key, info), nil
}

// List walks the tree and returns files whose key starts with prefix.
func (s *Storage) List(_ context.Context, prefix string) ([]storage.Object, error) {
	var objects []storage.Object
	err := filepath.WalkDir(s.basePath, func(full string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.basePath, full)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, object(key, info))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list files: %w", err)
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Path < objects[j].Path })
	return objects, nil
}

func object(key string, info fs.FileInfo) storage.Object {
	ct := mime.TypeByExtension(filepath.Ext(key))
	if ct == "" {
		ct = "application/octet-stream"
	}
	return storage.Object{
		Path:         key,
		Size:         info.Size(),
		ContentType:  ct,
		LastModified: info.ModTime(),
	}
}
