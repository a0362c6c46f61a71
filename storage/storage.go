package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned, possibly wrapped, for a missing object.
	ErrNotFound = errors.New("storage: object not found")
	// ErrInvalidPath is returned for keys that are empty or escape the store root.
	ErrInvalidPath = errors.New("storage: invalid object path")
)

// Object describes a stored object.
type Object struct {
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Storage is a read-oriented object store.
type Storage interface {
	// Open returns a reader for the object at p. The caller closes it.
	Open(ctx context.Context, p string) (io.ReadCloser, error)
	// Stat returns the object's metadata.
	Stat(ctx context.Context, p string) (Object, error)
	// List returns every object whose key starts with prefix, sorted by key.
	List(ctx context.Context, prefix string) ([]Object, error)
}

// CleanPath normalizes an object key to a relative slash path. It rejects
// empty keys and keys that climb above the root.
func CleanPath(p string) (string, error) {
	cleaned := path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", ErrInvalidPath
	}
	for _, part := range strings.Split(p, "/") {
		if part == ".." {
			return "", ErrInvalidPath
		}
	}
	return cleaned, nil
}
