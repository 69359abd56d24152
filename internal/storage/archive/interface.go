// Package archive stores run artifacts on a local filesystem or an
// S3-compatible bucket. Paths are slash separated and relative.
package archive

import (
	"context"
	"errors"
	"path"
	"strings"
)

// ErrNotFound is returned by Read for a missing path
var ErrNotFound = errors.New("archive: not found")

// Storage defines the interface for archive storage backends
type Storage interface {
	// Write stores data at the given path, replacing existing data
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns all paths under the prefix, sorted
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data at the given path
	Delete(ctx context.Context, path string) error

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}

// ContentType guesses a MIME type from the file extension.
func ContentType(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".json":
		return "application/json"
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".csv":
		return "text/csv; charset=utf-8"
	case ".log":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
