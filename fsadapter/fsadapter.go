// Package fsadapter abstracts the narrow set of filesystem operations consumed by
// file-based stores, so the same rotation and replay logic can run against the local
// filesystem or an object store.
package fsadapter

import (
	"fmt"

	"github.com/relex/gotils/logger"
)

// FileSystem is the backend consumed by file stores
//
// Implementations must be safe for use from one category worker at a time; no
// cross-worker sharing happens because every file store owns its own directory.
type FileSystem interface {

	// OpenWriter opens a file for appending, creating it and parent directories as needed
	OpenWriter(path string) (FileWriter, error)

	// ReadAll reads the full contents of a file
	ReadAll(path string) ([]byte, error)

	// List returns the file names (not paths) inside a directory; missing directory is not an error
	List(dir string) ([]string, error)

	// Remove unlinks a file
	Remove(path string) error

	// FileSize returns the size of a file in bytes
	FileSize(path string) (int64, error)

	// WriteAll replaces the contents of a file atomically as far as the backend allows
	WriteAll(path string, data []byte) error

	// Symlink points link at target, replacing any previous link; backends without
	// symlink support return nil and do nothing
	Symlink(target string, link string) error

	// MkdirAll creates a directory and parents
	MkdirAll(dir string) error
}

// FileWriter is an open handle for appending to one file
type FileWriter interface {

	// Write appends the given bytes; short writes are errors
	Write(data []byte) (int, error)

	// Sync pushes written data toward durable storage
	Sync() error

	// Size returns the current file size in bytes
	Size() (int64, error)

	// Close releases the handle, flushing buffered data first
	Close() error
}

// Options selects and parameterizes a backend
type Options struct {
	Endpoint string // object store endpoint, "" for local backends
	Bucket   string // object store bucket
	Secure   bool   // TLS toward the object store
}

// New creates a FileSystem backend by type name: "std" for the local filesystem,
// "s3" for an S3-compatible object store (credentials from environment)
func New(parentLogger logger.Logger, fsType string, options Options) (FileSystem, error) {
	switch fsType {
	case "", "std":
		return newLocalFS(), nil
	case "s3":
		return newObjectFS(parentLogger, options)
	default:
		return nil, fmt.Errorf("unsupported fs_type '%s'", fsType)
	}
}
