package storage

import (
	"io"
	"os"
	"time"
)

// ContentStore manages downloaded documents on the local filesystem.
// All paths are relative to the store's base directory and are
// sanitized before use.
type ContentStore interface {
	// Write saves data to a file path atomically.
	Write(path string, data []byte, mode os.FileMode) error

	// WriteStream saves data from a reader atomically, hashing it as it
	// is written. Returns the hex SHA-256 of the content and the number
	// of bytes written.
	WriteStream(path string, reader io.Reader, mode os.FileMode) (string, int64, error)

	// WriteStreamIfChanged is WriteStream, except that content hashing
	// to priorHash leaves an existing destination untouched. Returns
	// the hex SHA-256, the content size, and whether the file landed.
	WriteStreamIfChanged(path string, reader io.Reader, mode os.FileMode, priorHash string) (string, int64, bool, error)

	// Read retrieves file contents.
	Read(path string) ([]byte, error)

	// HashFile computes the hex SHA-256 of an existing file by
	// streaming it. Returns the hash and the file size.
	HashFile(path string) (string, int64, error)

	// Delete removes a file and prunes empty parent directories.
	Delete(path string) error

	// Exists checks if a file exists.
	Exists(path string) (bool, error)

	// Stat returns file information.
	Stat(path string) (FileInfo, error)

	// EnsureDir creates a directory if it doesn't exist.
	EnsureDir(path string) error

	// ListDir returns directory contents.
	ListDir(path string) ([]FileInfo, error)
}

// FileInfo contains file metadata.
type FileInfo struct {
	Path       string
	Size       int64
	Mode       os.FileMode
	ModTime    time.Time
	IsDir      bool
	IsSymlink  bool
	LinkTarget string
}
