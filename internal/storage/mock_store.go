package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// MockStore provides an in-memory ContentStore for testing.
type MockStore struct {
	mu    sync.RWMutex
	files map[string][]byte
	dirs  map[string]bool

	// WriteCalls counts Write and WriteStream invocations, for
	// verifying that download-free runs never touch content.
	WriteCalls int
}

// NewMockStore creates a mock content store.
func NewMockStore() *MockStore {
	return &MockStore{
		files: make(map[string][]byte),
		dirs:  make(map[string]bool),
	}
}

// Write saves data to a file.
func (m *MockStore) Write(path string, data []byte, mode os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteCalls++
	m.files[path] = make([]byte, len(data))
	copy(m.files[path], data)
	return nil
}

// WriteStream saves data from a reader and returns its hash and size.
func (m *MockStore) WriteStream(path string, reader io.Reader, mode os.FileMode) (string, int64, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", 0, err
	}

	if err := m.Write(path, data, mode); err != nil {
		return "", 0, err
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), int64(len(data)), nil
}

// WriteStreamIfChanged skips the write when the content hashes to
// priorHash and the file is already present.
func (m *MockStore) WriteStreamIfChanged(path string, reader io.Reader, mode os.FileMode, priorHash string) (string, int64, bool, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", 0, false, err
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	if priorHash != "" && hash == priorHash && m.FileExists(path) {
		return hash, int64(len(data)), false, nil
	}

	if err := m.Write(path, data, mode); err != nil {
		return "", 0, false, err
	}
	return hash, int64(len(data)), true, nil
}

// Read retrieves file contents.
func (m *MockStore) Read(path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if data, ok := m.files[path]; ok {
		result := make([]byte, len(data))
		copy(result, data)
		return result, nil
	}

	return nil, fmt.Errorf("file not found: %s", path)
}

// HashFile computes the hash of a stored file.
func (m *MockStore) HashFile(path string) (string, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.files[path]
	if !ok {
		return "", 0, fmt.Errorf("file not found: %s", path)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), int64(len(data)), nil
}

// Delete removes a file.
func (m *MockStore) Delete(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.files, path)
	return nil
}

// Exists checks if a file exists.
func (m *MockStore) Exists(path string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.files[path]
	return exists, nil
}

// Stat returns file information.
func (m *MockStore) Stat(path string) (FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if data, ok := m.files[path]; ok {
		return FileInfo{
			Path:    path,
			Size:    int64(len(data)),
			Mode:    0644,
			ModTime: time.Now(),
			IsDir:   false,
		}, nil
	}

	if _, ok := m.dirs[path]; ok {
		return FileInfo{
			Path:    path,
			Size:    0,
			Mode:    0755,
			ModTime: time.Now(),
			IsDir:   true,
		}, nil
	}

	return FileInfo{}, fmt.Errorf("file not found: %s", path)
}

// EnsureDir creates a directory.
func (m *MockStore) EnsureDir(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dirs[path] = true
	return nil
}

// ListDir returns entries under the given prefix.
func (m *MockStore) ListDir(path string) ([]FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prefix := path
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var infos []FileInfo
	for filePath, data := range m.files {
		if prefix != "" && !strings.HasPrefix(filePath, prefix) {
			continue
		}
		infos = append(infos, FileInfo{
			Path:    filePath,
			Size:    int64(len(data)),
			Mode:    0644,
			ModTime: time.Now(),
			IsDir:   false,
		})
	}

	for dirPath := range m.dirs {
		if prefix != "" && !strings.HasPrefix(dirPath, prefix) {
			continue
		}
		infos = append(infos, FileInfo{
			Path:    dirPath,
			Size:    0,
			Mode:    0755,
			ModTime: time.Now(),
			IsDir:   true,
		})
	}

	return infos, nil
}

// Helper methods for testing

// FileExists checks if a file exists (helper for tests).
func (m *MockStore) FileExists(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.files[path]
	return exists
}

// FileCount returns the number of stored files.
func (m *MockStore) FileCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.files)
}

// Clear removes all files and directories and resets counters.
func (m *MockStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.files = make(map[string][]byte)
	m.dirs = make(map[string]bool)
	m.WriteCalls = 0
}
