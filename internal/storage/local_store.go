package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/ColonelPanicX/comply-with-me/internal/events"
)

// LocalStore implements ContentStore using the local filesystem.
type LocalStore struct {
	baseDir       string
	logger        *events.Logger
	allowSymlinks bool
	maxPathLength int
	maxFileSize   int64
}

// NewLocalStore creates a content store rooted at baseDir.
func NewLocalStore(baseDir string, logger *events.Logger) (*LocalStore, error) {
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base directory: %w", err)
	}

	if err := os.MkdirAll(absBase, 0755); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}

	return &LocalStore{
		baseDir:       absBase,
		logger:        logger.WithField("component", "content_store"),
		allowSymlinks: false,
		maxPathLength: 260,
		maxFileSize:   500 * 1024 * 1024,
	}, nil
}

// SetMaxFileSize overrides the default download size cap.
func (s *LocalStore) SetMaxFileSize(size int64) {
	s.maxFileSize = size
}

// BaseDir returns the absolute root of the content tree.
func (s *LocalStore) BaseDir() string {
	return s.baseDir
}

// Write saves data to a file atomically via a temp file and rename.
// Existing files are overwritten.
func (s *LocalStore) Write(path string, data []byte, mode os.FileMode) error {
	safePath, err := s.sanitizePath(path)
	if err != nil {
		return fmt.Errorf("invalid path %q: %w", path, err)
	}

	if int64(len(data)) > s.maxFileSize {
		return fmt.Errorf("file too large: %d bytes exceeds limit of %d", len(data), s.maxFileSize)
	}

	if err := os.MkdirAll(filepath.Dir(safePath), 0755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}

	if info, err := os.Lstat(safePath); err == nil && info.IsDir() {
		return fmt.Errorf("path is a directory: %s", path)
	}

	tempPath := fmt.Sprintf("%s.tmp.%d", safePath, time.Now().UnixNano())
	if err := os.WriteFile(tempPath, data, mode); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := syncFile(tempPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("sync temp file: %w", err)
	}

	if err := os.Rename(tempPath, safePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("rename temp file: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"path": path,
		"size": len(data),
	}).Debug("file written")

	return nil
}

// WriteStream saves data from a reader atomically, computing its
// SHA-256 as it streams. The temp file is removed on any failure so a
// partial download never lands in the content tree.
func (s *LocalStore) WriteStream(path string, reader io.Reader, mode os.FileMode) (string, int64, error) {
	hash, written, _, err := s.WriteStreamIfChanged(path, reader, mode, "")
	return hash, written, err
}

// WriteStreamIfChanged streams to a temp file while hashing, then
// either renames it into place or, when the content hashes to
// priorHash and the destination is already present, discards the temp
// and leaves the existing file alone. A matching hash with no file on
// disk still writes.
func (s *LocalStore) WriteStreamIfChanged(path string, reader io.Reader, mode os.FileMode, priorHash string) (string, int64, bool, error) {
	safePath, err := s.sanitizePath(path)
	if err != nil {
		return "", 0, false, fmt.Errorf("invalid path %q: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(safePath), 0755); err != nil {
		return "", 0, false, fmt.Errorf("create parent directory: %w", err)
	}

	tempPath := fmt.Sprintf("%s.tmp.%d", safePath, time.Now().UnixNano())
	file, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode)
	if err != nil {
		return "", 0, false, fmt.Errorf("create temp file: %w", err)
	}

	done := false
	defer func() {
		if !done {
			_ = file.Close()
			_ = os.Remove(tempPath)
		}
	}()

	hasher := sha256.New()
	writer := io.MultiWriter(file, hasher)

	// Read one byte past the cap so oversized content is detected
	// rather than silently truncated.
	limited := &io.LimitedReader{R: reader, N: s.maxFileSize + 1}
	written, err := io.Copy(writer, limited)
	if err != nil {
		return "", 0, false, fmt.Errorf("write stream: %w", err)
	}

	if written > s.maxFileSize {
		return "", 0, false, fmt.Errorf("file too large: exceeds limit of %d bytes", s.maxFileSize)
	}

	hash := hex.EncodeToString(hasher.Sum(nil))

	if priorHash != "" && hash == priorHash {
		if _, statErr := os.Stat(safePath); statErr == nil {
			_ = file.Close()
			_ = os.Remove(tempPath)
			done = true

			s.logger.WithFields(map[string]interface{}{
				"path": path,
				"hash": hash,
			}).Debug("content unchanged, kept existing file")

			return hash, written, false, nil
		}
	}

	if err := file.Sync(); err != nil {
		return "", 0, false, fmt.Errorf("sync temp file: %w", err)
	}

	if err := file.Close(); err != nil {
		return "", 0, false, fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tempPath, safePath); err != nil {
		_ = os.Remove(tempPath)
		return "", 0, false, fmt.Errorf("rename temp file: %w", err)
	}
	done = true

	s.logger.WithFields(map[string]interface{}{
		"path": path,
		"size": written,
		"hash": hash,
	}).Debug("stream written")

	return hash, written, true, nil
}

// Read retrieves file contents.
func (s *LocalStore) Read(path string) ([]byte, error) {
	safePath, err := s.sanitizePath(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", path, err)
	}

	if !s.allowSymlinks {
		if info, err := os.Lstat(safePath); err == nil && info.Mode()&os.ModeSymlink != 0 {
			return nil, fmt.Errorf("refusing to read symlink: %s", path)
		}
	}

	data, err := os.ReadFile(safePath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// HashFile computes the hex SHA-256 of an existing file by streaming it.
func (s *LocalStore) HashFile(path string) (string, int64, error) {
	safePath, err := s.sanitizePath(path)
	if err != nil {
		return "", 0, fmt.Errorf("invalid path %q: %w", path, err)
	}

	if !s.allowSymlinks {
		if info, err := os.Lstat(safePath); err == nil && info.Mode()&os.ModeSymlink != 0 {
			return "", 0, fmt.Errorf("refusing to hash symlink: %s", path)
		}
	}

	file, err := os.Open(safePath)
	if err != nil {
		return "", 0, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	hasher := sha256.New()
	size, err := io.Copy(hasher, file)
	if err != nil {
		return "", 0, fmt.Errorf("hash file: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), size, nil
}

// Delete removes a file and prunes any empty parent directories.
func (s *LocalStore) Delete(path string) error {
	safePath, err := s.sanitizePath(path)
	if err != nil {
		return fmt.Errorf("invalid path %q: %w", path, err)
	}

	if err := os.Remove(safePath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("delete file: %w", err)
	}

	s.cleanEmptyDirs(filepath.Dir(safePath))
	return nil
}

// Exists checks if a file exists.
func (s *LocalStore) Exists(path string) (bool, error) {
	safePath, err := s.sanitizePath(path)
	if err != nil {
		return false, fmt.Errorf("invalid path %q: %w", path, err)
	}

	_, err = os.Stat(safePath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat file: %w", err)
	}

	return true, nil
}

// Stat returns file information without following symlinks.
func (s *LocalStore) Stat(path string) (FileInfo, error) {
	safePath, err := s.sanitizePath(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("invalid path %q: %w", path, err)
	}

	info, err := os.Lstat(safePath)
	if err != nil {
		return FileInfo{}, fmt.Errorf("stat file: %w", err)
	}

	fi := FileInfo{
		Path:    path,
		Size:    info.Size(),
		Mode:    info.Mode(),
		ModTime: info.ModTime(),
		IsDir:   info.IsDir(),
	}

	if info.Mode()&os.ModeSymlink != 0 {
		fi.IsSymlink = true
		if target, err := os.Readlink(safePath); err == nil {
			fi.LinkTarget = target
		}
	}

	return fi, nil
}

// EnsureDir creates a directory if it doesn't exist.
func (s *LocalStore) EnsureDir(path string) error {
	safePath, err := s.sanitizePath(path)
	if err != nil {
		return fmt.Errorf("invalid path %q: %w", path, err)
	}

	if err := os.MkdirAll(safePath, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	return nil
}

// ListDir returns directory contents. Paths in the result are relative
// to the store root.
func (s *LocalStore) ListDir(path string) ([]FileInfo, error) {
	safePath, err := s.sanitizePath(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", path, err)
	}

	entries, err := os.ReadDir(safePath)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}

	infos := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}

		relPath := entry.Name()
		if path != "" && path != "." {
			relPath = filepath.ToSlash(filepath.Join(path, entry.Name()))
		}

		fi := FileInfo{
			Path:    relPath,
			Size:    info.Size(),
			Mode:    info.Mode(),
			ModTime: info.ModTime(),
			IsDir:   info.IsDir(),
		}

		if info.Mode()&os.ModeSymlink != 0 {
			fi.IsSymlink = true
		}

		infos = append(infos, fi)
	}

	return infos, nil
}

// sanitizePath validates and resolves a relative path against the store
// root, rejecting traversal attempts and platform-invalid names.
func (s *LocalStore) sanitizePath(path string) (string, error) {
	if strings.Contains(path, "\x00") {
		return "", fmt.Errorf("path contains null bytes")
	}

	normalized := filepath.FromSlash(path)
	cleaned := filepath.Clean(normalized)

	if strings.HasPrefix(cleaned, "..") ||
		strings.Contains(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path contains parent directory traversal")
	}

	cleaned = strings.TrimPrefix(cleaned, string(filepath.Separator))

	fullPath := filepath.Join(s.baseDir, cleaned)

	if !strings.HasPrefix(fullPath, s.baseDir) {
		return "", fmt.Errorf("path escapes base directory")
	}

	if len(fullPath) > s.maxPathLength {
		return "", fmt.Errorf("path too long: %d characters exceeds limit of %d",
			len(fullPath), s.maxPathLength)
	}

	if err := validatePlatformPath(cleaned); err != nil {
		return "", err
	}

	return fullPath, nil
}

// validatePlatformPath rejects names that are invalid on the current
// platform. Windows reserves device names and a set of characters.
func validatePlatformPath(path string) error {
	if runtime.GOOS != "windows" {
		return nil
	}

	reserved := map[string]bool{
		"CON": true, "PRN": true, "AUX": true, "NUL": true,
		"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
		"COM6": true, "COM7": true, "COM8": true, "COM9": true,
		"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
		"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
	}

	for _, component := range strings.Split(path, string(filepath.Separator)) {
		name := strings.ToUpper(component)
		if idx := strings.IndexByte(name, '.'); idx >= 0 {
			name = name[:idx]
		}
		if reserved[name] {
			return fmt.Errorf("path contains reserved name: %s", component)
		}

		if strings.ContainsAny(component, `<>:"|?*`) {
			return fmt.Errorf("path contains invalid characters: %s", component)
		}
	}

	return nil
}

// cleanEmptyDirs removes empty directories walking up toward the store
// root, stopping at the first non-empty one.
func (s *LocalStore) cleanEmptyDirs(dir string) {
	for dir != s.baseDir && strings.HasPrefix(dir, s.baseDir) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}

		if err := os.Remove(dir); err != nil {
			return
		}

		dir = filepath.Dir(dir)
	}
}

func syncFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()
	return file.Sync()
}
