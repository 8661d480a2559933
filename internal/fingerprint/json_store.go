package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ColonelPanicX/comply-with-me/internal/events"
	"github.com/ColonelPanicX/comply-with-me/internal/models"
)

// JSONStore implements file-based state storage, one file per source.
type JSONStore struct {
	baseDir string
	logger  *events.Logger

	// Locking
	mu    sync.RWMutex
	locks map[string]*sync.Mutex
}

// NewJSONStore creates a JSON-based fingerprint store.
func NewJSONStore(baseDir string, logger *events.Logger) (*JSONStore, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	return &JSONStore{
		baseDir: baseDir,
		logger:  logger.WithField("component", "json_fingerprint_store"),
		locks:   make(map[string]*sync.Mutex),
	}, nil
}

// Load reads state from JSON file.
func (s *JSONStore) Load(sourceID string) (*models.SourceState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path := s.statePath(sourceID)

	s.logger.WithFields(map[string]interface{}{
		"source_id": sourceID,
		"path":      path,
	}).Debug("Loading state")

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, ErrStateNotFound
	}

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var wrapper Envelope
	if err := json.Unmarshal(data, &wrapper); err != nil {
		// Try backup file
		if state, err := s.loadBackup(sourceID); err == nil {
			s.logger.Warn("Loaded state from backup due to corruption")
			return state, nil
		}
		return nil, ErrStateCorrupt
	}

	// Verify checksum if present
	if wrapper.Checksum != "" {
		// Create copy without checksum for verification
		verification := Envelope{
			SourceState:   wrapper.SourceState,
			SchemaVersion: wrapper.SchemaVersion,
			CreatedAt:     wrapper.CreatedAt,
		}
		verifyData, _ := json.Marshal(verification)
		hash := sha256.Sum256(verifyData)
		calculated := hex.EncodeToString(hash[:])

		if calculated != wrapper.Checksum {
			s.logger.WithFields(map[string]interface{}{
				"expected": wrapper.Checksum,
				"actual":   calculated,
			}).Error("State checksum mismatch")

			// Try backup
			if state, err := s.loadBackup(sourceID); err == nil {
				return state, nil
			}
			return nil, ErrStateCorrupt
		}
	}

	// Check schema version
	if wrapper.SchemaVersion != CurrentSchemaVersion {
		s.logger.WithField("version", wrapper.SchemaVersion).Warn("State schema version mismatch")
	}

	return wrapper.SourceState, nil
}

// Save writes state to JSON file.
func (s *JSONStore) Save(sourceID string, state *models.SourceState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.statePath(sourceID)

	s.logger.WithFields(map[string]interface{}{
		"source_id": sourceID,
		"records":   state.RecordCount(),
	}).Debug("Saving state")

	// Create wrapper with metadata
	wrapper := Envelope{
		SourceState:   state,
		SchemaVersion: CurrentSchemaVersion,
		CreatedAt:     time.Now(),
	}

	// Calculate checksum (without checksum field)
	checksumWrapper := Envelope{
		SourceState:   wrapper.SourceState,
		SchemaVersion: wrapper.SchemaVersion,
		CreatedAt:     wrapper.CreatedAt,
	}
	checksumData, err := json.Marshal(checksumWrapper)
	if err != nil {
		return fmt.Errorf("marshal state for checksum: %w", err)
	}

	hash := sha256.Sum256(checksumData)
	wrapper.Checksum = hex.EncodeToString(hash[:])

	// Marshal final version with checksum
	jsonData, err := json.MarshalIndent(wrapper, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state with checksum: %w", err)
	}

	// Create backup of existing file
	if _, err := os.Stat(path); err == nil {
		backupPath := path + ".backup"
		if err := s.copyFile(path, backupPath); err != nil {
			s.logger.WithError(err).Warn("Failed to create backup")
		}
	}

	// Write atomically
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, jsonData, 0600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	// Sync to disk
	if file, err := os.Open(tmpPath); err == nil {
		_ = file.Sync()
		file.Close()
	}

	// Rename atomically
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename state file: %w", err)
	}

	return nil
}

// Reset removes state for a source.
func (s *JSONStore) Reset(sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.WithField("source_id", sourceID).Info("Resetting state")

	path := s.statePath(sourceID)
	backupPath := path + ".backup"

	// Remove files
	_ = os.Remove(path)
	_ = os.Remove(backupPath)

	return nil
}

// List returns all source IDs with state.
func (s *JSONStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read state directory: %w", err)
	}

	var sourceIDs []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if filepath.Ext(name) == ".json" && !strings.HasSuffix(name, ".backup.json") {
			sourceID := strings.TrimSuffix(name, ".json")
			sourceIDs = append(sourceIDs, sourceID)
		}
	}

	return sourceIDs, nil
}

// Lock acquires a lock for a source.
func (s *JSONStore) Lock(sourceID string) (UnlockFunc, error) {
	s.mu.Lock()
	lock, exists := s.locks[sourceID]
	if !exists {
		lock = &sync.Mutex{}
		s.locks[sourceID] = lock
	}
	s.mu.Unlock()

	// Try to acquire lock with timeout
	done := make(chan struct{})
	go func() {
		lock.Lock()
		close(done)
	}()

	select {
	case <-done:
		return func() { lock.Unlock() }, nil
	case <-time.After(5 * time.Second):
		return nil, ErrStateLocked
	}
}

// Migrate transfers all states to another store.
func (s *JSONStore) Migrate(target Store) error {
	sourceIDs, err := s.List()
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}

	s.logger.WithField("count", len(sourceIDs)).Info("Migrating states")

	for _, sourceID := range sourceIDs {
		state, err := s.Load(sourceID)
		if err != nil {
			s.logger.WithError(err).WithField("source_id", sourceID).Error("Failed to load state")
			continue
		}

		if err := target.Save(sourceID, state); err != nil {
			return fmt.Errorf("save source %s: %w", sourceID, err)
		}

		s.logger.WithField("source_id", sourceID).Debug("Migrated state")
	}

	return nil
}

// Close releases resources.
func (s *JSONStore) Close() error {
	return nil
}

// Helper methods

func (s *JSONStore) statePath(sourceID string) string {
	return filepath.Join(s.baseDir, sourceID+".json")
}

func (s *JSONStore) loadBackup(sourceID string) (*models.SourceState, error) {
	backupPath := s.statePath(sourceID) + ".backup"

	data, err := os.ReadFile(backupPath)
	if err != nil {
		return nil, err
	}

	var wrapper Envelope
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, err
	}

	return wrapper.SourceState, nil
}

func (s *JSONStore) copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
