package models

import (
	"fmt"
	"strings"
	"time"
)

// FingerprintRecord identifies the content last successfully written for
// one local path. The hash is only ever updated after a completed write.
type FingerprintRecord struct {
	SourceID     string    `json:"source_id"`
	LocalPath    string    `json:"local_path"`
	ContentHash  string    `json:"content_hash"` // sha256, hex
	Size         int64     `json:"size"`
	ResourceURL  string    `json:"resource_url,omitempty"`
	LastSyncedAt time.Time `json:"last_synced_at"`
}

// SourceState tracks sync progress for one source. Records are keyed by
// local path relative to the source's content directory.
type SourceState struct {
	SourceID     string                       `json:"source_id"`
	Records      map[string]FingerprintRecord `json:"records"`
	LastRunID    string                       `json:"last_run_id,omitempty"`
	LastSyncTime time.Time                    `json:"last_sync_time"`
	LastError    string                       `json:"last_error,omitempty"`
}

// NewSourceState creates an empty state for a source.
func NewSourceState(sourceID string) *SourceState {
	return &SourceState{
		SourceID: sourceID,
		Records:  make(map[string]FingerprintRecord),
	}
}

// Record stores a fingerprint after a successful write.
func (s *SourceState) Record(localPath, hash string, size int64, url string) {
	if s.Records == nil {
		s.Records = make(map[string]FingerprintRecord)
	}
	s.Records[localPath] = FingerprintRecord{
		SourceID:     s.SourceID,
		LocalPath:    localPath,
		ContentHash:  hash,
		Size:         size,
		ResourceURL:  url,
		LastSyncedAt: time.Now().UTC(),
	}
}

// Remove drops the record for a local path.
func (s *SourceState) Remove(localPath string) {
	if s.Records != nil {
		delete(s.Records, localPath)
	}
}

// Lookup returns the record for a local path, if tracked.
func (s *SourceState) Lookup(localPath string) (FingerprintRecord, bool) {
	if s.Records == nil {
		return FingerprintRecord{}, false
	}
	rec, ok := s.Records[localPath]
	return rec, ok
}

// IsFresh reports whether the tracked content hash matches.
func (s *SourceState) IsFresh(localPath, hash string) bool {
	rec, ok := s.Lookup(localPath)
	return ok && rec.ContentHash == hash
}

// RecordCount returns the number of tracked paths.
func (s *SourceState) RecordCount() int {
	if s.Records == nil {
		return 0
	}
	return len(s.Records)
}

// MarkRun stamps the run that last touched the state.
func (s *SourceState) MarkRun(runID string) {
	s.LastRunID = runID
	s.LastSyncTime = time.Now().UTC()
}

// SetError sets the last error message.
func (s *SourceState) SetError(err error) {
	if err != nil {
		s.LastError = err.Error()
	} else {
		s.LastError = ""
	}
}

// HasError returns true if there's a stored error.
func (s *SourceState) HasError() bool {
	return strings.TrimSpace(s.LastError) != ""
}

// Validate validates the state structure.
func (s *SourceState) Validate() error {
	if strings.TrimSpace(s.SourceID) == "" {
		return fmt.Errorf("source ID is required")
	}

	if s.Records == nil {
		return fmt.Errorf("records map cannot be nil")
	}

	for path, rec := range s.Records {
		if strings.TrimSpace(path) == "" {
			return fmt.Errorf("record path cannot be empty")
		}

		if strings.TrimSpace(rec.ContentHash) == "" {
			return fmt.Errorf("content hash cannot be empty for path: %s", path)
		}

		// sha256 hex digest
		if len(rec.ContentHash) != 64 {
			return fmt.Errorf("content hash has invalid length for path %s: %d", path, len(rec.ContentHash))
		}

		if rec.Size < 0 {
			return fmt.Errorf("size cannot be negative for path: %s", path)
		}
	}

	return nil
}

// Clone creates a deep copy of the state.
func (s *SourceState) Clone() *SourceState {
	clone := &SourceState{
		SourceID:     s.SourceID,
		LastRunID:    s.LastRunID,
		LastSyncTime: s.LastSyncTime,
		LastError:    s.LastError,
		Records:      make(map[string]FingerprintRecord, len(s.Records)),
	}

	for path, rec := range s.Records {
		clone.Records[path] = rec
	}

	return clone
}
