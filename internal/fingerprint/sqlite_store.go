package fingerprint

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ColonelPanicX/comply-with-me/internal/events"
	"github.com/ColonelPanicX/comply-with-me/internal/models"
)

// SQLiteStore implements SQLite-based state storage.
type SQLiteStore struct {
	db     *sql.DB
	logger *events.Logger

	// Locking
	mu    sync.RWMutex
	locks map[string]*sync.Mutex
}

// NewSQLiteStore creates a SQLite fingerprint store.
func NewSQLiteStore(dbPath string, logger *events.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &SQLiteStore{
		db:     db,
		logger: logger.WithField("component", "sqlite_fingerprint_store"),
		locks:  make(map[string]*sync.Mutex),
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	return store, nil
}

// initialize creates tables and indexes.
func (s *SQLiteStore) initialize() error {
	schema := `
    CREATE TABLE IF NOT EXISTS source_states (
        source_id TEXT PRIMARY KEY,
        last_run_id TEXT,
        last_sync_time TIMESTAMP,
        last_error TEXT,
        created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
        updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS fingerprints (
        source_id TEXT NOT NULL,
        local_path TEXT NOT NULL,
        content_hash TEXT NOT NULL,
        size INTEGER NOT NULL DEFAULT 0,
        resource_url TEXT,
        last_synced_at TIMESTAMP,
        PRIMARY KEY (source_id, local_path),
        FOREIGN KEY (source_id) REFERENCES source_states(source_id) ON DELETE CASCADE
    );

    CREATE INDEX IF NOT EXISTS idx_fingerprints_source ON fingerprints(source_id);

    CREATE TABLE IF NOT EXISTS schema_info (
        version INTEGER PRIMARY KEY
    );

    INSERT OR IGNORE INTO schema_info (version) VALUES (?);
    `

	if _, err := s.db.Exec(schema, CurrentSchemaVersion); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	// Enable foreign keys
	if _, err := s.db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}

	return nil
}

// Load retrieves state from database.
func (s *SQLiteStore) Load(sourceID string) (*models.SourceState, error) {
	s.logger.WithField("source_id", sourceID).Debug("Loading state from SQLite")

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Load main state
	var state models.SourceState
	var lastRunID sql.NullString
	var lastSyncTime sql.NullTime
	var lastError sql.NullString

	err = tx.QueryRow(`
        SELECT last_run_id, last_sync_time, last_error
        FROM source_states
        WHERE source_id = ?
    `, sourceID).Scan(&lastRunID, &lastSyncTime, &lastError)

	if err == sql.ErrNoRows {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query state: %w", err)
	}

	state.SourceID = sourceID
	if lastRunID.Valid {
		state.LastRunID = lastRunID.String
	}
	if lastSyncTime.Valid {
		state.LastSyncTime = lastSyncTime.Time
	}
	if lastError.Valid {
		state.LastError = lastError.String
	}

	// Load fingerprint records
	state.Records = make(map[string]models.FingerprintRecord)

	rows, err := tx.Query(`
        SELECT local_path, content_hash, size, resource_url, last_synced_at
        FROM fingerprints
        WHERE source_id = ?
    `, sourceID)
	if err != nil {
		return nil, fmt.Errorf("query fingerprints: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec models.FingerprintRecord
		var resourceURL sql.NullString
		var syncedAt sql.NullTime

		if err := rows.Scan(&rec.LocalPath, &rec.ContentHash, &rec.Size, &resourceURL, &syncedAt); err != nil {
			return nil, fmt.Errorf("scan fingerprint row: %w", err)
		}

		rec.SourceID = sourceID
		if resourceURL.Valid {
			rec.ResourceURL = resourceURL.String
		}
		if syncedAt.Valid {
			rec.LastSyncedAt = syncedAt.Time
		}

		state.Records[rec.LocalPath] = rec
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fingerprints: %w", err)
	}

	return &state, nil
}

// Save persists state to database.
func (s *SQLiteStore) Save(sourceID string, state *models.SourceState) error {
	s.logger.WithFields(map[string]interface{}{
		"source_id": sourceID,
		"records":   state.RecordCount(),
	}).Debug("Saving state to SQLite")

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Upsert main state
	_, err = tx.Exec(`
        INSERT INTO source_states (source_id, last_run_id, last_sync_time, last_error, updated_at)
        VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
        ON CONFLICT(source_id) DO UPDATE SET
            last_run_id = excluded.last_run_id,
            last_sync_time = excluded.last_sync_time,
            last_error = excluded.last_error,
            updated_at = CURRENT_TIMESTAMP
    `, sourceID, state.LastRunID, state.LastSyncTime, state.LastError)

	if err != nil {
		return fmt.Errorf("upsert state: %w", err)
	}

	// Delete removed records
	_, err = tx.Exec("DELETE FROM fingerprints WHERE source_id = ?", sourceID)
	if err != nil {
		return fmt.Errorf("delete old fingerprints: %w", err)
	}

	// Insert records in batches
	const batchSize = 100
	stmt, err := tx.Prepare(`
        INSERT INTO fingerprints (source_id, local_path, content_hash, size, resource_url, last_synced_at)
        VALUES (?, ?, ?, ?, ?, ?)
    `)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	batch := 0
	for path, rec := range state.Records {
		if _, err := stmt.Exec(sourceID, path, rec.ContentHash, rec.Size, rec.ResourceURL, rec.LastSyncedAt); err != nil {
			return fmt.Errorf("insert fingerprint %s: %w", path, err)
		}

		batch++
		if batch >= batchSize {
			// Commit and start new transaction for large record sets
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("commit batch: %w", err)
			}

			tx, err = s.db.Begin()
			if err != nil {
				return fmt.Errorf("begin new transaction: %w", err)
			}

			stmt.Close()
			stmt, err = tx.Prepare(`
                INSERT INTO fingerprints (source_id, local_path, content_hash, size, resource_url, last_synced_at)
                VALUES (?, ?, ?, ?, ?, ?)
            `)
			if err != nil {
				return fmt.Errorf("prepare statement: %w", err)
			}

			batch = 0
		}
	}

	return tx.Commit()
}

// Reset removes state for a source.
func (s *SQLiteStore) Reset(sourceID string) error {
	s.logger.WithField("source_id", sourceID).Info("Resetting state in SQLite")

	_, err := s.db.Exec("DELETE FROM source_states WHERE source_id = ?", sourceID)
	if err != nil {
		return fmt.Errorf("delete state: %w", err)
	}

	return nil
}

// List returns all source IDs.
func (s *SQLiteStore) List() ([]string, error) {
	rows, err := s.db.Query("SELECT source_id FROM source_states ORDER BY source_id")
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var sourceIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan source ID: %w", err)
		}
		sourceIDs = append(sourceIDs, id)
	}

	return sourceIDs, rows.Err()
}

// Lock acquires a lock for a source.
func (s *SQLiteStore) Lock(sourceID string) (UnlockFunc, error) {
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
func (s *SQLiteStore) Migrate(target Store) error {
	sourceIDs, err := s.List()
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}

	for _, sourceID := range sourceIDs {
		state, err := s.Load(sourceID)
		if err != nil {
			s.logger.WithError(err).WithField("source_id", sourceID).Error("Failed to load state")
			continue
		}

		if err := target.Save(sourceID, state); err != nil {
			return fmt.Errorf("save source %s: %w", sourceID, err)
		}
	}

	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
