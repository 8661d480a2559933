package fingerprint

import (
	"errors"
	"time"

	"github.com/ColonelPanicX/comply-with-me/internal/models"
)

// Store manages fingerprint state persistence.
type Store interface {
	// Load retrieves the state for a source.
	Load(sourceID string) (*models.SourceState, error)

	// Save persists the state for a source.
	Save(sourceID string, state *models.SourceState) error

	// Reset removes all state for a source.
	Reset(sourceID string) error

	// List returns all known source IDs.
	List() ([]string, error)

	// Lock acquires an exclusive lock for a source.
	Lock(sourceID string) (UnlockFunc, error)

	// Migrate transfers state between stores.
	Migrate(target Store) error

	// Close releases resources.
	Close() error
}

// UnlockFunc releases a source lock.
type UnlockFunc func()

// Errors
var (
	ErrStateNotFound = errors.New("state not found")
	ErrStateLocked   = errors.New("state is locked")
	ErrStateCorrupt  = errors.New("state file is corrupt")
)

// Envelope extends the model with store metadata.
type Envelope struct {
	*models.SourceState

	// Store metadata
	SchemaVersion int       `json:"schema_version"`
	CreatedAt     time.Time `json:"created_at"`
	Checksum      string    `json:"checksum,omitempty"`
}

// CurrentSchemaVersion for migrations.
const CurrentSchemaVersion = 1
