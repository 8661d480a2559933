package fingerprint

import (
	"sync"

	"github.com/ColonelPanicX/comply-with-me/internal/models"
)

// MockStore provides a mock implementation for testing.
type MockStore struct {
	mu     sync.RWMutex
	states map[string]*models.SourceState

	// SaveCount tracks commits, for verifying write-free runs.
	SaveCount int
}

// NewMockStore creates a mock fingerprint store.
func NewMockStore() *MockStore {
	return &MockStore{
		states: make(map[string]*models.SourceState),
	}
}

// Load loads state for a source.
func (m *MockStore) Load(sourceID string) (*models.SourceState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if state, ok := m.states[sourceID]; ok {
		// Return a copy to avoid race conditions
		return state.Clone(), nil
	}

	return nil, ErrStateNotFound
}

// Save saves state for a source.
func (m *MockStore) Save(sourceID string, state *models.SourceState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Store a copy to avoid race conditions
	m.states[sourceID] = state.Clone()
	m.SaveCount++
	return nil
}

// Reset removes state for a source.
func (m *MockStore) Reset(sourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.states, sourceID)
	return nil
}

// List returns all source IDs with stored state.
func (m *MockStore) List() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var sourceIDs []string
	for sourceID := range m.states {
		sourceIDs = append(sourceIDs, sourceID)
	}
	return sourceIDs, nil
}

// Helper methods for testing

// SaveState saves state directly (for test setup).
func (m *MockStore) SaveState(sourceID string, state *models.SourceState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[sourceID] = state
}

// Lock acquires an exclusive lock for a source (no-op for mock).
func (m *MockStore) Lock(sourceID string) (UnlockFunc, error) {
	return func() {}, nil
}

// Migrate transfers state between stores (no-op for mock).
func (m *MockStore) Migrate(target Store) error {
	return nil
}

// Close closes the store (no-op for mock).
func (m *MockStore) Close() error {
	return nil
}

// Clear removes all states.
func (m *MockStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = make(map[string]*models.SourceState)
	m.SaveCount = 0
}
