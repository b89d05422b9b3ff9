package tokenstore

import "sync"

// MemStore is an in-memory Store for tests and ephemeral sessions
type MemStore struct {
	mu    sync.Mutex
	state State
	// Saves and Clears count writes so tests can assert storage traffic
	Saves  int
	Clears int
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store
func NewMemStore() *MemStore {
	return &MemStore{}
}

// Load returns the current state
func (m *MemStore) Load() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, nil
}

// Save replaces the state
func (m *MemStore) Save(state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	m.Saves++
	return nil
}

// Clear drops all three persisted values together
func (m *MemStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = State{}
	m.Clears++
	return nil
}
