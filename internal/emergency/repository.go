package emergency

import (
	"context"
	"sync"
)

// Repository persists the single emergency state record.
type Repository interface {
	// Get returns the current state. A fresh store returns Normal.
	Get(ctx context.Context) (*State, error)

	// Set atomically replaces the state record.
	Set(ctx context.Context, s *State) error
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu    sync.RWMutex
	state State
}

// NewInMemoryRepository creates a new in-memory emergency repository in the
// Normal state.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

// Get returns the current state.
func (r *InMemoryRepository) Get(ctx context.Context) (*State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stateCopy := r.state
	return &stateCopy, nil
}

// Set atomically replaces the state record.
func (r *InMemoryRepository) Set(ctx context.Context, s *State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = *s
	return nil
}
