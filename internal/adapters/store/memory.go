package store

import (
	"context"
	"sync"

	"github.com/okian/greenroom/internal/domain/model"
)

// MemoryStore implements Store with a process-local map. Useful for tests
// and single-instance deployments that accept volatile history.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]model.SessionState
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]model.SessionState)}
}

// Load returns a deep copy of the stored state, so callers can mutate the
// result without touching the store.
func (s *MemoryStore) Load(ctx context.Context, id string) (model.SessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.sessions[id]
	if !ok {
		return model.SessionState{}, ErrNotFound
	}
	return state.Snapshot(), nil
}

// Save stores a deep copy of the given snapshot.
func (s *MemoryStore) Save(ctx context.Context, id string, state model.SessionState) error {
	if id == "" {
		return ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = state.Snapshot()
	return nil
}

// Len returns the number of persisted sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
