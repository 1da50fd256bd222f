package navigator

import (
	"context"
	"sync"

	"sopgraph/internal/models"
)

// SessionStore persists per-session navigation state. One conversation
// must never observe another conversation's cursor.
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (models.SessionState, bool, error)
	Put(ctx context.Context, sessionID string, state models.SessionState) error
	Delete(ctx context.Context, sessionID string) error
}

// MemorySessionStore keeps sessions in process memory. Suitable for a
// single-binary deployment and for tests.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]models.SessionState
}

// NewMemorySessionStore returns an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]models.SessionState)}
}

func (s *MemorySessionStore) Get(_ context.Context, sessionID string) (models.SessionState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.sessions[sessionID]
	return state, ok, nil
}

func (s *MemorySessionStore) Put(_ context.Context, sessionID string, state models.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = state
	return nil
}

func (s *MemorySessionStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
