package conversation

import (
	"context"
	"sync"
)

// MemoryStore is an in-process StateStore for development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]MeetingState
}

// NewMemoryStore creates an empty in-memory state store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]MeetingState)}
}

func (m *MemoryStore) Load(_ context.Context, conversationID string) (MeetingState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.states[conversationID], nil
}

func (m *MemoryStore) Save(_ context.Context, conversationID string, state MeetingState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[conversationID] = state
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, conversationID)
	return nil
}
