package params

import (
	"context"
	"sync"
)

type paramKey struct {
	tenant string
	key    string
}

// InMemoryStore keeps tenant parameters in memory for tests/dev.
type InMemoryStore struct {
	mu     sync.RWMutex
	values map[paramKey]string
}

// NewMemory constructs an empty in-memory parameter store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{values: make(map[paramKey]string)}
}

// Set records a parameter value. Test/dev seeding.
func (s *InMemoryStore) Set(tenantID, key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[paramKey{tenantID, key}] = value
}

func (s *InMemoryStore) GetValue(_ context.Context, tenantID, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[paramKey{tenantID, key}]
	return value, ok, nil
}
