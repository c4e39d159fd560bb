package capability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fieldkey/internal/token/models"
	"fieldkey/pkg/platform/sentinel"
)

// Error Contract:
// All store methods follow this pattern:
// - Return ErrNotFound when the requested entity does not exist
// - Return ErrConflict when a uniqueness constraint rejects the write
// - Return nil for successful operations

// InMemoryStore keeps capability tokens in memory for tests/dev.
type InMemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]*models.CapabilityToken
}

// NewMemory constructs an empty in-memory token store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{tokens: make(map[string]*models.CapabilityToken)}
}

func (s *InMemoryStore) Create(_ context.Context, token *models.CapabilityToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[token.Key]; ok {
		return fmt.Errorf("token key already exists: %w", sentinel.ErrConflict)
	}
	cp := *token
	s.tokens[token.Key] = &cp
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, key string) (*models.CapabilityToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.tokens[key]
	if !ok {
		return nil, fmt.Errorf("token not found: %w", sentinel.ErrNotFound)
	}
	cp := *token
	return &cp, nil
}

func (s *InMemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[key]; !ok {
		return fmt.Errorf("token not found: %w", sentinel.ErrNotFound)
	}
	delete(s.tokens, key)
	return nil
}

func (s *InMemoryStore) DeleteByKeys(_ context.Context, keys []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for _, key := range keys {
		if _, ok := s.tokens[key]; ok {
			delete(s.tokens, key)
			deleted++
		}
	}
	return deleted, nil
}

// ExpiredKeys returns the keys of every token whose expiration is at or
// before now. Tokens without an expiration never expire here; they are the
// validator's problem.
func (s *InMemoryStore) ExpiredKeys(_ context.Context, now time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for key, token := range s.tokens {
		if token.ExpiresAt != nil && !token.ExpiresAt.After(now) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}
