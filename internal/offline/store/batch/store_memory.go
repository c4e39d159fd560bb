package batch

import (
	"context"
	"sync"

	id "fieldkey/pkg/domain"
)

// InMemoryStore keeps sync batches in memory for tests/dev.
type InMemoryStore struct {
	mu      sync.RWMutex
	batches []*Batch
}

// NewMemory constructs an empty in-memory batch store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, b *Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *b
	cp.Payload = append([]byte(nil), b.Payload...)
	s.batches = append(s.batches, &cp)
	return nil
}

func (s *InMemoryStore) ForTerritory(_ context.Context, territoryID id.TerritoryID) ([]*Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Batch
	for i := len(s.batches) - 1; i >= 0; i-- {
		if s.batches[i].TerritoryID == territoryID {
			cp := *s.batches[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}
