package visit

import (
	"context"
	"fmt"
	"sync"

	id "fieldkey/pkg/domain"
	"fieldkey/pkg/platform/sentinel"
)

type recordKey struct {
	house id.HouseID
	round int
}

// InMemoryStore keeps visit records in memory for tests/dev.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[recordKey]*Record
}

// NewMemory constructs an empty in-memory visit store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{records: make(map[recordKey]*Record)}
}

func (s *InMemoryStore) Upsert(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *record
	s.records[recordKey{record.HouseID, record.Round}] = &cp
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, houseID id.HouseID, round int) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[recordKey{houseID, round}]
	if !ok {
		return nil, fmt.Errorf("visit record not found: %w", sentinel.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (s *InMemoryStore) ForHousesRound(_ context.Context, houseIDs []id.HouseID, round int) (map[id.HouseID]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[id.HouseID]*Record, len(houseIDs))
	for _, houseID := range houseIDs {
		if r, ok := s.records[recordKey{houseID, round}]; ok {
			cp := *r
			out[houseID] = &cp
		}
	}
	return out, nil
}
