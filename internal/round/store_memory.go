package round

import (
	"context"
	"fmt"
	"sync"
	"time"

	id "fieldkey/pkg/domain"
	"fieldkey/pkg/platform/sentinel"
)

type infoKey struct {
	tenant id.TenantID
	number int
}

// InMemoryStore keeps round state in memory for tests/dev.
type InMemoryStore struct {
	mu    sync.RWMutex
	open  map[id.TerritoryID]int
	infos map[infoKey]*Info
}

// NewMemory constructs an empty in-memory round store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{
		open:  make(map[id.TerritoryID]int),
		infos: make(map[infoKey]*Info),
	}
}

// SetOpenRound marks a round open for a territory. Test/dev seeding.
func (s *InMemoryStore) SetOpenRound(territoryID id.TerritoryID, number int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open[territoryID] = number
}

// CloseRound removes the open round for a territory.
func (s *InMemoryStore) CloseRound(territoryID id.TerritoryID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.open, territoryID)
}

// PutInfo records round metadata. Test/dev seeding.
func (s *InMemoryStore) PutInfo(info *Info) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *info
	s.infos[infoKey{info.TenantID, info.Number}] = &cp
}

func (s *InMemoryStore) OpenRound(_ context.Context, territoryID id.TerritoryID, _ time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	number, ok := s.open[territoryID]
	if !ok {
		return 0, fmt.Errorf("no open round for territory: %w", sentinel.ErrNotFound)
	}
	return number, nil
}

func (s *InMemoryStore) Info(_ context.Context, tenantID id.TenantID, number int) (*Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.infos[infoKey{tenantID, number}]
	if !ok {
		return nil, fmt.Errorf("round info not found: %w", sentinel.ErrNotFound)
	}
	cp := *info
	return &cp, nil
}
