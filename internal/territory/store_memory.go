package territory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	id "fieldkey/pkg/domain"
	"fieldkey/pkg/platform/sentinel"
)

// InMemoryStore keeps the resource tree in memory for tests/dev.
type InMemoryStore struct {
	mu          sync.RWMutex
	territories map[id.TerritoryID]*Territory
	blocks      map[id.BlockID]*Block
	houses      map[id.HouseID]*House
}

// NewMemory constructs an empty in-memory tree store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{
		territories: make(map[id.TerritoryID]*Territory),
		blocks:      make(map[id.BlockID]*Block),
		houses:      make(map[id.HouseID]*House),
	}
}

// PutTerritory seeds a territory. Test/dev use.
func (s *InMemoryStore) PutTerritory(t *Territory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.territories[t.ID] = &cp
}

// PutBlock seeds a block. Test/dev use.
func (s *InMemoryStore) PutBlock(b *Block) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *b
	s.blocks[b.ID] = &cp
}

// PutHouse seeds a house. Test/dev use.
func (s *InMemoryStore) PutHouse(h *House) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *h
	s.houses[h.ID] = &cp
}

func (s *InMemoryStore) FindTerritory(_ context.Context, territoryID id.TerritoryID) (*Territory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.territories[territoryID]
	if !ok {
		return nil, fmt.Errorf("territory not found: %w", sentinel.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (s *InMemoryStore) FindBlock(_ context.Context, territoryID id.TerritoryID, blockID id.BlockID) (*Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blocks[blockID]
	if !ok || b.TerritoryID != territoryID {
		return nil, fmt.Errorf("block not found in territory: %w", sentinel.ErrNotFound)
	}
	cp := *b
	return &cp, nil
}

func (s *InMemoryStore) ListBlocks(_ context.Context, territoryID id.TerritoryID) ([]*Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var blocks []*Block
	for _, b := range s.blocks {
		if b.TerritoryID == territoryID {
			cp := *b
			blocks = append(blocks, &cp)
		}
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Name < blocks[j].Name })
	return blocks, nil
}

func (s *InMemoryStore) ListHouses(_ context.Context, blockID id.BlockID) ([]*House, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var houses []*House
	for _, h := range s.houses {
		if h.BlockID == blockID {
			cp := *h
			houses = append(houses, &cp)
		}
	}
	sort.Slice(houses, func(i, j int) bool { return houses[i].Address < houses[j].Address })
	return houses, nil
}

func (s *InMemoryStore) FindHouse(_ context.Context, houseID id.HouseID) (*House, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.houses[houseID]
	if !ok {
		return nil, fmt.Errorf("house not found: %w", sentinel.ErrNotFound)
	}
	cp := *h
	return &cp, nil
}
