package assignment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fieldkey/internal/token/models"
	id "fieldkey/pkg/domain"
	"fieldkey/pkg/platform/sentinel"
)

type territoryKey struct {
	territory id.TerritoryID
	round     int
}

type blockKey struct {
	territory id.TerritoryID
	block     id.BlockID
}

// InMemoryStore keeps scope bindings in memory for tests/dev. All checks
// run under one lock, which gives the same exclusivity guarantee the
// Postgres store gets from its constraints.
type InMemoryStore struct {
	mu          sync.RWMutex
	territories map[territoryKey]*models.TerritoryAssignment
	// finished assignments are kept for history, keyed separately
	finished []*models.TerritoryAssignment
	blocks   map[blockKey]*models.BlockAssignment
}

// NewMemory constructs an empty in-memory assignment store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{
		territories: make(map[territoryKey]*models.TerritoryAssignment),
		blocks:      make(map[blockKey]*models.BlockAssignment),
	}
}

// CreateTerritory records a new unfinished territory assignment. At most
// one unfinished assignment may exist per (territory, round).
func (s *InMemoryStore) CreateTerritory(_ context.Context, a *models.TerritoryAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := territoryKey{a.TerritoryID, a.Round}
	if _, ok := s.territories[k]; ok {
		return fmt.Errorf("unfinished assignment exists for territory/round: %w", sentinel.ErrConflict)
	}
	cp := *a
	s.territories[k] = &cp
	return nil
}

func (s *InMemoryStore) FindUnfinishedTerritory(_ context.Context, territoryID id.TerritoryID, round int) (*models.TerritoryAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.territories[territoryKey{territoryID, round}]
	if !ok {
		return nil, fmt.Errorf("territory assignment not found: %w", sentinel.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

// FindLiveTerritory returns the unfinished assignment that currently holds
// a token for the territory, regardless of round.
func (s *InMemoryStore) FindLiveTerritory(_ context.Context, territoryID id.TerritoryID) (*models.TerritoryAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, a := range s.territories {
		if k.territory == territoryID && a.TokenKey != "" {
			cp := *a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("live territory assignment not found: %w", sentinel.ErrNotFound)
}

// ReattachTerritoryToken puts a fresh token on an unfinished assignment
// whose previous token was deleted out-of-band (the sweeper). Fails with
// ErrConflict when a token is still attached.
func (s *InMemoryStore) ReattachTerritoryToken(_ context.Context, territoryID id.TerritoryID, round int, tokenKey, holder string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.territories[territoryKey{territoryID, round}]
	if !ok {
		return fmt.Errorf("territory assignment not found: %w", sentinel.ErrNotFound)
	}
	if a.TokenKey != "" {
		return fmt.Errorf("assignment already holds a token: %w", sentinel.ErrConflict)
	}
	a.TokenKey = tokenKey
	a.Holder = holder
	exp := expiresAt
	a.ExpiresAt = &exp
	return nil
}

// FinishTerritory marks the unfinished assignment finished, truncates its
// expiration to now, and detaches any token reference.
func (s *InMemoryStore) FinishTerritory(_ context.Context, territoryID id.TerritoryID, round int, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := territoryKey{territoryID, round}
	a, ok := s.territories[k]
	if !ok {
		return fmt.Errorf("territory assignment not found: %w", sentinel.ErrNotFound)
	}
	a.Finished = true
	end := now
	a.ExpiresAt = &end
	a.TokenKey = ""
	delete(s.territories, k)
	s.finished = append(s.finished, a)
	return nil
}

// FindTerritoryHistory returns the most recent assignment for the
// territory and round, finished or not. Test and credential metadata use.
func (s *InMemoryStore) FindTerritoryHistory(_ context.Context, territoryID id.TerritoryID, round int) (*models.TerritoryAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.territories[territoryKey{territoryID, round}]; ok {
		cp := *a
		return &cp, nil
	}
	for i := len(s.finished) - 1; i >= 0; i-- {
		a := s.finished[i]
		if a.TerritoryID == territoryID && a.Round == round {
			cp := *a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("territory assignment not found: %w", sentinel.ErrNotFound)
}

// CreateBlock seeds a (territory, block) binding. The territory CRUD layer
// owns this in production; tests and dev wiring call it directly.
func (s *InMemoryStore) CreateBlock(_ context.Context, a *models.BlockAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := blockKey{a.TerritoryID, a.BlockID}
	if _, ok := s.blocks[k]; ok {
		return fmt.Errorf("block assignment exists: %w", sentinel.ErrConflict)
	}
	cp := *a
	s.blocks[k] = &cp
	return nil
}

func (s *InMemoryStore) FindBlock(_ context.Context, territoryID id.TerritoryID, blockID id.BlockID) (*models.BlockAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.blocks[blockKey{territoryID, blockID}]
	if !ok {
		return nil, fmt.Errorf("block assignment not found: %w", sentinel.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

// AttachBlockToken sets the token reference on a block binding that does
// not currently hold one.
func (s *InMemoryStore) AttachBlockToken(_ context.Context, territoryID id.TerritoryID, blockID id.BlockID, tokenKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.blocks[blockKey{territoryID, blockID}]
	if !ok {
		return fmt.Errorf("block assignment not found: %w", sentinel.ErrNotFound)
	}
	if a.TokenKey != "" {
		return fmt.Errorf("block assignment already holds a token: %w", sentinel.ErrConflict)
	}
	a.TokenKey = tokenKey
	return nil
}

func (s *InMemoryStore) DetachBlockToken(_ context.Context, territoryID id.TerritoryID, blockID id.BlockID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.blocks[blockKey{territoryID, blockID}]
	if !ok {
		return fmt.Errorf("block assignment not found: %w", sentinel.ErrNotFound)
	}
	a.TokenKey = ""
	return nil
}

// LiveBlockTokenKeys lists every token currently attached to a block under
// the territory. Input to the revocation cascade.
func (s *InMemoryStore) LiveBlockTokenKeys(_ context.Context, territoryID id.TerritoryID) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k, a := range s.blocks {
		if k.territory == territoryID && a.TokenKey != "" {
			keys = append(keys, a.TokenKey)
		}
	}
	return keys, nil
}

// DetachTokenKeys clears references to the given tokens from every scope
// binding, territory and block alike. Runs with token deletion so no
// binding is left pointing at a nonexistent token.
func (s *InMemoryStore) DetachTokenKeys(_ context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.territories {
		if _, ok := set[a.TokenKey]; ok {
			a.TokenKey = ""
		}
	}
	for _, a := range s.blocks {
		if _, ok := set[a.TokenKey]; ok {
			a.TokenKey = ""
		}
	}
	return nil
}
