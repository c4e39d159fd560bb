// Package round resolves time-boxed ministry cycles. The token issuer asks
// whether a round is open for a territory; the credential lookup resolves
// round metadata for the claims' round number.
package round

import (
	"context"
	"errors"
	"time"

	id "fieldkey/pkg/domain"
	"fieldkey/pkg/platform/sentinel"
	"fieldkey/pkg/requestcontext"
)

// Info is the per-(tenant, round) metadata handed to field clients along
// with their credential.
type Info struct {
	TenantID id.TenantID `json:"tenant_id"`
	Number   int         `json:"number"`
	Name     string      `json:"name"`
	Theme    string      `json:"theme,omitempty"`
	StartsAt time.Time   `json:"starts_at"`
	EndsAt   time.Time   `json:"ends_at"`
}

// Store is the durable view of rounds.
type Store interface {
	// OpenRound returns the round currently open for the territory, or
	// sentinel.ErrNotFound when none is.
	OpenRound(ctx context.Context, territoryID id.TerritoryID, now time.Time) (int, error)
	// Info returns metadata for a (tenant, round), or sentinel.ErrNotFound.
	Info(ctx context.Context, tenantID id.TenantID, number int) (*Info, error)
}

// Service answers round questions for the token core.
type Service struct {
	store Store
}

// NewService constructs a round service over the given store (optionally a
// cache-wrapped one).
func NewService(store Store) *Service {
	return &Service{store: store}
}

// IsRoundOpen reports whether any round is currently open for the territory.
func (s *Service) IsRoundOpen(ctx context.Context, territoryID id.TerritoryID) (bool, error) {
	_, err := s.store.OpenRound(ctx, territoryID, requestcontext.Now(ctx))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CurrentRound resolves the round number currently open for the territory.
func (s *Service) CurrentRound(ctx context.Context, territoryID id.TerritoryID) (int, error) {
	return s.store.OpenRound(ctx, territoryID, requestcontext.Now(ctx))
}

// Info resolves metadata for a (tenant, round).
func (s *Service) Info(ctx context.Context, tenantID id.TenantID, number int) (*Info, error) {
	return s.store.Info(ctx, tenantID, number)
}
