// Package visit holds the per-(house, round) completion records written by
// the offline sync path. The live update path outside this core writes the
// same records.
package visit

import (
	"context"
	"time"

	id "fieldkey/pkg/domain"
)

// Record is one house's completion state for one round, always attributed
// to the full tenant/territory/block/house tuple.
type Record struct {
	TenantID    id.TenantID
	TerritoryID id.TerritoryID
	BlockID     id.BlockID
	HouseID     id.HouseID
	Round       int
	Completed   bool
	VisitedAt   time.Time
	UpdatedAt   time.Time
}

// Store persists visit records.
type Store interface {
	// Upsert writes the record for (house, round), replacing any previous
	// completion state.
	Upsert(ctx context.Context, record *Record) error
	// Find returns the record for (house, round), or sentinel.ErrNotFound.
	Find(ctx context.Context, houseID id.HouseID, round int) (*Record, error)
	// ForHousesRound returns the records for the given houses in one round;
	// houses without a record are absent from the map.
	ForHousesRound(ctx context.Context, houseIDs []id.HouseID, round int) (map[id.HouseID]*Record, error)
}
