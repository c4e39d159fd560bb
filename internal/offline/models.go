// Package offline is the gateway for disconnected field clients: it hands
// out a scope-narrowed snapshot of the resource tree before the client goes
// offline, and later applies the client's batched visit changes under
// row-level scope checks.
package offline

import (
	"time"

	id "fieldkey/pkg/domain"
)

// HouseNode is one house in a snapshot, with its completion state for the
// token's round.
type HouseNode struct {
	ID        id.HouseID `json:"id"`
	Address   string     `json:"address"`
	Completed bool       `json:"completed"`
	VisitedAt *time.Time `json:"visited_at,omitempty"`
}

// BlockNode is one block in a snapshot.
type BlockNode struct {
	ID     id.BlockID  `json:"id"`
	Name   string      `json:"name"`
	Houses []HouseNode `json:"houses"`
}

// Snapshot is the portion of the resource tree a token's claims cover:
// every block of the territory for an overseer, exactly one block for a
// publisher.
type Snapshot struct {
	TerritoryID   id.TerritoryID `json:"territory_id"`
	TerritoryName string         `json:"territory_name"`
	Round         int            `json:"round"`
	Blocks        []BlockNode    `json:"blocks"`
}

// Change is one house-level visit update made while offline.
type Change struct {
	HouseID   id.HouseID `json:"house_id"`
	Completed bool       `json:"completed"`
	VisitedAt time.Time  `json:"visited_at"`
}

// SyncPayload is a batch of offline changes presented with one token.
type SyncPayload struct {
	TerritoryID id.TerritoryID `json:"territory_id"`
	Changes     []Change       `json:"changes"`
}

// SyncResult reports what happened to a batch: applied rows, rows dropped
// by scope checks, and the id of the stored batch record.
type SyncResult struct {
	BatchID  string `json:"batch_id"`
	Accepted int    `json:"accepted"`
	Skipped  int    `json:"skipped"`
}
