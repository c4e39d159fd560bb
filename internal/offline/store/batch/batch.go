// Package batch persists received offline sync batches. Every batch is
// recorded before any of its changes are applied, so a disputed write can
// always be traced back to the token and payload that produced it.
package batch

import (
	"context"
	"time"

	id "fieldkey/pkg/domain"
)

// Batch is one received sync payload with its provenance.
type Batch struct {
	ID          string
	TenantID    id.TenantID
	TerritoryID id.TerritoryID
	// TokenJTI identifies the issuance that authorized the batch.
	TokenJTI   string
	ReceivedAt time.Time
	// Payload is the raw JSON body as received.
	Payload []byte
}

// Store appends and reads sync batches.
type Store interface {
	Append(ctx context.Context, b *Batch) error
	// ForTerritory returns batches for a territory, newest first.
	ForTerritory(ctx context.Context, territoryID id.TerritoryID) ([]*Batch, error)
}
