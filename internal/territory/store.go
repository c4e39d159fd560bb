package territory

import (
	"context"

	id "fieldkey/pkg/domain"
)

// Store is the read-only view of the resource tree.
type Store interface {
	FindTerritory(ctx context.Context, territoryID id.TerritoryID) (*Territory, error)
	FindBlock(ctx context.Context, territoryID id.TerritoryID, blockID id.BlockID) (*Block, error)
	ListBlocks(ctx context.Context, territoryID id.TerritoryID) ([]*Block, error)
	ListHouses(ctx context.Context, blockID id.BlockID) ([]*House, error)
	FindHouse(ctx context.Context, houseID id.HouseID) (*House, error)
}
