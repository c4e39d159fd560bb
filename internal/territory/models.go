// Package territory is the read model of the resource tree: tenant →
// territory → block → house. The tree is owned by the CRUD layer outside
// this core; the offline gateway only reads it to scope snapshots and to
// authorize sync rows.
package territory

import (
	id "fieldkey/pkg/domain"
)

// Territory is a geographic territory within a tenant.
type Territory struct {
	ID       id.TerritoryID
	TenantID id.TenantID
	Name     string
}

// Block is a sub-block within a territory.
type Block struct {
	ID          id.BlockID
	TerritoryID id.TerritoryID
	Name        string
}

// House is the leaf visiting unit. Its block/territory attribution is what
// authorizes an offline sync write.
type House struct {
	ID          id.HouseID
	BlockID     id.BlockID
	TerritoryID id.TerritoryID
	TenantID    id.TenantID
	Address     string
}
