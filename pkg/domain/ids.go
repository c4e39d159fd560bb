// Package domain defines typed identifiers for the resource tree. Each ID
// is a distinct type over uuid.UUID so territory, block, house, and tenant
// identifiers cannot be swapped at compile time. Parsing enforces the
// invariant that IDs are valid, non-empty, non-nil UUIDs at trust
// boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "fieldkey/pkg/domain-errors"
)

type (
	// TenantID identifies the owning organization.
	TenantID uuid.UUID
	// TerritoryID identifies a geographic territory within a tenant.
	TerritoryID uuid.UUID
	// BlockID identifies a sub-block within a territory.
	BlockID uuid.UUID
	// HouseID identifies the leaf visiting unit within a block.
	HouseID uuid.UUID
)

func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" ID is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind+" ID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" ID must not be nil")
	}
	return u, nil
}

// ParseTenantID validates and returns a TenantID.
func ParseTenantID(s string) (TenantID, error) {
	u, err := parseUUID(s, "tenant")
	return TenantID(u), err
}

// ParseTerritoryID validates and returns a TerritoryID.
func ParseTerritoryID(s string) (TerritoryID, error) {
	u, err := parseUUID(s, "territory")
	return TerritoryID(u), err
}

// ParseBlockID validates and returns a BlockID.
func ParseBlockID(s string) (BlockID, error) {
	u, err := parseUUID(s, "block")
	return BlockID(u), err
}

// ParseHouseID validates and returns a HouseID.
func ParseHouseID(s string) (HouseID, error) {
	u, err := parseUUID(s, "house")
	return HouseID(u), err
}

func (id TenantID) String() string    { return uuid.UUID(id).String() }
func (id TerritoryID) String() string { return uuid.UUID(id).String() }
func (id BlockID) String() string     { return uuid.UUID(id).String() }
func (id HouseID) String() string     { return uuid.UUID(id).String() }

func (id TenantID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id TerritoryID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id BlockID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id HouseID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

// The ID types render as canonical UUID strings in JSON. Unmarshaling runs
// the same validation as the Parse functions.

func (id TenantID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id TerritoryID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id BlockID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id HouseID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }

func (id *TenantID) UnmarshalText(b []byte) error {
	parsed, err := ParseTenantID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *TerritoryID) UnmarshalText(b []byte) error {
	parsed, err := ParseTerritoryID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *BlockID) UnmarshalText(b []byte) error {
	parsed, err := ParseBlockID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *HouseID) UnmarshalText(b []byte) error {
	parsed, err := ParseHouseID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// NewTenantID returns a fresh random TenantID.
func NewTenantID() TenantID { return TenantID(uuid.New()) }

// NewTerritoryID returns a fresh random TerritoryID.
func NewTerritoryID() TerritoryID { return TerritoryID(uuid.New()) }

// NewBlockID returns a fresh random BlockID.
func NewBlockID() BlockID { return BlockID(uuid.New()) }

// NewHouseID returns a fresh random HouseID.
func NewHouseID() HouseID { return HouseID(uuid.New()) }
