package models

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	id "fieldkey/pkg/domain"
	dErrors "fieldkey/pkg/domain-errors"
)

// Role is the closed set of capability roles. An overseer holds a
// territory-wide token; a publisher holds a single-block token.
type Role string

const (
	RoleOverseer  Role = "overseer"
	RolePublisher Role = "publisher"
)

// Claims is the immutable payload inside a signed capability token. Once
// signed it is the sole source of truth for the offline gateway's scope
// restriction.
type Claims struct {
	Role        Role
	TenantID    id.TenantID
	TerritoryID id.TerritoryID
	// BlockID is set exactly when Role is publisher.
	BlockID id.BlockID
	Round   int
	// Holder is the display name of the assignee; overseer tokens only.
	Holder string
	// JTI is the per-issuance random identifier.
	JTI string
}

// BlockScoped reports whether the claims restrict access to a single block.
func (c Claims) BlockScoped() bool {
	return !c.BlockID.IsNil()
}

// Validate enforces the role/shape invariant: publisher claims carry a
// block id, overseer claims do not.
func (c Claims) Validate() error {
	switch c.Role {
	case RoleOverseer:
		if !c.BlockID.IsNil() {
			return dErrors.New(dErrors.CodeInvariantViolation, "overseer claims must not carry a block id")
		}
	case RolePublisher:
		if c.BlockID.IsNil() {
			return dErrors.New(dErrors.CodeInvariantViolation, "publisher claims require a block id")
		}
	default:
		return dErrors.New(dErrors.CodeInvariantViolation, "unknown role: "+string(c.Role))
	}
	if c.TenantID.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "claims require a tenant id")
	}
	if c.TerritoryID.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "claims require a territory id")
	}
	if c.Round <= 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "claims require a positive round")
	}
	return nil
}

// CapabilityToken is the live token row. The opaque Key is the bearer
// credential callers present; SignedToken is the durable claim set handed
// out once through the credential lookup. ExpiresAt, once set, is never
// extended in place.
type CapabilityToken struct {
	Key         string
	TenantID    id.TenantID
	SignedToken string
	ExpiresAt   *time.Time
	CreatedAt   time.Time
}

// TerritoryAssignment is the territory-level scope binding: one row per
// (territory, round) assignment to an overseer. At most one row with
// Finished == false may exist per (territory, round).
type TerritoryAssignment struct {
	TenantID    id.TenantID
	TerritoryID id.TerritoryID
	Round       int
	Holder      string
	StartedAt   time.Time
	ExpiresAt   *time.Time
	Finished    bool
	// TokenKey references the live token, or "" when detached.
	TokenKey string
}

// Live reports whether the assignment currently owns a token.
func (a *TerritoryAssignment) Live() bool {
	return a != nil && !a.Finished && a.TokenKey != ""
}

// BlockAssignment is the block-level scope binding: one row per
// (territory, block), holding at most one live token reference. The row
// itself is created by the territory CRUD layer and never deleted here;
// only the token reference is attached and detached.
type BlockAssignment struct {
	TenantID    id.TenantID
	TerritoryID id.TerritoryID
	BlockID     id.BlockID
	TokenKey    string
}

// Live reports whether the assignment currently owns a token.
func (a *BlockAssignment) Live() bool {
	return a != nil && a.TokenKey != ""
}

// NewKey creates a cryptographically secure opaque token key,
// base64url-encoded.
func NewKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("could not generate token key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
