// Package params is the per-tenant parameter store. The token issuer reads
// the block-token lifetime from it; everything else about tenant
// configuration lives outside this core.
package params

import "context"

// Well-known parameter keys.
const (
	// KeyBlockTokenLifetimeHours overrides the default block token
	// lifetime for a tenant.
	KeyBlockTokenLifetimeHours = "block_token_lifetime_hours"
)

// Store resolves per-tenant configuration values. The second return is
// false when the tenant has no value for the key.
type Store interface {
	GetValue(ctx context.Context, tenantID string, key string) (string, bool, error)
}
