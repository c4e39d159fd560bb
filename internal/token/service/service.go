// Package service implements the capability token core: issuance under the
// exclusivity invariant, stateless validation, the public credential
// lookup, and cascading revocation. Storage and transport live in other
// layers; this package owns the rules.
package service

import (
	"context"
	"log/slog"
	"time"

	"fieldkey/internal/platform/metrics"
	"fieldkey/internal/round"
	"fieldkey/internal/token/models"
	id "fieldkey/pkg/domain"
)

// TokenStore persists capability tokens.
type TokenStore interface {
	Create(ctx context.Context, token *models.CapabilityToken) error
	Find(ctx context.Context, key string) (*models.CapabilityToken, error)
	Delete(ctx context.Context, key string) error
	DeleteByKeys(ctx context.Context, keys []string) (int, error)
	ExpiredKeys(ctx context.Context, now time.Time) ([]string, error)
}

// AssignmentStore persists the territory- and block-level scope bindings.
// Implementations enforce the exclusivity invariant: writes that would give
// a scope a second live token fail with sentinel.ErrConflict.
type AssignmentStore interface {
	CreateTerritory(ctx context.Context, a *models.TerritoryAssignment) error
	FindUnfinishedTerritory(ctx context.Context, territoryID id.TerritoryID, round int) (*models.TerritoryAssignment, error)
	FindLiveTerritory(ctx context.Context, territoryID id.TerritoryID) (*models.TerritoryAssignment, error)
	ReattachTerritoryToken(ctx context.Context, territoryID id.TerritoryID, round int, tokenKey, holder string, expiresAt time.Time) error
	FinishTerritory(ctx context.Context, territoryID id.TerritoryID, round int, now time.Time) error
	FindBlock(ctx context.Context, territoryID id.TerritoryID, blockID id.BlockID) (*models.BlockAssignment, error)
	AttachBlockToken(ctx context.Context, territoryID id.TerritoryID, blockID id.BlockID, tokenKey string) error
	DetachBlockToken(ctx context.Context, territoryID id.TerritoryID, blockID id.BlockID) error
	LiveBlockTokenKeys(ctx context.Context, territoryID id.TerritoryID) ([]string, error)
	DetachTokenKeys(ctx context.Context, keys []string) error
}

// RoundService answers whether a round is open and resolves round metadata.
type RoundService interface {
	IsRoundOpen(ctx context.Context, territoryID id.TerritoryID) (bool, error)
	Info(ctx context.Context, tenantID id.TenantID, number int) (*round.Info, error)
}

// ParameterStore resolves per-tenant configuration values.
type ParameterStore interface {
	GetValue(ctx context.Context, tenantID string, key string) (string, bool, error)
}

// Signer signs claim sets and decodes stored signed strings.
type Signer interface {
	Sign(claims *models.Claims, expiresAt *time.Time) (string, error)
	Decode(signed string) (*models.Claims, error)
}

// Tx runs a callback inside one atomic transaction. Stores observe the
// transaction through the context.
type Tx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// MemoryTx executes the callback directly. The in-memory stores are
// individually consistent under their own locks; tests and dev wiring use
// this.
type MemoryTx struct{}

func (MemoryTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Service is the capability token core.
type Service struct {
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tokens      TokenStore
	assignments AssignmentStore
	rounds      RoundService
	params      ParameterStore
	signer      Signer
	tx          Tx
}

// New constructs the token service. metrics may be nil.
func New(
	logger *slog.Logger,
	m *metrics.Metrics,
	tokens TokenStore,
	assignments AssignmentStore,
	rounds RoundService,
	params ParameterStore,
	signer Signer,
	tx Tx,
) *Service {
	return &Service{
		logger:      logger,
		metrics:     m,
		tokens:      tokens,
		assignments: assignments,
		rounds:      rounds,
		params:      params,
		signer:      signer,
		tx:          tx,
	}
}
