package offline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"fieldkey/internal/offline/store/batch"
	"fieldkey/internal/platform/metrics"
	"fieldkey/internal/territory"
	"fieldkey/internal/token/models"
	"fieldkey/internal/visit"
	id "fieldkey/pkg/domain"
	dErrors "fieldkey/pkg/domain-errors"
	"fieldkey/pkg/platform/sentinel"
	"fieldkey/pkg/requestcontext"
)

// Authorizer validates a token key and returns its claims.
type Authorizer interface {
	Authorize(ctx context.Context, key string) (*models.Claims, error)
}

// Service is the offline gateway.
type Service struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	auth    Authorizer
	tree    territory.Store
	visits  visit.Store
	batches batch.Store
}

// New constructs the offline gateway. metrics may be nil.
func New(logger *slog.Logger, m *metrics.Metrics, auth Authorizer, tree territory.Store, visits visit.Store, batches batch.Store) *Service {
	return &Service{
		logger:  logger,
		metrics: m,
		auth:    auth,
		tree:    tree,
		visits:  visits,
		batches: batches,
	}
}

// Snapshot returns the slice of the resource tree the token's claims cover,
// with per-house completion state for the claims' round. A publisher token
// sees exactly its one block; an overseer token sees the whole territory.
// The requested territory must match the claims.
func (s *Service) Snapshot(ctx context.Context, key string, territoryID id.TerritoryID) (*Snapshot, error) {
	claims, err := s.auth.Authorize(ctx, key)
	if err != nil {
		return nil, err
	}
	if claims.TerritoryID != territoryID {
		return nil, dErrors.New(dErrors.CodeForbidden, "token does not cover this territory")
	}

	terr, err := s.tree.FindTerritory(ctx, territoryID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "territory not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not load territory")
	}

	var blocks []*territory.Block
	if claims.BlockScoped() {
		b, err := s.tree.FindBlock(ctx, territoryID, claims.BlockID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeForbidden, "token block is not part of this territory")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not load block")
		}
		blocks = []*territory.Block{b}
	} else {
		blocks, err = s.tree.ListBlocks(ctx, territoryID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not list blocks")
		}
	}

	snapshot := &Snapshot{
		TerritoryID:   terr.ID,
		TerritoryName: terr.Name,
		Round:         claims.Round,
		Blocks:        make([]BlockNode, 0, len(blocks)),
	}
	for _, b := range blocks {
		houses, err := s.tree.ListHouses(ctx, b.ID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not list houses")
		}
		houseIDs := make([]id.HouseID, 0, len(houses))
		for _, h := range houses {
			houseIDs = append(houseIDs, h.ID)
		}
		records, err := s.visits.ForHousesRound(ctx, houseIDs, claims.Round)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not load visit records")
		}

		node := BlockNode{ID: b.ID, Name: b.Name, Houses: make([]HouseNode, 0, len(houses))}
		for _, h := range houses {
			hn := HouseNode{ID: h.ID, Address: h.Address}
			if r, ok := records[h.ID]; ok {
				hn.Completed = r.Completed
				visitedAt := r.VisitedAt
				hn.VisitedAt = &visitedAt
			}
			node.Houses = append(node.Houses, hn)
		}
		snapshot.Blocks = append(snapshot.Blocks, node)
	}
	return snapshot, nil
}

// Sync applies a batch of offline changes under the token's claims. The
// batch is recorded before anything is applied. Changes for houses outside
// the claims' scope are skipped, not rejected: a partial batch from a
// client with a stale tree is still mostly useful.
func (s *Service) Sync(ctx context.Context, key string, payload *SyncPayload) (*SyncResult, error) {
	claims, err := s.auth.Authorize(ctx, key)
	if err != nil {
		return nil, err
	}
	if payload.TerritoryID != claims.TerritoryID {
		return nil, dErrors.New(dErrors.CodeForbidden, "token does not cover this territory")
	}

	now := requestcontext.Now(ctx)
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not encode batch payload")
	}
	b := &batch.Batch{
		ID:          uuid.NewString(),
		TenantID:    claims.TenantID,
		TerritoryID: claims.TerritoryID,
		TokenJTI:    claims.JTI,
		ReceivedAt:  now,
		Payload:     raw,
	}
	if err := s.batches.Append(ctx, b); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not record sync batch")
	}

	result := &SyncResult{BatchID: b.ID}
	for _, change := range payload.Changes {
		house, err := s.tree.FindHouse(ctx, change.HouseID)
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			s.skip(ctx, result, b.ID, change.HouseID, "unknown house")
			continue
		case err != nil:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not resolve house")
		}
		if house.TerritoryID != claims.TerritoryID {
			s.skip(ctx, result, b.ID, change.HouseID, "house outside territory")
			continue
		}
		if claims.BlockScoped() && house.BlockID != claims.BlockID {
			s.skip(ctx, result, b.ID, change.HouseID, "house outside block")
			continue
		}

		err = s.visits.Upsert(ctx, &visit.Record{
			TenantID:    claims.TenantID,
			TerritoryID: house.TerritoryID,
			BlockID:     house.BlockID,
			HouseID:     house.ID,
			Round:       claims.Round,
			Completed:   change.Completed,
			VisitedAt:   change.VisitedAt,
			UpdatedAt:   now,
		})
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not apply visit change")
		}
		result.Accepted++
	}

	if s.metrics != nil {
		s.metrics.SyncBatches.Inc()
		s.metrics.SyncAccepted.Add(float64(result.Accepted))
		s.metrics.SyncSkipped.Add(float64(result.Skipped))
	}
	s.logger.InfoContext(ctx, "sync batch applied",
		"batch_id", b.ID,
		"territory_id", claims.TerritoryID.String(),
		"accepted", result.Accepted,
		"skipped", result.Skipped,
		"request_id", requestcontext.RequestID(ctx))
	return result, nil
}

func (s *Service) skip(ctx context.Context, result *SyncResult, batchID string, houseID id.HouseID, reason string) {
	result.Skipped++
	s.logger.DebugContext(ctx, "sync change skipped",
		"batch_id", batchID, "house_id", houseID.String(), "reason", reason)
}
