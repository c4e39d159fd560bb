package service

import (
	"context"
	"errors"

	id "fieldkey/pkg/domain"
	dErrors "fieldkey/pkg/domain-errors"
	"fieldkey/pkg/platform/sentinel"
	"fieldkey/pkg/requestcontext"
)

// RevokeTerritoryToken tears down a territory's live assignment: the
// overseer token, every live block token underneath it, and the
// assignment's token references go away in one transaction, and the
// assignment is marked finished with its expiry clamped to now.
func (s *Service) RevokeTerritoryToken(ctx context.Context, territoryID id.TerritoryID) (int, error) {
	now := requestcontext.Now(ctx)

	var deleted int
	var blockCount int
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		live, err := s.assignments.FindLiveTerritory(ctx, territoryID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "territory has no live assignment")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not look up territory assignment")
		}

		blockKeys, err := s.assignments.LiveBlockTokenKeys(ctx, territoryID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not list block tokens")
		}
		blockCount = len(blockKeys)

		keys := append([]string{live.TokenKey}, blockKeys...)
		// References go first: the binding tables point at token rows, so
		// the same transaction clears them before the tokens disappear.
		if err := s.assignments.DetachTokenKeys(ctx, keys); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not detach token references")
		}
		deleted, err = s.tokens.DeleteByKeys(ctx, keys)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not delete tokens")
		}
		if err := s.assignments.FinishTerritory(ctx, territoryID, live.Round, now); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not finish territory assignment")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if s.metrics != nil {
		s.metrics.ObserveRevoked("territory", 1)
		if blockCount > 0 {
			s.metrics.ObserveRevoked("block", blockCount)
		}
	}
	s.logger.InfoContext(ctx, "territory token revoked",
		"territory_id", territoryID.String(),
		"tokens_deleted", deleted,
		"block_tokens", blockCount,
		"request_id", requestcontext.RequestID(ctx))
	return deleted, nil
}

// RevokeBlockToken deletes a single block's live token and clears the
// block assignment's reference. The territory assignment is untouched.
func (s *Service) RevokeBlockToken(ctx context.Context, territoryID id.TerritoryID, blockID id.BlockID) error {
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		binding, err := s.assignments.FindBlock(ctx, territoryID, blockID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "block not found in territory")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not look up block assignment")
		}
		if !binding.Live() {
			return dErrors.New(dErrors.CodeNotFound, "block has no live token")
		}
		if err := s.assignments.DetachBlockToken(ctx, territoryID, blockID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not detach block token")
		}
		if err := s.tokens.Delete(ctx, binding.TokenKey); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not delete token")
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.ObserveRevoked("block", 1)
	}
	s.logger.InfoContext(ctx, "block token revoked",
		"territory_id", territoryID.String(),
		"block_id", blockID.String(),
		"request_id", requestcontext.RequestID(ctx))
	return nil
}
