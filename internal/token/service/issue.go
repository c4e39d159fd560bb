package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"fieldkey/internal/params"
	"fieldkey/internal/token/models"
	id "fieldkey/pkg/domain"
	dErrors "fieldkey/pkg/domain-errors"
	"fieldkey/pkg/platform/sentinel"
	"fieldkey/pkg/requestcontext"
)

// defaultBlockTokenLifetime applies when the tenant has no
// block_token_lifetime_hours parameter.
const defaultBlockTokenLifetime = 5 * time.Hour

// IssueTerritoryToken mints an overseer token for a (territory, round) and
// binds it to a new or reattachable assignment. The territory must have an
// open round and must not already hold a live token for the round. The
// token expires at the end of expirationDate's calendar day.
func (s *Service) IssueTerritoryToken(
	ctx context.Context,
	tenantID id.TenantID,
	territoryID id.TerritoryID,
	roundNumber int,
	holder string,
	expirationDate time.Time,
) (string, error) {
	if holder == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "holder is required")
	}
	open, err := s.rounds.IsRoundOpen(ctx, territoryID)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not resolve round state")
	}
	if !open {
		return "", dErrors.New(dErrors.CodeRoundNotOpen, "territory has no open round")
	}

	now := requestcontext.Now(ctx)
	expiresAt := endOfDay(expirationDate)
	if !expiresAt.After(now) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "expiration date is in the past")
	}

	key, err := models.NewKey()
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not generate token key")
	}
	signed, err := s.signer.Sign(&models.Claims{
		Role:        models.RoleOverseer,
		TenantID:    tenantID,
		TerritoryID: territoryID,
		Round:       roundNumber,
		Holder:      holder,
	}, &expiresAt)
	if err != nil {
		return "", err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		existing, err := s.assignments.FindUnfinishedTerritory(ctx, territoryID, roundNumber)
		switch {
		case err == nil:
			// A swept assignment (token gone, not finished) is re-issuable;
			// one that still references a token is not.
			if existing.TokenKey != "" {
				return dErrors.New(dErrors.CodeAlreadyIssued, "territory already has a live token for this round")
			}
			if err := s.createToken(ctx, key, tenantID, signed, expiresAt, now); err != nil {
				return err
			}
			if err := s.assignments.ReattachTerritoryToken(ctx, territoryID, roundNumber, key, holder, expiresAt); err != nil {
				if errors.Is(err, sentinel.ErrConflict) {
					return dErrors.New(dErrors.CodeAlreadyIssued, "territory already has a live token for this round")
				}
				return dErrors.Wrap(err, dErrors.CodeInternal, "could not reattach territory assignment")
			}
			return nil
		case errors.Is(err, sentinel.ErrNotFound):
			if err := s.createToken(ctx, key, tenantID, signed, expiresAt, now); err != nil {
				return err
			}
			if err := s.assignments.CreateTerritory(ctx, &models.TerritoryAssignment{
				TenantID:    tenantID,
				TerritoryID: territoryID,
				Round:       roundNumber,
				Holder:      holder,
				StartedAt:   now,
				ExpiresAt:   &expiresAt,
				TokenKey:    key,
			}); err != nil {
				if errors.Is(err, sentinel.ErrConflict) {
					return dErrors.New(dErrors.CodeAlreadyIssued, "territory already has a live token for this round")
				}
				return dErrors.Wrap(err, dErrors.CodeInternal, "could not create territory assignment")
			}
			return nil
		default:
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not look up territory assignment")
		}
	})
	if err != nil {
		return "", err
	}

	if s.metrics != nil {
		s.metrics.ObserveIssued("territory")
	}
	s.logger.InfoContext(ctx, "territory token issued",
		"tenant_id", tenantID.String(),
		"territory_id", territoryID.String(),
		"round", roundNumber,
		"expires_at", expiresAt,
		"request_id", requestcontext.RequestID(ctx))
	return key, nil
}

// IssueBlockToken mints a publisher token for a single block inside a
// territory. The block binding must exist and must not already hold a live
// token. Lifetime comes from the tenant's block_token_lifetime_hours
// parameter, defaulting to five hours.
func (s *Service) IssueBlockToken(
	ctx context.Context,
	tenantID id.TenantID,
	territoryID id.TerritoryID,
	blockID id.BlockID,
	roundNumber int,
) (string, error) {
	now := requestcontext.Now(ctx)
	expiresAt := now.Add(s.blockTokenLifetime(ctx, tenantID))

	key, err := models.NewKey()
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not generate token key")
	}
	signed, err := s.signer.Sign(&models.Claims{
		Role:        models.RolePublisher,
		TenantID:    tenantID,
		TerritoryID: territoryID,
		BlockID:     blockID,
		Round:       roundNumber,
	}, &expiresAt)
	if err != nil {
		return "", err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.createToken(ctx, key, tenantID, signed, expiresAt, now); err != nil {
			return err
		}
		if err := s.assignments.AttachBlockToken(ctx, territoryID, blockID, key); err != nil {
			switch {
			case errors.Is(err, sentinel.ErrConflict):
				return dErrors.New(dErrors.CodeAlreadyIssued, "block already has a live token")
			case errors.Is(err, sentinel.ErrNotFound):
				return dErrors.New(dErrors.CodeNotFound, "block not found in territory")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "could not attach block token")
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if s.metrics != nil {
		s.metrics.ObserveIssued("block")
	}
	s.logger.InfoContext(ctx, "block token issued",
		"tenant_id", tenantID.String(),
		"territory_id", territoryID.String(),
		"block_id", blockID.String(),
		"round", roundNumber,
		"expires_at", expiresAt,
		"request_id", requestcontext.RequestID(ctx))
	return key, nil
}

func (s *Service) createToken(ctx context.Context, key string, tenantID id.TenantID, signed string, expiresAt, now time.Time) error {
	err := s.tokens.Create(ctx, &models.CapabilityToken{
		Key:         key,
		TenantID:    tenantID,
		SignedToken: signed,
		ExpiresAt:   &expiresAt,
		CreatedAt:   now,
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not store token")
	}
	return nil
}

func (s *Service) blockTokenLifetime(ctx context.Context, tenantID id.TenantID) time.Duration {
	raw, ok, err := s.params.GetValue(ctx, tenantID.String(), params.KeyBlockTokenLifetimeHours)
	if err != nil {
		s.logger.WarnContext(ctx, "could not read block token lifetime, using default",
			"tenant_id", tenantID.String(), "error", err)
		return defaultBlockTokenLifetime
	}
	if !ok {
		return defaultBlockTokenLifetime
	}
	hours, err := strconv.Atoi(raw)
	if err != nil || hours <= 0 {
		s.logger.WarnContext(ctx, "invalid block token lifetime parameter, using default",
			"tenant_id", tenantID.String(), "value", raw)
		return defaultBlockTokenLifetime
	}
	return time.Duration(hours) * time.Hour
}

// endOfDay returns the last representable second of d's calendar day in d's
// location.
func endOfDay(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, d.Location())
}
