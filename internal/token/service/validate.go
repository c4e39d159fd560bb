package service

import (
	"context"
	"errors"
	"time"

	"fieldkey/internal/round"
	"fieldkey/internal/token/models"
	dErrors "fieldkey/pkg/domain-errors"
	"fieldkey/pkg/platform/sentinel"
	"fieldkey/pkg/requestcontext"
)

// Credential is the full working context handed to a field client exactly
// once per token key: the durable signed claim set plus the metadata of the
// claims' round.
type Credential struct {
	SignedToken string
	Round       *round.Info
}

// Validate answers whether a bare token key identifies a live, unexpired
// token. It returns nil for a valid token, or a coded error: CodeNotFound
// when no token row exists, CodeInvalidToken when the row was never
// activated, CodeExpired when the expiration has passed.
func (s *Service) Validate(ctx context.Context, key string) error {
	token, err := s.findToken(ctx, key)
	if err != nil {
		return err
	}
	return checkLiveness(token, requestcontext.Now(ctx))
}

// Authorize validates the key and returns the decoded claims for the
// offline gateway's scope checks.
func (s *Service) Authorize(ctx context.Context, key string) (*models.Claims, error) {
	token, err := s.findToken(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := checkLiveness(token, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	claims, err := s.signer.Decode(token.SignedToken)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// ResolveCredential exchanges a token key for the signed claim set and
// round metadata. It does not re-check expiry: as long as the row exists
// the caller may retrieve the signed string it was issued. The round must
// have metadata; a missing round row is CodeRoundInfoMissing, not a
// silent nil.
func (s *Service) ResolveCredential(ctx context.Context, key string) (*Credential, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.CredentialMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
		}
	}()

	token, err := s.findToken(ctx, key)
	if err != nil {
		return nil, err
	}
	claims, err := s.signer.Decode(token.SignedToken)
	if err != nil {
		return nil, err
	}
	info, err := s.rounds.Info(ctx, token.TenantID, claims.Round)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeRoundInfoMissing, "no round metadata for token")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not resolve round metadata")
	}
	return &Credential{SignedToken: token.SignedToken, Round: info}, nil
}

func (s *Service) findToken(ctx context.Context, key string) (*models.CapabilityToken, error) {
	if key == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "token key is required")
	}
	token, err := s.tokens.Find(ctx, key)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "unknown token")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not look up token")
	}
	return token, nil
}

// checkLiveness enforces the expiry rules: a token without an expiration
// was never activated and is invalid outright; one whose expiration is at
// or before now is expired.
func checkLiveness(token *models.CapabilityToken, now time.Time) error {
	if token.ExpiresAt == nil {
		return dErrors.New(dErrors.CodeInvalidToken, "token was never activated")
	}
	if !token.ExpiresAt.After(now) {
		return dErrors.New(dErrors.CodeExpired, "token has expired")
	}
	return nil
}
