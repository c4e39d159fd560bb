// Package signer turns capability claims into signed token strings and
// back. The offline gateway decodes stored strings without verifying the
// signature because liveness is re-checked against the live row on every
// call; DecodeVerified exists for the day that lookup goes away.
package signer

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"fieldkey/internal/token/models"
	id "fieldkey/pkg/domain"
	dErrors "fieldkey/pkg/domain-errors"
)

// tokenClaims is the wire shape of a capability claim set.
type tokenClaims struct {
	Role        string `json:"role"`
	TenantID    string `json:"tenant_id"`
	TerritoryID string `json:"territory_id"`
	BlockID     string `json:"block_id,omitempty"`
	Round       int    `json:"round"`
	Holder      string `json:"holder,omitempty"`
	jwt.RegisteredClaims
}

// Signer signs and decodes capability claim sets with HS256.
type Signer struct {
	signingKey []byte
	issuer     string
}

// New constructs a Signer over the shared signing key.
func New(signingKey string, issuer string) *Signer {
	return &Signer{signingKey: []byte(signingKey), issuer: issuer}
}

// Sign assigns a fresh JTI to the claims and returns the signed token
// string. expiresAt may be nil for tokens without a signed expiry.
func (s *Signer) Sign(claims *models.Claims, expiresAt *time.Time) (string, error) {
	if err := claims.Validate(); err != nil {
		return "", err
	}
	claims.JTI = uuid.NewString()

	wire := tokenClaims{
		Role:        string(claims.Role),
		TenantID:    claims.TenantID.String(),
		TerritoryID: claims.TerritoryID.String(),
		Round:       claims.Round,
		Holder:      claims.Holder,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
			Issuer:   s.issuer,
			ID:       claims.JTI,
		},
	}
	if claims.BlockScoped() {
		wire.BlockID = claims.BlockID.String()
	}
	if expiresAt != nil {
		wire.ExpiresAt = jwt.NewNumericDate(*expiresAt)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, wire).SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not sign token")
	}
	return signed, nil
}

// Decode extracts claims from a stored signed string without verifying the
// signature. Only call this after the token's liveness has been confirmed
// against the live store.
func (s *Signer) Decode(signed string) (*models.Claims, error) {
	var wire tokenClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(signed, &wire); err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidToken, "malformed token")
	}
	return s.fromWire(&wire)
}

// DecodeVerified extracts claims with full signature verification. The
// drop-in replacement for Decode should the live-lookup step ever be
// removed from the offline path.
func (s *Signer) DecodeVerified(signed string) (*models.Claims, error) {
	var wire tokenClaims
	parsed, err := jwt.ParseWithClaims(signed, &wire, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeExpired, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeInvalidToken, "invalid token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeInvalidToken, "invalid token")
	}
	return s.fromWire(&wire)
}

func (s *Signer) fromWire(wire *tokenClaims) (*models.Claims, error) {
	tenantID, err := id.ParseTenantID(wire.TenantID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidToken, "token claims carry no valid tenant")
	}
	territoryID, err := id.ParseTerritoryID(wire.TerritoryID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidToken, "token claims carry no valid territory")
	}
	claims := &models.Claims{
		Role:        models.Role(wire.Role),
		TenantID:    tenantID,
		TerritoryID: territoryID,
		Round:       wire.Round,
		Holder:      wire.Holder,
		JTI:         wire.ID,
	}
	if wire.BlockID != "" {
		blockID, err := id.ParseBlockID(wire.BlockID)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeInvalidToken, "token claims carry no valid block")
		}
		claims.BlockID = blockID
	}
	if err := claims.Validate(); err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidToken, "token claims are inconsistent")
	}
	return claims, nil
}
