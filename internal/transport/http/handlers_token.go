package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi/v5"

	tokensvc "fieldkey/internal/token/service"
	"fieldkey/internal/transport/http/shared"
	id "fieldkey/pkg/domain"
	dErrors "fieldkey/pkg/domain-errors"
)

// TokenService is the slice of the token core the transport needs.
type TokenService interface {
	IssueTerritoryToken(ctx context.Context, tenantID id.TenantID, territoryID id.TerritoryID, round int, holder string, expirationDate time.Time) (string, error)
	IssueBlockToken(ctx context.Context, tenantID id.TenantID, territoryID id.TerritoryID, blockID id.BlockID, round int) (string, error)
	RevokeTerritoryToken(ctx context.Context, territoryID id.TerritoryID) (int, error)
	RevokeBlockToken(ctx context.Context, territoryID id.TerritoryID, blockID id.BlockID) error
	ResolveCredential(ctx context.Context, key string) (*tokensvc.Credential, error)
}

// TokenHandler exposes token issuance, revocation, and the public
// credential lookup.
type TokenHandler struct {
	logger *slog.Logger
	tokens TokenService
}

// NewTokenHandler constructs the token handler.
func NewTokenHandler(logger *slog.Logger, tokens TokenService) *TokenHandler {
	return &TokenHandler{logger: logger, tokens: tokens}
}

// Register mounts the token routes.
func (h *TokenHandler) Register(r chi.Router) {
	r.Post("/tokens/territory", h.handleIssueTerritory)
	r.Post("/tokens/block", h.handleIssueBlock)
	r.Delete("/tokens/territory/{territoryID}", h.handleRevokeTerritory)
	r.Delete("/tokens/territory/{territoryID}/block/{blockID}", h.handleRevokeBlock)
	r.Get("/credentials/{key}", h.handleCredential)
}

type issueTerritoryRequest struct {
	TenantID       string `json:"tenant_id"`
	TerritoryID    string `json:"territory_id"`
	Round          int    `json:"round"`
	Holder         string `json:"holder"`
	ExpirationDate string `json:"expiration_date"`
}

type issueResponse struct {
	Key string `json:"key"`
}

func (h *TokenHandler) handleIssueTerritory(w http.ResponseWriter, r *http.Request) {
	var req issueTerritoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	tenantID, err := id.ParseTenantID(req.TenantID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	territoryID, err := id.ParseTerritoryID(req.TerritoryID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if req.Round <= 0 {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "round must be positive"))
		return
	}
	if !govalidator.StringLength(req.Holder, "1", "255") {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid holder"))
		return
	}
	expirationDate, err := time.Parse("2006-01-02", req.ExpirationDate)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "expiration_date must be YYYY-MM-DD"))
		return
	}

	key, err := h.tokens.IssueTerritoryToken(r.Context(), tenantID, territoryID, req.Round, req.Holder, expirationDate)
	if err != nil {
		h.logFailure(r, "issue territory token failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, issueResponse{Key: key})
}

type issueBlockRequest struct {
	TenantID    string `json:"tenant_id"`
	TerritoryID string `json:"territory_id"`
	BlockID     string `json:"block_id"`
	Round       int    `json:"round"`
}

func (h *TokenHandler) handleIssueBlock(w http.ResponseWriter, r *http.Request) {
	var req issueBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	tenantID, err := id.ParseTenantID(req.TenantID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	territoryID, err := id.ParseTerritoryID(req.TerritoryID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	blockID, err := id.ParseBlockID(req.BlockID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if req.Round <= 0 {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "round must be positive"))
		return
	}

	key, err := h.tokens.IssueBlockToken(r.Context(), tenantID, territoryID, blockID, req.Round)
	if err != nil {
		h.logFailure(r, "issue block token failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, issueResponse{Key: key})
}

type revokeTerritoryResponse struct {
	Revoked int `json:"revoked"`
}

func (h *TokenHandler) handleRevokeTerritory(w http.ResponseWriter, r *http.Request) {
	territoryID, err := id.ParseTerritoryID(chi.URLParam(r, "territoryID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	revoked, err := h.tokens.RevokeTerritoryToken(r.Context(), territoryID)
	if err != nil {
		h.logFailure(r, "revoke territory token failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, revokeTerritoryResponse{Revoked: revoked})
}

func (h *TokenHandler) handleRevokeBlock(w http.ResponseWriter, r *http.Request) {
	territoryID, err := id.ParseTerritoryID(chi.URLParam(r, "territoryID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	blockID, err := id.ParseBlockID(chi.URLParam(r, "blockID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := h.tokens.RevokeBlockToken(r.Context(), territoryID, blockID); err != nil {
		h.logFailure(r, "revoke block token failed", err)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type credentialResponse struct {
	Token string `json:"token"`
	Round any    `json:"round"`
}

func (h *TokenHandler) handleCredential(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	cred, err := h.tokens.ResolveCredential(r.Context(), key)
	if err != nil {
		h.logFailure(r, "credential lookup failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, credentialResponse{Token: cred.SignedToken, Round: cred.Round})
}

func (h *TokenHandler) logFailure(r *http.Request, msg string, err error) {
	logFn := h.logger.WarnContext
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		logFn = h.logger.ErrorContext
	}
	logFn(r.Context(), msg, "path", r.URL.Path, "error", err.Error())
}
