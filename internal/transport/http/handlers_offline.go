package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fieldkey/internal/offline"
	"fieldkey/internal/transport/http/shared"
	id "fieldkey/pkg/domain"
	dErrors "fieldkey/pkg/domain-errors"
)

// OfflineService is the slice of the offline gateway the transport needs.
type OfflineService interface {
	Snapshot(ctx context.Context, key string, territoryID id.TerritoryID) (*offline.Snapshot, error)
	Sync(ctx context.Context, key string, payload *offline.SyncPayload) (*offline.SyncResult, error)
}

// OfflineHandler exposes the snapshot and sync endpoints for field clients.
type OfflineHandler struct {
	logger  *slog.Logger
	offline OfflineService
}

// NewOfflineHandler constructs the offline handler.
func NewOfflineHandler(logger *slog.Logger, svc OfflineService) *OfflineHandler {
	return &OfflineHandler{logger: logger, offline: svc}
}

// Register mounts the offline routes.
func (h *OfflineHandler) Register(r chi.Router) {
	r.Get("/offline/territories/{territoryID}", h.handleSnapshot)
	r.Post("/offline/sync", h.handleSync)
}

func (h *OfflineHandler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	territoryID, err := id.ParseTerritoryID(chi.URLParam(r, "territoryID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	key := r.URL.Query().Get("key")
	if key == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "key query parameter is required"))
		return
	}

	snap, err := h.offline.Snapshot(r.Context(), key, territoryID)
	if err != nil {
		h.logger.WarnContext(r.Context(), "snapshot failed",
			"territory_id", territoryID.String(), "error", err.Error())
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, snap)
}

type syncRequest struct {
	Key string `json:"key"`
	offline.SyncPayload
}

func (h *OfflineHandler) handleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.Key == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "key is required"))
		return
	}

	result, err := h.offline.Sync(r.Context(), req.Key, &req.SyncPayload)
	if err != nil {
		h.logger.WarnContext(r.Context(), "sync failed", "error", err.Error())
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}
