package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"unify/internal/match/policy"
	id "unify/pkg/domain"
	dErrors "unify/pkg/domain-errors"
	"unify/pkg/platform/httputil"
	"unify/pkg/requestcontext"
)

// Service defines the configuration operations the handler exposes.
type Service interface {
	Get(ctx context.Context, t id.EntityType) (policy.Snapshot, error)
	List(ctx context.Context) ([]policy.Snapshot, error)
	Update(ctx context.Context, snap policy.Snapshot, updatedBy string) (policy.Snapshot, error)
}

// Handler wires match configuration endpoints to the config service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts config endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/config/match", h.HandleList)
	r.Get("/config/match/{entityType}", h.HandleGet)
	r.Put("/config/match/{entityType}", h.HandleUpdate)
}

// HandleList handles GET /config/match requests.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.service.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSnapshots(snaps))
}

// HandleGet handles GET /config/match/{entityType} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	entityType, err := id.ParseEntityType(chi.URLParam(r, "entityType"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	snap, err := h.service.Get(r.Context(), entityType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSnapshot(snap))
}

// HandleUpdate handles PUT /config/match/{entityType} requests.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	reviewer := requestcontext.Reviewer(ctx)
	if reviewer == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	entityType, err := id.ParseEntityType(chi.URLParam(r, "entityType"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[UpdateConfigRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	snap, err := h.service.Update(ctx, req.ToSnapshot(entityType), reviewer)
	if err != nil {
		h.logger.ErrorContext(ctx, "match config update failed",
			"request_id", requestID,
			"entity_type", entityType,
			"reviewer", reviewer,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "match config update handled",
		"request_id", requestID,
		"entity_type", entityType,
		"reviewer", reviewer,
	)
	httputil.WriteJSON(w, http.StatusOK, FromSnapshot(snap))
}
