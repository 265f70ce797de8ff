package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"unify/internal/entity/merge"
	"unify/internal/match"
	"unify/internal/match/models"
	"unify/internal/review"
	id "unify/pkg/domain"
	dErrors "unify/pkg/domain-errors"
	"unify/pkg/platform/audit"
	"unify/pkg/platform/httputil"
	"unify/pkg/requestcontext"
)

// Service defines the review queue operations the handler exposes.
type Service interface {
	ListPending(ctx context.Context, t id.EntityType, filter match.ListFilter) ([]*models.Candidate, error)
	ListBlocked(ctx context.Context, t id.EntityType) ([]*models.BlockedPair, error)
	GetDetail(ctx context.Context, candidateID id.CandidateID) (*review.Detail, error)
	Accept(ctx context.Context, candidateID id.CandidateID, reviewer string) (*merge.Result, error)
	Reject(ctx context.Context, candidateID id.CandidateID, reviewer, reason string) error
	History(ctx context.Context, entityID id.EntityID, limit int) ([]audit.Event, error)
}

// Handler wires review queue endpoints to the review service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a review handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts review endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/review/{entityType}", h.HandleList)
	r.Get("/review/{entityType}/blocked", h.HandleListBlocked)
	r.Get("/review/candidates/{candidateID}", h.HandleDetail)
	r.Post("/review/candidates/{candidateID}/accept", h.HandleAccept)
	r.Post("/review/candidates/{candidateID}/reject", h.HandleReject)
	r.Get("/entities/{entityID}/history", h.HandleHistory)
}

// HandleList handles GET /review/{entityType} requests.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entityType, err := id.ParseEntityType(chi.URLParam(r, "entityType"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	filter, err := filterFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	cands, err := h.service.ListPending(ctx, entityType, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "review queue listing failed",
			"request_id", requestcontext.RequestID(ctx),
			"entity_type", entityType,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCandidates(cands))
}

// HandleListBlocked handles GET /review/{entityType}/blocked requests.
func (h *Handler) HandleListBlocked(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entityType, err := id.ParseEntityType(chi.URLParam(r, "entityType"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	pairs, err := h.service.ListBlocked(ctx, entityType)
	if err != nil {
		h.logger.ErrorContext(ctx, "blocked pair listing failed",
			"request_id", requestcontext.RequestID(ctx),
			"entity_type", entityType,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromBlockedPairs(pairs))
}

// HandleHistory handles GET /entities/{entityID}/history requests.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entityID, err := id.ParseEntityID(chi.URLParam(r, "entityID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "limit must be an integer between 1 and 500"))
			return
		}
		limit = n
	}

	events, err := h.service.History(ctx, entityID, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "entity history listing failed",
			"request_id", requestcontext.RequestID(ctx),
			"entity_id", entityID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEvents(events))
}

// HandleDetail handles GET /review/candidates/{candidateID} requests.
func (h *Handler) HandleDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	candidateID, err := id.ParseCandidateID(chi.URLParam(r, "candidateID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	detail, err := h.service.GetDetail(ctx, candidateID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDetail(detail))
}

// HandleAccept handles POST /review/candidates/{candidateID}/accept requests.
func (h *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	reviewer := requestcontext.Reviewer(ctx)
	if reviewer == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	candidateID, err := id.ParseCandidateID(chi.URLParam(r, "candidateID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Accept(ctx, candidateID, reviewer)
	if err != nil {
		h.logger.ErrorContext(ctx, "candidate accept failed",
			"request_id", requestID,
			"candidate_id", candidateID,
			"reviewer", reviewer,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "candidate accept handled",
		"request_id", requestID,
		"candidate_id", candidateID,
		"reviewer", reviewer,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromMergeResult(result))
}

// HandleReject handles POST /review/candidates/{candidateID}/reject requests.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	reviewer := requestcontext.Reviewer(ctx)
	if reviewer == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	candidateID, err := id.ParseCandidateID(chi.URLParam(r, "candidateID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[RejectRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.Reject(ctx, candidateID, reviewer, req.Reason); err != nil {
		h.logger.ErrorContext(ctx, "candidate reject failed",
			"request_id", requestID,
			"candidate_id", candidateID,
			"reviewer", reviewer,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "candidate rejected",
		"request_id", requestID,
		"candidate_id", candidateID,
		"reviewer", reviewer,
	)
	w.WriteHeader(http.StatusNoContent)
}

func filterFromQuery(r *http.Request) (match.ListFilter, error) {
	var filter match.ListFilter
	q := r.URL.Query()
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			return filter, dErrors.New(dErrors.CodeInvalidInput, "limit must be an integer between 1 and 500")
		}
		filter.Limit = n
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return filter, dErrors.New(dErrors.CodeInvalidInput, "offset must be a non-negative integer")
		}
		filter.Offset = n
	}
	if raw := q.Get("min_score"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || f < 0 || f > 1 {
			return filter, dErrors.New(dErrors.CodeInvalidInput, "min_score must be within [0, 1]")
		}
		filter.MinScore = f
	}
	if raw := q.Get("tier"); raw != "" {
		switch models.Tier(raw) {
		case models.TierAutoMerge, models.TierNeedsReview, models.TierIgnore, models.TierBlocked:
			filter.Tiers = []models.Tier{models.Tier(raw)}
		default:
			return filter, dErrors.New(dErrors.CodeInvalidInput, "unknown tier: "+raw)
		}
	}
	return filter, nil
}
