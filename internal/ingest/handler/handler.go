package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"unify/internal/ingest"
	"unify/internal/ingest/models"
	id "unify/pkg/domain"
	dErrors "unify/pkg/domain-errors"
	"unify/pkg/platform/httputil"
	"unify/pkg/requestcontext"
)

// Service defines the run lifecycle operations the handler exposes.
type Service interface {
	StartRun(ctx context.Context, source string) (*models.Run, error)
	StageRecord(ctx context.Context, rec *models.RawRecord) (*models.RawRecord, error)
	CompleteRun(ctx context.Context, runID id.RunID) error
	FailRun(ctx context.Context, runID id.RunID) error
	GetRun(ctx context.Context, runID id.RunID) (*models.Run, ingest.RecordCounts, error)
}

// Repairer defines the stuck-run operations the handler exposes.
type Repairer interface {
	ListStuck(ctx context.Context) ([]*models.Run, error)
	Repair(ctx context.Context, runID id.RunID, actor string, dryRun bool) (*ingest.RepairAction, error)
}

// Handler wires ingest endpoints to the run service and repairer.
type Handler struct {
	service  Service
	repairer Repairer
	logger   *slog.Logger
}

// New constructs an ingest handler with its dependencies.
func New(service Service, repairer Repairer, logger *slog.Logger) *Handler {
	return &Handler{service: service, repairer: repairer, logger: logger}
}

// Register mounts ingest endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/ingest/runs", h.HandleStartRun)
	r.Get("/ingest/runs/stuck", h.HandleListStuck)
	r.Get("/ingest/runs/{runID}", h.HandleGetRun)
	r.Post("/ingest/runs/{runID}/records", h.HandleStageRecord)
	r.Post("/ingest/runs/{runID}/complete", h.HandleCompleteRun)
	r.Post("/ingest/runs/{runID}/fail", h.HandleFailRun)
	r.Post("/ingest/runs/{runID}/repair", h.HandleRepair)
}

// HandleStartRun handles POST /ingest/runs requests.
func (h *Handler) HandleStartRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[StartRunRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	run, err := h.service.StartRun(ctx, req.Source)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromRun(run))
}

// HandleStageRecord handles POST /ingest/runs/{runID}/records requests.
func (h *Handler) HandleStageRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	runID, err := id.ParseRunID(chi.URLParam(r, "runID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[StageRecordRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	rec, err := h.service.StageRecord(ctx, req.ToRecord(runID))
	if err != nil {
		h.logger.ErrorContext(ctx, "record staging failed",
			"request_id", requestID,
			"run_id", runID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromRecord(rec))
}

// HandleCompleteRun handles POST /ingest/runs/{runID}/complete requests.
func (h *Handler) HandleCompleteRun(w http.ResponseWriter, r *http.Request) {
	h.finish(w, r, h.service.CompleteRun)
}

// HandleFailRun handles POST /ingest/runs/{runID}/fail requests.
func (h *Handler) HandleFailRun(w http.ResponseWriter, r *http.Request) {
	h.finish(w, r, h.service.FailRun)
}

func (h *Handler) finish(w http.ResponseWriter, r *http.Request, op func(context.Context, id.RunID) error) {
	runID, err := id.ParseRunID(chi.URLParam(r, "runID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := op(r.Context(), runID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetRun handles GET /ingest/runs/{runID} requests.
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	runID, err := id.ParseRunID(chi.URLParam(r, "runID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	run, counts, err := h.service.GetRun(r.Context(), runID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRunWithCounts(run, counts))
}

// HandleListStuck handles GET /ingest/runs/stuck requests.
func (h *Handler) HandleListStuck(w http.ResponseWriter, r *http.Request) {
	runs, err := h.repairer.ListStuck(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRuns(runs))
}

// HandleRepair handles POST /ingest/runs/{runID}/repair requests. The
// dry_run query parameter previews the transition without writing it.
func (h *Handler) HandleRepair(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor := requestcontext.Reviewer(ctx)
	if actor == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	runID, err := id.ParseRunID(chi.URLParam(r, "runID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	dryRun := r.URL.Query().Get("dry_run") == "true"

	action, err := h.repairer.Repair(ctx, runID, actor, dryRun)
	if err != nil {
		h.logger.ErrorContext(ctx, "run repair failed",
			"request_id", requestcontext.RequestID(ctx),
			"run_id", runID,
			"dry_run", dryRun,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRepairAction(action))
}
