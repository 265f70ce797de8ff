// Package httptransport assembles the HTTP surface: middleware chain,
// feature handler registration, health, and metrics.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"unify/internal/platform/metrics"
	"unify/internal/platform/middleware"
	"unify/pkg/platform/httputil"
	"unify/pkg/platform/middleware/requesttime"
)

// Registrar is implemented by feature handlers that mount their own routes.
type Registrar interface {
	Register(r chi.Router)
}

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Deps carries everything the router needs beyond the feature handlers.
type Deps struct {
	Logger    *slog.Logger
	Validator middleware.TokenValidator
	Metrics   *metrics.Metrics

	// Checks maps dependency name to its health probe; all must pass for
	// /healthz to return 200.
	Checks map[string]HealthChecker
}

// NewRouter builds the full application router.
func NewRouter(deps Deps, handlers ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(chimiddleware.Timeout(30 * time.Second))
	if deps.Metrics != nil {
		r.Use(middleware.Latency(deps.Metrics))
	}
	if deps.Validator != nil {
		r.Use(middleware.ReviewerAuth(deps.Validator, deps.Logger))
	}

	for _, h := range handlers {
		h.Register(r)
	}

	r.Get("/healthz", healthHandler(deps.Checks))
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func healthHandler(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		out := make(map[string]string, len(checks)+1)
		out["status"] = "ok"
		for name, check := range checks {
			if err := check.Health(ctx); err != nil {
				out[name] = "down"
				out["status"] = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			out[name] = "up"
		}
		httputil.WriteJSON(w, status, out)
	}
}
