// Package httptransport assembles the public HTTP surface: per-module
// handlers behind the shared middleware chain, plus health and metrics.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trustgrid/internal/platform/middleware"
	"trustgrid/pkg/platform/httputil"
)

// Registrar is implemented by every module handler.
type Registrar interface {
	Register(r chi.Router)
}

// HealthChecker reports the readiness of one backing dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// RouterConfig carries everything NewRouter needs to assemble the tree.
type RouterConfig struct {
	Logger        *slog.Logger
	JWTSigningKey string
	Timeout       time.Duration
	Protected     []Registrar
	Public        []Registrar
	Checks        map[string]HealthChecker
}

// NewRouter builds the full route tree. Protected handlers sit behind
// bearer auth; public handlers (reads, health, metrics) do not.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	if cfg.Timeout > 0 {
		r.Use(middleware.Timeout(cfg.Timeout))
	}

	r.Get("/healthz", handleHealth(cfg.Checks))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(pub chi.Router) {
		for _, h := range cfg.Public {
			h.Register(pub)
		}
	})

	r.Group(func(auth chi.Router) {
		auth.Use(middleware.RequireAuth(cfg.JWTSigningKey))
		for _, h := range cfg.Protected {
			h.Register(auth)
		}
	})

	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func handleHealth(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for name, check := range checks {
			if err := check.Health(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
