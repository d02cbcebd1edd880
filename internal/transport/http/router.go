// Package httptransport assembles the HTTP surface: the global middleware
// chain, the authenticated API routes, and the operational endpoints.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/platform/metrics"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/platform/middleware"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/transport/http/shared"
)

// Registrar is implemented by every feature handler.
type Registrar interface {
	Register(r chi.Router)
}

// Config carries the router's cross-cutting collaborators.
type Config struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	TokenValidator middleware.TokenValidator
	RequestTimeout time.Duration
}

// NewRouter builds the full HTTP handler. All API routes require a valid
// bearer token; /healthz and /metrics stay open for the platform.
func NewRouter(cfg Config, handlers ...Registrar) http.Handler {
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Latency(cfg.Metrics))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(api chi.Router) {
		api.Use(middleware.ContentTypeJSON)
		api.Use(middleware.RequireAuth(cfg.TokenValidator, cfg.Logger))
		for _, h := range handlers {
			h.Register(api)
		}
	})

	return r
}
