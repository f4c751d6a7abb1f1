// Package httpapi assembles the public HTTP surface: the shared middleware
// chain, every feature's routes, and the operational endpoints.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bazaar/internal/platform/middleware"
	"bazaar/pkg/platform/httputil"
)

// Registrar is a feature handler that mounts its routes on the shared router.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck probes one backing dependency for the readiness endpoint.
type HealthCheck struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Config carries the cross-cutting router settings.
type Config struct {
	// RequestTimeout bounds every request; zero disables the timeout
	// middleware.
	RequestTimeout time.Duration
	// Checks feed /readyz. An empty list makes readiness equal liveness.
	Checks []HealthCheck
}

// New builds the server's router: request identity and timing first, then
// recovery, logging, and the per-feature routes. /healthz and /metrics sit
// outside the feature groups and carry no authentication.
func New(logger *slog.Logger, cfg Config, features ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	r.Use(middleware.ClientMetadata)

	for _, f := range features {
		f.Register(r)
	}

	r.Get("/healthz", handleLiveness)
	r.Get("/readyz", handleReadiness(cfg.Checks))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

func handleLiveness(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadiness runs every dependency probe and reports per-dependency
// status. Any failure turns the response into a 503 so the load balancer
// drains the instance.
func handleReadiness(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		deps := make(map[string]string, len(checks))
		for _, c := range checks {
			if err := c.Probe(r.Context()); err != nil {
				deps[c.Name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			deps[c.Name] = "ok"
		}
		httputil.WriteJSON(w, status, map[string]any{
			"status":       http.StatusText(status),
			"dependencies": deps,
		})
	}
}
