package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xinstan/xinstan/internal/api/handler"
	mw "github.com/xinstan/xinstan/internal/api/middleware"
)

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(
	proxyHandler *handler.ProxyHandler,
	resolveHandler *handler.ResolveHandler,
	healthHandler *handler.HealthHandler,
	requestTimeout time.Duration,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CleanPath) // Normalize paths (e.g., //ready -> /ready)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(middleware.Timeout(requestTimeout))

	// CORS for browser clients; the side-channel headers must be exposed
	r.Use(mw.CORS)

	// Health endpoints
	r.Get("/health", healthHandler.Live)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	// API v1 (no auth model: abuse is bounded by the URL allow-lists)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/proxy", proxyHandler.Proxy)
		r.Post("/resolve", resolveHandler.Resolve)
	})

	return r
}
