package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/gray-logic-eltako/internal/bridges/eltako"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Prometheus scrape endpoint
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	// WebSocket event stream
	r.Get("/ws", s.handleWebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)
		r.Get("/profiles", s.handleListProfiles)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)

			r.Route("/{address}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Post("/command", s.handleDeviceCommand)
			})
		})

		r.Route("/discovery", func(r chi.Router) {
			r.Get("/", s.handleListDiscovery)
			r.Delete("/{address}", s.handleForgetDiscovered)
		})

		r.Get("/audit", s.handleListAudit)
	})

	return r
}

// handleHealth returns the bridge health, with 503 when the serial
// session is not usable.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	health := s.bridge.Health()
	status := http.StatusOK
	if health.Status != eltako.HealthHealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}
