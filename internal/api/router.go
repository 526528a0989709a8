package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/homesec-core/internal/panel"
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

	// Status page (embedded via go:embed)
	r.Handle("/panel/*", http.StripPrefix("/panel", panel.Handler(s.panelDir)))
	r.Handle("/panel", http.RedirectHandler("/panel/", http.StatusMovedPermanently))

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/system", s.handleSystem)

		r.Route("/occupancy", func(r chi.Router) {
			r.Get("/", s.handleGetOccupancy)
			r.Put("/max", s.handleSetMaxPeople)
		})

		r.Get("/actuators", s.handleGetActuators)
		r.Post("/lighting", s.handleLighting)
		r.Post("/humidifier", s.handleHumidifier)
		r.Post("/door", s.handleDoor)
		r.Post("/alarm/blink", s.handleBlink)

		r.Get("/ambient", s.handleGetAmbient)
		r.Get("/audit", s.handleListAudit)

		r.Route("/otp", func(r chi.Router) {
			r.Post("/verify", s.handleVerifyCode)
			r.Get("/qr", s.handleCodeQR)
		})

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"mqtt":    s.linkState(),
	})
}
