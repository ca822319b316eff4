package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() http.Handler {
	r := chi.NewRouter()

	// Executed in order: id first so logs can carry it
	r.Use(middleware.RequestID)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(middleware.Timeout(10 * time.Second))

	r.NotFound(s.app.APIHandler.NotFoundHandler)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/healthz", s.app.APIHandler.HealthHandler)
	r.Get("/version", s.app.APIHandler.VersionHandler)
	r.Get("/status", s.app.StatusHandler.GetStatusHandler)
	r.Post("/jobs/{name}/trigger", s.app.JobsHandler.TriggerJobHandler)

	return r
}
