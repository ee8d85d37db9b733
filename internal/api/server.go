// Package api exposes the FloodWatch HTTP surface: assessment endpoints,
// ward zoning, model lifecycle, and alert-rule management.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/urbanrisk/floodwatch/internal/alerts"
	"github.com/urbanrisk/floodwatch/internal/domain"
	"github.com/urbanrisk/floodwatch/internal/engine"
	"github.com/urbanrisk/floodwatch/internal/observability"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, eng *engine.Engine, alertEngine *alerts.Engine, tracker *alerts.Tracker, provider domain.ObservationProvider, metrics *observability.Metrics, version string) *Server {
	handler := NewHandler(repo, cache, bus, eng, alertEngine, tracker, provider, metrics, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health and observability endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	router.Handle("/metrics", promhttp.Handler())

	// Assessment
	router.Post("/assess/ward/{code}", handler.AssessWard)
	router.Post("/assess/custom", handler.AssessCustom)
	router.Get("/assess/all-wards", handler.AssessAllWards)
	router.Get("/assessments/{id}", handler.GetAssessment)

	// Ward zoning and weather
	router.Get("/wards/zones", handler.WardZones)
	router.Get("/weather/current/{code}", handler.CurrentWeather)

	// Model lifecycle
	router.Get("/models/info", handler.ModelInfo)
	router.Post("/models/retrain", handler.TriggerRetrain)

	// Alert rule management
	router.Get("/alerts/rules", handler.ListAlertRules)
	router.Post("/alerts/rules", handler.CreateAlertRule)
	router.Get("/alerts/rules/{id}", handler.GetAlertRule)
	router.Put("/alerts/rules/{id}", handler.UpdateAlertRule)
	router.Delete("/alerts/rules/{id}", handler.DeleteAlertRule)
	router.Post("/alerts/rules/reload", handler.ReloadAlertRules)

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
