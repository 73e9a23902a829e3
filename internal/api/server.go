// Package api serves the confluence JSON API.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	handler "github.com/newthinker/confluence/internal/api/handler/api"
	"github.com/newthinker/confluence/internal/api/job"
	"github.com/newthinker/confluence/internal/api/middleware"
	"github.com/newthinker/confluence/internal/api/response"
	"github.com/newthinker/confluence/internal/metrics"
	"github.com/newthinker/confluence/internal/storage/alerts"
)

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	APIKey      string
	CORSOrigins []string
	// MetricsPath serves Prometheus metrics when set and a registry is given
	MetricsPath string
	MaxJobs     int
	JobTTL      time.Duration

	Analysis handler.Defaults
	Backtest handler.BacktestDefaults
}

// Dependencies are the services behind the API. Monitor, Alerts and Metrics
// may be nil.
type Dependencies struct {
	Analyzer handler.Analyzer
	Profiles handler.Profiles
	Monitor  handler.Monitor
	Runner   handler.Runner
	Alerts   alerts.Store
	Metrics  *metrics.Registry
}

// Server represents the HTTP server for confluence
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	handler    http.Handler
	jobs       *job.Store
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Analyzer == nil || deps.Profiles == nil || deps.Runner == nil {
		return nil, errors.New("api: analyzer, profiles and runner are required")
	}
	if cfg.MaxJobs <= 0 {
		cfg.MaxJobs = 100
	}

	s := &Server{
		logger: logger,
		mux:    http.NewServeMux(),
		jobs:   job.NewStore(cfg.MaxJobs, cfg.JobTTL),
	}
	s.setupRoutes(cfg, deps)

	var h http.Handler = s.mux
	h = middleware.APIKeyAuth(cfg.APIKey, "/api/health", cfg.MetricsPath)(h)
	h = metrics.HTTPMiddleware(deps.Metrics)(h)
	h = metrics.LoggingMiddleware(logger)(h)
	h = corsHandler(cfg.CORSOrigins).Handler(h)
	s.handler = h

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func corsHandler(origins []string) *cors.Cors {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	})
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config, deps Dependencies) {
	analysis := handler.NewAnalysisHandler(deps.Analyzer, deps.Profiles, deps.Monitor, cfg.Analysis)
	backtests := handler.NewBacktestHandler(s.jobs, deps.Runner, deps.Profiles, cfg.Backtest, deps.Metrics, s.logger)

	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/analysis", analysis.Analyze)
	s.mux.HandleFunc("GET /api/monitor", analysis.Latest)
	s.mux.HandleFunc("GET /api/profiles", analysis.ListProfiles)
	s.mux.HandleFunc("GET /api/profiles/{name}", analysis.GetProfile)
	s.mux.HandleFunc("POST /api/backtest", backtests.Create)
	s.mux.HandleFunc("GET /api/backtest", backtests.List)
	s.mux.HandleFunc("GET /api/backtest/{id}", backtests.GetStatus)

	if deps.Alerts != nil {
		history := handler.NewAlertsHandler(deps.Alerts)
		s.mux.HandleFunc("GET /api/alerts", history.List)
		s.mux.HandleFunc("GET /api/alerts/{id}", history.Get)
	}

	if deps.Metrics != nil && cfg.MetricsPath != "" {
		s.mux.Handle("GET "+cfg.MetricsPath, promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{}))
	}
}

// Handler returns the full middleware-wrapped handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"jobs":   len(s.jobs.List()),
	})
}
