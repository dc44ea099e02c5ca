// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/validator-dashboard/internal/logging"
	"github.com/validator-dashboard/internal/models"
	"github.com/validator-dashboard/internal/rollup"
	"github.com/validator-dashboard/internal/service"
	"github.com/validator-dashboard/internal/types"
)

// DashboardServiceInterface defines the dashboard operations the API serves
type DashboardServiceInterface interface {
	ListNetworks() []string
	GetLatest(ctx context.Context, network string) (*models.Snapshot, error)
	GetLatestPerValidator(ctx context.Context, network string) ([]models.Snapshot, error)
	GetAllLatest(ctx context.Context) (map[string]*models.Snapshot, error)
	GetHistory(ctx context.Context, network, rangeToken, since string) (*service.HistoryResult, error)
	GetNormalizedHistory(ctx context.Context, network string, field types.DelegationField, rangeToken, since string) (*service.NormalizedHistory, error)
	GetMonthlyRewards(ctx context.Context, network, windowToken string) (*rollup.MonthlyRollup, error)
	GetOverlay(ctx context.Context, field types.DelegationField, rangeToken string) (*service.OverlayResult, error)
}

// Pinger is a dependency probed by the health endpoint
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	dashboard  DashboardServiceInterface
	deps       map[string]Pinger
	config     *ServerConfig
	logger     *logging.Logger
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RateLimitRPS    int
	RateLimitBurst  int
}

// NewServer creates a new API server instance. deps are the named
// dependencies reported by /health.
func NewServer(config *ServerConfig, dashboard DashboardServiceInterface, deps map[string]Pinger) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		dashboard: dashboard,
		deps:      deps,
		config:    config,
		logger:    logging.WithField(logging.FieldComponent, "api"),
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RateLimitRPS, s.config.RateLimitBurst)

	// request ID first so every later middleware logs with it
	s.router.Use(RequestIDMiddleware)
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(MetricsMiddleware)
	s.router.Use(CORSMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(RateLimitMiddleware(rateLimiter))
	api.Use(CompressionMiddleware)
	s.setupRoutes(api)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:           s.router,
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes. Fixed paths are registered before
// the {network} patterns they would otherwise match.
func (s *Server) setupRoutes(api *mux.Router) {
	api.HandleFunc("/networks", s.handleListNetworks).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/networks/latest", s.handleAllLatest).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/networks/overlay", s.handleOverlay).Methods(http.MethodGet, http.MethodOptions)

	api.HandleFunc("/networks/{network}", s.handleNetworkLatest).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/networks/{network}/history", s.handleHistory).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/networks/{network}/latest", s.handleLatestPerValidator).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/networks/{network}/monthly", s.handleMonthly).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/networks/{network}/usd", s.handleNormalized).Methods(http.MethodGet, http.MethodOptions)
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleHealth reports liveness plus the state of each dependency
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.deps))
	for name, dep := range s.deps {
		if err := dep.Ping(ctx); err != nil {
			checks[name] = "unavailable"
			status = http.StatusServiceUnavailable
			logging.FromContext(r.Context()).WithField("dependency", name).WithError(err).Warn("health check failed")
			continue
		}
		checks[name] = "ok"
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "degraded"
	}
	respondJSON(w, status, map[string]interface{}{
		"status":  overall,
		"service": "validator-dashboard",
		"checks":  checks,
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Infof("Starting API server on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server...")
	return s.httpServer.Shutdown(ctx)
}
