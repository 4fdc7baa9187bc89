// Package server wires the chi router, the middleware chain and the HTTP
// lifecycle for the safemed API. It owns startup, graceful shutdown and the
// development-only profiling listener.
package server

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/safemed/safemed-api/config"
	"github.com/safemed/safemed-api/data"
	"github.com/safemed/safemed-api/handlers"
	"github.com/safemed/safemed-api/health"
	"github.com/safemed/safemed-api/interfaces"
	"github.com/safemed/safemed-api/logging"
	"github.com/safemed/safemed-api/metrics"
	"github.com/safemed/safemed-api/profile"
	"github.com/safemed/safemed-api/validation"
)

// Server bundles the HTTP server, the router and the wired handler dependencies
type Server struct {
	server        *http.Server
	router        chi.Router
	dataContainer *data.DataContainer
	config        *config.Config
	handler       interfaces.HTTPHandler
	healthChecker interfaces.HealthChecker
}

// NewServer creates a new server instance with all handler dependencies wired
func NewServer(cfg *config.Config, dataContainer *data.DataContainer) *Server {
	router := chi.NewRouter()

	validator := validation.NewDataValidator()
	normalizer := profile.NewNormalizer()
	healthChecker := health.NewHealthCheckerForSchedule(dataContainer, cfg.ReloadSchedule)
	handler := handlers.NewHTTPHandler(dataContainer, validator, normalizer, healthChecker)

	server := &Server{
		server: &http.Server{
			Handler:      router,
			Addr:         cfg.Address + ":" + cfg.Port,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		router:        router,
		dataContainer: dataContainer,
		config:        cfg,
		handler:       handler,
		healthChecker: healthChecker,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware installs the middleware chain in request order
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(BlockDirectAccessMiddleware) // Put BEFORE RealIPMiddleware to see original RemoteAddr
	s.router.Use(RealIPMiddleware)
	s.router.Use(logging.LoggingMiddleware(logging.DefaultLoggingService.Logger))
	s.router.Use(middleware.RedirectSlashes)
	s.router.Use(middleware.Recoverer)
	s.router.Use(RequestSizeMiddleware(s.config))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	s.router.Use(middleware.Compress(5, "application/json"))
	s.router.Use(metrics.Metrics)
	s.router.Use(RateLimitHandler)
}

// setupRoutes registers the service endpoints
func (s *Server) setupRoutes() {
	s.router.Get("/", s.handler.Index)
	s.router.Get("/health", s.handler.HealthCheck)
	s.router.Handle("/metrics", promhttp.Handler())

	// Versioned assessment API
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/drugs", s.handler.ListDrugs)
		r.Get("/drugs/{drugName}", s.handler.DrugInfo)
		r.Post("/assess", s.handler.AssessDrug)
		r.Post("/quick-check", s.handler.QuickCheck)
	})
}

// Start runs the server and blocks until it exits
func (s *Server) Start() error {
	// pprof only listens in development
	if s.config.Env == "dev" {
		s.startProfilingServer()
	}

	logging.Info(fmt.Sprintf("Starting server at: %s:%s", s.config.Address, s.config.Port))
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests before closing the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	if err := s.server.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
		// Graceful drain failed, close the listeners outright
		if err := s.server.Close(); err != nil {
			logging.Error("Server close error", "error", err)
			return err
		}
	}

	// Give response writers a moment to flush before the process exits
	logging.Info("Waiting for ongoing requests to complete...")
	time.Sleep(2 * time.Second)

	logging.Info("Server shutdown complete")
	return nil
}

// startProfilingServer exposes pprof on a localhost-only port
func (s *Server) startProfilingServer() {
	go func() {
		fmt.Println("Profiling server started at http://localhost:6060/debug/pprof/")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			fmt.Println("Profiling server failed: ", err)
		}
	}()
}

// HealthData represents a point-in-time health snapshot for operational tooling
type HealthData struct {
	Status        string `json:"status"`
	UptimeSeconds int    `json:"uptime_seconds"`
	MemoryUsageMB int    `json:"memory_usage_mb"`
	LastUpdate    string `json:"last_update"`
	NextUpdate    string `json:"next_update"`
	IsUpdating    bool   `json:"is_updating"`
	DrugCount     int    `json:"drug_count"`
	AliasCount    int    `json:"alias_count"`
}

// GetHealthData returns current health statistics
func (s *Server) GetHealthData() HealthData {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	status, _, _ := s.healthChecker.HealthCheck()

	return HealthData{
		Status:        status,
		UptimeSeconds: int(time.Since(s.dataContainer.GetServerStartTime()).Seconds()),
		MemoryUsageMB: int(m.Alloc / 1024 / 1024),
		LastUpdate:    s.dataContainer.GetLastUpdated().Format(time.RFC3339),
		NextUpdate:    s.healthChecker.CalculateNextUpdate().Format(time.RFC3339),
		IsUpdating:    s.dataContainer.IsUpdating(),
		DrugCount:     len(s.dataContainer.GetDrugs()),
		AliasCount:    len(s.dataContainer.GetAliasIndex()),
	}
}
