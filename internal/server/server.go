package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/conduitdb/conduit/internal/config"
	"github.com/conduitdb/conduit/internal/dialect"
	"github.com/conduitdb/conduit/internal/handler"
	"github.com/conduitdb/conduit/internal/server/middleware"
	"github.com/conduitdb/conduit/internal/service"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	MaxBodySize     int64 // bytes
	RateLimit       int   // requests per minute per IP, 0 disables
	APIKeyHeader    string
	DisableAuth     bool // serve everything unauthenticated (dev mode)
	BaseURL         string
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"*"},
		MaxBodySize:     10 * 1024 * 1024, // 10MB
		RateLimit:       100,
		APIKeyHeader:    "X-API-Key",
	}
}

// Server is the top-level HTTP server. It owns the Chi router, the
// connection registry, the configuration store, and the auth service.
type Server struct {
	cfg        Config
	router     chi.Router
	registry   *dialect.Registry
	store      *config.Store
	authSvc    *service.AuthService
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, registry *dialect.Registry, store *config.Store, authSvc *service.AuthService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		registry: registry,
		store:    store,
		authSvc:  authSvc,
		logger:   logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	if s.cfg.MaxBodySize > 0 {
		r.Use(chimw.RequestSize(s.cfg.MaxBodySize))
	}
	if s.cfg.RateLimit > 0 {
		r.Use(middleware.RateLimit(s.cfg.RateLimit))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", s.cfg.APIKeyHeader, "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chimw.Compress(5))

	// --- Health checks (no auth required) ---
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	// --- OpenAPI spec over the declared endpoints (no auth required) ---
	r.Get("/openapi.json", handler.NewOpenAPIHandler(s.store, s.cfg.BaseURL).ServeSpec)

	queryHandler := handler.NewQueryHandler(s.registry, s.store, s.logger)
	batchHandler := handler.NewBatchHandler(s.registry, s.store, s.logger)
	sysHandler := handler.NewSystemHandler(s.store, s.authSvc, s.registry)

	authn := middleware.Authenticate(s.authSvc, s.cfg.APIKeyHeader)

	// --- API routes ---
	r.Route("/api/v1", func(r chi.Router) {

		// Data-plane endpoints: conditional reads and batch upserts.
		// Rate limited per credential on top of the global per-IP limit,
		// so one key cannot starve callers behind the same NAT.
		r.Group(func(r chi.Router) {
			if s.cfg.RateLimit > 0 {
				r.Use(middleware.RateLimitByHeader(s.cfg.APIKeyHeader, s.cfg.RateLimit))
			}
			if !s.cfg.DisableAuth {
				r.Use(authn)
			}
			r.Post("/query/{endpointName}", queryHandler.Execute)
			r.Post("/batch/{endpointName}", batchHandler.Execute)
		})

		// System APIs (management)
		r.Route("/system", func(r chi.Router) {
			// Token exchange is self-authenticating: the body carries
			// the API token being traded for a session JWT.
			r.Post("/session", sysHandler.CreateSession)

			r.Group(func(r chi.Router) {
				if !s.cfg.DisableAuth {
					r.Use(authn)
				}

				// Service management
				r.Get("/service", sysHandler.ListServices)
				r.Post("/service", sysHandler.CreateService)
				r.Get("/service/{serviceName}", sysHandler.GetService)
				r.Delete("/service/{serviceName}", sysHandler.DeleteService)
				r.Get("/service/{serviceName}/test", sysHandler.TestConnection)

				// Endpoint declarations
				r.Get("/query-endpoint", sysHandler.ListQueryEndpoints)
				r.Put("/query-endpoint", sysHandler.SaveQueryEndpoint)
				r.Delete("/query-endpoint/{endpointName}", sysHandler.DeleteQueryEndpoint)
				r.Get("/batch-endpoint", sysHandler.ListBatchEndpoints)
				r.Put("/batch-endpoint", sysHandler.SaveBatchEndpoint)
				r.Delete("/batch-endpoint/{endpointName}", sysHandler.DeleteBatchEndpoint)

				// API token management
				r.Get("/token", sysHandler.ListAPITokens)
				r.Post("/token", sysHandler.CreateAPIToken)
				r.Delete("/token/{tokenId}", sysHandler.RevokeAPIToken)
			})
		})
	})

	s.router = r
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz is a readiness probe. Returns 200 when all registered database
// services are reachable, or 503 if any connection is unhealthy.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	for _, name := range s.registry.ListServices() {
		if err := s.registry.Ping(r.Context(), name); err != nil {
			checks[name] = "error: " + err.Error()
			status = "degraded"
		} else {
			checks[name] = "ok"
		}
	}

	if status != "ok" {
		httpStatus = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then performs a graceful shutdown, draining in-flight
// requests before closing all database connections.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.registry.CloseAll()
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
