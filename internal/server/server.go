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

	"github.com/parcelbay/parcelbay/internal/auth"
	"github.com/parcelbay/parcelbay/internal/handler"
	"github.com/parcelbay/parcelbay/internal/model"
	"github.com/parcelbay/parcelbay/internal/ratelimit"
	"github.com/parcelbay/parcelbay/internal/server/middleware"
	"github.com/parcelbay/parcelbay/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	SessionSecret   string
	SessionTTL      time.Duration
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"*"},
		SessionTTL:      24 * time.Hour,
	}
}

// Server is the top-level HTTP server for ParcelBay. It owns the Chi router,
// the persistence store, the session and API key authenticators, and the
// rate limit counters.
type Server struct {
	cfg        Config
	router     chi.Router
	store      *store.Store
	limiter    ratelimit.Store
	sessions   *auth.SessionManager
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, st *store.Store, limiter ratelimit.Store, logger *slog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		store:    st,
		limiter:  limiter,
		sessions: auth.NewSessionManager(cfg.SessionSecret, cfg.SessionTTL),
		logger:   logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	authn := &middleware.Authenticator{
		Sessions: auth.NewSessionAuthenticator(s.sessions, s.store),
		Keys:     auth.NewAPIKeyAuthenticator(s.store),
		Logger:   s.logger,
	}
	keyManager := auth.NewKeyManager(s.store)

	sessionHandler := handler.NewSessionHandler(s.store, s.sessions)
	userHandler := handler.NewUserHandler(s.store)
	keyHandler := handler.NewKeyHandler(keyManager)
	packageHandler := handler.NewPackageHandler(s.store)
	inventoryHandler := handler.NewInventoryHandler(s.store)
	manifestHandler := handler.NewManifestHandler(s.store)

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-KCD-API-Key", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chimw.Compress(5))
	r.Use(middleware.RateLimit(s.limiter, ratelimit.TierGeneral))

	// --- Health checks (no auth required) ---
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	// --- API routes ---
	r.Route("/api/v1", func(r chi.Router) {

		// Session endpoints. Login burns auth-tier quota only on failure so
		// a busy legitimate client is never locked out by its own successes.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitFailures(s.limiter, ratelimit.TierAuth))
			r.Post("/session", sessionHandler.Login)
		})
		r.Delete("/session", sessionHandler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(s.limiter, ratelimit.TierPasswordReset))
			r.Post("/password-reset", sessionHandler.RequestPasswordReset)
		})

		// Staff surface: sessions or warehouse keys.
		r.Route("/staff", func(r chi.Router) {
			r.Use(authn.Require(auth.FamilyStaff))

			// Staff account management is admin-only.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRoles(model.RoleAdmin))
				r.Post("/users", userHandler.CreateUser)
				r.Get("/users", userHandler.ListUsers)
				r.Delete("/users/{userId}", userHandler.DeactivateUser)

				// API key lifecycle.
				r.Post("/api-keys", keyHandler.IssueKey)
				r.Get("/api-keys", keyHandler.ListKeys)
				r.Get("/api-keys/courier/{courierCode}", keyHandler.KeyInfo)
				r.Delete("/api-keys/{keyId}", keyHandler.RevokeKey)
			})

			// Warehouse operations: admins and warehouse staff, or a
			// warehouse key carrying the matching permission.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAccess(
					[]string{model.RoleAdmin, model.RoleWarehouse},
					[]string{model.PermPackagesRead},
				))
				r.Get("/packages", packageHandler.ListPackages)
				r.Get("/packages/{trackingCode}", packageHandler.GetPackage)
			})
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAccess(
					[]string{model.RoleAdmin, model.RoleWarehouse},
					[]string{model.PermPackagesWrite},
				))
				r.Post("/packages", packageHandler.CreatePackage)
				r.Patch("/packages/{trackingCode}/status", packageHandler.UpdateStatus)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRoles(model.RoleAdmin, model.RoleWarehouse))
				r.Get("/inventory", inventoryHandler.ListInventory)
				r.Post("/inventory", inventoryHandler.CreateItem)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RateLimit(s.limiter, ratelimit.TierUpload))
					r.Post("/inventory/bulk", inventoryHandler.BulkUpload)
				})

				r.Post("/manifests", manifestHandler.CreateManifest)
				r.Post("/manifests/{manifestId}/dispatch", manifestHandler.DispatchManifest)
			})
		})

		// Customer surface: session only, scoped to the caller's own data.
		r.Route("/customer", func(r chi.Router) {
			r.Use(authn.Require(auth.FamilyCustomer))
			r.Use(middleware.RequireRoles(model.RoleCustomer))

			r.Get("/packages", packageHandler.ListPackages)
			r.Get("/packages/{trackingCode}", packageHandler.GetPackage)
		})

		// Courier surface: API key only, permission-gated per endpoint.
		r.Route("/courier", func(r chi.Router) {
			r.Use(middleware.RateLimitAPIKey(ratelimit.TierAPIKey))
			r.Use(authn.Require(auth.FamilyCourier))

			r.With(middleware.RequirePermissions(model.PermManifestsRead)).
				Get("/manifests", manifestHandler.ListCourierManifests)
			r.With(middleware.RequirePermissions(model.PermManifestsWrite)).
				Post("/manifests/{manifestId}/confirm", manifestHandler.ConfirmManifest)
			r.With(middleware.RequirePermissions(model.PermPackagesWrite)).
				Patch("/packages/{trackingCode}/status", packageHandler.UpdateStatus)
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

// handleReadyz is a readiness probe. Returns 200 when the backing store is
// reachable, or 503 when it is not.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	if err := s.store.Ping(r.Context()); err != nil {
		checks["store"] = "error: " + err.Error()
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
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
// requests before closing the store.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Listen for shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start server in background goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	if err := s.store.Close(); err != nil {
		s.logger.Error("closing store", "error", err)
	}
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
