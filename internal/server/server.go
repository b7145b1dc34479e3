// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer: it connects repositories, services,
// handlers and middleware, and owns their lifetimes. main stays minimal.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → Server.New()
//	  sqlite.DB ───────────────┬→ AuthService (users, sessions) ─→ AuthHandler, RequireSession
//	  items backend ───────────┴→ Collections ─→ ItemHandler
//	                                  └─ Subscribe ─→ realtime.Hub ─→ /api/items/stream
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/manhwee/internal/auth"
	"github.com/sakif/manhwee/internal/config"
	"github.com/sakif/manhwee/internal/handler"
	"github.com/sakif/manhwee/internal/middleware"
	"github.com/sakif/manhwee/internal/realtime"
	"github.com/sakif/manhwee/internal/repository"
	"github.com/sakif/manhwee/internal/repository/jsonfile"
	"github.com/sakif/manhwee/internal/repository/memory"
	sqliteRepo "github.com/sakif/manhwee/internal/repository/sqlite"
	"github.com/sakif/manhwee/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection. Start closes it after the HTTP
// server has drained.
type Server struct {
	router      *chi.Mux
	config      *config.Config
	logger      *slog.Logger
	db          *sqliteRepo.DB
	collections *service.Collections
}

// New creates a new Server with the given config.
//
// Users and sessions always live in SQLite. Items go to the backend named
// by cfg.StorageBackend.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := OpenDB(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	items, err := OpenItems(cfg, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating token service: %w", err)
	}
	authService := service.NewAuthService(db, db, tokens, auth.NewPasswordService(), cfg.SessionTTL, logger)

	if cfg.DemoEnabled() {
		if _, err := authService.EnsureDemoUser(context.Background(), cfg.DemoUsername, cfg.DemoEmail, cfg.DemoPassword); err != nil {
			db.Close()
			return nil, fmt.Errorf("seeding demo user: %w", err)
		}
	}

	s := &Server{
		router:      chi.NewRouter(),
		config:      cfg,
		logger:      logger,
		db:          db,
		collections: service.NewCollections(items, logger),
	}

	s.setupRoutes(authService)
	return s, nil
}

// OpenDB creates the database directory if needed, then opens and migrates
// the database.
func OpenDB(dbPath string) (*sqliteRepo.DB, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sqliteRepo.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// OpenItems returns the item backend cfg asks for.
func OpenItems(cfg *config.Config, db *sqliteRepo.DB) (repository.ItemRepository, error) {
	switch cfg.StorageBackend {
	case config.BackendSQLite:
		return db, nil
	case config.BackendFile:
		store, err := jsonfile.New(cfg.DataFile)
		if err != nil {
			return nil, fmt.Errorf("opening data file: %w", err)
		}
		return store, nil
	case config.BackendMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz                      → liveness
// POST   /auth/signup                  → register
// POST   /auth/login                   → acquire session
// POST   /auth/logout                  → invalidate session
// GET    /auth/github/login            → GitHub OAuth (when configured)
// GET    /auth/github/callback
// GET    /api/me                       → current user
// GET    /api/items                    → list through the view pipeline
// POST   /api/items                    → create
// GET    /api/items/stream             → WebSocket snapshots
// GET    /api/items/{id}               → get
// PUT    /api/items/{id}               → update
// DELETE /api/items/{id}               → delete
// PUT    /api/items/{id}/cover-offset  → set cover offset
// GET    /api/stats                    → statistics
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns unique ID to each request (for tracing)
// 2. RealIP: extracts real client IP from proxy headers
// 3. Logger: logs each request with timing info and the request ID
// 4. Recoverer: catches panics and returns 500 instead of crashing
func (s *Server) setupRoutes(authService *service.AuthService) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/healthz", handler.HandleHealth)

	var github *auth.GitHubProvider
	if s.config.GitHubEnabled() {
		github = auth.NewGitHubProvider(s.config.GitHubClientID, s.config.GitHubClientSecret, s.config.GitHubCallbackURL)
	} else {
		s.logger.Info("GitHub OAuth not configured; /auth/github routes are disabled")
	}

	hub := realtime.NewHub(s.logger)
	s.collections.Subscribe(hub.Publish)
	authService.OnRevoke(func(id string) { hub.CloseSession(id) })

	authHandler := handler.NewAuthHandler(authService, github, s.logger)
	itemHandler := handler.NewItemHandler(s.collections, hub, s.logger)

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.HandleSignup)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
		r.Get("/github/login", authHandler.HandleGitHubLogin)
		r.Get("/github/callback", authHandler.HandleGitHubCallback)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireSession(authService, "/login"))

		r.Get("/me", authHandler.HandleMe)
		r.Get("/stats", itemHandler.HandleStats)

		r.Route("/items", func(r chi.Router) {
			r.Get("/", itemHandler.HandleList)
			r.Post("/", itemHandler.HandleCreate)
			r.Get("/stream", itemHandler.HandleStream)
			r.Get("/{id}", itemHandler.HandleGetByID)
			r.Put("/{id}", itemHandler.HandleUpdate)
			r.Delete("/{id}", itemHandler.HandleDelete)
			r.Put("/{id}/cover-offset", itemHandler.HandleSetCoverOffset)
		})
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases everything New opened.
func (s *Server) Close() error {
	s.collections.Close()
	return s.db.Close()
}

// Start starts the HTTP server and blocks until SIGINT/SIGTERM or ctx is
// done, then shuts down gracefully:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Close the database connection
func (s *Server) Start(ctx context.Context) error {
	defer s.Close()

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", s.config.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: it would cut off long-lived WebSocket streams.
		IdleTimeout: 60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.String("storage", s.config.StorageBackend),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
