// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer — it connects handlers, middleware, and
// routes. It decides which URL patterns map to which handler functions, what
// middleware runs on which routes, and how the server starts and stops
// gracefully.
//
// WHY SEPARATE FROM main.go?
// Keeping server setup in its own package makes it:
// - Testable (tests create a server with an in-memory DB, no main needed)
// - Clean (main.go stays minimal — read config, start the server)
//
// DEPENDENCY INJECTION FLOW:
// main.go builds a Config and a logger; Server.New() assembles:
//   sqlite.DB → TokenService/PasswordService → AuthService/NoteService
//   → AuthHandler/NoteHandler → routes
//
// This is the "composition root" pattern — all dependencies are wired in one
// place rather than scattered across the codebase.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ckyeon/eisenhower-matrix/internal/auth"
	"github.com/ckyeon/eisenhower-matrix/internal/handler"
	"github.com/ckyeon/eisenhower-matrix/internal/middleware"
	sqliteRepo "github.com/ckyeon/eisenhower-matrix/internal/repository/sqlite"
	"github.com/ckyeon/eisenhower-matrix/internal/service"
)

// Config holds server configuration.
type Config struct {
	Port      int
	DBPath    string // path to the SQLite database file, or ":memory:" in tests
	JWTSecret string // HMAC signing key for access tokens; required
}

// Server owns the router and the database connection. The DB is closed
// during graceful shutdown in Start(); tests that never call Start() close
// it via Close().
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New creates a Server with the full dependency chain assembled:
//
//  1. Open the database (sqlite.New runs migrations)
//  2. Build the auth primitives (TokenService, PasswordService)
//  3. Build the service layer on the repository interfaces
//  4. Build the handlers and wire them to routes
//
// Each layer only receives what it needs: services get repository
// interfaces (not the concrete sqlite.DB), handlers get services (never
// the repository or DB).
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// POST   /auth/signup             → create an account
// POST   /auth/login              → issue access + refresh tokens
// POST   /auth/refresh            → new access token from a refresh token
// POST   /auth/logout             → revoke the refresh token
// GET    /notes                   → list notes (?archived=true, ?all=true)  [auth]
// POST   /notes                   → create note                             [auth]
// GET    /notes/{id}              → get single note                         [auth]
// PUT    /notes/{id}              → partial update / move / archive         [auth]
// DELETE /notes/{id}              → delete note                             [auth]
// PUT    /notes/reorder/batch     → atomic batch reorder                    [auth]
//
// /auth/refresh stays outside the auth middleware: it is what clients call
// when their access token has already expired.
//
// MIDDLEWARE ORDER MATTERS:
// Middleware executes in the order it's added:
// 1. RequestID — assigns unique ID to each request (for tracing)
// 2. RealIP — extracts real client IP from proxy headers
// 3. Recoverer — catches panics and returns 500 instead of crashing
// 4. Logger — logs each request with timing info
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()

	// DEPENDENCY CHAIN:
	//   s.db (sqlite.DB) implements both repository.UserRepository and
	//   repository.NoteRepository; services receive the interfaces.
	authService := service.NewAuthService(s.db, tokens, passwords, s.logger)
	noteService := service.NewNoteService(s.db, s.logger)

	authHandler := handler.NewAuthHandler(authService, s.logger)
	noteHandler := handler.NewNoteHandler(noteService, s.logger)

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.HandleSignup)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/refresh", authHandler.HandleRefresh)
		r.Post("/logout", authHandler.HandleLogout)
	})

	s.router.Route("/notes", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))
		r.Get("/", noteHandler.HandleList)
		r.Post("/", noteHandler.HandleCreate)
		// chi matches literal segments before {id}, so this never
		// collides with PUT /notes/{id}.
		r.Put("/reorder/batch", noteHandler.HandleReorder)
		r.Get("/{id}", noteHandler.HandleGet)
		r.Put("/{id}", noteHandler.HandleUpdate)
		r.Delete("/{id}", noteHandler.HandleDelete)
	})

	return nil
}

// Handler exposes the configured router. Tests mount it on httptest.Server
// instead of binding a real port.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database connection. Start() does this itself during
// graceful shutdown; Close exists for callers that never Start().
func (s *Server) Close() error {
	return s.db.Close()
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the database connection (flushes WAL, releases file lock)
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
