// Package server wires the HTTP layer together: it owns the history
// database, builds the services and handlers, mounts the routes and runs the
// listener until SIGINT or SIGTERM.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/code-executor/internal/auth"
	"github.com/sakif/code-executor/internal/config"
	"github.com/sakif/code-executor/internal/executor"
	"github.com/sakif/code-executor/internal/handler"
	"github.com/sakif/code-executor/internal/middleware"
	sqliteRepo "github.com/sakif/code-executor/internal/repository/sqlite"
	"github.com/sakif/code-executor/internal/service"
)

// Server represents the HTTP server and all its dependencies.
// The database is owned by the server and closed on shutdown; the executor
// is owned by the caller.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	exec   executor.Executor
}

// New opens the history database and builds the router.
func New(cfg config.Config, exec executor.Executor, logger *slog.Logger) (*Server, error) {
	if exec == nil {
		return nil, errors.New("server: executor is required")
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		exec:   exec,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes mounts:
//
//	GET  /healthz              liveness and active backend
//	POST /auth/token           operator password -> JWT
//	POST /api/execute          run code, returns the result record
//	GET  /api/executions       history, newest first
//	GET  /api/executions/{id}  one history record
//
// The /api routes require a token when JWT_SECRET is set. Execute and token
// requests are rate limited per client IP.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	var tokens *auth.TokenService
	if s.config.AuthEnabled() {
		var err error
		tokens, err = auth.NewTokenService(s.config.JWTSecret)
		if err != nil {
			return fmt.Errorf("creating token service: %w", err)
		}
	} else {
		s.logger.Warn("JWT_SECRET not set, API routes are unauthenticated")
	}

	limiter := middleware.NewRateLimiter(s.config.RateLimitRPS, s.config.RateLimitBurst, s.logger)

	executions := service.NewExecutionService(s.exec, s.db, service.Limits{
		DefaultTimeout: s.config.Process.DefaultTimeout,
		MaxTimeout:     s.config.MaxTimeout,
		MaxCodeBytes:   s.config.MaxCodeBytes,
		MaxConcurrent:  s.config.MaxConcurrent,
	}, s.logger)
	authService := service.NewAuthService(tokens, auth.NewPasswordService(), s.config.AdminPasswordHash, s.logger)

	executeHandler := handler.NewExecuteHandler(executions, s.logger)
	tokenHandler := handler.NewTokenHandler(authService, s.logger)
	healthHandler := handler.NewHealthHandler(s.config.Backend, s.db.Ping, s.logger)

	s.router.Get("/healthz", healthHandler.HandleHealth)
	s.router.With(limiter.Handler).Post("/auth/token", tokenHandler.HandleToken)

	s.router.Route("/api", func(r chi.Router) {
		if tokens != nil {
			r.Use(auth.RequireAuth(tokens))
		}
		r.With(limiter.Handler).Post("/execute", executeHandler.HandleExecute)
		r.Get("/executions", executeHandler.HandleList)
		r.Get("/executions/{id}", executeHandler.HandleGetByID)
	})

	return nil
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests and
// closes the database.
func (s *Server) Start() error {
	defer s.db.Close()

	// An execute request may legitimately take the full max timeout plus
	// the termination grace periods.
	writeTimeout := s.config.MaxTimeout + 15*time.Second

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("backend", s.config.Backend),
			slog.String("database", s.config.DBPath),
			slog.Bool("auth", s.config.AuthEnabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
