// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the wiring layer. It connects stores, services, handlers,
// middleware and routes, and decides:
//   - Which store backs the repositories (DB_DRIVER)
//   - Which URL patterns map to which handler functions
//   - What middleware runs on which routes
//   - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → store (sqlite | postgres)
//	              → BcryptHasher → ThrottledHasher
//	              → TokenService
//	              → LoginLimiter (only with REDIS_ADDR)
//	store + hasher + tokens → AuthService, UserService, TodoService → handlers
//
// This is the "composition root" pattern: every dependency is built here
// and nowhere else.
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
	"github.com/go-chi/httprate"
	"github.com/redis/go-redis/v9"

	"github.com/sakif/todo-server/internal/auth"
	"github.com/sakif/todo-server/internal/config"
	"github.com/sakif/todo-server/internal/handler"
	"github.com/sakif/todo-server/internal/middleware"
	"github.com/sakif/todo-server/internal/repository"
	"github.com/sakif/todo-server/internal/repository/postgres"
	"github.com/sakif/todo-server/internal/repository/sqlite"
	"github.com/sakif/todo-server/internal/service"
	"github.com/sakif/todo-server/internal/throttle"
)

// store is whichever database DB_DRIVER selected, seen through the
// repository interfaces.
type store struct {
	users repository.UserRepository
	todos repository.TodoRepository
	close func() error
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database and the optional Redis client. Close releases
// both; Start calls it during graceful shutdown.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	store  *store
	redis  *redis.Client
}

// New builds the whole dependency graph from cfg.
//
// Startup fails on a bad store, a bad hash cost or bad JWT settings. An
// unreachable Redis only disables the login lockout.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  st,
	}

	if err := s.setupRoutes(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		pg, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		return &store{users: pg.Users(), todos: pg.Todos(), close: pg.Close}, nil

	case config.DriverSQLite:
		db, err := sqlite.New(ctx, cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		return &store{users: db.Users(), todos: db.Todos(), close: db.Close}, nil
	}
	return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz                 → liveness
// POST   /api/auth/register       → create account        (rate limited)
// POST   /api/auth/login          → issue JWT             (rate limited)
// GET    /api/auth/me             → current profile       (auth)
// GET    /api/users               → list users            (auth)
// GET    /api/users/{id}          → get user              (auth)
// GET    /api/users/email/{email} → get user by email     (auth)
// DELETE /api/users/{id}          → delete own account    (auth)
// GET    /api/todos               → list own todos        (auth)
// POST   /api/todos               → create todo           (auth)
// GET    /api/todos/{id}          → get todo              (auth)
// PUT    /api/todos/{id}          → update todo           (auth)
// DELETE /api/todos/{id}          → delete todo           (auth)
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID: assigns a unique ID to each request (for tracing)
//  2. RealIP: extracts the client IP from proxy headers (httprate keys on it)
//  3. Logger: logs each request with timing info and the request ID
//  4. Recoverer: catches panics and returns 500 instead of crashing
//  5. SecureHeaders: response hardening headers
func (s *Server) setupRoutes(ctx context.Context) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.SecureHeaders())

	// === Auth building blocks ===
	bcryptHasher, err := auth.NewBcryptHasher(s.config.HashWorkFactor)
	if err != nil {
		return fmt.Errorf("creating password hasher: %w", err)
	}
	hasher := auth.NewThrottledHasher(bcryptHasher, s.config.HashMaxConcurrency)

	tokens, err := auth.NewTokenService(s.config.JWT)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	var authOpts []service.AuthOption
	if s.config.RedisAddr != "" {
		client, err := throttle.Connect(ctx, s.config.RedisAddr)
		if err != nil {
			s.logger.Warn("redis unavailable, login lockout disabled",
				slog.String("addr", s.config.RedisAddr),
				slog.String("error", err.Error()),
			)
		} else {
			s.redis = client
			limiter := throttle.NewLoginLimiter(client, s.config.LoginMaxAttempts, s.config.LoginLockoutWindow)
			authOpts = append(authOpts, service.WithLoginLimiter(limiter))
		}
	}

	// === Services and handlers ===
	// The handler never touches the database; the service never touches HTTP.
	authService := service.NewAuthService(s.store.users, hasher, tokens, s.logger, authOpts...)
	userService := service.NewUserService(s.store.users, s.logger)
	todoService := service.NewTodoService(s.store.todos, s.logger)

	authHandler := handler.NewAuthHandler(authService, s.logger)
	userHandler := handler.NewUserHandler(userService, s.logger)
	todoHandler := handler.NewTodoHandler(todoService, s.logger)

	s.router.Get("/healthz", handler.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// === Public auth routes ===
		r.Group(func(r chi.Router) {
			if s.config.AuthRateLimit > 0 {
				r.Use(httprate.Limit(
					s.config.AuthRateLimit,
					time.Minute,
					httprate.WithKeyFuncs(httprate.KeyByIP),
					httprate.WithLimitHandler(rateLimited),
				))
			}
			r.Post("/auth/register", authHandler.HandleRegister)
			r.Post("/auth/login", authHandler.HandleLogin)
		})

		// === Protected routes ===
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Get("/auth/me", authHandler.HandleMe)

			r.Route("/users", func(r chi.Router) {
				r.Get("/", userHandler.HandleList)
				r.Get("/email/{email}", userHandler.HandleGetByEmail)
				r.Get("/{id}", userHandler.HandleGet)
				r.Delete("/{id}", userHandler.HandleDelete)
			})

			r.Route("/todos", func(r chi.Router) {
				r.Get("/", todoHandler.HandleList)
				r.Post("/", todoHandler.HandleCreate)
				r.Get("/{id}", todoHandler.HandleGet)
				r.Put("/{id}", todoHandler.HandleUpdate)
				r.Delete("/{id}", todoHandler.HandleDelete)
			})
		})
	})

	return nil
}

// rateLimited answers requests over the per-IP auth budget in the same JSON
// shape as every other error.
func rateLimited(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"error":"rate_limited","message":"too many requests, slow down"}` + "\n"))
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database and Redis connections.
func (s *Server) Close() error {
	var errs []error
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing redis: %w", err))
		}
	}
	if s.store != nil {
		if err := s.store.close(); err != nil {
			errs = append(errs, fmt.Errorf("closing database: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Close the database (flushes WAL, releases the file lock) and Redis
func (s *Server) Start() error {
	defer func() {
		if err := s.Close(); err != nil {
			s.logger.Error("closing resources", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("driver", s.config.DBDriver),
			slog.Bool("loginLockout", s.redis != nil),
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

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
