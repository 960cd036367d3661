// Package server is the composition root: it wires repositories, services,
// handlers and middleware into a chi router for one of the two services,
// and runs it with graceful shutdown.
//
//	config → gormrepo.DB → service → handler → chi routes
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
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sakif/unitedblog/internal/auth"
	"github.com/sakif/unitedblog/internal/config"
	"github.com/sakif/unitedblog/internal/handler"
	"github.com/sakif/unitedblog/internal/metrics"
	"github.com/sakif/unitedblog/internal/middleware"
	"github.com/sakif/unitedblog/internal/model"
	"github.com/sakif/unitedblog/internal/repository/gormrepo"
	"github.com/sakif/unitedblog/internal/service"
)

// Version is reported by GET /.
const Version = "1.0.0"

// shutdownTimeout bounds how long in-flight requests may take to drain.
const shutdownTimeout = 30 * time.Second

// Server owns the router and the database handle for one service.
type Server struct {
	router   *chi.Mux
	cfg      config.Config
	logger   *slog.Logger
	db       *gormrepo.DB
	tokens   *auth.TokenService
	registry *prometheus.Registry
	metrics  *metrics.Collector
}

// New migrates the service's table and builds its router. The server takes
// ownership of db and closes it when Start returns.
func New(ctx context.Context, cfg config.Config, db *gormrepo.DB, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.JWTSecret, auth.TokenOptions{
		Algorithm:  cfg.JWTAlgorithm,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics.RegisterRuntime(registry)

	s := &Server{
		router:   chi.NewRouter(),
		cfg:      cfg,
		logger:   logger,
		db:       db,
		tokens:   tokens,
		registry: registry,
		metrics:  metrics.NewCollector(registry, string(cfg.Service)),
	}

	s.setupMiddleware()

	switch cfg.Service {
	case config.Identity:
		if err := db.AutoMigrate(ctx, &model.User{}); err != nil {
			return nil, fmt.Errorf("migrating users: %w", err)
		}
		if err := s.setupIdentityRoutes(); err != nil {
			return nil, err
		}
	case config.Content:
		if err := db.AutoMigrate(ctx, &model.Post{}); err != nil {
			return nil, fmt.Errorf("migrating posts: %w", err)
		}
		s.setupContentRoutes()
	default:
		return nil, fmt.Errorf("unknown service %q", cfg.Service)
	}

	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware installs the global chain. Order matters: the request id
// must exist before the logger reads it, and Recoverer sits inside Logger
// so a recovered panic is logged as a 500.
func (s *Server) setupMiddleware() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(s.metrics.Middleware)
	s.router.Use(middleware.SecurityHeaders)
	s.router.Use(middleware.CORS(s.cfg.CORSAllowedOrigins))
	s.router.Use(chimiddleware.StripSlashes)

	s.router.NotFound(handler.NotFound)
	s.router.MethodNotAllowed(handler.MethodNotAllowed)
}

func (s *Server) setupCommonRoutes(name string) {
	health := handler.NewHealthHandler(name, Version, s.db, s.logger)
	s.router.Get("/", health.HandleRoot)
	s.router.Get("/health", health.HandleHealth)
	s.router.Method(http.MethodGet, "/metrics", metrics.Handler(s.registry))
}

// setupIdentityRoutes mounts the account routes at the root and again
// under /users and /api, the prefixes existing clients use.
//
//	POST      /register
//	POST      /token
//	POST      /token/refresh
//	GET       /profile          (bearer)
//	PUT|PATCH /profile          (bearer)
func (s *Server) setupIdentityRoutes() error {
	passwords, err := auth.NewPasswordService(s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("creating password service: %w", err)
	}

	svc := service.NewIdentityService(s.db.Users(), passwords, s.tokens, s.metrics, s.logger)
	h := handler.NewIdentityHandler(svc, s.logger)

	accounts := func(r chi.Router) {
		r.Post("/register", h.HandleRegister)
		r.Post("/token", h.HandleObtainToken)
		r.Post("/token/refresh", h.HandleRefreshToken)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireBearer(s.tokens))
			r.Get("/profile", h.HandleGetProfile)
			r.Put("/profile", h.HandleUpdateProfile)
			r.Patch("/profile", h.HandleUpdateProfile)
		})
	}

	s.setupCommonRoutes("Auth Service")
	s.router.Group(accounts)
	s.router.Route("/users", accounts)
	s.router.Route("/api", accounts)
	return nil
}

// setupContentRoutes mounts /api/posts.
//
//	GET    /api/posts            list (skip, limit)
//	POST   /api/posts            create        (bearer)
//	GET    /api/posts/user/me    caller's posts (bearer)
//	GET    /api/posts/{id}       one post
//	PUT    /api/posts/{id}       update        (bearer, owner)
//	DELETE /api/posts/{id}       delete        (bearer, owner)
func (s *Server) setupContentRoutes() {
	svc := service.NewPostService(s.db.Posts(), s.metrics, s.logger)
	h := handler.NewPostHandler(svc, s.logger)

	s.setupCommonRoutes("Blog Service")
	s.router.Route("/api/posts", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Get("/{id}", h.HandleGet)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireBearer(s.tokens))
			r.Post("/", h.HandleCreate)
			r.Get("/user/me", h.HandleListMine)
			r.Put("/{id}", h.HandleUpdate)
			r.Delete("/{id}", h.HandleDelete)
		})
	})
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests for
// up to 30 seconds. The database is closed on return.
func (s *Server) Start() error {
	defer func() {
		if err := s.db.Close(); err != nil {
			s.logger.Error("closing database", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.String("service", string(s.cfg.Service)),
			slog.Int("port", s.cfg.Port),
			slog.String("db_dialect", s.db.Dialect()),
			slog.String("db_schema", s.db.Schema()),
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

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
