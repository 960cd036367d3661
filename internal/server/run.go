package server

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/sakif/unitedblog/internal/config"
	"github.com/sakif/unitedblog/internal/logger"
	"github.com/sakif/unitedblog/internal/repository/gormrepo"
)

// Run is the body of both main functions: load configuration, open the
// database, build the server and serve. It returns the process exit code.
func Run(svc config.Service) int {
	cfg, err := config.Load(svc, os.Getenv("CONFIG_FILE"))
	if err != nil {
		// No configured logger yet.
		logger.New(os.Stderr, "text", "info").Error("invalid configuration", slog.String("error", err.Error()))
		return 1
	}

	log := logger.New(os.Stdout, cfg.LogFormat, cfg.LogLevel).With(slog.String("service", string(svc)))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := gormrepo.Open(ctx, gormrepo.Options{
		Dialect:  cfg.DBDriver,
		DSN:      cfg.DatabaseURL,
		Schema:   cfg.DBSchema,
		MaxConns: cfg.MaxDBConns,
	})
	if err != nil {
		log.Error("failed to open database", slog.String("error", err.Error()))
		return 1
	}

	srv, err := New(ctx, cfg, db, log)
	if err != nil {
		_ = db.Close()
		log.Error("failed to create server", slog.String("error", err.Error()))
		return 1
	}

	if err := srv.Start(); err != nil {
		log.Error("server error", slog.String("error", err.Error()))
		return 1
	}
	return 0
}
