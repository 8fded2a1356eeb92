// Package main is the entry point for the Visitor Logbook API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/pkordes/visitor-logbook/internal/config"
	"github.com/pkordes/visitor-logbook/internal/handler"
	"github.com/pkordes/visitor-logbook/internal/middleware"
	"github.com/pkordes/visitor-logbook/internal/mirror"
	"github.com/pkordes/visitor-logbook/internal/repo"
	"github.com/pkordes/visitor-logbook/internal/service"
	"github.com/pkordes/visitor-logbook/migrations"
)

func main() {
	// --- Config -----------------------------------------------------------
	config.LoadDotEnv(slog.Default())

	cfg, err := config.Load()
	if err != nil {
		// Use plain stderr before the logger is configured.
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// --- Database ---------------------------------------------------------
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Verify the DB is reachable before accepting traffic.
	if err := pool.Ping(context.Background()); err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	slog.Info("database connection established")

	if cfg.MigrateOnStart {
		db := stdlib.OpenDBFromPool(pool)
		applied, err := migrations.Up(context.Background(), db)
		db.Close()
		if err != nil {
			slog.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
		slog.Info("migrations applied", "count", applied)
	}

	// --- Services ---------------------------------------------------------
	m, err := mirror.New(mirror.Config{
		Path:       cfg.Export.Path,
		Format:     cfg.Export.ExportFormat(),
		Relocate:   cfg.Export.Relocate,
		SearchDirs: cfg.Export.SearchDirs,
	}, logger)
	if err != nil {
		slog.Error("failed to configure export", "error", err)
		os.Exit(1)
	}

	visitorRepo := repo.NewVisitorRepo(pool)
	exportSvc := service.NewExportService(visitorRepo, repo.NewAdvisoryLocker(pool), m, logger)
	visitorSvc := service.NewVisitorService(visitorRepo, repo.NewTransactor(pool), exportSvc, logger)

	// The artifact may be missing or out of date after a restart or a manual
	// edit. A failure here is not fatal: the next mutation retries.
	if res, err := exportSvc.Rebuild(context.Background()); err != nil {
		slog.Warn("startup export rebuild failed", "error", err)
	} else {
		slog.Info("export rebuilt", "path", res.Path, "rows", res.Rows)
	}

	// --- Router -----------------------------------------------------------
	// Middleware is applied in order: RequestID → RealIP → Logger → Recoverer
	// → CORS → body limit.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxBodyBytes))

	srv := handler.NewServer(visitorSvc, exportSvc, logger)
	r.Mount("/", srv.Handler())

	// --- HTTP Server ------------------------------------------------------
	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown: wait for OS signal, then give in-flight requests
	// up to 15 seconds to complete before forcefully closing.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", httpSrv.Addr, "export_path", m.Destination())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
