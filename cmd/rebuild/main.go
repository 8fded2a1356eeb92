// Command rebuild regenerates the visitor spreadsheet from the database and
// exits. Use it when the server reported an export warning because the file
// was open in another program, or after the file was deleted by hand.
//
// It reads the same environment as the API server. The server does not need
// to be stopped: both take the same database advisory lock, so a rebuild
// never interleaves with a mutation and its own rebuild.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pkordes/visitor-logbook/internal/config"
	"github.com/pkordes/visitor-logbook/internal/mirror"
	"github.com/pkordes/visitor-logbook/internal/repo"
	"github.com/pkordes/visitor-logbook/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("rebuild failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	config.LoadDotEnv(slog.Default())

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("create database pool: %w", err)
	}
	defer pool.Close()

	m, err := mirror.New(mirror.Config{
		Path:       cfg.Export.Path,
		Format:     cfg.Export.ExportFormat(),
		Relocate:   cfg.Export.Relocate,
		SearchDirs: cfg.Export.SearchDirs,
	}, logger)
	if err != nil {
		return err
	}

	svc := service.NewExportService(repo.NewVisitorRepo(pool), repo.NewAdvisoryLocker(pool), m, logger)
	res, err := svc.Rebuild(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("%s (%d rows, rebuild %s)\n", res.Path, res.Rows, res.ID)
	return nil
}
