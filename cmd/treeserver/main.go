package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bcnelson/workspace-tree/internal/api"
	"github.com/bcnelson/workspace-tree/internal/config"
	"github.com/bcnelson/workspace-tree/internal/domain"
	"github.com/bcnelson/workspace-tree/internal/event"
	"github.com/bcnelson/workspace-tree/internal/logger"
	"github.com/bcnelson/workspace-tree/internal/seed"
	"github.com/bcnelson/workspace-tree/internal/service"
	"github.com/bcnelson/workspace-tree/internal/storage/sql"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "treeserver: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(cfg.Log, os.Stderr)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Close()

	table, err := domain.LoadTypeTable(cfg.Tree.TypeTable)
	if err != nil {
		log.Error().Err(err).Msg("type table rejected")
		return err
	}

	// Create data directory if needed (for SQLite)
	if cfg.Database.Driver == "sqlite3" {
		if dir := filepath.Dir(cfg.Database.DSN); dir != "." && cfg.Database.DSN != ":memory:" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("creating data directory: %w", err)
			}
		}
	}

	store, err := sql.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer store.Close()

	bus := event.NewBus(log.Logger)
	svc := service.NewTreeService(store, table, bus, log.Logger)

	if cfg.Seed.Demo {
		if _, err := seed.Run(context.Background(), store, svc, seed.Demo, log.Logger); err != nil {
			return fmt.Errorf("seeding demo data: %w", err)
		}
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(svc, bus, log.Logger),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Info().Str("addr", cfg.Server.Addr()).Str("driver", cfg.Database.Driver).Msg("starting workspace tree server")

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}
