// Package main provides the HTTP sync trigger server for portalsync.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raphaelgruber/portalsync/internal/config"
	"github.com/raphaelgruber/portalsync/internal/db"
	"github.com/raphaelgruber/portalsync/internal/metrics"
	"github.com/raphaelgruber/portalsync/internal/server"
	"github.com/raphaelgruber/portalsync/internal/service"
	"github.com/raphaelgruber/portalsync/internal/warehouse"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(true); err != nil {
		return err
	}

	// Setup logger (dual output: stderr text + file JSON)
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()

	logger.Info("portalsync-server starting",
		"version", version,
		"surrealdb_url", cfg.SurrealDBURL,
		"db_driver", cfg.DBDriver,
		"port", cfg.ServerPort,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open both stores once; they are shared by every request.
	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	docs, err := db.NewClient(startCtx, cfg.SurrealDB(), logger)
	if err != nil {
		cancel()
		return fmt.Errorf("connect to document store: %w", err)
	}
	defer func() {
		logger.Info("closing document store connection")
		_ = docs.Close(context.Background())
	}()

	store, err := warehouse.Open(startCtx, cfg.Warehouse(), logger)
	cancel()
	if err != nil {
		return fmt.Errorf("open relational store: %w", err)
	}
	defer func() {
		logger.Info("closing relational store")
		_ = store.Close()
	}()

	collector := metrics.NewCollector()
	svc, err := service.NewSyncService(docs, store, cfg.SyncOptions(collector), logger)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		Sync:        svc,
		Reports:     store,
		Documents:   docs,
		Collector:   collector,
		JWTSecret:   cfg.JWTSecret,
		SyncTimeout: cfg.SyncTimeout,
	}, logger)
	if err != nil {
		return err
	}

	return srv.Run(ctx, fmt.Sprintf(":%d", cfg.ServerPort))
}
