// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mnemo-dev/mnemo/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the mnemo HTTP server",
		Long:  "Load configuration, wire all subsystems, and serve the memory API until interrupted.",
		RunE:  runServe,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Server.Listen = listen
	}

	app, err := WireApp(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	srv, err := server.New(server.Config{
		ListenAddr:  cfg.Server.Listen,
		CORSOrigins: cfg.Server.CORSOrigins,
	})
	if err != nil {
		return err
	}
	srv.RegisterServices(&server.Services{
		Searcher: app.Searcher,
		Indexer:  app.Indexer,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Indexer.Interval > 0 {
		go runPeriodicIndexing(ctx, app, cfg.Indexer.Interval, cfg.Indexer.BatchSize)
	}

	slog.Info("starting mnemo", "listen", cfg.Server.Listen, "index_backend", app.Backend.Name())
	return srv.Start(ctx)
}

// runPeriodicIndexing drains pending chunks on a fixed interval until the
// context is cancelled. Failures are logged and retried on the next tick.
func runPeriodicIndexing(ctx context.Context, app *App, interval time.Duration, batchSize int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			processed, err := app.Indexer.ProcessPending(ctx, batchSize)
			if err != nil {
				slog.Warn("periodic indexing run failed", "error", err)
				continue
			}
			if processed > 0 {
				slog.Info("periodic indexing run completed", "processed", processed)
			}
		}
	}
}
