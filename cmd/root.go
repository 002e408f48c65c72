// Package cmd provides the guidelines CLI.
//
// Commands:
//   - serve: HTTP API server
//   - ingest: extract and store a policy document
//   - backfill: embed rules missing vectors
//   - search: retrieve rules for a query
//   - ask: one-shot question answering
//   - stats: store counts
//   - version: build information
package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quantfolio/guidelines/internal/app"
	"github.com/quantfolio/guidelines/internal/config"
	"github.com/quantfolio/guidelines/internal/log"
)

var rootCmd = &cobra.Command{
	Use:           "guidelines",
	Short:         "Guideline knowledge store and retrieval engine",
	Long:          "Ingests investment policy documents, indexes their rules with vector embeddings,\nand answers questions about them with cited sources.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(log.New(log.Config{Level: level}))

	return rootCmd.Execute()
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// setupApp loads configuration and wires the application.
func setupApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.Setup(ctx, cfg, slog.Default())
}
