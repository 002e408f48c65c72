package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantfolio/guidelines/api"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := setupApp(ctx)
		if err != nil {
			return fmt.Errorf("initializing application: %w", err)
		}
		defer a.Close()

		addr := serveAddr
		if addr == "" {
			addr = a.Config.ListenAddr
		}

		srv := api.NewServer(api.Deps{
			Pinger:     a.Pool,
			Ingestor:   a.Ingest,
			Backfiller: a.Backfill,
			Searcher:   a.Retrieval,
			Asker:      a.Agent,
			Sessions:   a.Sessions,
			Catalog:    a.Store,
			Logger:     a.Logger,
		})
		return srv.Run(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}
