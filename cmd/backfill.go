package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var backfillDocID string

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Embed rules that are missing vectors",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := setupApp(ctx)
		if err != nil {
			return fmt.Errorf("initializing application: %w", err)
		}
		defer a.Close()

		report, err := a.Backfill.Run(ctx, backfillDocID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Embedded %d rules, %d failed, %d remaining\n",
			report.Embedded, report.Failed, report.Remaining)
		return nil
	},
}

func init() {
	backfillCmd.Flags().StringVar(&backfillDocID, "doc-id", "", "scope the run to one document")
	rootCmd.AddCommand(backfillCmd)
}
