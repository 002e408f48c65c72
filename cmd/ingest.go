package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quantfolio/guidelines/internal/extract"
	"github.com/quantfolio/guidelines/internal/ingest"
)

var (
	ingestCollectionID   string
	ingestCollectionName string
	ingestDocID          string
	ingestDocName        string
	ingestEmbed          bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <document-file>",
	Short: "Extract and store a policy document",
	Long:  "Runs model extraction over a policy document and stores its rules.\nReingesting the same document replaces its previous rule set.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading document: %w", err)
		}

		a, err := setupApp(ctx)
		if err != nil {
			return fmt.Errorf("initializing application: %w", err)
		}
		defer a.Close()

		result, err := a.Ingest.Ingest(ctx, data, extract.Hints{
			CollectionID:   ingestCollectionID,
			CollectionName: ingestCollectionName,
			DocumentID:     ingestDocID,
			DocumentName:   ingestDocName,
		})
		if errors.Is(err, ingest.ErrValidationRejected) {
			fmt.Fprintf(cmd.OutOrStdout(), "Document rejected: %v\n", err)
			return nil
		}
		if err != nil {
			return err
		}

		verb := "Ingested"
		if result.Reingested {
			verb = "Reingested"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s/%s: %d rules stored\n",
			verb, result.CollectionID, result.DocumentID, result.RuleCount)

		if !ingestEmbed {
			fmt.Fprintln(cmd.OutOrStdout(), "Embeddings deferred; run 'guidelines backfill' to embed.")
			return nil
		}

		report, err := a.Backfill.Run(ctx, result.DocumentID)
		if err != nil {
			return fmt.Errorf("embedding rules: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Embedded %d rules (%d failed)\n", report.Embedded, report.Failed)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestCollectionID, "collection-id", "", "override the extracted collection ID")
	ingestCmd.Flags().StringVar(&ingestCollectionName, "collection-name", "", "override the extracted collection name")
	ingestCmd.Flags().StringVar(&ingestDocID, "doc-id", "", "override the extracted document ID")
	ingestCmd.Flags().StringVar(&ingestDocName, "doc-name", "", "override the extracted document name")
	ingestCmd.Flags().BoolVar(&ingestEmbed, "embed", true, "embed the new rules immediately")
	rootCmd.AddCommand(ingestCmd)
}
