package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quantfolio/guidelines/internal/retrieval"
)

var (
	searchCollectionID string
	searchMode         string
	searchTopK         int
)

var searchCmd = &cobra.Command{
	Use:   "search <query...>",
	Short: "Retrieve rules for a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := setupApp(ctx)
		if err != nil {
			return fmt.Errorf("initializing application: %w", err)
		}
		defer a.Close()

		hits, err := a.Retrieval.Search(ctx, retrieval.Request{
			Query:        strings.Join(args, " "),
			CollectionID: searchCollectionID,
			Mode:         searchMode,
			TopK:         searchTopK,
		})
		if errors.Is(err, retrieval.ErrNoRelevantRules) {
			fmt.Fprintln(cmd.OutOrStdout(), "No relevant rules found.")
			return nil
		}
		if err != nil {
			return err
		}

		for i, h := range hits {
			ref := h.Rule.RuleID
			if h.Rule.Provenance != "" {
				ref += " (" + h.Rule.Provenance + ")"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%2d. [%s] %s\n", i+1, ref, h.Rule.Body)
			if h.Similarity > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "    similarity: %.3f\n", h.Similarity)
			}
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchCollectionID, "collection-id", "", "restrict to one collection")
	searchCmd.Flags().StringVar(&searchMode, "mode", retrieval.ModeHybrid, "search mode: semantic, text or hybrid")
	searchCmd.Flags().IntVar(&searchTopK, "top-k", retrieval.DefaultTopK, "maximum number of hits")
	rootCmd.AddCommand(searchCmd)
}
