package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quantfolio/guidelines/internal/agent"
)

var askCollectionID string

var askCmd = &cobra.Command{
	Use:   "ask <question...>",
	Short: "Ask a question about stored guidelines",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := setupApp(ctx)
		if err != nil {
			return fmt.Errorf("initializing application: %w", err)
		}
		defer a.Close()

		resp, err := a.Agent.Ask(ctx, agent.AskRequest{
			Question:     strings.Join(args, " "),
			CollectionID: askCollectionID,
		})
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), resp.Answer)
		if len(resp.Hits) > 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "\nSources:")
			for _, h := range resp.Hits {
				fmt.Fprintf(cmd.OutOrStdout(), "  [%s] %s\n", h.Rule.RuleID, h.Rule.Provenance)
			}
		}
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askCollectionID, "collection-id", "", "restrict to one collection")
	rootCmd.AddCommand(askCmd)
}
