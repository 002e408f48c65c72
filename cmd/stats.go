package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store counts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := setupApp(ctx)
		if err != nil {
			return fmt.Errorf("initializing application: %w", err)
		}
		defer a.Close()

		st, err := a.Store.Stats(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Collections: %d\n", st.Collections)
		fmt.Fprintf(cmd.OutOrStdout(), "Documents:   %d\n", st.Documents)
		fmt.Fprintf(cmd.OutOrStdout(), "Rules:       %d (%d awaiting embedding)\n",
			st.Rules, st.RulesMissingEmbed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
