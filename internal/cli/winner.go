package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nesium/splitship/internal/experiment"
	"github.com/nesium/splitship/internal/stats"
)

var winnerCmd = &cobra.Command{
	Use:   "winner",
	Short: "Show the computed winner",
	Long: `Show the variant with the best conversion rate among variants with
enough page views. Prints nothing conclusive when no variant qualifies.`,
	RunE: runWinner,
}

func init() {
	rootCmd.AddCommand(winnerCmd)
}

func runWinner(cmd *cobra.Command, args []string) error {
	return withExperiment(func(exp *experiment.Experiment) error {
		snapshot := stats.Snapshot(exp.Config().Variants, exp.Events())
		winner := stats.Winner(snapshot)

		if winner == "" {
			fmt.Printf("No winner yet: variants need at least %d page views.\n", stats.MinViewsForWinner)
			return nil
		}

		v, _ := exp.Config().Find(winner)
		for _, m := range snapshot {
			if m.VariantID != winner {
				continue
			}
			fmt.Printf("Winner: %s (\"%s\")\n", winner, v.DisplayText)
			fmt.Printf("  %d views, %d submissions, %s conversion rate\n",
				m.PageViews, m.FormSubmissions, formatPercent(m.ConversionRate))
		}

		return nil
	})
}
