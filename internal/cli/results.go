package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nesium/splitship/internal/experiment"
	"github.com/nesium/splitship/internal/stats"
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Show per-variant metrics",
	Long:  `Show page views, form submissions, and conversion rate per variant.`,
	RunE:  runResults,
}

func init() {
	rootCmd.AddCommand(resultsCmd)
}

func runResults(cmd *cobra.Command, args []string) error {
	return withExperiment(func(exp *experiment.Experiment) error {
		snapshot := stats.Snapshot(exp.Config().Variants, exp.Events())
		winner := stats.Winner(snapshot)

		fmt.Printf("EXPERIMENT: %s\n", exp.Config().Name)
		fmt.Printf("ACTIVE VARIANT: %s\n", exp.ActiveVariant().ID)
		fmt.Println()

		fmt.Println("VARIANT           VIEWS    SUBMISSIONS  RATE")
		fmt.Println(strings.Repeat("─", 52))

		for _, m := range snapshot {
			indicator := ""
			if winner != "" && m.VariantID == winner {
				indicator = " ← WINNER"
			}

			// Truncate name if too long
			name := m.VariantID
			if len(name) > 16 {
				name = name[:13] + "..."
			}

			fmt.Printf("%-16s  %-7d  %-11d  %-7s%s\n",
				name,
				m.PageViews,
				m.FormSubmissions,
				formatPercent(m.ConversionRate),
				indicator,
			)
		}

		fmt.Println()
		if winner == "" {
			fmt.Printf("No winner yet: variants need at least %d page views.\n", stats.MinViewsForWinner)
		}

		return nil
	})
}

func formatPercent(rate float64) string {
	if rate == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.2f%%", rate*100)
}
