package cli

import (
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/nesium/splitship/internal/experiment"
)

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear assignment and analytics",
	Long: `Clear the stored variant assignment and the full event log, then
draw a fresh assignment. This cannot be undone.`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "skip confirmation prompt")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	if !resetYes {
		prompt := promptui.Prompt{
			Label:     "Clear assignment and all analytics data",
			IsConfirm: true,
		}
		if _, err := prompt.Run(); err != nil {
			fmt.Println("Aborted.")
			return nil
		}
	}

	return withExperiment(func(exp *experiment.Experiment) error {
		exp.Reset(cliEventContext)
		fmt.Printf("Experiment reset. New active variant: %s\n", exp.ActiveVariant().ID)
		return nil
	})
}
