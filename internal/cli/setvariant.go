package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nesium/splitship/internal/experiment"
)

var setVariantCmd = &cobra.Command{
	Use:   "set-variant <id>",
	Short: "Pin the active variant",
	Long: `Override the stored assignment with a specific variant.

Example:
  splitship set-variant cost-effective`,
	Args: cobra.ExactArgs(1),
	RunE: runSetVariant,
}

func init() {
	rootCmd.AddCommand(setVariantCmd)
}

func runSetVariant(cmd *cobra.Command, args []string) error {
	id := args[0]

	return withExperiment(func(exp *experiment.Experiment) error {
		if _, ok := exp.Config().Find(id); !ok {
			fmt.Printf("Unknown variant '%s'. Available variants:\n", id)
			for _, v := range exp.Config().Variants {
				fmt.Printf("  %s: %s\n", v.ID, v.DisplayText)
			}
			return nil
		}

		exp.SetVariant(cliEventContext, id)
		fmt.Printf("Active variant set to '%s'.\n", id)
		return nil
	})
}
