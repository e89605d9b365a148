package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nesium/splitship/internal/relay"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Test the delivery endpoint",
	Long: `Send a minimal test request to the configured spreadsheet endpoint
and report whether it answers correctly.

Example:
  splitship check --endpoint https://script.google.com/macros/s/XXX/exec`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&endpoint, "endpoint", getEnvOrDefault("SS_ENDPOINT", relay.PlaceholderEndpoint), "spreadsheet web-app URL")
	checkCmd.Flags().StringVar(&strategy, "strategy", getEnvOrDefault("SS_STRATEGY", "post"), "delivery strategy (post, pixel, callback)")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	dispatcher := relay.New(relay.Config{
		Endpoint: endpoint,
		Strategy: relay.Strategy(strategy),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	fmt.Printf("Testing connection to %s ...\n", endpoint)
	outcome := dispatcher.Check(ctx)

	if outcome.Success {
		fmt.Printf("OK: %s\n", outcome.Message)
		return nil
	}
	return fmt.Errorf("check failed: %s", outcome.Message)
}
