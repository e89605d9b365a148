package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nesium/splitship/internal/experiment"
)

var exportFormat string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export raw event data",
	Long: `Export raw event data in CSV or JSON format.

Examples:
  splitship export --format csv > events.csv
  splitship export --format json > events.json`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "output format (csv or json)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportFormat != "csv" && exportFormat != "json" {
		return fmt.Errorf("invalid format: must be 'csv' or 'json'")
	}

	return withExperiment(func(exp *experiment.Experiment) error {
		events := exp.Events()

		if exportFormat == "csv" {
			return exportCSV(events)
		}
		return exportJSON(events)
	})
}

func exportCSV(events []experiment.Event) error {
	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	// Write header
	if err := w.Write([]string{"timestamp", "variation", "event_type", "url", "user_agent", "visitor"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	// Write rows
	for _, e := range events {
		row := []string{
			e.Timestamp,
			e.VariantID,
			e.EventType,
			e.URL,
			e.UserAgent,
			e.VisitorID,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	return nil
}

type jsonExport struct {
	Events []experiment.Event `json:"events"`
}

func exportJSON(events []experiment.Event) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(jsonExport{Events: events})
}
