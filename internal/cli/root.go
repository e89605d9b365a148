package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	dbPath     string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "splitship",
	Short: "splitship - headline split testing and form relay for marketing pages",
	Long: `splitship assigns visitors to weighted headline variants, tracks
conversion events, and relays intercepted form submissions to a
spreadsheet-backed endpoint. Single Go binary, embedded SQLite.

Running without a subcommand starts the server (same as 'splitship serve').`,
	RunE: runServe, // Default action is to start server
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", getEnvOrDefault("SS_DB_PATH", "./splitship.db"), "database path")
	rootCmd.PersistentFlags().StringVar(&configPath, "experiment", getEnvOrDefault("SS_EXPERIMENT", ""), "experiment config JSON (defaults to the built-in title-variations experiment)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
