package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nesium/splitship/internal/experiment"
	"github.com/nesium/splitship/internal/storage"
)

// cliEventContext stamps events recorded from the command line.
var cliEventContext = experiment.EventContext{URL: "cli", UserAgent: "splitship-cli"}

// loadConfig returns the experiment definition: the built-in
// title-variations experiment, or the JSON file named by --experiment.
func loadConfig() (experiment.Config, error) {
	if configPath == "" {
		return experiment.DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return experiment.Config{}, fmt.Errorf("failed to read experiment config: %w", err)
	}

	var cfg experiment.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return experiment.Config{}, fmt.Errorf("invalid experiment config: %w", err)
	}
	return cfg, nil
}

// withExperiment opens the database, constructs the experiment, runs
// the function, and handles cleanup.
func withExperiment(fn func(*experiment.Experiment) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	kv, err := storage.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer kv.Close()

	exp, err := experiment.New(cfg, kv)
	if err != nil {
		return err
	}

	return fn(exp)
}

// tokenFilePath returns the path to the dashboard token file,
// stored alongside the database.
func tokenFilePath() string {
	return filepath.Join(filepath.Dir(dbPath), ".splitship-token")
}
