package cmd

import (
	"fmt"
	"os"

	"github.com/ziadkadry99/privacypilot/internal/config"
	"github.com/ziadkadry99/privacypilot/internal/db"
	"github.com/ziadkadry99/privacypilot/internal/docstore"
	"github.com/ziadkadry99/privacypilot/internal/llm"
)

// createLLMProviderFromConfig creates the optimizer's LLM provider, or nil
// when none is configured.
func createLLMProviderFromConfig(cfg *config.Config) (llm.Provider, error) {
	return llm.NewProvider(llm.Config{
		Provider:     string(cfg.Provider),
		Model:        cfg.Model,
		BaseURL:      cfg.BaseURL,
		RateLimitRPM: cfg.RateLimitRPM,
	})
}

// loadConfig loads and validates the config, providing a user-friendly error.
// A missing compliance anchor is generated and written back so later runs
// keep addressing the same records.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `privacypilot init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.EnsureUserID() {
		if err := cfg.Save(cfgFile); err != nil {
			return nil, err
		}
		fmt.Fprintf(os.Stderr, "Generated compliance anchor %s (saved to %s)\n", cfg.UserID, cfgFile)
	}
	return cfg, nil
}

// openDocStore opens the configured SQLite database and wraps it in a
// document store. The caller closes the returned DB.
func openDocStore(cfg *config.Config) (*db.DB, *docstore.Store, error) {
	database, err := db.Open(cfg.DBPath())
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return database, docstore.NewStore(database), nil
}
