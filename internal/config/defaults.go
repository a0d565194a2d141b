package config

import "time"

// FileName is the default config file, looked up in the working directory.
const FileName = ".privacypilot.yml"

// DefaultSiteID is the website identifier recorded on consent records.
const DefaultSiteID = "demo-site"

// defaultModels maps each provider to the model used when none is configured.
var defaultModels = map[ProviderType]string{
	ProviderOpenAI: "gpt-4o-mini",
	ProviderOllama: "llama3",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:            8080,
		DataDir:         ".privacypilot",
		SiteID:          DefaultSiteID,
		Provider:        ProviderNone,
		SandboxInterval: 3 * time.Second,
		WriteTimeout:    10 * time.Second,
	}
}

// DefaultModel returns the model used for provider when the config leaves it empty.
func DefaultModel(provider ProviderType) string {
	return defaultModels[provider]
}
