package config

import "time"

// ProviderType identifies an LLM provider for the policy optimizer.
type ProviderType string

const (
	ProviderNone   ProviderType = "none"
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
)

// Config is the top-level privacypilot configuration, corresponding to .privacypilot.yml.
type Config struct {
	Port    int    `yaml:"port" koanf:"port"`
	DataDir string `yaml:"data_dir" koanf:"data_dir"`
	// UserID is the compliance anchor every consent record and audit entry is keyed by.
	UserID          string        `yaml:"user_id" koanf:"user_id"`
	SiteID          string        `yaml:"site_id" koanf:"site_id"`
	Provider        ProviderType  `yaml:"provider" koanf:"provider"`
	Model           string        `yaml:"model" koanf:"model"`
	BaseURL         string        `yaml:"base_url" koanf:"base_url"`
	RateLimitRPM    int           `yaml:"rate_limit_rpm" koanf:"rate_limit_rpm"`
	AllowAllOrigins bool          `yaml:"allow_all_origins" koanf:"allow_all_origins"`
	SandboxInterval time.Duration `yaml:"sandbox_interval" koanf:"sandbox_interval"`
	WriteTimeout    time.Duration `yaml:"write_timeout" koanf:"write_timeout"`
}
