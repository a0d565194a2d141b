package llm

import (
	"fmt"
	"os"
)

// DefaultOllamaURL is the OpenAI-compatible endpoint of a local Ollama.
const DefaultOllamaURL = "http://localhost:11434/v1"

// Config selects and configures a provider.
type Config struct {
	// Provider is "openai", "ollama", or "none"/"" for no provider.
	Provider     string
	Model        string
	BaseURL      string
	RateLimitRPM int
}

// NewProvider creates the configured provider, wrapped in a rate limiter when
// RateLimitRPM is positive. It returns nil, nil when no provider is configured.
func NewProvider(cfg Config) (Provider, error) {
	var p Provider
	switch cfg.Provider {
	case "", "none":
		return nil, nil

	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
		}
		p = NewOpenAIProvider(OpenAIConfig{Name: "openai", APIKey: apiKey, BaseURL: cfg.BaseURL, Model: cfg.Model})

	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = os.Getenv("OLLAMA_HOST")
			if baseURL != "" {
				baseURL += "/v1"
			}
		}
		if baseURL == "" {
			baseURL = DefaultOllamaURL
		}
		// Ollama ignores the key but the client requires one.
		p = NewOpenAIProvider(OpenAIConfig{Name: "ollama", APIKey: "ollama", BaseURL: baseURL, Model: cfg.Model})

	default:
		return nil, fmt.Errorf("unsupported provider type: %s", cfg.Provider)
	}

	if cfg.RateLimitRPM > 0 {
		p = NewRateLimitedProvider(p, cfg.RateLimitRPM)
	}
	return p, nil
}
