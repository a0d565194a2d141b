package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.SiteID != DefaultSiteID {
		t.Errorf("expected default site_id %q, got %q", DefaultSiteID, cfg.SiteID)
	}
	if cfg.Provider != ProviderNone {
		t.Errorf("expected default provider %q, got %q", ProviderNone, cfg.Provider)
	}
	if cfg.WriteTimeout != 10*time.Second {
		t.Errorf("expected default write_timeout 10s, got %s", cfg.WriteTimeout)
	}
	if cfg.UserID != "" {
		t.Errorf("default user_id should be empty, got %q", cfg.UserID)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.privacypilot.yml")

	original := DefaultConfig()
	original.Provider = ProviderOpenAI
	original.Model = "gpt-4o"
	original.UserID = "anchor-123"
	original.SiteID = "shop"
	original.Port = 9090
	original.SandboxInterval = 5 * time.Second

	// Save.
	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Load back.
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Provider != original.Provider {
		t.Errorf("provider: got %q, want %q", loaded.Provider, original.Provider)
	}
	if loaded.Model != original.Model {
		t.Errorf("model: got %q, want %q", loaded.Model, original.Model)
	}
	if loaded.UserID != original.UserID {
		t.Errorf("user_id: got %q, want %q", loaded.UserID, original.UserID)
	}
	if loaded.SiteID != original.SiteID {
		t.Errorf("site_id: got %q, want %q", loaded.SiteID, original.SiteID)
	}
	if loaded.Port != original.Port {
		t.Errorf("port: got %d, want %d", loaded.Port, original.Port)
	}
	if loaded.SandboxInterval != original.SandboxInterval {
		t.Errorf("sandbox_interval: got %s, want %s", loaded.SandboxInterval, original.SandboxInterval)
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonexistent.yml")

	// Loading a missing file should return defaults, not an error.
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load should not fail for missing file: %v", err)
	}
	if cfg.SiteID != DefaultSiteID {
		t.Errorf("expected default site_id, got %q", cfg.SiteID)
	}
}

func TestLoadDefaultModel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yml")
	if err := os.WriteFile(path, []byte("provider: ollama\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Model != "llama3" {
		t.Errorf("model = %q, want %q", cfg.Model, "llama3")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yml")

	cfg := DefaultConfig()
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	t.Setenv("PRIVACYPILOT_PROVIDER", "openai")
	t.Setenv("PRIVACYPILOT_SITE_ID", "blog")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Provider != ProviderOpenAI {
		t.Errorf("env override failed: got %q, want %q", loaded.Provider, ProviderOpenAI)
	}
	if loaded.SiteID != "blog" {
		t.Errorf("env override failed: got %q, want %q", loaded.SiteID, "blog")
	}
	if loaded.Model != "gpt-4o-mini" {
		t.Errorf("model = %q, want provider default", loaded.Model)
	}
}

func TestEnsureUserID(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.EnsureUserID() {
		t.Fatal("EnsureUserID should generate an anchor when empty")
	}
	first := cfg.UserID
	if first == "" {
		t.Fatal("UserID still empty")
	}
	if cfg.EnsureUserID() {
		t.Error("EnsureUserID should keep an existing anchor")
	}
	if cfg.UserID != first {
		t.Errorf("UserID changed from %q to %q", first, cfg.UserID)
	}
}

func TestDBPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "data"
	if got, want := cfg.DBPath(), filepath.Join("data", "privacypilot.db"); got != want {
		t.Errorf("DBPath() = %q, want %q", got, want)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"empty provider", func(c *Config) { c.Provider = "" }, false},
		{"ollama", func(c *Config) { c.Provider = ProviderOllama }, false},
		{"invalid provider", func(c *Config) { c.Provider = "anthropic" }, true},
		{"openai without model", func(c *Config) { c.Provider = ProviderOpenAI }, true},
		{"zero port", func(c *Config) { c.Port = 0 }, true},
		{"port too large", func(c *Config) { c.Port = 70000 }, true},
		{"empty data dir", func(c *Config) { c.DataDir = "" }, true},
		{"empty site", func(c *Config) { c.SiteID = "" }, true},
		{"negative rate limit", func(c *Config) { c.RateLimitRPM = -1 }, true},
		{"negative interval", func(c *Config) { c.SandboxInterval = -time.Second }, true},
		{"negative write timeout", func(c *Config) { c.WriteTimeout = -time.Second }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAPIKeyEnvVar(t *testing.T) {
	tests := []struct {
		provider ProviderType
		want     string
	}{
		{ProviderOpenAI, "OPENAI_API_KEY"},
		{ProviderOllama, ""},
		{ProviderNone, ""},
	}
	for _, tt := range tests {
		got := APIKeyEnvVar(tt.provider)
		if got != tt.want {
			t.Errorf("APIKeyEnvVar(%q) = %q, want %q", tt.provider, got, tt.want)
		}
	}
}

func TestValidatePort(t *testing.T) {
	for _, s := range []string{"80", "8080", "65535"} {
		if err := validatePort(s); err != nil {
			t.Errorf("validatePort(%q) = %v", s, err)
		}
	}
	for _, s := range []string{"", "abc", "0", "65536"} {
		if err := validatePort(s); err == nil {
			t.Errorf("validatePort(%q) should fail", s)
		}
	}
}
