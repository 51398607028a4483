package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Default()
	cfg.DefaultSession = "work"
	cfg.AI.Provider = ProviderClaude
	cfg.AI.APIKey = "sk-test"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultSession != "work" {
		t.Errorf("DefaultSession = %q, want %q", loaded.DefaultSession, "work")
	}
	if !loaded.AI.AIConfigured() {
		t.Error("AI should be configured after round trip")
	}
}

// TestLoadKeepsDefaultsForMissingKeys verifies a minimal file only overrides
// what it names.
func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "[ai]\nprovider = \"openai\"\napi_key = \"k\"\n\n[rate_limit]\nrefill_rate = 2.5\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RateLimit.RefillRate != 2.5 {
		t.Errorf("refill rate = %v, want 2.5", cfg.RateLimit.RefillRate)
	}
	if cfg.RateLimit.MaxTokens != 10 {
		t.Errorf("max tokens = %d, want default 10", cfg.RateLimit.MaxTokens)
	}
	if cfg.FollowUp.FollowUpHours != 24 || cfg.FollowUp.StaleHours != 72 || cfg.FollowUp.MaxAgeDays != 30 {
		t.Errorf("follow-up thresholds = %+v, want defaults", cfg.FollowUp)
	}
	if cfg.AI.RequestTimeout() != 90*time.Second {
		t.Errorf("request timeout = %v, want 90s", cfg.AI.RequestTimeout())
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
	cfg, err := LoadOrDefault("/nonexistent/config.toml")
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.DefaultSession != "main" {
		t.Errorf("DefaultSession = %q, want main", cfg.DefaultSession)
	}
}

func TestAIConfigured(t *testing.T) {
	tests := []struct {
		cfg  AIConfig
		want bool
	}{
		{AIConfig{Provider: ProviderClaude, APIKey: "k"}, true},
		{AIConfig{Provider: ProviderOpenAI, APIKey: "k"}, true},
		{AIConfig{Provider: ProviderClaude}, false},
		{AIConfig{Provider: ProviderNone, APIKey: "k"}, false},
		{AIConfig{Provider: "gemini", APIKey: "k"}, false},
	}
	for _, tt := range tests {
		if got := tt.cfg.AIConfigured(); got != tt.want {
			t.Errorf("AIConfigured(%+v) = %v, want %v", tt.cfg, got, tt.want)
		}
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
