package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StoreDriver != "sqlite" {
		t.Fatalf("want sqlite driver, got %q", cfg.StoreDriver)
	}
	if cfg.RunMode != "polling" {
		t.Fatalf("want polling, got %q", cfg.RunMode)
	}
	if cfg.DedupeTTL != 10*time.Minute {
		t.Fatalf("want 10m dedupe ttl, got %s", cfg.DedupeTTL)
	}
	if !cfg.InstallCommands {
		t.Fatal("commands should be installed by default")
	}
}

func TestLoad_MissingToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "placeholder")
	if err := os.Unsetenv("BOT_TOKEN"); err != nil {
		t.Fatalf("unset: %v", err)
	}
	if _, err := Load(); err == nil {
		t.Fatal("expected error without BOT_TOKEN")
	}
}

func TestValidate(t *testing.T) {
	base := Config{StoreDriver: "sqlite", RunMode: "polling", MaxConcurrentUpdates: 1}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"mongo", func(c *Config) { c.StoreDriver = "mongo" }, false},
		{"unknown driver", func(c *Config) { c.StoreDriver = "loki" }, true},
		{"webhook without url", func(c *Config) { c.RunMode = "webhook" }, true},
		{"webhook with url", func(c *Config) { c.RunMode = "webhook"; c.WebhookURL = "https://example.org/tg" }, false},
		{"unknown mode", func(c *Config) { c.RunMode = "push" }, true},
		{"zero workers", func(c *Config) { c.MaxConcurrentUpdates = 0 }, true},
		{"negative year", func(c *Config) { c.ReferenceYear = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestYear(t *testing.T) {
	now := time.Date(2026, time.October, 16, 0, 0, 0, 0, time.UTC)
	if got := (Config{}).Year(now); got != 2026 {
		t.Fatalf("want 2026, got %d", got)
	}
	if got := (Config{ReferenceYear: 2024}).Year(now); got != 2024 {
		t.Fatalf("want 2024, got %d", got)
	}
}

func TestLoadTooling(t *testing.T) {
	t.Setenv("BOT_TOKEN", "placeholder")
	if err := os.Unsetenv("BOT_TOKEN"); err != nil {
		t.Fatalf("unset: %v", err)
	}
	t.Setenv("STORE_DRIVER", "mongo")
	t.Setenv("REFERENCE_YEAR", "2025")

	tl, err := LoadTooling()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := tl.Config()
	if cfg.StoreDriver != "mongo" || cfg.MongoDB != "stoatbot" || cfg.ReferenceYear != 2025 {
		t.Fatalf("config: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("widened config should validate: %v", err)
	}
}
