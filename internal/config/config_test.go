// Wanderer Notifier - EVE Online Killmail and Map Tracking Notifications
// Copyright 2026 guarzo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/guarzo/wanderer-notifier-sub002

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}

	if cfg.Pipeline.DedupWindow != 30*time.Minute {
		t.Errorf("unexpected dedup window: %v", cfg.Pipeline.DedupWindow)
	}
	if cfg.Pipeline.MaxEventAge != time.Hour {
		t.Errorf("unexpected max event age: %v", cfg.Pipeline.MaxEventAge)
	}
	if cfg.Cache.RegionCap != 500 || cfg.Cache.HistoryCap != 500 {
		t.Errorf("unexpected cache caps: %+v", cfg.Cache)
	}
	if cfg.Stream.HeartbeatTimeout != 60*time.Second {
		t.Errorf("unexpected heartbeat timeout: %v", cfg.Stream.HeartbeatTimeout)
	}
}

func TestValidateInvariantViolations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative dedup window", func(c *Config) { c.Pipeline.DedupWindow = -time.Minute }},
		{"zero region cap", func(c *Config) { c.Cache.RegionCap = 0 }},
		{"negative history cap", func(c *Config) { c.Cache.HistoryCap = -1 }},
		{"zero heartbeat timeout", func(c *Config) { c.Stream.HeartbeatTimeout = 0 }},
		{"max delay below base delay", func(c *Config) {
			c.Stream.BaseDelay = 10 * time.Second
			c.Stream.MaxDelay = time.Second
		}},
		{"zero queue capacity", func(c *Config) { c.Stream.QueueCapacity = 0 }},
		{"zero enrichment timeout", func(c *Config) { c.Enrichment.Timeout = 0 }},
		{"enrichment attempts over budget", func(c *Config) { c.Enrichment.MaxAttempts = 5 }},
		{"both sources disabled", func(c *Config) {
			c.Killstream.Enabled = false
			c.Map.Enabled = false
		}},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notifier.yaml")
	content := []byte(`
pipeline:
  dedup_window: 10m
  priority_only: true
tracking:
  priority_systems: [30000142]
  corporation_focus: [98000001]
discord:
  webhooks:
    system-kill: https://discord.example/webhook/1
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Pipeline.DedupWindow != 10*time.Minute {
		t.Errorf("expected file override, got %v", cfg.Pipeline.DedupWindow)
	}
	if !cfg.Pipeline.PriorityOnly {
		t.Error("expected priority_only true")
	}
	if len(cfg.Tracking.PrioritySystems) != 1 || cfg.Tracking.PrioritySystems[0] != 30000142 {
		t.Errorf("unexpected priority systems: %v", cfg.Tracking.PrioritySystems)
	}
	if cfg.Discord.Webhooks["system-kill"] == "" {
		t.Error("expected webhook mapping from file")
	}
	// Untouched settings keep defaults.
	if cfg.Pipeline.MaxEventAge != time.Hour {
		t.Errorf("expected default max_event_age, got %v", cfg.Pipeline.MaxEventAge)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("NOTIFIER_PIPELINE_DEDUP_WINDOW", "5m")
	t.Setenv("NOTIFIER_SERVER_ADDR", ":9090")

	cfg, err := LoadFrom("")
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Pipeline.DedupWindow != 5*time.Minute {
		t.Errorf("expected env override 5m, got %v", cfg.Pipeline.DedupWindow)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("expected env override :9090, got %s", cfg.Server.Addr)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notifier.yaml")
	if err := os.WriteFile(path, []byte("cache:\n  region_cap: -5\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := LoadFrom(path); err == nil {
		t.Error("expected validation error for negative cap")
	}
}
