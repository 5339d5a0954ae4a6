// Copyright 2026 The Agent Ethos Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default() does not validate: %v", err)
	}
}

func TestLoadFileMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ethos.yaml")
	content := `
listen: "0.0.0.0:9000"
database:
  path: /tmp/test-ethos.db
rate_limit:
  requests: 5
  interval: 10s
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Listen != "0.0.0.0:9000" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.Database.Path != "/tmp/test-ethos.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.RateLimit.Requests != 5 {
		t.Errorf("RateLimit.Requests = %d", cfg.RateLimit.Requests)
	}
	if got := cfg.RateLimitInterval(); got != 10*time.Second {
		t.Errorf("RateLimitInterval() = %v", got)
	}
	// Untouched sections keep defaults.
	if cfg.Scoring.MultiplierFloor != 0.2 {
		t.Errorf("Scoring.MultiplierFloor = %v, want default 0.2", cfg.Scoring.MultiplierFloor)
	}
	if cfg.Limits.LeaderboardMax != 200 {
		t.Errorf("Limits.LeaderboardMax = %d, want default 200", cfg.Limits.LeaderboardMax)
	}
}

func TestLoadFileExpandsHome(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ethos.yaml")
	content := "database:\n  path: ${HOME}/ethos/test.db\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if strings.Contains(cfg.Database.Path, "${") {
		t.Errorf("Database.Path = %q, variable not expanded", cfg.Database.Path)
	}
}

func TestLoadWithoutEnvReturnsDefaults(t *testing.T) {
	t.Setenv("ETHOS_CONFIG", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != Default().Listen {
		t.Errorf("Load without ETHOS_CONFIG: Listen = %q", cfg.Listen)
	}
}

func TestLoadFileRejectsMissingFile(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadFile on missing file succeeded")
	}
}

func TestValidateCatchesBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen", func(c *Config) { c.Listen = "" }},
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"zero rate requests", func(c *Config) { c.RateLimit.Requests = 0 }},
		{"bad interval", func(c *Config) { c.RateLimit.Interval = "soon" }},
		{"negative interval", func(c *Config) { c.RateLimit.Interval = "-1s" }},
		{"cap below floor", func(c *Config) { c.Scoring.MultiplierCap = 0.1 }},
		{"zero scale", func(c *Config) { c.Scoring.ReputationScale = 0 }},
		{"bonus below one", func(c *Config) { c.Scoring.ClaimedBonus = 0.5 }},
		{"penalty above one", func(c *Config) { c.Scoring.FlagPenalty = 1.5 }},
		{"bad window", func(c *Config) { c.Scoring.ReciprocityWindow = "two days" }},
		{"max below default", func(c *Config) { c.Limits.LeaderboardMax = 10 }},
	}
	for _, tc := range cases {
		cfg := Default()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: Validate passed, want error", tc.name)
		}
	}
}
