// Copyright 2026 The Agent Ethos Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Ethos components.
//
// Configuration is loaded from a single YAML file specified by:
//   - ETHOS_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery beyond built-in
// defaults. Environment variables do not override individual config
// values; the only expansion performed is ${VAR} and ${VAR:-default}
// in paths for portability.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for Ethos.
type Config struct {
	// Listen is the address the HTTP gateway binds, host:port.
	Listen string `yaml:"listen"`

	// Database configures the SQLite ledger.
	Database DatabaseConfig `yaml:"database"`

	// RateLimit configures the per-key sliding-window limiter.
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Scoring configures the reputation scorer.
	Scoring ScoringConfig `yaml:"scoring"`

	// Limits configures pagination bounds.
	Limits LimitsConfig `yaml:"limits"`
}

// DatabaseConfig configures the SQLite ledger.
type DatabaseConfig struct {
	// Path is the SQLite database file. The parent directory must
	// exist. Default: ${HOME}/.local/share/ethos/ethos.db
	Path string `yaml:"path"`

	// PoolSize is the connection pool size. Zero means the pool
	// default.
	PoolSize int `yaml:"pool_size"`
}

// RateLimitConfig configures the sliding-window rate limiter applied
// to all API endpoints, keyed by API key id for authenticated traffic
// and by remote address otherwise. The health check is exempt.
type RateLimitConfig struct {
	// Requests is the number of requests allowed per Interval.
	// Default: 30
	Requests int `yaml:"requests"`

	// Interval is the sliding window, as a Go duration string.
	// Default: 1m
	Interval string `yaml:"interval"`
}

// ScoringConfig configures the reputation scorer. The defaults
// reproduce the standard Ethos scoring curve; deployments tune them
// only for closed experiments.
type ScoringConfig struct {
	// MultiplierFloor is the minimum source multiplier. A voucher
	// with no reputation of its own still contributes this fraction
	// of its stated score. Default: 0.2
	MultiplierFloor float64 `yaml:"multiplier_floor"`

	// MultiplierCap is the maximum source multiplier regardless of
	// voucher reputation. Default: 2.0
	MultiplierCap float64 `yaml:"multiplier_cap"`

	// ReputationScale divides the voucher's reputation when computing
	// its multiplier: multiplier = floor + reputation/scale, clamped.
	// Default: 25
	ReputationScale float64 `yaml:"reputation_scale"`

	// ClaimedBonus multiplies the source multiplier (before clamping
	// to MultiplierCap) when the voucher has a verified claim.
	// Default: 1.25
	ClaimedBonus float64 `yaml:"claimed_bonus"`

	// FlagPenalty is the per-flag discount on a vouch's contribution.
	// With the default 0.5, one flag halves a vouch and two or more
	// zero it.
	FlagPenalty float64 `yaml:"flag_penalty"`

	// ReciprocityWindow is how close in time a mutual vouch pair must
	// be to trigger the reciprocity discount, as a Go duration
	// string. Default: 48h
	ReciprocityWindow string `yaml:"reciprocity_window"`

	// ReciprocityFactor multiplies both edges of a detected mutual
	// pair. Default: 0.5
	ReciprocityFactor float64 `yaml:"reciprocity_factor"`

	// ReciprocityMinScore is the minimum score both edges of a pair
	// must reach before the discount applies; mild mutual vouches are
	// left alone. Default: 3
	ReciprocityMinScore int `yaml:"reciprocity_min_score"`
}

// LimitsConfig configures pagination bounds on read endpoints.
type LimitsConfig struct {
	// LeaderboardDefault is the leaderboard page size when the
	// request does not specify one. Default: 50
	LeaderboardDefault int `yaml:"leaderboard_default"`

	// LeaderboardMax caps the leaderboard page size. Default: 200
	LeaderboardMax int `yaml:"leaderboard_max"`

	// VouchPageDefault is the vouch-listing page size when the
	// request does not specify one. Default: 20
	VouchPageDefault int `yaml:"vouch_page_default"`

	// VouchPageMax caps the vouch-listing page size. Default: 100
	VouchPageMax int `yaml:"vouch_page_max"`
}

// Default returns the default configuration. Defaults are a complete
// working configuration for local development; a config file is only
// needed to override them.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Listen: "127.0.0.1:8370",
		Database: DatabaseConfig{
			Path: filepath.Join(homeDir, ".local", "share", "ethos", "ethos.db"),
		},
		RateLimit: RateLimitConfig{
			Requests: 30,
			Interval: "1m",
		},
		Scoring: ScoringConfig{
			MultiplierFloor:     0.2,
			MultiplierCap:       2.0,
			ReputationScale:     25,
			ClaimedBonus:        1.25,
			FlagPenalty:         0.5,
			ReciprocityWindow:   "48h",
			ReciprocityFactor:   0.5,
			ReciprocityMinScore: 3,
		},
		Limits: LimitsConfig{
			LeaderboardDefault: 50,
			LeaderboardMax:     200,
			VouchPageDefault:   20,
			VouchPageMax:       100,
		},
	}
}

// Load loads configuration from the ETHOS_CONFIG environment variable.
// If ETHOS_CONFIG is not set, the built-in defaults are returned.
func Load() (*Config, error) {
	configPath := os.Getenv("ETHOS_CONFIG")
	if configPath == "" {
		return Default(), nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, merging over
// the built-in defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Database.Path = expandVars(c.Database.Path, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// RateLimitInterval parses RateLimit.Interval. Call Validate first;
// after a successful Validate this cannot fail.
func (c *Config) RateLimitInterval() time.Duration {
	d, _ := time.ParseDuration(c.RateLimit.Interval)
	return d
}

// ReciprocityWindow parses Scoring.ReciprocityWindow. Call Validate
// first; after a successful Validate this cannot fail.
func (c *Config) ReciprocityWindow() time.Duration {
	d, _ := time.ParseDuration(c.Scoring.ReciprocityWindow)
	return d
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Listen == "" {
		errs = append(errs, fmt.Errorf("listen is required"))
	}
	if c.Database.Path == "" {
		errs = append(errs, fmt.Errorf("database.path is required"))
	}
	if c.Database.PoolSize < 0 {
		errs = append(errs, fmt.Errorf("database.pool_size must not be negative"))
	}

	if c.RateLimit.Requests <= 0 {
		errs = append(errs, fmt.Errorf("rate_limit.requests must be positive"))
	}
	if d, err := time.ParseDuration(c.RateLimit.Interval); err != nil || d <= 0 {
		errs = append(errs, fmt.Errorf("rate_limit.interval must be a positive duration, got %q", c.RateLimit.Interval))
	}

	if c.Scoring.MultiplierFloor < 0 {
		errs = append(errs, fmt.Errorf("scoring.multiplier_floor must not be negative"))
	}
	if c.Scoring.MultiplierCap < c.Scoring.MultiplierFloor {
		errs = append(errs, fmt.Errorf("scoring.multiplier_cap must be >= scoring.multiplier_floor"))
	}
	if c.Scoring.ReputationScale <= 0 {
		errs = append(errs, fmt.Errorf("scoring.reputation_scale must be positive"))
	}
	if c.Scoring.ClaimedBonus < 1 {
		errs = append(errs, fmt.Errorf("scoring.claimed_bonus must be >= 1"))
	}
	if c.Scoring.FlagPenalty < 0 || c.Scoring.FlagPenalty > 1 {
		errs = append(errs, fmt.Errorf("scoring.flag_penalty must be in [0, 1]"))
	}
	if d, err := time.ParseDuration(c.Scoring.ReciprocityWindow); err != nil || d <= 0 {
		errs = append(errs, fmt.Errorf("scoring.reciprocity_window must be a positive duration, got %q", c.Scoring.ReciprocityWindow))
	}
	if c.Scoring.ReciprocityFactor < 0 || c.Scoring.ReciprocityFactor > 1 {
		errs = append(errs, fmt.Errorf("scoring.reciprocity_factor must be in [0, 1]"))
	}

	if c.Limits.LeaderboardDefault <= 0 || c.Limits.LeaderboardMax < c.Limits.LeaderboardDefault {
		errs = append(errs, fmt.Errorf("limits.leaderboard_default/max must be positive with max >= default"))
	}
	if c.Limits.VouchPageDefault <= 0 || c.Limits.VouchPageMax < c.Limits.VouchPageDefault {
		errs = append(errs, fmt.Errorf("limits.vouch_page_default/max must be positive with max >= default"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
