// Copyright 2026 The Agent Ethos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/agent-ethos/ethos/lib/clock"
	"github.com/agent-ethos/ethos/lib/config"
	"github.com/agent-ethos/ethos/lib/ledger"
	"github.com/agent-ethos/ethos/lib/process"
	"github.com/agent-ethos/ethos/lib/reputation"
	"github.com/agent-ethos/ethos/lib/version"
)

func main() {
	var (
		configPath  string
		passes      int
		showVersion bool
	)
	pflag.StringVar(&configPath, "config", "", "path to the config file (overrides ETHOS_CONFIG)")
	pflag.IntVar(&passes, "passes", 0, "fixed-point passes (0 = default)")
	pflag.BoolVar(&showVersion, "version", false, "print version and exit")
	pflag.Parse()

	if showVersion {
		version.Print("ethos-rebuild")
		return
	}

	if err := run(configPath, passes); err != nil {
		process.Fatal(err)
	}
}

func run(configPath string, passes int) error {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	params := reputation.Params{
		MultiplierFloor:     cfg.Scoring.MultiplierFloor,
		MultiplierCap:       cfg.Scoring.MultiplierCap,
		ReputationScale:     cfg.Scoring.ReputationScale,
		ClaimedBonus:        cfg.Scoring.ClaimedBonus,
		FlagPenalty:         cfg.Scoring.FlagPenalty,
		ReciprocityWindow:   cfg.ReciprocityWindow(),
		ReciprocityFactor:   cfg.Scoring.ReciprocityFactor,
		ReciprocityMinScore: cfg.Scoring.ReciprocityMinScore,
	}

	store, err := ledger.Open(ledger.Config{
		Path:     cfg.Database.Path,
		PoolSize: cfg.Database.PoolSize,
		Clock:    clock.Real(),
		Logger:   logger,
		Params:   params,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()

	snap, err := store.Snapshot(ctx)
	if err != nil {
		return err
	}
	logger.Info("snapshot loaded", "agents", len(snap.Claimed), "active_edges", len(snap.Edges))

	reps := reputation.Rebuild(params, snap.Claimed, snap.Edges, passes)

	// Agents with no incoming edges are reset to zero explicitly, and
	// every target's edge count is refreshed alongside its score.
	edgeCounts := make(map[int64]int)
	for _, edge := range snap.Edges {
		edgeCounts[edge.To]++
	}
	for id := range snap.Claimed {
		if _, ok := reps[id]; !ok {
			reps[id] = 0
		}
	}

	if err := store.ApplyReputations(ctx, reps, edgeCounts); err != nil {
		return err
	}

	logger.Info("rebuild complete", "agents", len(reps))
	return nil
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}
