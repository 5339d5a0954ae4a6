// Copyright 2026 The Agent Ethos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/agent-ethos/ethos/lib/clock"
	"github.com/agent-ethos/ethos/lib/config"
	"github.com/agent-ethos/ethos/lib/ledger"
	"github.com/agent-ethos/ethos/lib/process"
	"github.com/agent-ethos/ethos/lib/ratelimit"
	"github.com/agent-ethos/ethos/lib/reputation"
	"github.com/agent-ethos/ethos/lib/version"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var (
		configPath  string
		listen      string
		showVersion bool
	)
	pflag.StringVar(&configPath, "config", "", "path to the config file (overrides ETHOS_CONFIG)")
	pflag.StringVar(&listen, "listen", "", "listen address (overrides the config file)")
	pflag.BoolVar(&showVersion, "version", false, "print version and exit")
	pflag.Parse()

	if showVersion {
		version.Print("ethos-server")
		return
	}

	if err := run(configPath, listen); err != nil {
		process.Fatal(err)
	}
}

func run(configPath, listen string) error {
	// A .env in the working directory is a development convenience;
	// its absence is not an error.
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Listen = listen
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk := clock.Real()

	store, err := ledger.Open(ledger.Config{
		Path:     cfg.Database.Path,
		PoolSize: cfg.Database.PoolSize,
		Clock:    clk,
		Logger:   logger,
		Params:   scoringParams(cfg),
	})
	if err != nil {
		return err
	}
	defer store.Close()

	limiter := ratelimit.New(clk, cfg.RateLimit.Requests, cfg.RateLimitInterval())
	go limiter.Run(ctx)

	srv := newServer(store, limiter, cfg, clk, logger)
	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	logger.Info("ethos-server listening",
		"addr", cfg.Listen,
		"database", cfg.Database.Path,
		"version", version.String(),
	)

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}

// scoringParams maps the config's scoring section onto the scorer's
// parameter struct.
func scoringParams(cfg *config.Config) reputation.Params {
	return reputation.Params{
		MultiplierFloor:     cfg.Scoring.MultiplierFloor,
		MultiplierCap:       cfg.Scoring.MultiplierCap,
		ReputationScale:     cfg.Scoring.ReputationScale,
		ClaimedBonus:        cfg.Scoring.ClaimedBonus,
		FlagPenalty:         cfg.Scoring.FlagPenalty,
		ReciprocityWindow:   cfg.ReciprocityWindow(),
		ReciprocityFactor:   cfg.Scoring.ReciprocityFactor,
		ReciprocityMinScore: cfg.Scoring.ReciprocityMinScore,
	}
}
