// Package main runs a single poll cycle and exits.
// Useful for manual runs and cron-less deployments.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"announcement-radar/internal/app"
	"announcement-radar/internal/config"
	"announcement-radar/internal/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: ./config.yaml if present)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	flag.Parse()

	if err := run(*configPath, *useMemory); err != nil {
		fmt.Fprintf(os.Stderr, "poll: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, useMemory bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if useMemory {
		cfg.Storage.Driver = config.DriverMemory
	}

	log, err := logger.New(logger.Config{Level: cfg.Logger.Level, Development: cfg.Logger.Development})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log, nil)
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}
	defer a.Close()

	result, err := a.Orchestrator.RunCycle(ctx)
	if err != nil {
		return fmt.Errorf("poll cycle: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
