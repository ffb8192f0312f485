// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/internal/assistant"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/internal/config"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/internal/host"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/internal/logger"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/internal/telemetry"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/internal/temporal"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/internal/worker"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/registry"
)

// catalog lists the agents this binary can host.
var catalog = map[string]host.AgentFactory{
	assistant.Name: assistant.New,
}

func main() {
	configPath := flag.String("config", "", "path to config file (default: search ./config.yaml, ./config, /etc/xiansai, ~/.xiansai)")
	flag.Parse()

	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(&cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := logger.CloseGlobal(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing logger: %v\n", err)
		}
	}()

	if err := run(cfg); err != nil {
		mainLog := logger.GetLogger("main")
		mainLog.Error().Err(err).Msg("Worker failed")
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig) error {
	mainLog := logger.GetLogger("main")
	mainLog.Info().Str("manifest", cfg.Agent.ManifestPath).Msg("Starting agent worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tel, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			mainLog.Warn().Err(err).Msg("Error shutting down telemetry")
		}
	}()

	temporalClient, err := temporal.NewClient(cfg.Temporal, tel.ClientInterceptors()...)
	if err != nil {
		return err
	}
	defer temporalClient.Close()

	docs, closeStore, err := host.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			mainLog.Warn().Err(err).Msg("Error closing document store")
		}
	}()

	h, err := host.New(cfg, temporalClient.GetTemporalClient(), docs)
	if err != nil {
		return err
	}

	manifest, err := registry.LoadManifest(cfg.Agent.ManifestPath, cfg.Agent.DefaultTenant)
	if err != nil {
		return err
	}
	if err := h.ApplyManifest(manifest, catalog); err != nil {
		return err
	}

	pool := worker.NewPool(worker.TemporalFactory(temporalClient.GetTemporalClient()), cfg.Temporal.Worker, h.Dispatcher())
	if err := pool.AddAll(h.Registry()); err != nil {
		return err
	}
	if err := pool.Start(ctx); err != nil {
		return err
	}
	mainLog.Info().Strs("task_queues", pool.TaskQueues()).Msg("Worker started, waiting for workflows...")

	// Handle OS signals for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	mainLog.Info().Msgf("Received signal %v, stopping workers...", sig)

	cancel()
	pool.Stop()
	mainLog.Info().Msg("Worker shutdown complete")
	return nil
}
