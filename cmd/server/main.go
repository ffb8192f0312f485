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

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/internal/config"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/internal/host"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/internal/logger"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/internal/server"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/internal/telemetry"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/internal/temporal"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/registry"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
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
	defer logger.CloseGlobal()

	if err := run(cfg); err != nil {
		mainLog := logger.GetLogger("main")
		mainLog.Error().Err(err).Msg("Webhook server failed")
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig) error {
	mainLog := logger.GetLogger("main")
	mainLog.Info().Msg("Starting webhook server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tel, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = tel.Shutdown(shutdownCtx)
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
	defer closeStore()

	h, err := host.New(cfg, temporalClient.GetTemporalClient(), docs)
	if err != nil {
		return err
	}

	// The server hosts no workflows: every manifest agent is addressed remotely.
	manifest, err := registry.LoadManifest(cfg.Agent.ManifestPath, cfg.Agent.DefaultTenant)
	if err != nil {
		return err
	}
	if err := h.ApplyManifest(manifest, nil); err != nil {
		return err
	}

	srv := server.New(&cfg.Server, h.Registry(), h.Caller(), h.Launcher())

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- srv.Run(ctx)
	}()

	// Wait for signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		mainLog.Info().Msgf("Received signal %v, shutting down...", sig)
	case err := <-serverErrChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown: fresh context with timeout.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		mainLog.Error().Err(err).Msg("Error shutting down server")
	}

	mainLog.Info().Msg("Webhook server shut down")
	return nil
}
