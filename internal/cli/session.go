// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/internal/config"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/internal/host"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/internal/temporal"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agentctx"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/naming"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/registry"
)

// Session is an open connection to the agent runtime.
type Session struct {
	Config *config.AppConfig
	Host   *host.Host

	closers []func() error
}

// NewSession wraps an already wired host. closers run in reverse order on
// Close.
func NewSession(cfg *config.AppConfig, h *host.Host, closers ...func() error) *Session {
	return &Session{Config: cfg, Host: h, closers: closers}
}

// Close releases the session's connections.
func (s *Session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Opener connects to the runtime using the config file at configPath.
type Opener func(ctx context.Context, configPath string) (*Session, error)

// Open loads the config, connects to Temporal and the document store, and
// registers every manifest agent as remote.
func Open(ctx context.Context, configPath string) (*Session, error) {
	cfg, err := config.NewConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	temporalClient, err := temporal.NewClient(cfg.Temporal)
	if err != nil {
		return nil, err
	}
	closeClient := func() error { return temporalClient.Close() }

	docs, closeStore, err := host.OpenStore(ctx, cfg)
	if err != nil {
		_ = closeClient()
		return nil, err
	}
	s := NewSession(cfg, nil, closeClient, closeStore)

	h, err := host.New(cfg, temporalClient.GetTemporalClient(), docs)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	manifest, err := registry.LoadManifest(cfg.Agent.ManifestPath, cfg.Agent.DefaultTenant)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	if err := h.ApplyManifest(manifest, nil); err != nil {
		_ = s.Close()
		return nil, err
	}
	s.Host = h
	return s, nil
}

// callerContext builds the client context commands act in. tenant falls back
// to the configured default tenant.
func (s *Session) callerContext(ctx context.Context, tenant, agentName string) (*agentctx.Context, error) {
	if tenant == "" {
		tenant = s.Config.Agent.DefaultTenant
	}
	identity := naming.AgentIdentity{Name: agentName, TenantID: tenant, Scoping: naming.TenantScoped}
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	return agentctx.ForClient(ctx, identity), nil
}

// agentContext acts as a registered agent, using its own scoping.
func (s *Session) agentContext(ctx context.Context, tenant, agentName string) (*agentctx.Context, error) {
	if agentName == "" {
		return nil, fmt.Errorf("--agent is required")
	}
	if tenant == "" {
		tenant = s.Config.Agent.DefaultTenant
	}
	reg, err := s.Host.Registry().Lookup(tenant, agentName)
	if err != nil {
		return nil, err
	}
	identity := reg.Identity
	if identity.Scoping == naming.SystemScoped {
		identity.TenantID = tenant
	}
	return agentctx.ForClient(ctx, identity), nil
}
