// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package host assembles the SDK components a process needs from its
// configuration: registry, dispatcher, RPC caller, launcher and the clients
// built on them.
package host

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/internal/config"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/internal/logger"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/internal/store"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/internal/temporal"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/a2a"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agent"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agenterr"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/backend"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/dispatch"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/documents"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/naming"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/registry"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/rpc"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/subworkflow"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/task"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetAgentLogger().With().Str("component", "host").Logger()
		log = &l
	})
	return log
}

// Host owns the SDK components of one process.
type Host struct {
	registry   *registry.Registry
	dispatcher *dispatch.Dispatcher
	caller     *rpc.Caller
	launcher   *subworkflow.Launcher
	a2a        *a2a.Client
	tasks      *task.Client
	documents  *documents.Client
	builtIn    string
}

// New wires the components. engine may be a real Temporal client or any
// stand-in implementing rpc.EngineClient.
func New(cfg *config.AppConfig, engine rpc.EngineClient, docs documents.Store) (*Host, error) {
	reg := registry.New()
	d := dispatch.New(dispatch.Options{ActivityOptions: temporal.GetActivityOptions(cfg)})

	caller, err := rpc.NewCaller(d, engine, rpc.NewResolver(reg), rpc.Options{DefaultTimeout: cfg.Temporal.CallTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to create rpc caller: %w", err)
	}
	launcher := subworkflow.New(caller, subworkflow.Options{ExecutionTimeout: cfg.Temporal.Workflow.WorkflowExecutionTimeout})

	messaging, err := a2a.NewClient(d, caller, a2a.Options{
		BuiltInWorkflow: cfg.A2A.BuiltInWorkflow,
		DefaultTimeout:  cfg.A2A.DefaultTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create a2a client: %w", err)
	}

	docClient, err := documents.NewClient(d, docs)
	if err != nil {
		return nil, fmt.Errorf("failed to create documents client: %w", err)
	}

	return &Host{
		registry:   reg,
		dispatcher: d,
		caller:     caller,
		launcher:   launcher,
		a2a:        messaging,
		tasks: task.NewClient(caller, launcher, task.Options{
			DefaultTimeout: cfg.Task.DefaultTimeout,
			DefaultActions: cfg.Task.DefaultActions,
		}),
		documents: docClient,
		builtIn:   cfg.A2A.BuiltInWorkflow,
	}, nil
}

// Registry returns the agent registry.
func (h *Host) Registry() *registry.Registry { return h.registry }

// Dispatcher returns the dispatcher whose operations workers must register.
func (h *Host) Dispatcher() *dispatch.Dispatcher { return h.dispatcher }

// Caller returns the cross-workflow RPC caller.
func (h *Host) Caller() *rpc.Caller { return h.caller }

// Launcher returns the sub-workflow launcher.
func (h *Host) Launcher() *subworkflow.Launcher { return h.launcher }

// A2A returns the agent-to-agent messaging client.
func (h *Host) A2A() *a2a.Client { return h.a2a }

// Tasks returns the task client.
func (h *Host) Tasks() *task.Client { return h.tasks }

// Documents returns the document and knowledge client.
func (h *Host) Documents() *documents.Client { return h.documents }

// BuiltInWorkflow is the workflow name A2A messages address by default.
func (h *Host) BuiltInWorkflow() string {
	if h.builtIn == "" {
		return a2a.DefaultBuiltInWorkflow
	}
	return h.builtIn
}

// AgentFactory builds the code-defined agent a manifest entry selects.
type AgentFactory func(h *Host, identity naming.AgentIdentity) *agent.Agent

// ApplyManifest registers every manifest entry. Entries with a factory in
// catalog are hosted locally; entries listing workflows but no factory are
// registered as remote so they can be addressed.
func (h *Host) ApplyManifest(m *registry.Manifest, catalog map[string]AgentFactory) error {
	for _, spec := range m.Agents {
		identity, err := spec.Identity()
		if err != nil {
			return err
		}

		factory, ok := catalog[spec.Name]
		if !ok {
			if len(spec.Workflows) == 0 {
				return agenterr.Validation("host", "agent %q has no implementation in this process and declares no workflows", spec.Name)
			}
			reg, err := spec.RemoteRegistration()
			if err != nil {
				return err
			}
			if err := h.registry.Register(reg); err != nil {
				return fmt.Errorf("failed to register remote agent %s: %w", identity.String(), err)
			}
			getLog().Info().Str("agent", identity.String()).Strs("workflows", spec.Workflows).Msg("Registered remote agent")
			continue
		}

		a := factory(h, identity)
		if _, hasTasks := a.Registration().Workflow(task.WorkflowName); spec.Tasks && !hasTasks {
			a.WithTasks()
		}
		a.Without(spec.Disabled...)
		if err := a.Register(h.registry); err != nil {
			return fmt.Errorf("failed to register agent %s: %w", identity.String(), err)
		}
		getLog().Info().
			Str("agent", identity.String()).
			Int("workflows", len(a.Registration().Workflows)).
			Msg("Registered agent")
	}
	return nil
}

// OpenStore returns the document store selected by cfg: the platform backend
// when a URL is configured, the local database otherwise. The returned
// function releases it.
func OpenStore(ctx context.Context, cfg *config.AppConfig) (documents.Store, func() error, error) {
	if cfg.Backend.URL != "" {
		c, err := backend.New(backend.Options{
			BaseURL:           cfg.Backend.URL,
			APIKey:            cfg.Backend.APIKey,
			Timeout:           cfg.Backend.Timeout,
			MaxRetries:        cfg.Backend.MaxRetries,
			RequestsPerSecond: cfg.Backend.RequestsPerSecond,
			Burst:             cfg.Backend.Burst,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create backend client: %w", err)
		}
		getLog().Info().Str("url", cfg.Backend.URL).Msg("Using platform backend for documents")
		return c, func() error { return nil }, nil
	}

	s, err := store.NewGormStore(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := s.AutoMigrate(); err != nil {
		_ = s.Close()
		return nil, nil, fmt.Errorf("failed to migrate document store: %w", err)
	}
	if n, err := s.PurgeExpired(ctx); err != nil {
		getLog().Warn().Err(err).Msg("Failed to purge expired documents")
	} else if n > 0 {
		getLog().Info().Int64("purged", n).Msg("Purged expired documents")
	}
	return s, s.Close, nil
}
