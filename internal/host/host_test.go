// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package host_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/workflow"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/internal/config"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/internal/host"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/internal/store"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/a2a"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agent"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agenterr"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/documents"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/naming"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/registry"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/task"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/test/testutil"
)

func report(ctx workflow.Context) (string, error) { return "done", nil }

func newHost(t *testing.T) *host.Host {
	t.Helper()
	f := store.UseFreshInMemoryStore(t)
	t.Cleanup(f.Cleanup)
	h, err := host.New(config.Default(), testutil.NewFakeEngine(), f.Store)
	require.NoError(t, err)
	return h
}

func catalog() map[string]host.AgentFactory {
	return map[string]host.AgentFactory{
		"Reporter": func(h *host.Host, id naming.AgentIdentity) *agent.Agent {
			return agent.New(id).
				BuiltIn(h.BuiltInWorkflow(), agent.Handlers{}).
				Custom("Report", report)
		},
	}
}

func TestNew_RegistersDispatchedOperations(t *testing.T) {
	h := newHost(t)

	names := h.Dispatcher().Names()
	assert.Contains(t, names, a2a.OpExchange)
	assert.Contains(t, names, documents.OpSave)
	assert.Equal(t, "Conversational", h.BuiltInWorkflow())
}

func TestApplyManifest(t *testing.T) {
	h := newHost(t)
	m, err := registry.ParseManifest([]byte(`
agents:
  - name: Reporter
    scoping: tenant
    tasks: true
    disabled_workflows: [Report]
  - name: Billing
    scoping: system
    workflows: [Conversational, Invoice]
`), "acme")
	require.NoError(t, err)

	require.NoError(t, h.ApplyManifest(m, catalog()))

	reporter, err := h.Registry().Lookup("acme", "Reporter")
	require.NoError(t, err)
	_, hasReport := reporter.Workflow("Report")
	assert.False(t, hasReport)
	tasks, hasTasks := reporter.Workflow(task.WorkflowName)
	require.True(t, hasTasks)
	assert.Equal(t, "custom", registry.KindName(tasks.Kind))

	billing, err := h.Registry().Lookup("globex", "Billing")
	require.NoError(t, err)
	invoice, ok := billing.Workflow("Invoice")
	require.True(t, ok)
	assert.True(t, registry.IsRemote(invoice.Kind))
}

func TestApplyManifest_UnknownAgentWithoutWorkflows(t *testing.T) {
	h := newHost(t)
	m, err := registry.ParseManifest([]byte(`
agents:
  - name: Ghost
    scoping: tenant
`), "acme")
	require.NoError(t, err)

	err = h.ApplyManifest(m, catalog())
	assert.ErrorIs(t, err, agenterr.ErrValidation)
}

func TestOpenStore_LocalDatabase(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Database = ":memory:"

	s, closeFn, err := host.OpenStore(context.Background(), cfg)
	require.NoError(t, err)
	defer closeFn()

	scope := documents.Scope{TenantID: "acme", AgentName: "Reporter"}
	saved, err := s.SaveDocument(context.Background(), scope, documents.Document{Type: "note", Content: []byte(`{}`)}, documents.SaveOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
}

func TestOpenStore_InvalidBackendURL(t *testing.T) {
	cfg := config.Default()
	cfg.Backend.URL = "not a url"

	_, _, err := host.OpenStore(context.Background(), cfg)
	assert.Error(t, err)
}
