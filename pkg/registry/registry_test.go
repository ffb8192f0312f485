// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agenterr"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/naming"
)

func noopWorkflow() error { return nil }

func reg(name, tenant string, scoping naming.ScopingMode, workflows ...string) Registration {
	r := Registration{Identity: naming.AgentIdentity{Name: name, TenantID: tenant, Scoping: scoping}}
	for _, wf := range workflows {
		r.Workflows = append(r.Workflows, WorkflowDefinition{Name: wf, Kind: Custom{Fn: noopWorkflow}})
	}
	return r
}

func TestRegisterAndLookup(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(reg("Router", "acme", naming.TenantScoped, "Conversational")))
	require.NoError(t, r.Register(reg("Billing", "", naming.SystemScoped, "Invoices")))

	got, err := r.Lookup("acme", "Router")
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Identity.TenantID)

	sys, err := r.Lookup("globex", "Billing")
	require.NoError(t, err)
	assert.Equal(t, naming.SystemScoped, sys.Identity.Scoping)

	_, def, err := r.LookupWorkflow("acme", "Router", "Conversational")
	require.NoError(t, err)
	assert.Equal(t, "custom", KindName(def.Kind))
}

func TestLookup_TenantIsolation(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(reg("Router", "acme", naming.TenantScoped, "Conversational")))

	_, err := r.Lookup("globex", "Router")
	assert.ErrorIs(t, err, agenterr.ErrNotFound)

	_, err = r.Lookup("acme", "Unknown")
	assert.ErrorIs(t, err, agenterr.ErrNotFound)

	_, _, err = r.LookupWorkflow("acme", "Router", "Missing")
	assert.ErrorIs(t, err, agenterr.ErrNotFound)
}

func TestLookup_TenantRegistrationShadowsSystem(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(reg("Router", "", naming.SystemScoped, "Conversational")))
	require.NoError(t, r.Register(reg("Router", "acme", naming.TenantScoped, "Conversational")))

	got, err := r.Lookup("acme", "Router")
	require.NoError(t, err)
	assert.Equal(t, naming.TenantScoped, got.Identity.Scoping)

	got, err = r.Lookup("globex", "Router")
	require.NoError(t, err)
	assert.Equal(t, naming.SystemScoped, got.Identity.Scoping)
}

func TestRegister_Validation(t *testing.T) {
	r := New()
	tests := []struct {
		name string
		reg  Registration
	}{
		{"no workflows", reg("Router", "acme", naming.TenantScoped)},
		{"duplicate workflow", reg("Router", "acme", naming.TenantScoped, "A", "A")},
		{"bad workflow name", reg("Router", "acme", naming.TenantScoped, "A:B")},
		{"missing tenant", reg("Router", "", naming.TenantScoped, "A")},
		{"nil kind", Registration{
			Identity:  naming.AgentIdentity{Name: "Router", TenantID: "acme"},
			Workflows: []WorkflowDefinition{{Name: "A"}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, r.Register(tt.reg), agenterr.ErrValidation)
		})
	}

	require.NoError(t, r.Register(reg("Router", "acme", naming.TenantScoped, "A")))
	assert.ErrorIs(t, r.Register(reg("Router", "acme", naming.TenantScoped, "A")), agenterr.ErrValidation)
}

func TestAllIsOrdered(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(reg("Zeta", "acme", naming.TenantScoped, "A")))
	require.NoError(t, r.Register(reg("Alpha", "globex", naming.TenantScoped, "A")))
	require.NoError(t, r.Register(reg("Alpha", "acme", naming.TenantScoped, "A")))

	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, "acme:Alpha", all[0].Identity.String())
	assert.Equal(t, "globex:Alpha", all[1].Identity.String())
	assert.Equal(t, "acme:Zeta", all[2].Identity.String())
}

func TestConcurrentLookups(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(reg("Router", "acme", naming.TenantScoped, "Conversational")))

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Lookup("acme", "Router")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestParseManifest(t *testing.T) {
	data := []byte(`
agents:
  - name: Router
    scoping: tenant
    tasks: true
  - name: Billing
    tenant_id: ignored
    scoping: system
`)
	m, err := ParseManifest(data, "acme")
	require.NoError(t, err)
	require.Len(t, m.Agents, 2)

	router, err := m.Agents[0].Identity()
	require.NoError(t, err)
	assert.Equal(t, naming.AgentIdentity{Name: "Router", TenantID: "acme", Scoping: naming.TenantScoped}, router)
	assert.True(t, m.Agents[0].Tasks)

	billing, err := m.Agents[1].Identity()
	require.NoError(t, err)
	assert.Equal(t, "", billing.TenantID)
	assert.Equal(t, naming.SystemScoped, billing.Scoping)
}

func TestParseManifest_Invalid(t *testing.T) {
	_, err := ParseManifest([]byte("agents:\n  - name: Ro:uter\n"), "acme")
	assert.Error(t, err)

	_, err = ParseManifest([]byte("agents:\n  - name: Router\n    scoping: galaxy\n"), "acme")
	assert.Error(t, err)

	_, err = ParseManifest([]byte("agents: [\n"), "acme")
	assert.Error(t, err)
}

func TestLoadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agents:\n  - name: Router\n"), 0o644))

	m, err := LoadManifest(path, "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", m.Agents[0].TenantID)

	_, err = LoadManifest(filepath.Join(t.TempDir(), "missing.yaml"), "acme")
	assert.Error(t, err)
}

func TestRemoteRegistration(t *testing.T) {
	m, err := ParseManifest([]byte("agents:\n  - name: Router\n    workflows: [Conversational, Intake]\n"), "acme")
	require.NoError(t, err)

	remote, err := m.Agents[0].RemoteRegistration()
	require.NoError(t, err)
	require.Len(t, remote.Workflows, 2)
	assert.True(t, IsRemote(remote.Workflows[0].Kind))
	assert.Equal(t, "remote", KindName(remote.Workflows[1].Kind))

	r := New()
	require.NoError(t, r.Register(remote))
	got, def, err := r.LookupWorkflow("acme", "Router", "Intake")
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Identity.TenantID)
	assert.Nil(t, def.Kind.WorkflowFunc())
}
