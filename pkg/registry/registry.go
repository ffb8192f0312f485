// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package registry records which agents exist, how they are scoped and which
// workflows they define. It is written once during process setup and read
// concurrently afterwards.
package registry

import (
	"sort"
	"sync"

	"github.com/samber/lo"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agenterr"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/naming"
)

// WorkflowKind tags a workflow definition as built-in (served by a handler
// table) or custom (a user-supplied workflow function).
type WorkflowKind interface {
	// WorkflowFunc returns the function registered with the engine.
	WorkflowFunc() interface{}
	kindName() string
}

// BuiltIn is a workflow generated from a handler table.
type BuiltIn struct {
	Handlers any
	Fn       interface{}
}

func (b BuiltIn) WorkflowFunc() interface{} { return b.Fn }
func (BuiltIn) kindName() string            { return "builtin" }

// Custom is a user-supplied workflow function.
type Custom struct {
	Fn interface{}
}

func (c Custom) WorkflowFunc() interface{} { return c.Fn }
func (Custom) kindName() string            { return "custom" }

// Remote declares a workflow hosted by another process. It can be addressed
// but a worker never registers it.
type Remote struct{}

func (Remote) WorkflowFunc() interface{} { return nil }
func (Remote) kindName() string          { return "remote" }

// IsRemote reports whether k is hosted elsewhere.
func IsRemote(k WorkflowKind) bool {
	_, ok := k.(Remote)
	return ok
}

// KindName returns "builtin", "custom" or "remote".
func KindName(k WorkflowKind) string {
	if k == nil {
		return ""
	}
	return k.kindName()
}

// WorkflowDefinition is one named workflow of an agent.
type WorkflowDefinition struct {
	Name string
	Kind WorkflowKind
}

// Registration is everything known about one agent.
type Registration struct {
	Identity  naming.AgentIdentity
	Workflows []WorkflowDefinition
}

// Workflow looks up a workflow definition by name.
func (r Registration) Workflow(name string) (WorkflowDefinition, bool) {
	return lo.Find(r.Workflows, func(d WorkflowDefinition) bool { return d.Name == name })
}

// WorkflowIdentity addresses one instance of the named workflow.
func (r Registration) WorkflowIdentity(workflowName, qualifier string) naming.WorkflowIdentity {
	return r.Identity.Workflow(workflowName, qualifier)
}

// systemKey indexes system-scoped registrations, which carry no tenant.
const systemKey = ""

// Registry is a concurrency-safe, read-mostly agent table.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]map[string]Registration // agent name -> tenant (or systemKey)
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{agents: make(map[string]map[string]Registration)}
}

// Register adds an agent. Registering the same agent twice for the same
// tenant (or twice as system-scoped) is rejected.
func (r *Registry) Register(reg Registration) error {
	if err := reg.Identity.Validate(); err != nil {
		return err
	}
	if len(reg.Workflows) == 0 {
		return agenterr.Validation("registry", "agent %q declares no workflows", reg.Identity.Name)
	}
	if dups := lo.FindDuplicatesBy(reg.Workflows, func(d WorkflowDefinition) string { return d.Name }); len(dups) > 0 {
		return agenterr.Validation("registry", "agent %q declares workflow %q twice", reg.Identity.Name, dups[0].Name)
	}
	for _, d := range reg.Workflows {
		if _, err := naming.BuildWorkflowType(reg.Identity.Name, d.Name); err != nil {
			return err
		}
		if d.Kind == nil || (d.Kind.WorkflowFunc() == nil && !IsRemote(d.Kind)) {
			return agenterr.Validation("registry", "workflow %q of agent %q has no implementation", d.Name, reg.Identity.Name)
		}
	}

	key := systemKey
	if reg.Identity.Scoping == naming.TenantScoped {
		key = reg.Identity.TenantID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	byTenant, ok := r.agents[reg.Identity.Name]
	if !ok {
		byTenant = make(map[string]Registration)
		r.agents[reg.Identity.Name] = byTenant
	}
	if _, exists := byTenant[key]; exists {
		return agenterr.Validation("registry", "agent %q already registered", reg.Identity.String())
	}
	byTenant[key] = reg
	return nil
}

// Lookup finds the registration of agentName visible to tenantID: the
// tenant's own registration first, then a system-scoped one. Tenant-scoped
// agents of other tenants are never visible.
func (r *Registry) Lookup(tenantID, agentName string) (Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byTenant, ok := r.agents[agentName]
	if !ok {
		return Registration{}, agenterr.AgentNotFound(agentName)
	}
	if tenantID != "" {
		if reg, ok := byTenant[tenantID]; ok {
			return reg, nil
		}
	}
	if reg, ok := byTenant[systemKey]; ok {
		return reg, nil
	}
	return Registration{}, agenterr.AgentNotFound(agentName)
}

// LookupWorkflow resolves an agent and one of its workflows.
func (r *Registry) LookupWorkflow(tenantID, agentName, workflowName string) (Registration, WorkflowDefinition, error) {
	reg, err := r.Lookup(tenantID, agentName)
	if err != nil {
		return Registration{}, WorkflowDefinition{}, err
	}
	def, ok := reg.Workflow(workflowName)
	if !ok {
		return Registration{}, WorkflowDefinition{}, agenterr.NotFound("registry", "agent %q has no workflow %q", agentName, workflowName)
	}
	return reg, def, nil
}

// All returns every registration ordered by agent then tenant.
func (r *Registry) All() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := lo.FlatMap(lo.Values(r.agents), func(byTenant map[string]Registration, _ int) []Registration {
		return lo.Values(byTenant)
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Identity.Name != out[j].Identity.Name {
			return out[i].Identity.Name < out[j].Identity.Name
		}
		return out[i].Identity.TenantID < out[j].Identity.TenantID
	})
	return out
}
