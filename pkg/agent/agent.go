// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package agent composes an agent from its workflows. Built-in workflows are
// generated from a handler table, custom workflows are plain workflow
// functions; both are fixed when the agent is registered.
package agent

import (
	"github.com/samber/lo"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agenterr"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/naming"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/registry"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/task"
)

// Agent is a builder for one agent registration.
type Agent struct {
	identity  naming.AgentIdentity
	workflows []registry.WorkflowDefinition
}

// New starts an agent definition.
func New(identity naming.AgentIdentity) *Agent {
	if identity.Scoping == naming.SystemScoped {
		identity.TenantID = ""
	}
	return &Agent{identity: identity}
}

// Identity returns the agent's identity.
func (a *Agent) Identity() naming.AgentIdentity { return a.identity }

// BuiltIn adds a built-in workflow served by h.
func (a *Agent) BuiltIn(name string, h Handlers) *Agent {
	a.workflows = append(a.workflows, registry.WorkflowDefinition{
		Name: name,
		Kind: registry.BuiltIn{Handlers: h, Fn: BuiltInWorkflow(a.identity, h)},
	})
	return a
}

// Custom adds a user-supplied workflow function.
func (a *Agent) Custom(name string, fn interface{}) *Agent {
	a.workflows = append(a.workflows, registry.WorkflowDefinition{Name: name, Kind: registry.Custom{Fn: fn}})
	return a
}

// WithTasks lets the agent host task workflows.
func (a *Agent) WithTasks() *Agent {
	return a.Custom(task.WorkflowName, task.Workflow)
}

// Without drops the named workflows, e.g. ones a manifest disables.
func (a *Agent) Without(names ...string) *Agent {
	a.workflows = lo.Reject(a.workflows, func(wf registry.WorkflowDefinition, _ int) bool {
		return lo.Contains(names, wf.Name)
	})
	return a
}

// Registration returns what Register writes into the registry.
func (a *Agent) Registration() registry.Registration {
	return registry.Registration{
		Identity:  a.identity,
		Workflows: append([]registry.WorkflowDefinition(nil), a.workflows...),
	}
}

// Register validates the agent and adds it to reg.
func (a *Agent) Register(reg *registry.Registry) error {
	if reg == nil {
		return agenterr.Validation("agent", "registry must not be nil")
	}
	return reg.Register(a.Registration())
}

// ForTenant returns a copy of a bound to tenantID. Built-in workflows are
// rebuilt so their handlers see the new identity.
func (a *Agent) ForTenant(tenantID string) *Agent {
	identity := a.identity
	if identity.Scoping == naming.TenantScoped {
		identity.TenantID = tenantID
	}
	out := &Agent{identity: identity}
	for _, wf := range a.workflows {
		if b, ok := wf.Kind.(registry.BuiltIn); ok {
			if h, ok := b.Handlers.(Handlers); ok {
				out.BuiltIn(wf.Name, h)
				continue
			}
		}
		out.workflows = append(out.workflows, wf)
	}
	return out
}
