// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package rpc

import (
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/naming"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/registry"
)

// Target addresses a workflow instance relative to the caller.
type Target struct {
	// WorkflowType is "{Agent}:{Workflow}".
	WorkflowType string
	// IDPostfix selects the instance; empty selects the singleton.
	IDPostfix string
}

// TargetOf builds a Target from its parts.
func TargetOf(agentName, workflowName, idPostfix string) Target {
	return Target{WorkflowType: agentName + naming.Separator + workflowName, IDPostfix: idPostfix}
}

// Resolver turns a Target into concrete engine names using the registry and
// the caller's tenant.
type Resolver struct {
	reg *registry.Registry
}

// NewResolver creates a Resolver over reg.
func NewResolver(reg *registry.Registry) *Resolver {
	return &Resolver{reg: reg}
}

// Resolve validates the target and derives its workflow type, ID and task
// queue. Tenant-scoped targets resolve within the caller's tenant only;
// system-scoped targets never carry a tenant.
func (r *Resolver) Resolve(caller naming.AgentIdentity, t Target) (naming.Names, error) {
	agentName, workflowName, err := naming.ParseWorkflowType(t.WorkflowType)
	if err != nil {
		return naming.Names{}, err
	}
	reg, _, err := r.reg.LookupWorkflow(caller.TenantID, agentName, workflowName)
	if err != nil {
		return naming.Names{}, err
	}
	return reg.WorkflowIdentity(workflowName, t.IDPostfix).Resolve()
}
