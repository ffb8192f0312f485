// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package naming derives the canonical workflow type, workflow ID and task
// queue strings for agent workflows. All functions are pure: the same inputs
// always produce the same strings, so a workflow can be addressed without any
// lookup once its identity is known.
//
// Layouts:
//
//	workflow type           {Agent}:{Workflow}
//	workflow ID (tenant)    {Tenant}:{Agent}:{Workflow}:{Qualifier}
//	workflow ID (system)    {Agent}:{Workflow}:{Qualifier}
//	task queue (tenant)     {Tenant}:{Agent}:{Workflow}
//	task queue (system)     {Agent}:{Workflow}
//
// An empty qualifier addresses the singleton instance and omits the trailing
// segment.
package naming

import (
	"fmt"
	"strings"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agenterr"
)

// Separator joins every identity segment.
const Separator = ":"

// ScopingMode decides whether identities carry a tenant segment.
type ScopingMode int

const (
	// TenantScoped agents are bound to exactly one tenant.
	TenantScoped ScopingMode = iota
	// SystemScoped agents are templates usable across tenants.
	SystemScoped
)

func (m ScopingMode) String() string {
	if m == SystemScoped {
		return "system"
	}
	return "tenant"
}

// ParseScopingMode accepts "tenant" or "system" (case-insensitive).
func ParseScopingMode(s string) (ScopingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "tenant":
		return TenantScoped, nil
	case "system":
		return SystemScoped, nil
	default:
		return TenantScoped, agenterr.Validation("naming", "unknown scoping mode %q", s)
	}
}

// AgentIdentity names an agent and its tenant binding.
type AgentIdentity struct {
	Name     string
	TenantID string
	Scoping  ScopingMode
}

// Validate checks the identity can be used to build names.
func (a AgentIdentity) Validate() error {
	if err := checkSegment("agent name", a.Name); err != nil {
		return err
	}
	if a.Scoping == TenantScoped {
		return checkSegment("tenant id", a.TenantID)
	}
	return nil
}

func (a AgentIdentity) String() string {
	if a.Scoping == SystemScoped {
		return a.Name
	}
	return a.TenantID + Separator + a.Name
}

// Workflow returns the identity of one of this agent's workflows.
func (a AgentIdentity) Workflow(workflowName, qualifier string) WorkflowIdentity {
	return WorkflowIdentity{
		AgentName:    a.Name,
		WorkflowName: workflowName,
		TenantID:     a.TenantID,
		Qualifier:    qualifier,
		Scoping:      a.Scoping,
	}
}

// WorkflowIdentity fully addresses one workflow instance.
type WorkflowIdentity struct {
	AgentName    string
	WorkflowName string
	TenantID     string
	Qualifier    string
	Scoping      ScopingMode
}

// Type returns the workflow type.
func (w WorkflowIdentity) Type() (string, error) {
	return BuildWorkflowType(w.AgentName, w.WorkflowName)
}

// ID returns the workflow ID.
func (w WorkflowIdentity) ID() (string, error) {
	return BuildWorkflowID(w.TenantID, w.AgentName, w.WorkflowName, w.Qualifier, w.Scoping)
}

// TaskQueue returns the task queue the instance is served on.
func (w WorkflowIdentity) TaskQueue() (string, error) {
	wfType, err := w.Type()
	if err != nil {
		return "", err
	}
	return BuildTaskQueueName(wfType, w.Scoping, w.TenantID)
}

// Names bundles the three derived strings.
type Names struct {
	Type      string
	ID        string
	TaskQueue string
}

// Resolve derives type, ID and task queue in one call.
func (w WorkflowIdentity) Resolve() (Names, error) {
	wfType, err := w.Type()
	if err != nil {
		return Names{}, err
	}
	id, err := w.ID()
	if err != nil {
		return Names{}, err
	}
	queue, err := BuildTaskQueueName(wfType, w.Scoping, w.TenantID)
	if err != nil {
		return Names{}, err
	}
	return Names{Type: wfType, ID: id, TaskQueue: queue}, nil
}

// BuildWorkflowType returns "{Agent}:{Workflow}".
func BuildWorkflowType(agentName, workflowName string) (string, error) {
	if err := checkSegment("agent name", agentName); err != nil {
		return "", err
	}
	if err := checkSegment("workflow name", workflowName); err != nil {
		return "", err
	}
	return agentName + Separator + workflowName, nil
}

// ParseWorkflowType splits a workflow type into agent and workflow names.
func ParseWorkflowType(workflowType string) (agentName, workflowName string, err error) {
	parts := strings.Split(workflowType, Separator)
	if len(parts) != 2 {
		return "", "", agenterr.FormatError(workflowType, "expected exactly one ':' between agent and workflow name")
	}
	if parts[0] == "" || parts[1] == "" {
		return "", "", agenterr.FormatError(workflowType, "agent and workflow names must be non-empty")
	}
	return parts[0], parts[1], nil
}

// BuildWorkflowID returns the workflow ID for the given identity parts.
func BuildWorkflowID(tenantID, agentName, workflowName, qualifier string, scoping ScopingMode) (string, error) {
	wfType, err := BuildWorkflowType(agentName, workflowName)
	if err != nil {
		return "", err
	}
	id := wfType
	if scoping == TenantScoped {
		if err := checkSegment("tenant id", tenantID); err != nil {
			return "", err
		}
		id = tenantID + Separator + id
	}
	if qualifier != "" {
		id = id + Separator + qualifier
	}
	return id, nil
}

// BuildTaskQueueName returns the task queue for a workflow type.
func BuildTaskQueueName(workflowType string, scoping ScopingMode, tenantID string) (string, error) {
	if _, _, err := ParseWorkflowType(workflowType); err != nil {
		return "", err
	}
	if scoping == SystemScoped {
		return workflowType, nil
	}
	if err := checkSegment("tenant id", tenantID); err != nil {
		return "", err
	}
	return tenantID + Separator + workflowType, nil
}

func checkSegment(what, value string) error {
	if strings.TrimSpace(value) == "" {
		return agenterr.Validation("naming", "%s must not be empty", what)
	}
	if strings.Contains(value, Separator) {
		return agenterr.FormatError(value, fmt.Sprintf("%s must not contain %q", what, Separator))
	}
	return nil
}
