// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package agentctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/naming"
)

var router = naming.AgentIdentity{Name: "Router", TenantID: "acme", Scoping: naming.TenantScoped}

type probeResult struct {
	Kind      string
	Replaying bool
	ID        string
	Agent     string
}

func probeWorkflow(ctx workflow.Context) (probeResult, error) {
	ac := ForWorkflow(ctx, router)
	return probeResult{
		Kind:      Current(ac).String(),
		Replaying: ac.IsReplaying(),
		ID:        ac.NewID(),
		Agent:     ac.Agent().String(),
	}, nil
}

func TestCurrent_Client(t *testing.T) {
	ac := ForClient(context.Background(), router)
	assert.Equal(t, Client, Current(ac))
	assert.Nil(t, ac.Workflow())
	assert.False(t, ac.IsReplaying())
	assert.NotEmpty(t, ac.NewID())
	assert.NotEqual(t, ac.NewID(), ac.NewID())
}

func TestCurrent_NilContextIsClient(t *testing.T) {
	assert.Equal(t, Client, Current(nil))
}

func TestCurrent_Workflow(t *testing.T) {
	var s testsuite.WorkflowTestSuite
	env := s.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(probeWorkflow)

	env.ExecuteWorkflow(probeWorkflow)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var res probeResult
	require.NoError(t, env.GetWorkflowResult(&res))
	assert.Equal(t, "workflow", res.Kind)
	assert.False(t, res.Replaying)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, "acme:Router", res.Agent)
}

func TestResolverIsConsultedPerCall(t *testing.T) {
	calls := 0
	r := ResolverFunc(func(c *Context) ExecutionContext {
		calls++
		return EngineResolver{}.Resolve(c)
	})

	client := ForClient(context.Background(), router)
	assert.Equal(t, Client, r.Resolve(client))
	assert.Equal(t, Client, r.Resolve(client))
	assert.Equal(t, 2, calls)
}

func TestWithHelpersCopy(t *testing.T) {
	ac := ForClient(context.Background(), router)
	other := naming.AgentIdentity{Name: "Billing", Scoping: naming.SystemScoped}

	switched := ac.WithAgent(other)
	assert.Equal(t, "Router", ac.Agent().Name)
	assert.Equal(t, "Billing", switched.Agent().Name)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rebound := ac.WithStd(ctx)
	assert.Equal(t, ctx, rebound.Std())
	assert.Equal(t, Client, Current(rebound))
}
