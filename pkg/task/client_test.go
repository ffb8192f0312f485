// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package task

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/api/serviceerror"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agentctx"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agenterr"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/dispatch"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/naming"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/registry"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/rpc"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/subworkflow"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/test/testutil"
)

var reviewer = naming.AgentIdentity{Name: "Reviewer", TenantID: "acme"}

// fakeTasks emulates task instances on the fake engine with the same state
// rules as Workflow.
func fakeTasks(engine *testutil.FakeEngine) {
	engine.OnStart = func(inst *testutil.FakeInstance, args []json.RawMessage) {
		var req Request
		if err := json.Unmarshal(args[0], &req); err != nil {
			panic(err)
		}
		st := State{Title: req.Title, Draft: req.Draft, AvailableActions: req.AvailableActions}
		inst.HandleQuery(QueryGetState, func([]json.RawMessage) (any, error) { return st, nil })
		inst.HandleSignal(SignalUpdateDraft, func(arg json.RawMessage) {
			if !st.IsCompleted {
				_ = json.Unmarshal(arg, &st.Draft)
			}
		})
		inst.HandleSignal(SignalPerformAction, func(arg json.RawMessage) {
			var a ActionRequest
			_ = json.Unmarshal(arg, &a)
			if st.CheckAction(a.Action) == nil {
				st.PerformedAction, st.Comment, st.IsCompleted = a.Action, a.Comment, true
			}
		})
		// Once completed the instance has closed, so the engine no longer
		// routes updates to it.
		inst.HandleUpdate(UpdatePerformAction, func(_ context.Context, args []json.RawMessage) (any, error) {
			if st.IsCompleted {
				return nil, serviceerror.NewNotFound("workflow execution already completed")
			}
			var a ActionRequest
			if err := json.Unmarshal(args[0], &a); err != nil {
				return nil, err
			}
			if err := st.CheckAction(a.Action); err != nil {
				return nil, agenterr.ToApplicationError(err)
			}
			st.PerformedAction, st.Comment, st.IsCompleted = a.Action, a.Comment, true
			return st, nil
		})
	}
}

func newTaskClient(t *testing.T, engine *testutil.FakeEngine) *Client {
	t.Helper()
	reg := registry.New()
	require.NoError(t, reg.Register(registry.Registration{
		Identity:  reviewer,
		Workflows: []registry.WorkflowDefinition{{Name: WorkflowName, Kind: registry.Custom{Fn: Workflow}}},
	}))
	caller, err := rpc.NewCaller(dispatch.New(dispatch.Options{}), engine, rpc.NewResolver(reg), rpc.Options{DefaultTimeout: 5 * time.Second})
	require.NoError(t, err)
	return NewClient(caller, subworkflow.New(caller, subworkflow.Options{}), Options{DefaultTimeout: 48 * time.Hour})
}

func TestClient_Lifecycle(t *testing.T) {
	engine := testutil.NewFakeEngine()
	fakeTasks(engine)
	c := newTaskClient(t, engine)
	ac := agentctx.ForClient(context.Background(), reviewer)

	id, err := c.Create(ac, Request{Title: "Refund #12", Draft: "v0"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	starts := engine.Starts()
	require.Len(t, starts, 1)
	assert.Equal(t, "acme:Reviewer:TaskWorkflow:"+id, starts[0].ID)
	assert.Equal(t, "acme:Reviewer:TaskWorkflow", starts[0].TaskQueue)
	var sent Request
	require.NoError(t, json.Unmarshal(starts[0].Args[0], &sent))
	assert.Equal(t, []string{"approve", "reject"}, sent.AvailableActions)
	assert.Equal(t, 48*time.Hour, sent.Timeout)

	require.NoError(t, c.UpdateDraft(ac, id, "v1"))
	require.NoError(t, c.UpdateDraft(ac, id, "v2"))
	st, err := c.GetState(ac, id)
	require.NoError(t, err)
	assert.Equal(t, "v2", st.Draft)

	require.NoError(t, c.PerformAction(ac, id, "reject", "bad"))
	st, err = c.GetState(ac, id)
	require.NoError(t, err)
	assert.True(t, st.IsCompleted)
	assert.Equal(t, "reject", st.PerformedAction)
	assert.Equal(t, "bad", st.Comment)
}

func TestClient_TerminalStateRejected(t *testing.T) {
	engine := testutil.NewFakeEngine()
	fakeTasks(engine)
	c := newTaskClient(t, engine)
	ac := agentctx.ForClient(context.Background(), reviewer)

	id, err := c.Create(ac, Request{Title: "Contract"})
	require.NoError(t, err)
	require.NoError(t, c.PerformAction(ac, id, "approve", ""))

	inst, ok := engine.Instance("acme:Reviewer:TaskWorkflow:" + id)
	require.True(t, ok)
	delivered := len(inst.Received())

	err = c.PerformAction(ac, id, "reject", "changed my mind")
	assert.ErrorIs(t, err, agenterr.ErrTerminalState)
	err = c.PerformAction(ac, id, "approve", "")
	assert.ErrorIs(t, err, agenterr.ErrTerminalState)
	err = c.UpdateDraft(ac, id, "late edit")
	assert.ErrorIs(t, err, agenterr.ErrTerminalState)
	assert.Len(t, inst.Received(), delivered)

	st, err := c.GetState(ac, id)
	require.NoError(t, err)
	assert.Equal(t, "approve", st.PerformedAction)
}

func TestClient_PerformActionSyncOnClosedTask(t *testing.T) {
	engine := testutil.NewFakeEngine()
	fakeTasks(engine)
	c := newTaskClient(t, engine)
	ac := agentctx.ForClient(context.Background(), reviewer)

	id, err := c.Create(ac, Request{Title: "Contract"})
	require.NoError(t, err)

	st, err := c.PerformActionSync(ac, id, "approve", "lgtm")
	require.NoError(t, err)
	assert.True(t, st.IsCompleted)
	assert.Equal(t, "approve", st.PerformedAction)

	st, err = c.PerformActionSync(ac, id, "reject", "too late")
	assert.ErrorIs(t, err, agenterr.ErrTerminalState)
	assert.NotErrorIs(t, err, agenterr.ErrNotFound)
	assert.Equal(t, "approve", st.PerformedAction)
	assert.Equal(t, "lgtm", st.Comment)

	_, err = c.PerformActionSync(ac, "no-such-task", "approve", "")
	assert.ErrorIs(t, err, agenterr.ErrNotFound)
}

func TestClient_Validation(t *testing.T) {
	engine := testutil.NewFakeEngine()
	fakeTasks(engine)
	c := newTaskClient(t, engine)
	ac := agentctx.ForClient(context.Background(), reviewer)

	_, err := c.Create(ac, Request{})
	assert.ErrorIs(t, err, agenterr.ErrValidation)
	assert.Empty(t, engine.Starts())

	id, err := c.Create(ac, Request{Title: "Budget", AvailableActions: []string{"accept", "defer"}})
	require.NoError(t, err)
	err = c.PerformAction(ac, id, "approve", "")
	assert.ErrorIs(t, err, agenterr.ErrValidation)
	assert.True(t, strings.Contains(err.Error(), "accept"))

	_, err = c.GetState(ac, "")
	assert.ErrorIs(t, err, agenterr.ErrValidation)

	_, err = c.GetState(ac, "no-such-task")
	assert.ErrorIs(t, err, agenterr.ErrNotFound)
}

func TestClient_UnregisteredAgent(t *testing.T) {
	c := newTaskClient(t, testutil.NewFakeEngine())
	other := agentctx.ForClient(context.Background(), naming.AgentIdentity{Name: "Stranger", TenantID: "acme"})

	_, err := c.Create(other, Request{Title: "x"})
	assert.ErrorIs(t, err, agenterr.ErrNotFound)
}
