// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/a2a"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agentctx"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agenterr"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/naming"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/registry"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/task"
)

var target = naming.AgentIdentity{Name: "Target", TenantID: "T1"}

func report(ctx workflow.Context) (string, error) { return "done", nil }

func TestBuilderRegistersTaggedWorkflows(t *testing.T) {
	reg := registry.New()
	a := New(target).
		BuiltIn("Conversational", Handlers{}).
		Custom("Report", report).
		WithTasks()
	require.NoError(t, a.Register(reg))

	r, def, err := reg.LookupWorkflow("T1", "Target", "Conversational")
	require.NoError(t, err)
	assert.Equal(t, target, r.Identity)
	assert.Equal(t, "builtin", registry.KindName(def.Kind))

	_, def, err = reg.LookupWorkflow("T1", "Target", "Report")
	require.NoError(t, err)
	assert.Equal(t, "custom", registry.KindName(def.Kind))

	_, _, err = reg.LookupWorkflow("T1", "Target", task.WorkflowName)
	require.NoError(t, err)

	assert.ErrorIs(t, a.Register(reg), agenterr.ErrValidation)
	assert.ErrorIs(t, New(target).Register(registry.New()), agenterr.ErrValidation)
}

func TestWithoutAndForTenant(t *testing.T) {
	a := New(target).BuiltIn("Conversational", Handlers{}).Custom("Report", report).Without("Report")
	require.Len(t, a.Registration().Workflows, 1)

	b := a.ForTenant("T2")
	assert.Equal(t, "T2", b.Identity().TenantID)
	assert.Equal(t, "T1", a.Identity().TenantID)

	sys := New(naming.AgentIdentity{Name: "Router", TenantID: "ignored", Scoping: naming.SystemScoped})
	assert.Empty(t, sys.Identity().TenantID)
	assert.Empty(t, sys.ForTenant("T3").Identity().TenantID)
}

type builtInHarness struct {
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
}

func newBuiltIn(h Handlers) *builtInHarness {
	s := &builtInHarness{}
	s.env = s.NewTestWorkflowEnvironment()
	s.env.RegisterWorkflowWithOptions(BuiltInWorkflow(target, h), workflow.RegisterOptions{Name: "Target:Conversational"})
	return s
}

func (s *builtInHarness) complete(after time.Duration) {
	s.env.RegisterDelayedCallback(func() {
		s.env.SignalWorkflow(SignalComplete, nil)
	}, after)
}

func decodeInto(result interface{}, out any) {
	if raw, err := json.Marshal(result); err == nil {
		_ = json.Unmarshal(raw, out)
	}
}

func TestBuiltIn_ChatRoundTrip(t *testing.T) {
	var seen []a2a.Envelope
	s := newBuiltIn(Handlers{
		OnChat: func(mc *a2a.MessageContext) error {
			seen = append(seen, mc.Envelope)
			return mc.Reply(mc.Text() + " world")
		},
	})

	var reply a2a.Response
	var replyErr error
	s.env.RegisterDelayedCallback(func() {
		s.env.SignalWorkflow(a2a.SignalInbound, a2a.Envelope{
			RequestID:     "req-1",
			TenantID:      "T1",
			Type:          a2a.TypeChat,
			Text:          "hello",
			Scope:         "S",
			Hint:          "H",
			ThreadID:      "T",
			Authorization: "Bearer X",
			Metadata:      map[string]string{"k": "v"},
		})
		s.env.UpdateWorkflow(a2a.UpdateAwaitReply, "req-1", &testsuite.TestUpdateCallback{
			OnAccept: func() {},
			OnReject: func(err error) { replyErr = err },
			OnComplete: func(result interface{}, err error) {
				replyErr = err
				decodeInto(result, &reply)
			},
		}, "req-1")
	}, time.Second)
	s.complete(time.Minute)

	s.env.ExecuteWorkflow("Target:Conversational")

	require.True(t, s.env.IsWorkflowCompleted())
	require.NoError(t, s.env.GetWorkflowError())
	require.NoError(t, replyErr)
	assert.Equal(t, "hello world", reply.Text)

	require.Len(t, seen, 1)
	assert.Equal(t, "req-1", seen[0].RequestID)
	assert.Equal(t, "S", seen[0].Scope)
	assert.Equal(t, "H", seen[0].Hint)
	assert.Equal(t, "T", seen[0].ThreadID)
	assert.Equal(t, "Bearer X", seen[0].Authorization)
	assert.Equal(t, map[string]string{"k": "v"}, seen[0].Metadata)
}

func TestBuiltIn_Webhook(t *testing.T) {
	s := newBuiltIn(Handlers{
		OnWebhook: func(ac *agentctx.Context, req WebhookRequest) (WebhookResponse, error) {
			if req.Name == "broken" {
				return WebhookResponse{}, errors.New("downstream unavailable")
			}
			return WebhookResponse{
				StatusCode: http.StatusCreated,
				Headers:    map[string]string{"X-Agent": ac.Agent().Name},
				Content:    "received " + req.Body,
			}, nil
		},
	})

	var ok, broken WebhookResponse
	s.env.RegisterDelayedCallback(func() {
		s.env.UpdateWorkflow(UpdateWebhook, "w-1", &testsuite.TestUpdateCallback{
			OnAccept:   func() {},
			OnReject:   func(err error) { t.Errorf("webhook rejected: %v", err) },
			OnComplete: func(result interface{}, err error) { decodeInto(result, &ok) },
		}, WebhookRequest{Name: "order", Method: http.MethodPost, Body: `{"id":1}`})
		s.env.UpdateWorkflow(UpdateWebhook, "w-2", &testsuite.TestUpdateCallback{
			OnAccept:   func() {},
			OnReject:   func(err error) { t.Errorf("webhook rejected: %v", err) },
			OnComplete: func(result interface{}, err error) { decodeInto(result, &broken) },
		}, WebhookRequest{Name: "broken", Method: http.MethodPost})
	}, time.Second)
	s.complete(time.Minute)

	s.env.ExecuteWorkflow("Target:Conversational")

	require.NoError(t, s.env.GetWorkflowError())
	assert.Equal(t, http.StatusCreated, ok.StatusCode)
	assert.Equal(t, "Target", ok.Headers["X-Agent"])
	assert.Equal(t, `received {"id":1}`, ok.Content)
	assert.Equal(t, http.StatusInternalServerError, broken.StatusCode)
	assert.Equal(t, "downstream unavailable", broken.Content)
}

func TestBuiltIn_WebhookWithoutHandlerRejected(t *testing.T) {
	s := newBuiltIn(Handlers{})

	var rejected error
	s.env.RegisterDelayedCallback(func() {
		s.env.UpdateWorkflow(UpdateWebhook, "w-1", &testsuite.TestUpdateCallback{
			OnAccept:   func() {},
			OnReject:   func(err error) { rejected = err },
			OnComplete: func(interface{}, error) {},
		}, WebhookRequest{Name: "order"})
	}, time.Second)
	s.complete(time.Minute)

	s.env.ExecuteWorkflow("Target:Conversational")

	require.NoError(t, s.env.GetWorkflowError())
	require.Error(t, rejected)
	assert.Contains(t, rejected.Error(), "does not accept webhooks")
}

func TestBuiltIn_StatsAndComplete(t *testing.T) {
	s := newBuiltIn(Handlers{
		OnChat: func(mc *a2a.MessageContext) error { return mc.Reply("ok") },
	})

	var stats BuiltInStats
	s.env.RegisterDelayedCallback(func() {
		s.env.SignalWorkflow(a2a.SignalInbound, a2a.Envelope{Type: a2a.TypeChat, Text: "fire and forget"})
	}, time.Second)
	s.env.RegisterDelayedCallback(func() {
		value, err := s.env.QueryWorkflow(QueryStats)
		require.NoError(t, err)
		require.NoError(t, value.Get(&stats))
	}, 2*time.Second)
	s.complete(time.Hour)

	s.env.ExecuteWorkflow("Target:Conversational")

	require.True(t, s.env.IsWorkflowCompleted())
	require.NoError(t, s.env.GetWorkflowError())
	assert.Equal(t, 1, stats.Handled)
	assert.Equal(t, 0, stats.PendingReplies)
	assert.Equal(t, 0, stats.Webhooks)
}

func TestBuiltIn_ContinuesAsNewWhenSuggested(t *testing.T) {
	s := newBuiltIn(Handlers{
		OnChat: func(mc *a2a.MessageContext) error { return mc.Reply("ok: " + mc.Text()) },
	})
	s.env.SetContinueAsNewSuggested(true)
	s.env.RegisterDelayedCallback(func() {
		s.env.SignalWorkflow(a2a.SignalInbound, a2a.Envelope{RequestID: "req-1", Type: a2a.TypeChat, Text: "hi"})
	}, time.Second)

	s.env.ExecuteWorkflow("Target:Conversational", BuiltInState{
		Inbox:    a2a.InboxState{Handled: 5, Delivered: 5},
		Webhooks: 2,
		Runs:     3,
	})

	require.True(t, s.env.IsWorkflowCompleted())
	err := s.env.GetWorkflowError()
	require.Error(t, err)
	var can *workflow.ContinueAsNewError
	require.True(t, errors.As(err, &can), "expected continue-as-new, got %v", err)
	assert.Equal(t, "Target:Conversational", can.WorkflowType.Name)

	var next BuiltInState
	require.NoError(t, converter.GetDefaultDataConverter().FromPayloads(can.Input, &next))
	assert.Equal(t, 4, next.Runs)
	assert.Equal(t, 2, next.Webhooks)
	assert.Equal(t, 6, next.Inbox.Handled)
	require.Len(t, next.Inbox.Replies, 1)
	assert.Equal(t, "req-1", next.Inbox.Replies[0].Response.RequestID)
	assert.Equal(t, "ok: hi", next.Inbox.Replies[0].Response.Text)
}

func TestBuiltIn_ResumedRunServesCarriedReplies(t *testing.T) {
	s := newBuiltIn(Handlers{})

	var reply a2a.Response
	var replyErr error
	var stats BuiltInStats
	s.env.RegisterDelayedCallback(func() {
		s.env.UpdateWorkflow(a2a.UpdateAwaitReply, "req-1", &testsuite.TestUpdateCallback{
			OnAccept: func() {},
			OnReject: func(err error) { replyErr = err },
			OnComplete: func(result interface{}, err error) {
				replyErr = err
				decodeInto(result, &reply)
			},
		}, "req-1")
	}, time.Second)
	s.env.RegisterDelayedCallback(func() {
		value, err := s.env.QueryWorkflow(QueryStats)
		require.NoError(t, err)
		require.NoError(t, value.Get(&stats))
	}, 2*time.Second)
	s.complete(time.Minute)

	s.env.ExecuteWorkflow("Target:Conversational", BuiltInState{
		Inbox: a2a.InboxState{
			Handled: 1,
			Replies: []a2a.PendingReply{{Response: a2a.Response{RequestID: "req-1", Text: "carried"}}},
		},
		Runs: 1,
	})

	require.True(t, s.env.IsWorkflowCompleted())
	require.NoError(t, s.env.GetWorkflowError())
	require.NoError(t, replyErr)
	assert.Equal(t, "carried", reply.Text)
	assert.Equal(t, 2, stats.Runs)
	assert.Equal(t, 1, stats.Delivered)
	assert.Equal(t, 0, stats.PendingReplies)
}
