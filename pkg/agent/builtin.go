// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"fmt"
	"net/http"
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/a2a"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agentctx"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agenterr"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/naming"
)

// Handler names on built-in workflows besides the a2a ones.
const (
	UpdateWebhook  = "webhook"
	SignalComplete = "Complete"
	QueryStats     = "Stats"
)

// drainTimeout bounds how long a completing instance waits for in-flight
// updates.
const drainTimeout = time.Minute

// WebhookRequest is an inbound HTTP call routed to a built-in workflow.
type WebhookRequest struct {
	Name        string            `json:"name"`
	Method      string            `json:"method"`
	Headers     map[string]string `json:"headers,omitempty"`
	Query       map[string]string `json:"query,omitempty"`
	ContentType string            `json:"contentType,omitempty"`
	Body        string            `json:"body,omitempty"`
}

// WebhookResponse is written back to the HTTP caller as is.
type WebhookResponse struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers,omitempty"`
	Content    string            `json:"content,omitempty"`
}

// WebhookHandler serves one webhook call inside the built-in workflow.
type WebhookHandler func(ac *agentctx.Context, req WebhookRequest) (WebhookResponse, error)

// Handlers is the handler table of a built-in workflow. Nil entries reject
// the corresponding message kind.
type Handlers struct {
	OnChat    a2a.Handler
	OnData    a2a.Handler
	OnWebhook WebhookHandler
}

// BuiltInStats is returned by the Stats query.
type BuiltInStats struct {
	a2a.Stats
	Webhooks int `json:"webhooks"`
	Runs     int `json:"runs"`
}

// BuiltInState is handed from one run of a built-in workflow to the next when
// it continues as new. New instances start from the zero value.
type BuiltInState struct {
	Inbox    a2a.InboxState `json:"inbox"`
	Webhooks int            `json:"webhooks"`
	Runs     int            `json:"runs"`
}

// BuiltInWorkflow returns the workflow function serving h for agent. The
// instance runs until it receives the Complete signal, continuing as new
// whenever the engine suggests it.
func BuiltInWorkflow(agent naming.AgentIdentity, h Handlers) func(ctx workflow.Context, prev BuiltInState) error {
	return func(ctx workflow.Context, prev BuiltInState) error {
		logger := workflow.GetLogger(ctx)

		inbox, err := a2a.NewInbox(ctx, agent, a2a.WithState(prev.Inbox))
		if err != nil {
			return err
		}

		webhooks := prev.Webhooks
		runs := prev.Runs + 1
		err = workflow.SetUpdateHandlerWithOptions(ctx, UpdateWebhook,
			func(ctx workflow.Context, req WebhookRequest) (WebhookResponse, error) {
				webhooks++
				resp, err := h.OnWebhook(agentctx.ForWorkflow(ctx, agent), req)
				if err != nil {
					workflow.GetLogger(ctx).Warn("Webhook handler failed", "Webhook", req.Name, "Error", err)
					return WebhookResponse{StatusCode: http.StatusInternalServerError, Content: err.Error()}, nil
				}
				if resp.StatusCode == 0 {
					resp.StatusCode = http.StatusOK
				}
				return resp, nil
			},
			workflow.UpdateHandlerOptions{
				Validator: func(ctx workflow.Context, req WebhookRequest) error {
					if h.OnWebhook == nil {
						return agenterr.ToApplicationError(agenterr.Validation(UpdateWebhook, "agent %s does not accept webhooks", agent.Name))
					}
					if req.Name == "" {
						return agenterr.ToApplicationError(agenterr.Validation(UpdateWebhook, "webhook name must not be empty"))
					}
					return nil
				},
			},
		)
		if err != nil {
			return fmt.Errorf("failed to register %s handler: %w", UpdateWebhook, err)
		}

		if err := workflow.SetQueryHandler(ctx, QueryStats, func() (BuiltInStats, error) {
			return BuiltInStats{Stats: inbox.Stats(), Webhooks: webhooks, Runs: runs}, nil
		}); err != nil {
			return err
		}

		completed := false
		completeCh := workflow.GetSignalChannel(ctx, SignalComplete)

		logger.Info("Built-in workflow started", "Agent", agent.String(), "Run", runs)
		for !completed {
			selector := workflow.NewSelector(ctx)
			selector.AddReceive(inbox.Channel(), func(c workflow.ReceiveChannel, _ bool) {
				var env a2a.Envelope
				c.Receive(ctx, &env)
				inbox.Handle(ctx, env, h.OnChat, h.OnData)
			})
			selector.AddReceive(completeCh, func(c workflow.ReceiveChannel, _ bool) {
				c.Receive(ctx, nil)
				completed = true
			})
			selector.Select(ctx)

			if !completed && workflow.GetInfo(ctx).GetContinueAsNewSuggested() {
				return continueAsNew(ctx, inbox, h, BuiltInState{Webhooks: webhooks, Runs: runs})
			}
		}

		// Await-reply updates for unanswered messages wait out the reply retention.
		if _, err := workflow.AwaitWithTimeout(ctx, drainTimeout, func() bool { return workflow.AllHandlersFinished(ctx) }); err != nil {
			return err
		}
		logger.Info("Built-in workflow completed", "Agent", agent.String(), "Messages", inbox.Stats().Handled)
		return nil
	}
}

// continueAsNew hands the inbox over to a fresh run. Messages already queued
// are handled first and in-flight updates get drainTimeout to finish; replies
// still uncollected travel with the state.
func continueAsNew(ctx workflow.Context, inbox *a2a.Inbox, h Handlers, next BuiltInState) error {
	inbox.Drain(ctx, h.OnChat, h.OnData)
	if _, err := workflow.AwaitWithTimeout(ctx, drainTimeout, func() bool { return workflow.AllHandlersFinished(ctx) }); err != nil {
		return err
	}
	inbox.Drain(ctx, h.OnChat, h.OnData)

	next.Inbox = inbox.State()
	info := workflow.GetInfo(ctx)
	workflow.GetLogger(ctx).Info("Continuing as new",
		"HistoryLength", info.GetCurrentHistoryLength(), "PendingReplies", len(next.Inbox.Replies))
	return workflow.NewContinueAsNewError(ctx, info.WorkflowType.Name, next)
}
