// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package a2a

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agentctx"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agenterr"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/dispatch"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/naming"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/rpc"
)

// DefaultBuiltInWorkflow is the workflow addressed when a target names only
// an agent.
const DefaultBuiltInWorkflow = "Conversational"

// ExchangeRequest is the dispatched form of one send.
type ExchangeRequest struct {
	Target   naming.Names
	Envelope Envelope
	Timeout  time.Duration
}

// Options configures a Client.
type Options struct {
	// BuiltInWorkflow overrides DefaultBuiltInWorkflow.
	BuiltInWorkflow string
	// DefaultTimeout bounds sends that set no timeout. Defaults to the
	// caller's timeout.
	DefaultTimeout time.Duration
}

// Client sends messages to other agents' built-in workflows.
type Client struct {
	caller   *rpc.Caller
	builtIn  string
	timeout  time.Duration
	exchange *dispatch.Operation[ExchangeRequest, Response]
}

// NewClient registers the exchange operation on d and returns a Client.
func NewClient(d *dispatch.Dispatcher, caller *rpc.Caller, opts Options) (*Client, error) {
	c := &Client{caller: caller, builtIn: opts.BuiltInWorkflow, timeout: opts.DefaultTimeout}
	if c.builtIn == "" {
		c.builtIn = DefaultBuiltInWorkflow
	}
	if c.timeout <= 0 {
		c.timeout = caller.DefaultTimeout()
	}
	op, err := dispatch.Register(d, OpExchange, c.runExchange)
	if err != nil {
		return nil, err
	}
	c.exchange = op
	return c, nil
}

// SendOption customises a single send.
type SendOption func(*sendOptions)

type sendOptions struct {
	timeout time.Duration
}

// WithTimeout bounds how long the sender waits for the reply.
func WithTimeout(d time.Duration) SendOption {
	return func(o *sendOptions) { o.timeout = d }
}

// SendChatToBuiltIn sends text to the target agent and waits for its reply.
// target is "Agent" for the agent's default built-in workflow or
// "Agent:Workflow" for a specific one.
func (c *Client) SendChatToBuiltIn(ac *agentctx.Context, target string, msg Envelope, opts ...SendOption) (Response, error) {
	msg.Type = TypeChat
	return c.send(ac, target, msg, opts)
}

// SendDataToBuiltIn sends a structured payload to the target agent and waits
// for its reply.
func (c *Client) SendDataToBuiltIn(ac *agentctx.Context, target string, data any, msg Envelope, opts ...SendOption) (Response, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Response{}, agenterr.Validation("a2a", "data payload is not serializable: %v", err)
	}
	msg.Type = TypeData
	msg.Data = raw
	return c.send(ac, target, msg, opts)
}

func (c *Client) send(ac *agentctx.Context, target string, msg Envelope, opts []SendOption) (Response, error) {
	o := sendOptions{timeout: c.timeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.timeout <= 0 {
		o.timeout = c.timeout
	}

	names, err := c.caller.Names(ac, c.targetOf(target))
	if err != nil {
		return Response{}, err
	}

	if msg.RequestID == "" {
		msg.RequestID = ac.NewID()
	}
	if msg.TenantID == "" {
		msg.TenantID = ac.Agent().TenantID
	}
	msg.SourceAgent = ac.Agent().Name
	if wf := ac.Workflow(); wf != nil {
		msg.SourceWorkflowID = workflow.GetInfo(wf).WorkflowExecution.ID
	}

	req := ExchangeRequest{Target: names, Envelope: msg, Timeout: o.timeout}
	resp, err := c.exchange.WithActivityOptions(workflow.ActivityOptions{
		StartToCloseTimeout: o.timeout + 10*time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	}).Invoke(ac, req)
	if err != nil {
		return Response{}, err
	}
	if resp.Error != "" {
		return resp, agenterr.OperationFailed("a2a", errors.New(resp.Error))
	}
	return resp, nil
}

// targetOf accepts "Agent" or "Agent:Workflow".
func (c *Client) targetOf(target string) rpc.Target {
	if strings.Contains(target, naming.Separator) {
		return rpc.Target{WorkflowType: target}
	}
	return rpc.TargetOf(target, c.builtIn, "")
}

func (c *Client) runExchange(ctx context.Context, req ExchangeRequest) (Response, error) {
	engine := c.caller.Engine()
	if engine == nil {
		return Response{}, agenterr.Validation(OpExchange, "no engine client configured")
	}
	ctx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	start := client.StartWorkflowOptions{
		ID:                    req.Target.ID,
		TaskQueue:             req.Target.TaskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}
	if _, err := engine.SignalWithStartWorkflow(ctx, req.Target.ID, SignalInbound, req.Envelope, start, req.Target.Type); err != nil {
		return Response{}, rpc.EngineError(ctx, OpExchange, fmt.Errorf("failed to deliver message to %s: %w", req.Target.ID, err))
	}
	getLog().Debug().
		Str("workflow_id", req.Target.ID).
		Str("request_id", req.Envelope.RequestID).
		Str("type", string(req.Envelope.Type)).
		Msg("Message delivered, awaiting reply")

	handle, err := engine.UpdateWorkflow(ctx, client.UpdateWorkflowOptions{
		UpdateID:     req.Envelope.RequestID,
		WorkflowID:   req.Target.ID,
		UpdateName:   UpdateAwaitReply,
		Args:         []interface{}{req.Envelope.RequestID},
		WaitForStage: client.WorkflowUpdateStageCompleted,
	})
	if err != nil {
		return Response{}, rpc.EngineError(ctx, OpExchange, fmt.Errorf("failed to await reply from %s: %w", req.Target.ID, err))
	}
	var resp Response
	if err := handle.Get(ctx, &resp); err != nil {
		return Response{}, rpc.EngineError(ctx, OpExchange, fmt.Errorf("no reply from %s: %w", req.Target.ID, err))
	}
	return resp, nil
}
