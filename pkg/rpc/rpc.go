// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package rpc sends signals, updates and queries to other workflow instances
// by logical name. Calls work from client code and from workflow code; in the
// latter case updates and queries go through the dispatcher so the calling
// workflow stays deterministic.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agentctx"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agenterr"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/dispatch"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/naming"
)

// Operation names registered on the dispatcher.
const (
	OpQuery  = "rpc.Query"
	OpUpdate = "rpc.Update"
)

// DefaultTimeout bounds calls that do not set their own timeout.
const DefaultTimeout = 5 * time.Minute

// EngineClient is the subset of client.Client the SDK talks to.
type EngineClient interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	SignalWorkflow(ctx context.Context, workflowID string, runID string, signalName string, arg interface{}) error
	SignalWithStartWorkflow(ctx context.Context, workflowID string, signalName string, signalArg interface{},
		options client.StartWorkflowOptions, workflow interface{}, workflowArgs ...interface{}) (client.WorkflowRun, error)
	QueryWorkflow(ctx context.Context, workflowID string, runID string, queryType string, args ...interface{}) (converter.EncodedValue, error)
	UpdateWorkflow(ctx context.Context, options client.UpdateWorkflowOptions) (client.WorkflowUpdateHandle, error)
}

// QueryRequest is the dispatched form of a query.
type QueryRequest struct {
	WorkflowID string
	Name       string
	Args       []json.RawMessage
	Timeout    time.Duration
}

// UpdateRequest is the dispatched form of an update.
type UpdateRequest struct {
	WorkflowID string
	Name       string
	UpdateID   string
	Args       []json.RawMessage
	Timeout    time.Duration
}

// Options configures a Caller.
type Options struct {
	DefaultTimeout time.Duration
}

// Caller performs cross-workflow calls.
type Caller struct {
	dispatcher *dispatch.Dispatcher
	engine     EngineClient
	resolver *Resolver
	timeout  time.Duration

	query  *dispatch.Operation[QueryRequest, json.RawMessage]
	update *dispatch.Operation[UpdateRequest, json.RawMessage]
}

// NewCaller registers the rpc operations on d and returns a Caller. engine
// may be nil in processes that only call from workflow code and do not run
// the dispatcher activities.
func NewCaller(d *dispatch.Dispatcher, engine EngineClient, resolver *Resolver, opts Options) (*Caller, error) {
	c := &Caller{dispatcher: d, engine: engine, resolver: resolver, timeout: opts.DefaultTimeout}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}

	var err error
	if c.query, err = dispatch.Register(d, OpQuery, c.runQuery); err != nil {
		return nil, err
	}
	if c.update, err = dispatch.Register(d, OpUpdate, c.runUpdate); err != nil {
		return nil, err
	}
	return c, nil
}

// Engine returns the engine client, possibly nil.
func (c *Caller) Engine() EngineClient { return c.engine }

// Resolver returns the target resolver.
func (c *Caller) Resolver() *Resolver { return c.resolver }

// DefaultTimeout returns the timeout applied when a call sets none.
func (c *Caller) DefaultTimeout() time.Duration { return c.timeout }

// ExecutionContext resolves where ac runs with the dispatcher's resolver, so
// signals and launches route the same way as dispatched operations.
func (c *Caller) ExecutionContext(ac *agentctx.Context) agentctx.ExecutionContext {
	return c.dispatcher.ExecutionContext(ac)
}

// WorkflowHandle returns the workflow handle of ac when it resolves to
// workflow code. It fails when the resolver picks workflow code for a context
// that carries no handle.
func (c *Caller) WorkflowHandle(op string, ac *agentctx.Context) (workflow.Context, bool, error) {
	if c.ExecutionContext(ac) != agentctx.Workflow {
		return nil, false, nil
	}
	wf := ac.Workflow()
	if wf == nil {
		return nil, true, agenterr.Validation(op, "resolved to workflow context without a workflow handle")
	}
	return wf, true, nil
}

// CallOption customises a single call.
type CallOption func(*callOptions)

type callOptions struct {
	timeout  time.Duration
	updateID string
}

// WithTimeout bounds the call.
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) { o.timeout = d }
}

// WithUpdateID sets the update ID used for deduplication.
func WithUpdateID(id string) CallOption {
	return func(o *callOptions) { o.updateID = id }
}

func (c *Caller) options(opts []CallOption) callOptions {
	o := callOptions{timeout: c.timeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.timeout <= 0 {
		o.timeout = c.timeout
	}
	return o
}

// Signal delivers a fire-and-forget message to the target instance.
func (c *Caller) Signal(ac *agentctx.Context, target Target, name string, payload any, opts ...CallOption) error {
	names, err := c.resolver.Resolve(ac.Agent(), target)
	if err != nil {
		return err
	}
	if name == "" {
		return agenterr.Validation("rpc.Signal", "signal name must not be empty")
	}
	o := c.options(opts)

	wf, inWorkflow, err := c.WorkflowHandle("rpc.Signal", ac)
	if err != nil {
		return err
	}
	if inWorkflow {
		if err := workflow.SignalExternalWorkflow(wf, names.ID, "", name, payload).Get(wf, nil); err != nil {
			return agenterr.FromEngine("rpc.Signal", fmt.Errorf("failed to signal workflow %s: %w", names.ID, err))
		}
		return nil
	}

	if c.engine == nil {
		return agenterr.Validation("rpc.Signal", "no engine client configured")
	}
	ctx, cancel := context.WithTimeout(ac.Std(), o.timeout)
	defer cancel()
	if err := c.engine.SignalWorkflow(ctx, names.ID, "", name, payload); err != nil {
		return EngineError(ctx, "rpc.Signal", fmt.Errorf("failed to signal workflow %s: %w", names.ID, err))
	}
	getLog().Debug().Str("workflow_id", names.ID).Str("signal", name).Msg("Signal delivered")
	return nil
}

// Update invokes an update handler on the target and waits for its result.
func Update[T any](c *Caller, ac *agentctx.Context, target Target, name string, payload any, opts ...CallOption) (T, error) {
	var zero T
	names, err := c.resolver.Resolve(ac.Agent(), target)
	if err != nil {
		return zero, err
	}
	if name == "" {
		return zero, agenterr.Validation("rpc.Update", "update name must not be empty")
	}
	var args []json.RawMessage
	if payload != nil {
		if args, err = encodeArgs(payload); err != nil {
			return zero, err
		}
	}
	o := c.options(opts)

	req := UpdateRequest{WorkflowID: names.ID, Name: name, UpdateID: o.updateID, Args: args, Timeout: o.timeout}
	raw, err := c.update.WithActivityOptions(callActivityOptions(o.timeout)).Invoke(ac, req)
	if err != nil {
		return zero, err
	}
	return decode[T]("rpc.Update", raw)
}

// Query reads state from the target without mutating it.
func Query[T any](c *Caller, ac *agentctx.Context, target Target, name string, args ...any) (T, error) {
	return QueryWithOptions[T](c, ac, target, name, nil, args...)
}

// QueryWithOptions is Query with per-call options such as WithTimeout.
func QueryWithOptions[T any](c *Caller, ac *agentctx.Context, target Target, name string, opts []CallOption, args ...any) (T, error) {
	var zero T
	names, err := c.resolver.Resolve(ac.Agent(), target)
	if err != nil {
		return zero, err
	}
	if name == "" {
		return zero, agenterr.Validation("rpc.Query", "query name must not be empty")
	}
	encoded, err := encodeArgs(args...)
	if err != nil {
		return zero, err
	}
	o := c.options(opts)

	req := QueryRequest{WorkflowID: names.ID, Name: name, Args: encoded, Timeout: o.timeout}
	raw, err := c.query.WithActivityOptions(callActivityOptions(o.timeout)).Invoke(ac, req)
	if err != nil {
		return zero, err
	}
	return decode[T]("rpc.Query", raw)
}

func (c *Caller) runQuery(ctx context.Context, req QueryRequest) (json.RawMessage, error) {
	if c.engine == nil {
		return nil, agenterr.Validation(OpQuery, "no engine client configured")
	}
	ctx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	value, err := c.engine.QueryWorkflow(ctx, req.WorkflowID, "", req.Name, rawArgs(req.Args)...)
	if err != nil {
		return nil, EngineError(ctx, OpQuery, fmt.Errorf("failed to query %s on %s: %w", req.Name, req.WorkflowID, err))
	}
	var raw json.RawMessage
	if value != nil && value.HasValue() {
		if err := value.Get(&raw); err != nil {
			return nil, fmt.Errorf("failed to decode query result: %w", err)
		}
	}
	return raw, nil
}

func (c *Caller) runUpdate(ctx context.Context, req UpdateRequest) (json.RawMessage, error) {
	if c.engine == nil {
		return nil, agenterr.Validation(OpUpdate, "no engine client configured")
	}
	ctx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	handle, err := c.engine.UpdateWorkflow(ctx, client.UpdateWorkflowOptions{
		UpdateID:     req.UpdateID,
		WorkflowID:   req.WorkflowID,
		UpdateName:   req.Name,
		Args:         rawArgs(req.Args),
		WaitForStage: client.WorkflowUpdateStageCompleted,
	})
	if err != nil {
		return nil, EngineError(ctx, OpUpdate, fmt.Errorf("failed to update %s on %s: %w", req.Name, req.WorkflowID, err))
	}
	var raw json.RawMessage
	if err := handle.Get(ctx, &raw); err != nil {
		return nil, EngineError(ctx, OpUpdate, fmt.Errorf("update %s on %s failed: %w", req.Name, req.WorkflowID, err))
	}
	return raw, nil
}

// EngineError maps err into the taxonomy, reporting any failure after the
// call deadline passed as a timeout.
func EngineError(ctx context.Context, op string, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return agenterr.Timeout(op, err)
	}
	return agenterr.FromEngine(op, err)
}

// callActivityOptions sizes the activity around the call timeout. The call
// itself enforces the deadline, so the activity is not retried.
func callActivityOptions(timeout time.Duration) workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: timeout + 10*time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	}
}

func encodeArgs(args ...any) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return nil, agenterr.Validation("rpc", "argument %d is not serializable: %v", i, err)
		}
		out = append(out, b)
	}
	return out, nil
}

func rawArgs(args []json.RawMessage) []interface{} {
	out := make([]interface{}, len(args))
	for i, a := range args {
		out[i] = a
	}
	return out
}

func decode[T any](op string, raw json.RawMessage) (T, error) {
	var out T
	if len(raw) == 0 || string(raw) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%s: failed to decode result into %T: %w", op, out, err)
	}
	return out, nil
}

// Names resolves a target for callers that need the raw engine names.
func (c *Caller) Names(ac *agentctx.Context, target Target) (naming.Names, error) {
	return c.resolver.Resolve(ac.Agent(), target)
}
