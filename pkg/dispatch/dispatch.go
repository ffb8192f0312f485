// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package dispatch routes stateful operations so callers never care where
// they run. From client code an operation executes in-process; from workflow
// code the same operation is scheduled as an activity so the workflow stays
// deterministic. Both paths return the same value for the same input.
package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agentctx"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agenterr"
)

// defaultStartToClose applies when no activity timeout is configured.
const defaultStartToClose = time.Minute

// ActivityRegistrar is satisfied by worker.Worker and the test environments.
type ActivityRegistrar interface {
	RegisterActivityWithOptions(a interface{}, options activity.RegisterOptions)
}

// Options configures a Dispatcher.
type Options struct {
	// ActivityOptions are applied when an operation runs from workflow code.
	ActivityOptions workflow.ActivityOptions
	// Resolver decides the execution context. Defaults to agentctx.EngineResolver.
	Resolver agentctx.Resolver
}

type registered interface {
	activityFunc() interface{}
}

// Dispatcher holds the set of operations a process can route.
type Dispatcher struct {
	opts Options

	mu  sync.RWMutex
	ops map[string]registered
}

// New creates a Dispatcher.
func New(opts Options) *Dispatcher {
	if opts.Resolver == nil {
		opts.Resolver = agentctx.EngineResolver{}
	}
	if opts.ActivityOptions.StartToCloseTimeout == 0 && opts.ActivityOptions.ScheduleToCloseTimeout == 0 {
		opts.ActivityOptions.StartToCloseTimeout = defaultStartToClose
	}
	return &Dispatcher{opts: opts, ops: make(map[string]registered)}
}

// Operation is one routable unit of work.
type Operation[A, R any] struct {
	d         *Dispatcher
	name      string
	fn        func(context.Context, A) (R, error)
	overrides *workflow.ActivityOptions
}

// Register adds an operation under a unique name. The name doubles as the
// activity type when the operation runs from workflow code.
func Register[A, R any](d *Dispatcher, name string, fn func(context.Context, A) (R, error)) (*Operation[A, R], error) {
	if name == "" {
		return nil, agenterr.Validation("dispatch", "operation name must not be empty")
	}
	if fn == nil {
		return nil, agenterr.Validation("dispatch", "operation %q has no implementation", name)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.ops[name]; exists {
		return nil, agenterr.Validation("dispatch", "operation %q already registered", name)
	}
	op := &Operation[A, R]{d: d, name: name, fn: fn}
	d.ops[name] = op
	return op, nil
}

// Names returns the registered operation names, sorted.
func (d *Dispatcher) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.ops))
	for name := range d.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterActivities registers every operation as an activity.
func (d *Dispatcher) RegisterActivities(r ActivityRegistrar) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for name, op := range d.ops {
		r.RegisterActivityWithOptions(op.activityFunc(), activity.RegisterOptions{Name: name})
	}
}

// ExecutionContext resolves where ac runs with the configured resolver.
func (d *Dispatcher) ExecutionContext(ac *agentctx.Context) agentctx.ExecutionContext {
	return d.opts.Resolver.Resolve(ac)
}

// Name returns the operation name.
func (op *Operation[A, R]) Name() string { return op.name }

// WithActivityOptions returns a copy that uses opts instead of the dispatcher
// defaults when running from workflow code.
func (op *Operation[A, R]) WithActivityOptions(opts workflow.ActivityOptions) *Operation[A, R] {
	clone := *op
	clone.overrides = &opts
	return &clone
}

// Invoke runs the operation in the caller's execution context.
func (op *Operation[A, R]) Invoke(ac *agentctx.Context, args A) (R, error) {
	if op.d.ExecutionContext(ac) == agentctx.Workflow {
		return op.invokeActivity(ac.Workflow(), args)
	}
	return op.fn(ac.Std(), args)
}

func (op *Operation[A, R]) invokeActivity(ctx workflow.Context, args A) (R, error) {
	var zero R
	if ctx == nil {
		return zero, agenterr.Validation("dispatch", "operation %q resolved to workflow context without a workflow handle", op.name)
	}

	opts := op.d.opts.ActivityOptions
	if op.overrides != nil {
		opts = *op.overrides
	}
	ctx = workflow.WithActivityOptions(ctx, opts)

	logger := workflow.GetLogger(ctx)
	logger.Debug("Dispatching operation as activity", "Operation", op.name)

	var out R
	if err := workflow.ExecuteActivity(ctx, op.name, args).Get(ctx, &out); err != nil {
		if temporal.IsCanceledError(err) {
			return zero, err
		}
		if decoded, ok := agenterr.Decode(op.name, err); ok && decoded.Kind != agenterr.KindOperationFailed {
			return zero, decoded
		}
		logger.Warn("Dispatched operation failed", "Operation", op.name, "Error", err)
		return zero, agenterr.OperationFailed(op.name, err)
	}
	return out, nil
}

// activityFunc is the function registered with the worker. SDK errors are
// converted so their kind crosses the activity boundary.
func (op *Operation[A, R]) activityFunc() interface{} {
	return func(ctx context.Context, args A) (R, error) {
		res, err := op.fn(ctx, args)
		if err != nil {
			activity.GetLogger(ctx).Warn("Operation returned error", "Operation", op.name, "Error", err)
			return res, agenterr.ToApplicationError(err)
		}
		return res, nil
	}
}

// String implements fmt.Stringer.
func (op *Operation[A, R]) String() string {
	return fmt.Sprintf("dispatch.Operation(%s)", op.name)
}
