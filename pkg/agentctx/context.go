// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package agentctx carries the calling agent and its execution handle through
// every SDK call. A Context holds either a plain context.Context (client
// code, activities, HTTP handlers) or a workflow.Context (deterministic
// workflow code); which one decides how operations are routed.
package agentctx

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/workflow"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/naming"
)

// ExecutionContext is the kind of code currently running.
type ExecutionContext int

const (
	// Client is ordinary code outside a workflow: services, activities, tests.
	Client ExecutionContext = iota
	// Workflow is deterministic, replayable workflow code.
	Workflow
)

func (e ExecutionContext) String() string {
	if e == Workflow {
		return "workflow"
	}
	return "client"
}

// Context is the explicit per-call context object. It is immutable; the With
// methods return copies.
type Context struct {
	agent naming.AgentIdentity
	std   context.Context
	wf    workflow.Context
}

// ForClient builds a Context for code running outside any workflow.
func ForClient(ctx context.Context, agent naming.AgentIdentity) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Context{agent: agent, std: ctx}
}

// ForWorkflow builds a Context for code running inside a workflow.
func ForWorkflow(ctx workflow.Context, agent naming.AgentIdentity) *Context {
	return &Context{agent: agent, wf: ctx, std: context.Background()}
}

// Agent returns the calling agent.
func (c *Context) Agent() naming.AgentIdentity { return c.agent }

// Std returns the Go context. In workflow code it is a background context
// that must not be used for I/O.
func (c *Context) Std() context.Context { return c.std }

// Workflow returns the workflow handle, or nil outside a workflow.
func (c *Context) Workflow() workflow.Context { return c.wf }

// WithStd returns a copy bound to ctx, dropping any workflow handle.
func (c *Context) WithStd(ctx context.Context) *Context {
	return &Context{agent: c.agent, std: ctx}
}

// WithWorkflow returns a copy bound to a derived workflow context, e.g. one
// carrying different activity options or a cancellation scope.
func (c *Context) WithWorkflow(ctx workflow.Context) *Context {
	return &Context{agent: c.agent, std: c.std, wf: ctx}
}

// WithAgent returns a copy acting on behalf of another agent identity.
func (c *Context) WithAgent(agent naming.AgentIdentity) *Context {
	return &Context{agent: agent, std: c.std, wf: c.wf}
}

// IsReplaying reports whether workflow code is being replayed from history.
// Always false outside a workflow.
func (c *Context) IsReplaying() bool {
	if c.wf == nil {
		return false
	}
	return workflow.IsReplaying(c.wf)
}

// Now returns the current time, using workflow time inside a workflow.
func (c *Context) Now() time.Time {
	if c.wf != nil {
		return workflow.Now(c.wf)
	}
	return time.Now()
}

// NewID returns a random identifier. Inside a workflow the value is recorded
// as a side effect so replays observe the same ID.
func (c *Context) NewID() string {
	if c.wf == nil {
		return uuid.NewString()
	}
	var id string
	encoded := workflow.SideEffect(c.wf, func(workflow.Context) interface{} {
		return uuid.NewString()
	})
	if err := encoded.Get(&id); err != nil {
		// SideEffect values are plain strings; decoding cannot fail in practice.
		panic(err)
	}
	return id
}

// Resolver decides the execution context of a call. It is consulted on every
// call and must not cache its answer.
type Resolver interface {
	Resolve(c *Context) ExecutionContext
}

// EngineResolver inspects the handle carried by the Context.
type EngineResolver struct{}

// Resolve implements Resolver.
func (EngineResolver) Resolve(c *Context) ExecutionContext {
	if c != nil && c.wf != nil {
		return Workflow
	}
	return Client
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(c *Context) ExecutionContext

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(c *Context) ExecutionContext { return f(c) }

// Current resolves the execution context with the engine resolver.
func Current(c *Context) ExecutionContext {
	return EngineResolver{}.Resolve(c)
}
