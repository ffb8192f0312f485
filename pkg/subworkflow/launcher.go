// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package subworkflow starts agent workflows by logical type. From workflow
// code the new instance is a child of the caller; from client code it is a
// top-level execution. Either way the instance gets the canonical ID and task
// queue for its agent, so repeating a launch with the same postfix reaches the
// same instance.
package subworkflow

import (
	"fmt"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/workflow"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agentctx"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agenterr"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/naming"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/rpc"
)

// Execution identifies a started instance.
type Execution struct {
	ID    string
	RunID string
}

// Options configures a Launcher.
type Options struct {
	// StartParentClosePolicy applies to children launched with Start.
	// Defaults to ABANDON so fire-and-forget children outlive the parent.
	StartParentClosePolicy enumspb.ParentClosePolicy
	// ExecutionTimeout bounds every launched instance when non-zero.
	ExecutionTimeout time.Duration
}

// Launcher starts workflows.
type Launcher struct {
	caller *rpc.Caller
	opts   Options
}

// New creates a Launcher sharing the caller's engine client and resolver.
func New(caller *rpc.Caller, opts Options) *Launcher {
	if opts.StartParentClosePolicy == enumspb.PARENT_CLOSE_POLICY_UNSPECIFIED {
		opts.StartParentClosePolicy = enumspb.PARENT_CLOSE_POLICY_ABANDON
	}
	return &Launcher{caller: caller, opts: opts}
}

// Start launches the instance and returns once it is running.
func (l *Launcher) Start(ac *agentctx.Context, workflowType, idPostfix string, args ...any) (Execution, error) {
	names, err := l.resolve(ac, workflowType, idPostfix)
	if err != nil {
		return Execution{}, err
	}

	wf, inWorkflow, err := l.caller.WorkflowHandle("subworkflow.Start", ac)
	if err != nil {
		return Execution{}, err
	}
	if inWorkflow {
		ctx := l.childContext(wf, names, l.opts.StartParentClosePolicy)
		future := workflow.ExecuteChildWorkflow(ctx, names.Type, args...)
		var exec workflow.Execution
		if err := future.GetChildWorkflowExecution().Get(ctx, &exec); err != nil {
			return Execution{}, agenterr.FromEngine("subworkflow.Start", fmt.Errorf("failed to start child %s: %w", names.ID, err))
		}
		workflow.GetLogger(ctx).Info("Started child workflow", "WorkflowID", exec.ID, "WorkflowType", names.Type)
		return Execution{ID: exec.ID, RunID: exec.RunID}, nil
	}

	run, err := l.startClient(ac, names, args)
	if err != nil {
		return Execution{}, err
	}
	return Execution{ID: run.GetID(), RunID: run.GetRunID()}, nil
}

// Execute launches the instance and waits for its result.
func Execute[T any](l *Launcher, ac *agentctx.Context, workflowType, idPostfix string, args ...any) (T, error) {
	var out T
	names, err := l.resolve(ac, workflowType, idPostfix)
	if err != nil {
		return out, err
	}

	wf, inWorkflow, err := l.caller.WorkflowHandle("subworkflow.Execute", ac)
	if err != nil {
		return out, err
	}
	if inWorkflow {
		ctx := l.childContext(wf, names, enumspb.PARENT_CLOSE_POLICY_TERMINATE)
		if err := workflow.ExecuteChildWorkflow(ctx, names.Type, args...).Get(ctx, &out); err != nil {
			return out, agenterr.FromEngine("subworkflow.Execute", fmt.Errorf("child %s failed: %w", names.ID, err))
		}
		return out, nil
	}

	run, err := l.startClient(ac, names, args)
	if err != nil {
		return out, err
	}
	if err := run.Get(ac.Std(), &out); err != nil {
		return out, agenterr.FromEngine("subworkflow.Execute", fmt.Errorf("workflow %s failed: %w", names.ID, err))
	}
	return out, nil
}

func (l *Launcher) resolve(ac *agentctx.Context, workflowType, idPostfix string) (naming.Names, error) {
	return l.caller.Resolver().Resolve(ac.Agent(), rpc.Target{WorkflowType: workflowType, IDPostfix: idPostfix})
}

func (l *Launcher) childContext(ctx workflow.Context, names naming.Names, policy enumspb.ParentClosePolicy) workflow.Context {
	return workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
		WorkflowID:               names.ID,
		TaskQueue:                names.TaskQueue,
		WorkflowExecutionTimeout: l.opts.ExecutionTimeout,
		WorkflowIDReusePolicy:    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		ParentClosePolicy:        policy,
	})
}

func (l *Launcher) startClient(ac *agentctx.Context, names naming.Names, args []any) (client.WorkflowRun, error) {
	engine := l.caller.Engine()
	if engine == nil {
		return nil, agenterr.Validation("subworkflow", "no engine client configured")
	}
	run, err := engine.ExecuteWorkflow(ac.Std(), StartOptions(names, l.opts.ExecutionTimeout), names.Type, args...)
	if err != nil {
		return nil, agenterr.FromEngine("subworkflow.Start", fmt.Errorf("failed to start workflow %s: %w", names.ID, err))
	}
	getLog().Info().Str("workflow_id", run.GetID()).Str("workflow_type", names.Type).Msg("Started workflow")
	return run, nil
}

// StartOptions returns get-or-create start options for the named instance:
// a running instance with the same ID is reused, a closed one is replaced.
func StartOptions(names naming.Names, executionTimeout time.Duration) client.StartWorkflowOptions {
	return client.StartWorkflowOptions{
		ID:                       names.ID,
		TaskQueue:                names.TaskQueue,
		WorkflowExecutionTimeout: executionTimeout,
		WorkflowIDReusePolicy:    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowIDConflictPolicy: enumspb.WORKFLOW_ID_CONFLICT_POLICY_USE_EXISTING,
	}
}
