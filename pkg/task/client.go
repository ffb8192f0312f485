// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package task

import (
	"errors"
	"time"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agentctx"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agenterr"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/naming"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/rpc"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/subworkflow"
)

// Options configures a Client.
type Options struct {
	DefaultTimeout time.Duration
	DefaultActions []string
}

// Client creates tasks owned by the calling agent and operates on them.
type Client struct {
	caller   *rpc.Caller
	launcher *subworkflow.Launcher
	opts     Options
}

// NewClient creates a Client.
func NewClient(caller *rpc.Caller, launcher *subworkflow.Launcher, opts Options) *Client {
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = DefaultTimeout
	}
	if len(opts.DefaultActions) == 0 {
		opts.DefaultActions = DefaultActions()
	}
	return &Client{caller: caller, launcher: launcher, opts: opts}
}

func (c *Client) target(ac *agentctx.Context, taskID string) rpc.Target {
	return rpc.TargetOf(ac.Agent().Name, WorkflowName, taskID)
}

// Create starts a task and returns its ID. From workflow code the task runs
// as an abandoned child, so it outlives the creating workflow.
func (c *Client) Create(ac *agentctx.Context, req Request) (string, error) {
	if req.Title == "" {
		return "", agenterr.Validation("task.Create", "task title must not be empty")
	}
	if len(req.AvailableActions) == 0 {
		req.AvailableActions = c.opts.DefaultActions
	}
	if req.Timeout <= 0 {
		req.Timeout = c.opts.DefaultTimeout
	}
	workflowType, err := naming.BuildWorkflowType(ac.Agent().Name, WorkflowName)
	if err != nil {
		return "", err
	}

	taskID := ac.NewID()
	if _, err := c.launcher.Start(ac, workflowType, taskID, req); err != nil {
		return "", err
	}
	return taskID, nil
}

// GetState returns the current snapshot of the task.
func (c *Client) GetState(ac *agentctx.Context, taskID string) (State, error) {
	if taskID == "" {
		return State{}, agenterr.Validation("task.GetState", "task ID must not be empty")
	}
	return rpc.Query[State](c.caller, ac, c.target(ac, taskID), QueryGetState)
}

// UpdateDraft replaces the draft of an open task.
func (c *Client) UpdateDraft(ac *agentctx.Context, taskID, draft string) error {
	state, err := c.GetState(ac, taskID)
	if err != nil {
		return err
	}
	if state.IsCompleted {
		return agenterr.TerminalState("task.UpdateDraft", "task %s is already completed", taskID)
	}
	return c.signal(ac, taskID, SignalUpdateDraft, draft)
}

// PerformAction completes an open task with one of its actions. The action is
// checked against the task's current state before it is sent.
func (c *Client) PerformAction(ac *agentctx.Context, taskID, action, comment string) error {
	state, err := c.GetState(ac, taskID)
	if err != nil {
		return err
	}
	if err := state.CheckAction(action); err != nil {
		return err
	}
	return c.signal(ac, taskID, SignalPerformAction, ActionRequest{Action: action, Comment: comment})
}

// PerformActionSync completes the task through an update and returns the
// resulting state. The task itself validates the action, so the check and
// the mutation cannot race with another caller. A task that has already
// closed is reported as a terminal state violation.
func (c *Client) PerformActionSync(ac *agentctx.Context, taskID, action, comment string) (State, error) {
	if taskID == "" {
		return State{}, agenterr.Validation("task.PerformActionSync", "task ID must not be empty")
	}
	state, err := rpc.Update[State](c.caller, ac, c.target(ac, taskID), UpdatePerformAction, ActionRequest{Action: action, Comment: comment})
	if err == nil || !errors.Is(err, agenterr.ErrNotFound) {
		return state, err
	}
	closed, qErr := c.GetState(ac, taskID)
	if qErr != nil || !closed.IsCompleted {
		return State{}, err
	}
	return closed, agenterr.TerminalState("task.PerformActionSync", "task %s is already completed with %q", taskID, closed.PerformedAction)
}

// signal reports a task that closed between the state check and the signal
// as a terminal state violation.
func (c *Client) signal(ac *agentctx.Context, taskID, name string, payload any) error {
	err := c.caller.Signal(ac, c.target(ac, taskID), name, payload)
	if err != nil && errors.Is(err, agenterr.ErrNotFound) {
		return agenterr.TerminalState("task", "task %s closed before %s was delivered", taskID, name)
	}
	return err
}
