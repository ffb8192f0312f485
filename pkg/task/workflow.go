// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package task implements a reviewable unit of work as a durable workflow.
// A task is open until one of its actions is performed or it times out; its
// state is read with a query and changed only through signals and updates.
package task

import (
	"time"

	"github.com/samber/lo"
	"go.temporal.io/sdk/workflow"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agenterr"
)

// WorkflowName is the workflow an agent hosts when tasks are enabled.
const WorkflowName = "TaskWorkflow"

// Handler names on the task workflow.
const (
	SignalUpdateDraft   = "UpdateDraft"
	SignalPerformAction = "PerformAction"
	QueryGetState       = "GetState"
	UpdatePerformAction = "PerformActionSync"
)

// Default actions offered when a request names none.
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// DefaultTimeout applies when neither the request nor the client sets one.
const DefaultTimeout = 7 * 24 * time.Hour

// CompletionGrace is how long a completed task keeps running. Actions that
// arrive in that window are rejected by the task as terminal instead of
// failing to find it.
const CompletionGrace = time.Minute

// DefaultActions returns the actions used when a request names none.
func DefaultActions() []string { return []string{ActionApprove, ActionReject} }

// Request creates a task.
type Request struct {
	Title            string            `json:"title"`
	Description      string            `json:"description,omitempty"`
	ParticipantID    string            `json:"participantId,omitempty"`
	Draft            string            `json:"draft,omitempty"`
	AvailableActions []string          `json:"availableActions,omitempty"`
	Timeout          time.Duration     `json:"timeout,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// ActionRequest performs one of the task's actions.
type ActionRequest struct {
	Action  string `json:"action"`
	Comment string `json:"comment,omitempty"`
}

// State is the task snapshot returned by queries and as the workflow result.
type State struct {
	Title            string            `json:"title"`
	Description      string            `json:"description,omitempty"`
	ParticipantID    string            `json:"participantId,omitempty"`
	Draft            string            `json:"draft"`
	AvailableActions []string          `json:"availableActions"`
	PerformedAction  string            `json:"performedAction,omitempty"`
	Comment          string            `json:"comment,omitempty"`
	IsCompleted      bool              `json:"isCompleted"`
	TimedOut         bool              `json:"timedOut,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	CompletedAt      time.Time         `json:"completedAt,omitempty"`
}

// Allows reports whether action is one of the available actions.
func (s State) Allows(action string) bool {
	return lo.Contains(s.AvailableActions, action)
}

// CheckAction returns the error a mutation with action would fail with, or
// nil if the task accepts it.
func (s State) CheckAction(action string) error {
	if s.IsCompleted {
		return agenterr.TerminalState("task", "task %q is already completed with %q", s.Title, s.PerformedAction)
	}
	if !s.Allows(action) {
		return agenterr.Validation("task", "action %q is not available, expected one of %v", action, s.AvailableActions)
	}
	return nil
}

func (s State) clone() State {
	s.AvailableActions = append([]string(nil), s.AvailableActions...)
	if s.Metadata != nil {
		s.Metadata = lo.Assign(s.Metadata)
	}
	return s
}

// Workflow runs one task until an action completes it or its timeout elapses.
func Workflow(ctx workflow.Context, req Request) (State, error) {
	logger := workflow.GetLogger(ctx)

	if req.Title == "" {
		return State{}, agenterr.ToApplicationError(agenterr.Validation("task", "task title must not be empty"))
	}
	actions := lo.Uniq(lo.Compact(req.AvailableActions))
	if len(actions) == 0 {
		actions = DefaultActions()
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	state := State{
		Title:            req.Title,
		Description:      req.Description,
		ParticipantID:    req.ParticipantID,
		Draft:            req.Draft,
		AvailableActions: actions,
		Metadata:         req.Metadata,
		CreatedAt:        workflow.Now(ctx),
	}

	complete := func(a ActionRequest) {
		state.PerformedAction = a.Action
		state.Comment = a.Comment
		state.IsCompleted = true
		state.CompletedAt = workflow.Now(ctx)
		logger.Info("Task completed", "Action", a.Action)
	}

	if err := workflow.SetQueryHandler(ctx, QueryGetState, func() (State, error) {
		return state.clone(), nil
	}); err != nil {
		return State{}, err
	}

	if err := workflow.SetUpdateHandlerWithOptions(ctx, UpdatePerformAction,
		func(ctx workflow.Context, a ActionRequest) (State, error) {
			// A signal may have completed the task after validation.
			if err := state.CheckAction(a.Action); err != nil {
				return state.clone(), agenterr.ToApplicationError(err)
			}
			complete(a)
			return state.clone(), nil
		},
		workflow.UpdateHandlerOptions{
			Validator: func(ctx workflow.Context, a ActionRequest) error {
				if err := state.CheckAction(a.Action); err != nil {
					return agenterr.ToApplicationError(err)
				}
				return nil
			},
		},
	); err != nil {
		return State{}, err
	}

	draftCh := workflow.GetSignalChannel(ctx, SignalUpdateDraft)
	actionCh := workflow.GetSignalChannel(ctx, SignalPerformAction)

	workflow.Go(ctx, func(ctx workflow.Context) {
		for {
			var draft string
			draftCh.Receive(ctx, &draft)
			if state.IsCompleted {
				logger.Warn("Ignoring draft update on completed task")
				continue
			}
			state.Draft = draft
		}
	})
	workflow.Go(ctx, func(ctx workflow.Context) {
		for {
			var a ActionRequest
			actionCh.Receive(ctx, &a)
			if err := state.CheckAction(a.Action); err != nil {
				logger.Warn("Ignoring action", "Action", a.Action, "Error", err)
				continue
			}
			complete(a)
		}
	})

	logger.Info("Task opened", "Title", req.Title, "Actions", actions, "Timeout", timeout)

	done, err := workflow.AwaitWithTimeout(ctx, timeout, func() bool { return state.IsCompleted })
	if err != nil {
		return state.clone(), err
	}
	if !done {
		state.IsCompleted = true
		state.TimedOut = true
		state.CompletedAt = workflow.Now(ctx)
		logger.Info("Task timed out", "Timeout", timeout)
	}

	if err := workflow.Sleep(ctx, CompletionGrace); err != nil {
		return state.clone(), err
	}

	if err := workflow.Await(ctx, func() bool { return workflow.AllHandlersFinished(ctx) }); err != nil {
		return state.clone(), err
	}
	return state.clone(), nil
}
