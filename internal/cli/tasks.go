// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/task"
)

type taskOptions struct {
	configPath string
	tenant     string
	agent      string
	wait       bool
}

// taskCommand dispatches task subcommands
func (a *App) taskCommand(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return a.taskUsage()
	}

	subcommand := args[0]
	subargs := args[1:]

	switch subcommand {
	case "show":
		return a.taskShowCommand(ctx, subargs)
	case "draft":
		return a.taskDraftCommand(ctx, subargs)
	case "act":
		return a.taskActCommand(ctx, "", subargs)
	case task.ActionApprove, task.ActionReject:
		return a.taskActCommand(ctx, subcommand, subargs)
	case "help", "-h", "--help":
		return a.taskUsage()
	default:
		fmt.Fprintf(a.errOut, "Unknown task subcommand: %s\n\n", subcommand)
		return a.taskUsage()
	}
}

func (a *App) taskUsage() error {
	fmt.Fprintf(a.out, `Usage: %s task <subcommand> [arguments]

Subcommands:
  show <task-id>                      Show the task's current state
  draft <task-id> <text...>           Replace the task's draft
  approve <task-id> [comment...]      Complete the task with "approve"
  reject <task-id> [comment...]       Complete the task with "reject"
  act <task-id> <action> [comment...] Complete the task with any available action
  help                                Show this help message

Every subcommand needs --agent, the agent that owns the task.

Examples:
  %s task show --agent Assistant 7c1f...
  %s task approve --agent Assistant --wait 7c1f... "ship it"
  %s task act --tenant acme --agent Assistant 7c1f... escalate

`, appName, appName, appName, appName)
	return nil
}

func (a *App) parseTaskFlags(name string, args []string) (*taskOptions, []string, error) {
	opts := &taskOptions{}
	fs := a.newFlagSet(name, &opts.configPath)
	fs.StringVar(&opts.tenant, "tenant", "", "Tenant the agent runs for (defaults to agent.default_tenant)")
	fs.StringVar(&opts.agent, "agent", "", "Agent that owns the task")
	fs.BoolVar(&opts.wait, "wait", false, "Wait for the task to confirm the action and print the final state")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if opts.agent == "" {
		return nil, nil, fmt.Errorf("--agent is required")
	}
	remaining := fs.Args()
	if len(remaining) == 0 {
		return nil, nil, fmt.Errorf("task ID is required")
	}
	return opts, remaining, nil
}

func (a *App) taskShowCommand(ctx context.Context, args []string) error {
	opts, remaining, err := a.parseTaskFlags("task show", args)
	if err != nil {
		return err
	}

	s, err := a.open(ctx, opts.configPath)
	if err != nil {
		return err
	}
	defer s.Close()

	ac, err := s.agentContext(ctx, opts.tenant, opts.agent)
	if err != nil {
		return err
	}
	state, err := s.Host.Tasks().GetState(ac, remaining[0])
	if err != nil {
		return fmt.Errorf("failed to get task: %w", err)
	}
	a.printTask(remaining[0], state)
	return nil
}

func (a *App) taskDraftCommand(ctx context.Context, args []string) error {
	opts, remaining, err := a.parseTaskFlags("task draft", args)
	if err != nil {
		return err
	}
	if len(remaining) < 2 {
		return fmt.Errorf("draft text is required")
	}

	s, err := a.open(ctx, opts.configPath)
	if err != nil {
		return err
	}
	defer s.Close()

	ac, err := s.agentContext(ctx, opts.tenant, opts.agent)
	if err != nil {
		return err
	}
	if err := s.Host.Tasks().UpdateDraft(ac, remaining[0], strings.Join(remaining[1:], " ")); err != nil {
		return fmt.Errorf("failed to update draft: %w", err)
	}
	fmt.Fprintf(a.out, "Draft of task %s updated.\n", remaining[0])
	return nil
}

// taskActCommand performs action, or the action named after the task ID when
// action is empty.
func (a *App) taskActCommand(ctx context.Context, action string, args []string) error {
	opts, remaining, err := a.parseTaskFlags("task "+lo.Ternary(action == "", "act", action), args)
	if err != nil {
		return err
	}
	taskID := remaining[0]
	rest := remaining[1:]
	if action == "" {
		if len(rest) == 0 {
			return fmt.Errorf("action is required")
		}
		action, rest = rest[0], rest[1:]
	}
	comment := strings.Join(rest, " ")

	s, err := a.open(ctx, opts.configPath)
	if err != nil {
		return err
	}
	defer s.Close()

	ac, err := s.agentContext(ctx, opts.tenant, opts.agent)
	if err != nil {
		return err
	}

	if opts.wait {
		state, err := s.Host.Tasks().PerformActionSync(ac, taskID, action, comment)
		if err != nil {
			return fmt.Errorf("failed to %s task: %w", action, err)
		}
		a.printTask(taskID, state)
		return nil
	}
	if err := s.Host.Tasks().PerformAction(ac, taskID, action, comment); err != nil {
		return fmt.Errorf("failed to %s task: %w", action, err)
	}
	fmt.Fprintf(a.out, "Action %q sent to task %s.\n", action, taskID)
	return nil
}

func (a *App) printTask(taskID string, state task.State) {
	status := a.styles.open.Render("open")
	switch {
	case state.TimedOut:
		status = a.styles.failed.Render("timed out")
	case state.IsCompleted:
		status = a.styles.done.Render("completed")
	}

	field := func(label, value string) {
		fmt.Fprintf(a.out, "%s %s\n", a.styles.label.Render(label+":"), value)
	}
	field("Task", taskID)
	field("Title", state.Title)
	if state.Description != "" {
		field("Description", state.Description)
	}
	if state.ParticipantID != "" {
		field("Participant", state.ParticipantID)
	}
	field("Status", status)
	field("Actions", strings.Join(state.AvailableActions, ", "))
	if state.PerformedAction != "" {
		field("Performed", state.PerformedAction)
	}
	if state.Comment != "" {
		field("Comment", state.Comment)
	}
	if !state.CreatedAt.IsZero() {
		field("Created", state.CreatedAt.Format(time.RFC3339))
	}
	if !state.CompletedAt.IsZero() {
		field("Completed", state.CompletedAt.Format(time.RFC3339))
	}
	if len(state.Metadata) > 0 {
		keys := lo.Keys(state.Metadata)
		sort.Strings(keys)
		fmt.Fprintln(a.out, a.styles.label.Render("Metadata:"))
		for _, k := range keys {
			fmt.Fprintf(a.out, "  %s: %s\n", k, state.Metadata[k])
		}
	}
	if state.Draft != "" {
		fmt.Fprintf(a.out, "\n%s\n%s\n", a.styles.header.Render("Draft"), state.Draft)
	}
}
