// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the operator command line: listing agents, talking
// to their built-in workflows, and driving human-in-the-loop tasks.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

const (
	appName    = "xiansai"
	appVersion = "0.1.0-alpha"
)

// App holds the command line's outputs and the way it connects to the
// runtime.
type App struct {
	out    io.Writer
	errOut io.Writer
	open   Opener
	styles styles
}

// styles render against the output writer, so colors disappear when it is
// not a terminal.
type styles struct {
	header lipgloss.Style
	cell   lipgloss.Style
	label  lipgloss.Style
	open   lipgloss.Style
	done   lipgloss.Style
	failed lipgloss.Style
}

func newStyles(out io.Writer) styles {
	r := lipgloss.NewRenderer(out)
	return styles{
		header: r.NewStyle().Bold(true).Padding(0, 1),
		cell:   r.NewStyle().Padding(0, 1),
		label:  r.NewStyle().Foreground(lipgloss.Color("245")).Width(12),
		open:   r.NewStyle().Foreground(lipgloss.Color("214")),
		done:   r.NewStyle().Foreground(lipgloss.Color("42")),
		failed: r.NewStyle().Foreground(lipgloss.Color("203")),
	}
}

// New creates an App writing to out and errOut.
func New(out, errOut io.Writer, open Opener) *App {
	if open == nil {
		open = Open
	}
	return &App{out: out, errOut: errOut, open: open, styles: newStyles(out)}
}

// Execute runs the CLI application
func Execute() error {
	return New(os.Stdout, os.Stderr, Open).Run(context.Background(), os.Args[1:])
}

// Run dispatches args to a command.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return a.printUsage()
	}

	command := args[0]
	rest := args[1:]

	switch command {
	case "agents":
		return a.agentsCommand(ctx, rest)
	case "chat":
		return a.chatCommand(ctx, rest)
	case "task":
		return a.taskCommand(ctx, rest)
	case "docs":
		return a.docsCommand(ctx, rest)
	case "version":
		fmt.Fprintf(a.out, "%s version %s\n", appName, appVersion)
		return nil
	case "help", "-h", "--help":
		return a.printUsage()
	default:
		fmt.Fprintf(a.errOut, "Unknown command: %s\n\n", command)
		return a.printUsage()
	}
}

func (a *App) printUsage() error {
	fmt.Fprintf(a.out, `%s - agent runtime operator

Usage:
  %s <command> [arguments]

Commands:
  agents         List the agents in the manifest
  chat           Send a message to an agent and print its reply
  task           Show and act on human-in-the-loop tasks
  docs           List an agent's documents
  version        Print version information
  help           Show this help message

Examples:
  %s agents --tenant acme
  %s chat --tenant acme Assistant "hello"
  %s task show --tenant acme --agent Assistant 7c1f...
  %s task approve --tenant acme --agent Assistant 7c1f... "looks good"
  %s docs --tenant acme --agent Assistant --type assistant.message

`, appName, appName, appName, appName, appName, appName, appName)
	return nil
}

// newFlagSet returns a flag set that reports errors instead of exiting and
// carries the flags every command shares.
func (a *App) newFlagSet(name string, configPath *string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	fs.StringVar(configPath, "config", "", "Path to config file")
	return fs
}

// printTable writes rows under a bold header row.
func (a *App) printTable(headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return a.styles.header
			}
			return a.styles.cell
		}).
		Headers(headers...).
		Rows(rows...)
	fmt.Fprintln(a.out, t.Render())
}
