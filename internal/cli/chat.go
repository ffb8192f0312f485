// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/a2a"
)

// operatorName identifies the CLI as the sending agent.
const operatorName = "Operator"

type chatOptions struct {
	configPath  string
	tenant      string
	from        string
	participant string
	thread      string
	data        string
	timeout     time.Duration
}

func (a *App) chatCommand(ctx context.Context, args []string) error {
	opts := &chatOptions{}
	fs := a.newFlagSet("chat", &opts.configPath)
	fs.StringVar(&opts.tenant, "tenant", "", "Tenant to send as (defaults to agent.default_tenant)")
	fs.StringVar(&opts.from, "from", operatorName, "Sending agent name")
	fs.StringVar(&opts.participant, "participant", "", "Participant the message is on behalf of")
	fs.StringVar(&opts.thread, "thread", "", "Conversation thread ID")
	fs.StringVar(&opts.data, "data", "", "Send this JSON payload as a data message instead of text")
	fs.DurationVar(&opts.timeout, "timeout", 0, "How long to wait for the reply")
	if err := fs.Parse(args); err != nil {
		return err
	}

	remaining := fs.Args()
	if len(remaining) == 0 {
		return fmt.Errorf("usage: %s chat [flags] <Agent[:Workflow]> [text...]", appName)
	}
	target := remaining[0]
	text := strings.Join(remaining[1:], " ")
	if opts.data == "" && text == "" {
		return fmt.Errorf("nothing to send: pass message text or --data")
	}

	s, err := a.open(ctx, opts.configPath)
	if err != nil {
		return err
	}
	defer s.Close()

	ac, err := s.callerContext(ctx, opts.tenant, opts.from)
	if err != nil {
		return err
	}

	msg := a2a.Envelope{ParticipantID: opts.participant, ThreadID: opts.thread, Text: text}
	var sendOpts []a2a.SendOption
	if opts.timeout > 0 {
		sendOpts = append(sendOpts, a2a.WithTimeout(opts.timeout))
	}

	var resp a2a.Response
	if opts.data != "" {
		var payload json.RawMessage
		if err := json.Unmarshal([]byte(opts.data), &payload); err != nil {
			return fmt.Errorf("invalid --data: %w", err)
		}
		resp, err = s.Host.A2A().SendDataToBuiltIn(ac, target, payload, msg, sendOpts...)
	} else {
		resp, err = s.Host.A2A().SendChatToBuiltIn(ac, target, msg, sendOpts...)
	}
	if err != nil {
		return err
	}

	if resp.Text != "" {
		fmt.Fprintln(a.out, resp.Text)
	}
	if len(resp.Data) > 0 {
		fmt.Fprintln(a.out, string(resp.Data))
	}
	return nil
}
