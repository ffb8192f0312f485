// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/documents"
)

type docsOptions struct {
	configPath  string
	tenant      string
	agent       string
	docType     string
	participant string
	limit       int
	meta        map[string]string
}

func (a *App) docsCommand(ctx context.Context, args []string) error {
	opts := &docsOptions{meta: make(map[string]string)}
	fs := a.newFlagSet("docs", &opts.configPath)
	fs.StringVar(&opts.tenant, "tenant", "", "Tenant the agent runs for (defaults to agent.default_tenant)")
	fs.StringVar(&opts.agent, "agent", "", "Agent whose documents to list")
	fs.StringVar(&opts.docType, "type", "", "Only documents of this type")
	fs.StringVar(&opts.participant, "participant", "", "Only documents of this participant")
	fs.IntVar(&opts.limit, "limit", 20, "Maximum number of documents")
	fs.Func("meta", "Metadata filter (key=value), can be repeated", func(s string) error {
		parts := strings.SplitN(s, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid meta format, use key=value")
		}
		opts.meta[parts[0]] = parts[1]
		return nil
	})
	if err := fs.Parse(args); err != nil {
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
	docs, err := s.Host.Documents().Query(ac, documents.Query{
		Type:          opts.docType,
		ParticipantID: opts.participant,
		Metadata:      opts.meta,
		Limit:         opts.limit,
		Newest:        true,
	})
	if err != nil {
		return fmt.Errorf("failed to query documents: %w", err)
	}
	if len(docs) == 0 {
		fmt.Fprintln(a.out, "No documents found.")
		return nil
	}

	rows := lo.Map(docs, func(d documents.Document, _ int) []string {
		return []string{d.ID, d.Type, d.ParticipantID, d.UpdatedAt.Format(time.RFC3339), truncate(string(d.Content), 60)}
	})
	a.printTable([]string{"ID", "TYPE", "PARTICIPANT", "UPDATED", "CONTENT"}, rows)
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
