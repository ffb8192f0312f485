// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/naming"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/registry"
)

func (a *App) agentsCommand(ctx context.Context, args []string) error {
	var configPath, tenant string
	fs := a.newFlagSet("agents", &configPath)
	fs.StringVar(&tenant, "tenant", "", "Only show agents visible to this tenant")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := a.open(ctx, configPath)
	if err != nil {
		return err
	}
	defer s.Close()

	regs := s.Host.Registry().All()
	if tenant != "" {
		regs = lo.Filter(regs, func(r registry.Registration, _ int) bool {
			return r.Identity.Scoping == naming.SystemScoped || r.Identity.TenantID == tenant
		})
	}
	if len(regs) == 0 {
		fmt.Fprintln(a.out, "No agents found.")
		return nil
	}

	rows := lo.Map(regs, func(r registry.Registration, _ int) []string {
		tenantCol := r.Identity.TenantID
		if r.Identity.Scoping == naming.SystemScoped {
			tenantCol = "-"
		}
		workflows := lo.Map(r.Workflows, func(d registry.WorkflowDefinition, _ int) string { return d.Name })
		return []string{r.Identity.Name, tenantCol, r.Identity.Scoping.String(), strings.Join(workflows, ", ")}
	})
	a.printTable([]string{"AGENT", "TENANT", "SCOPING", "WORKFLOWS"}, rows)
	return nil
}
