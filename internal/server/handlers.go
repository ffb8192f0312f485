// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agent"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agentctx"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agenterr"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/naming"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/registry"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/rpc"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/subworkflow"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	registry *registry.Registry
	caller   *rpc.Caller
	launcher *subworkflow.Launcher
}

// NewHandlers creates the handler set.
func NewHandlers(reg *registry.Registry, caller *rpc.Caller, launcher *subworkflow.Launcher) *Handlers {
	return &Handlers{registry: reg, caller: caller, launcher: launcher}
}

type errorResponse struct {
	Error   string `json:"error"`
	Context string `json:"context,omitempty"`
}

// AgentInfo describes one registered agent.
type AgentInfo struct {
	Name      string         `json:"name"`
	TenantID  string         `json:"tenantId,omitempty"`
	Scoping   string         `json:"scoping"`
	Workflows []WorkflowInfo `json:"workflows"`
}

// WorkflowInfo describes one workflow of an agent.
type WorkflowInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Kind string `json:"kind"`
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		getLog().Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// statusFor maps the SDK error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch agenterr.KindOf(err) {
	case agenterr.KindValidation:
		return http.StatusBadRequest
	case agenterr.KindNotFound:
		return http.StatusNotFound
	case agenterr.KindTimeout:
		return http.StatusGatewayTimeout
	case agenterr.KindTerminalState:
		return http.StatusConflict
	case agenterr.KindOperationFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, msg string, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: msg, Context: err.Error()})
}

func flatten(values map[string][]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	return lo.MapValues(values, func(v []string, _ string) string { return strings.Join(v, ",") })
}

// Health handles GET /healthz
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListAgents handles GET /api/v1/agents
func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	tenant := r.URL.Query().Get("tenant")
	regs := lo.Filter(h.registry.All(), func(reg registry.Registration, _ int) bool {
		return tenant == "" || reg.Identity.Scoping == naming.SystemScoped || reg.Identity.TenantID == tenant
	})
	infos := lo.Map(regs, func(reg registry.Registration, _ int) AgentInfo {
		return AgentInfo{
			Name:     reg.Identity.Name,
			TenantID: reg.Identity.TenantID,
			Scoping:  reg.Identity.Scoping.String(),
			Workflows: lo.Map(reg.Workflows, func(d registry.WorkflowDefinition, _ int) WorkflowInfo {
				return WorkflowInfo{
					Name: d.Name,
					Type: reg.Identity.Name + naming.Separator + d.Name,
					Kind: registry.KindName(d.Kind),
				}
			}),
		}
	})
	writeJSON(w, http.StatusOK, infos)
}

// Webhook handles POST /api/v1/webhooks/{tenant}/{agent}/{workflow}/{name}.
// The built-in instance is started if it is not running, then the call is
// delivered as a webhook update and its response written back verbatim.
func (h *Handlers) Webhook(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenant")
	agentName := chi.URLParam(r, "agent")
	workflowName := chi.URLParam(r, "workflow")
	name := chi.URLParam(r, "name")

	reg, def, err := h.registry.LookupWorkflow(tenantID, agentName, workflowName)
	if err != nil {
		writeError(w, "Unknown webhook target", err)
		return
	}
	if _, custom := def.Kind.(registry.Custom); custom {
		writeError(w, "Workflow does not accept webhooks",
			agenterr.Validation("webhook", "workflow %q of agent %q is not a built-in workflow", workflowName, agentName))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "Request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Failed to read request body", Context: err.Error()})
		return
	}

	identity := reg.Identity
	if identity.Scoping == naming.TenantScoped {
		identity.TenantID = tenantID
	}
	ac := agentctx.ForClient(r.Context(), identity)

	exec, err := h.launcher.Start(ac, reg.Identity.Name+naming.Separator+workflowName, "")
	if err != nil {
		writeError(w, "Failed to start workflow", err)
		return
	}

	req := agent.WebhookRequest{
		Name:        name,
		Method:      r.Method,
		Headers:     flatten(r.Header),
		Query:       flatten(r.URL.Query()),
		ContentType: r.Header.Get("Content-Type"),
		Body:        string(body),
	}
	opts := []rpc.CallOption{}
	if id := GetRequestID(r.Context()); id != "" {
		opts = append(opts, rpc.WithUpdateID(id))
	}
	resp, err := rpc.Update[agent.WebhookResponse](h.caller, ac, rpc.TargetOf(reg.Identity.Name, workflowName, ""), agent.UpdateWebhook, req, opts...)
	if err != nil {
		writeError(w, "Webhook failed", err)
		return
	}

	getLog().Debug().
		Str("workflow_id", exec.ID).
		Str("webhook", name).
		Int("status", resp.StatusCode).
		Msg("Webhook served")

	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if resp.Content != "" {
		if _, err := io.WriteString(w, resp.Content); err != nil {
			getLog().Warn().Err(err).Msg("Failed to write webhook response")
		}
	}
}
