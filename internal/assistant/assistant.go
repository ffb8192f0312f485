// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package assistant is the agent shipped with the worker binary. It keeps a
// per-participant message log, opens approval tasks on request and records
// webhook deliveries.
package assistant

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/internal/host"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/a2a"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agent"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agentctx"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/documents"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/naming"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/task"
)

// Name is the agent name manifests refer to.
const Name = "Assistant"

// Document types written by the assistant.
const (
	DocTypeMessage = "assistant.message"
	DocTypeWebhook = "assistant.webhook"
)

// Message is the stored form of a chat message.
type Message struct {
	Text        string `json:"text"`
	SourceAgent string `json:"sourceAgent,omitempty"`
	ThreadID    string `json:"threadId,omitempty"`
}

// ApprovalRequest asks the assistant to open an approval task.
type ApprovalRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Draft       string `json:"draft,omitempty"`
}

// ApprovalOpened answers an ApprovalRequest.
type ApprovalOpened struct {
	TaskID string `json:"taskId"`
}

// WebhookReceipt is the body of a webhook response.
type WebhookReceipt struct {
	DocumentID string `json:"documentId"`
}

type service struct {
	docs  *documents.Client
	tasks *task.Client
}

// New builds the assistant for identity. It matches host.AgentFactory.
func New(h *host.Host, identity naming.AgentIdentity) *agent.Agent {
	s := &service{docs: h.Documents(), tasks: h.Tasks()}
	return agent.New(identity).
		BuiltIn(h.BuiltInWorkflow(), agent.Handlers{
			OnChat:    s.onChat,
			OnData:    s.onData,
			OnWebhook: s.onWebhook,
		}).
		WithTasks()
}

func (s *service) onChat(mc *a2a.MessageContext) error {
	content, err := json.Marshal(Message{
		Text:        mc.Text(),
		SourceAgent: mc.Envelope.SourceAgent,
		ThreadID:    mc.Envelope.ThreadID,
	})
	if err != nil {
		return err
	}
	if _, err := s.docs.Save(mc.Context, documents.Document{
		Type:          DocTypeMessage,
		ParticipantID: mc.Envelope.ParticipantID,
		Content:       content,
	}, documents.SaveOptions{}); err != nil {
		return fmt.Errorf("failed to record message: %w", err)
	}

	history, err := s.docs.Query(mc.Context, documents.Query{
		Type:          DocTypeMessage,
		ParticipantID: mc.Envelope.ParticipantID,
	})
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	return mc.Reply(fmt.Sprintf("#%d: %s", len(history), mc.Text()))
}

func (s *service) onData(mc *a2a.MessageContext) error {
	var req ApprovalRequest
	if err := mc.Envelope.DecodeData(&req); err != nil {
		return err
	}
	taskID, err := s.tasks.Create(mc.Context, task.Request{
		Title:         req.Title,
		Description:   req.Description,
		Draft:         req.Draft,
		ParticipantID: mc.Envelope.ParticipantID,
	})
	if err != nil {
		return err
	}
	return mc.SendData(ApprovalOpened{TaskID: taskID})
}

func (s *service) onWebhook(ac *agentctx.Context, req agent.WebhookRequest) (agent.WebhookResponse, error) {
	content, err := json.Marshal(req)
	if err != nil {
		return agent.WebhookResponse{}, err
	}
	doc, err := s.docs.Save(ac, documents.Document{
		Type:     DocTypeWebhook,
		Content:  content,
		Metadata: map[string]string{"webhook": req.Name},
	}, documents.SaveOptions{})
	if err != nil {
		return agent.WebhookResponse{}, err
	}
	body, err := json.Marshal(WebhookReceipt{DocumentID: doc.ID})
	if err != nil {
		return agent.WebhookResponse{}, err
	}
	return agent.WebhookResponse{
		StatusCode: http.StatusAccepted,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Content:    string(body),
	}, nil
}
