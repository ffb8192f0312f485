// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package a2a exchanges request/response messages between agents. The sender
// signals the receiver's built-in workflow (starting it if needed) and then
// waits on an update keyed by the request ID until the receiver's handler
// replies.
package a2a

import (
	"encoding/json"
	"fmt"
)

// Engine names used by the exchange.
const (
	SignalInbound    = "a2a.inbound"
	UpdateAwaitReply = "a2a.await-reply"
	OpExchange       = "a2a.Exchange"
)

// MessageType distinguishes chat from structured data.
type MessageType string

const (
	TypeChat MessageType = "chat"
	TypeData MessageType = "data"
)

// Envelope is a message together with the conversation context it travels
// in. Context fields are delivered to the receiver unchanged.
type Envelope struct {
	RequestID string      `json:"requestId"`
	TenantID  string      `json:"tenantId"`
	Type      MessageType `json:"type"`

	ParticipantID string            `json:"participantId,omitempty"`
	ThreadID      string            `json:"threadId,omitempty"`
	Scope         string            `json:"scope,omitempty"`
	Hint          string            `json:"hint,omitempty"`
	Authorization string            `json:"authorization,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`

	Text string          `json:"text,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`

	SourceAgent      string `json:"sourceAgent,omitempty"`
	SourceWorkflowID string `json:"sourceWorkflowId,omitempty"`
}

// DecodeData unmarshals the data payload into v.
func (e Envelope) DecodeData(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("message %s carries no data", e.RequestID)
	}
	return json.Unmarshal(e.Data, v)
}

// Response is the receiver's reply. Error is set when the receiver's handler
// failed.
type Response struct {
	RequestID string          `json:"requestId"`
	Text      string          `json:"text,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// DecodeData unmarshals the reply data into v.
func (r Response) DecodeData(v any) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("reply %s carries no data", r.RequestID)
	}
	return json.Unmarshal(r.Data, v)
}
