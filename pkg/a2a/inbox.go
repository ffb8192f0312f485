// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package a2a

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agentctx"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agenterr"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/naming"
)

// Handler processes one inbound message.
type Handler func(mc *MessageContext) error

// DefaultReplyRetention is how long an uncollected reply is kept. It exceeds
// the default call timeout, so only replies whose sender gave up are dropped.
const DefaultReplyRetention = 10 * time.Minute

// Inbox is the receiving side of the exchange. It lives inside a workflow:
// messages arrive on the inbound signal channel and senders collect replies
// through the await-reply update.
type Inbox struct {
	agent     naming.AgentIdentity
	ch        workflow.ReceiveChannel
	retention time.Duration
	replies   map[string]PendingReply
	handled   int
	delivered int
	evicted   int
}

// PendingReply is a reply no sender has collected yet.
type PendingReply struct {
	Response Response  `json:"response"`
	StoredAt time.Time `json:"storedAt"`
}

// InboxState is what an inbox hands over to the next run of its workflow.
type InboxState struct {
	Handled   int            `json:"handled"`
	Delivered int            `json:"delivered"`
	Evicted   int            `json:"evicted"`
	Replies   []PendingReply `json:"replies,omitempty"`
}

// Stats summarises inbox activity.
type Stats struct {
	Handled        int `json:"handled"`
	Delivered      int `json:"delivered"`
	Evicted        int `json:"evicted"`
	PendingReplies int `json:"pendingReplies"`
}

// InboxOption customises an Inbox.
type InboxOption func(*Inbox)

// WithReplyRetention keeps uncollected replies for d instead of
// DefaultReplyRetention.
func WithReplyRetention(d time.Duration) InboxOption {
	return func(in *Inbox) {
		if d > 0 {
			in.retention = d
		}
	}
}

// WithState resumes from the state of a previous run.
func WithState(st InboxState) InboxOption {
	return func(in *Inbox) {
		in.handled, in.delivered, in.evicted = st.Handled, st.Delivered, st.Evicted
		for _, r := range st.Replies {
			in.replies[r.Response.RequestID] = r
		}
	}
}

// NewInbox installs the reply update handler on the workflow. It must be
// called before the workflow blocks for the first time.
func NewInbox(ctx workflow.Context, agent naming.AgentIdentity, opts ...InboxOption) (*Inbox, error) {
	in := &Inbox{
		agent:     agent,
		ch:        workflow.GetSignalChannel(ctx, SignalInbound),
		retention: DefaultReplyRetention,
		replies:   make(map[string]PendingReply),
	}
	for _, opt := range opts {
		opt(in)
	}
	err := workflow.SetUpdateHandlerWithOptions(ctx, UpdateAwaitReply, in.awaitReply, workflow.UpdateHandlerOptions{
		Validator: func(ctx workflow.Context, requestID string) error {
			if requestID == "" {
				return agenterr.ToApplicationError(agenterr.Validation(UpdateAwaitReply, "request ID must not be empty"))
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register %s handler: %w", UpdateAwaitReply, err)
	}
	return in, nil
}

// Channel returns the inbound signal channel so callers can select on it
// alongside their own channels.
func (in *Inbox) Channel() workflow.ReceiveChannel { return in.ch }

// Stats reports how many messages were handled and what became of their
// replies.
func (in *Inbox) Stats() Stats {
	return Stats{
		Handled:        in.handled,
		Delivered:      in.delivered,
		Evicted:        in.evicted,
		PendingReplies: len(in.replies),
	}
}

// State snapshots the inbox for continue-as-new. Replies are ordered by
// request ID.
func (in *Inbox) State() InboxState {
	st := InboxState{Handled: in.handled, Delivered: in.delivered, Evicted: in.evicted}
	for _, r := range in.replies {
		st.Replies = append(st.Replies, r)
	}
	sort.Slice(st.Replies, func(i, j int) bool {
		return st.Replies[i].Response.RequestID < st.Replies[j].Response.RequestID
	})
	return st
}

// Evict drops replies stored longer than the retention ago and returns how
// many were dropped.
func (in *Inbox) Evict(ctx workflow.Context) int {
	cutoff := workflow.Now(ctx).Add(-in.retention)
	n := 0
	for id, r := range in.replies {
		if r.StoredAt.Before(cutoff) {
			delete(in.replies, id)
			n++
		}
	}
	if n > 0 {
		in.evicted += n
		workflow.GetLogger(ctx).Info("Evicted uncollected replies", "Count", n, "Retention", in.retention)
	}
	return n
}

func (in *Inbox) awaitReply(ctx workflow.Context, requestID string) (Response, error) {
	ok, err := workflow.AwaitWithTimeout(ctx, in.retention, func() bool {
		_, ok := in.replies[requestID]
		return ok
	})
	if err != nil {
		return Response{}, err
	}
	if !ok {
		return Response{}, agenterr.ToApplicationError(
			agenterr.Timeout(UpdateAwaitReply, fmt.Errorf("no reply to %s within %s", requestID, in.retention)))
	}
	r := in.replies[requestID]
	delete(in.replies, requestID)
	in.delivered++
	return r.Response, nil
}

// Drain handles every message already waiting on the channel without
// blocking and returns how many it handled.
func (in *Inbox) Drain(ctx workflow.Context, chat, data Handler) int {
	n := 0
	for {
		var env Envelope
		if !in.ch.ReceiveAsync(&env) {
			return n
		}
		in.Handle(ctx, env, chat, data)
		n++
	}
}

// Receive takes the next message off the channel and handles it. It blocks
// until a message arrives.
func (in *Inbox) Receive(ctx workflow.Context, chat, data Handler) {
	var env Envelope
	in.ch.Receive(ctx, &env)
	in.Handle(ctx, env, chat, data)
}

// Handle runs the handler matching the message type. A handler error is
// returned to the sender as the reply's error unless a reply was already
// sent.
func (in *Inbox) Handle(ctx workflow.Context, env Envelope, chat, data Handler) {
	logger := workflow.GetLogger(ctx)
	in.handled++

	h := chat
	if env.Type == TypeData {
		h = data
	}
	mc := &MessageContext{
		Context:  agentctx.ForWorkflow(ctx, in.agent),
		Envelope: env,
		inbox:    in,
	}
	if h == nil {
		logger.Warn("No handler for message type", "Type", env.Type, "RequestID", env.RequestID)
		in.store(ctx, Response{RequestID: env.RequestID, Error: fmt.Sprintf("agent %s does not accept %s messages", in.agent.Name, env.Type)})
		return
	}

	logger.Debug("Handling message", "Type", env.Type, "RequestID", env.RequestID, "From", env.SourceAgent)
	if err := h(mc); err != nil {
		logger.Warn("Message handler failed", "RequestID", env.RequestID, "Error", err)
		if !mc.replied {
			in.store(ctx, Response{RequestID: env.RequestID, Error: err.Error()})
		}
	}
}

func (in *Inbox) store(ctx workflow.Context, resp Response) bool {
	if resp.RequestID == "" {
		return false
	}
	if _, exists := in.replies[resp.RequestID]; exists {
		workflow.GetLogger(ctx).Warn("Reply already recorded, ignoring", "RequestID", resp.RequestID)
		return false
	}
	in.Evict(ctx)
	in.replies[resp.RequestID] = PendingReply{Response: resp, StoredAt: workflow.Now(ctx)}
	return true
}

// MessageContext is what a handler sees: the inbound envelope, an agent
// context for making further calls, and the means to reply.
type MessageContext struct {
	*agentctx.Context
	Envelope Envelope

	inbox   *Inbox
	replied bool
}

// Text returns the chat text.
func (m *MessageContext) Text() string { return m.Envelope.Text }

// Reply answers the sender with text. Only the first reply is delivered.
func (m *MessageContext) Reply(text string) error {
	return m.reply(Response{RequestID: m.Envelope.RequestID, Text: text})
}

// SendData answers the sender with a structured payload.
func (m *MessageContext) SendData(data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return agenterr.Validation("a2a", "reply data is not serializable: %v", err)
	}
	return m.reply(Response{RequestID: m.Envelope.RequestID, Data: raw})
}

func (m *MessageContext) reply(resp Response) error {
	if m.replied {
		return agenterr.Validation("a2a", "message %s already answered", m.Envelope.RequestID)
	}
	m.replied = true
	m.inbox.store(m.Workflow(), resp)
	return nil
}
