// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend talks to the platform REST API that persists documents and
// knowledge. Requests are rate limited on the client and retried with
// exponential backoff on transport failures, 429 and 5xx responses.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/internal/logger"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agenterr"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/documents"
)

// Scope headers sent with every request.
const (
	HeaderTenant = "X-Tenant-Id"
	HeaderAgent  = "X-Agent-Name"
)

// Options configures a Client.
type Options struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	MaxRetries        uint
	RequestsPerSecond float64
	Burst             int
	// InitialBackoff is the first retry delay. Defaults to 500ms.
	InitialBackoff time.Duration
	// HTTPClient replaces the default client; Timeout is ignored then.
	HTTPClient *http.Client
}

// Client implements documents.Store over HTTP.
type Client struct {
	base       *url.URL
	apiKey     string
	http       *http.Client
	limiter    *rate.Limiter
	maxRetries uint
	initial    time.Duration
}

var _ documents.Store = (*Client)(nil)

// New validates opts and creates a Client.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, agenterr.Validation("backend", "base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, agenterr.Validation("backend", "invalid base URL %q", opts.BaseURL)
	}

	c := &Client{
		base:       base,
		apiKey:     opts.APIKey,
		http:       opts.HTTPClient,
		limiter:    rate.NewLimiter(rate.Inf, 0),
		maxRetries: opts.MaxRetries,
		initial:    opts.InitialBackoff,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: opts.Timeout}
	}
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	if c.initial <= 0 {
		c.initial = 500 * time.Millisecond
	}
	return c, nil
}

// StatusError is a non-2xx response that was not mapped to a known kind.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Body)
}

func (c *Client) do(ctx context.Context, op, method, path string, scope documents.Scope, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode %s request: %w", op, err)
		}
	}
	target := c.base.JoinPath(path)

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, c.roundTrip(ctx, op, method, target.String(), scope, payload, out)
	},
		backoff.WithBackOff(c.backOff()),
		backoff.WithMaxTries(c.maxRetries+1),
		backoff.WithNotify(func(err error, next time.Duration) {
			l := logger.WithTrace(ctx, *getLog())
			l.Warn().Err(err).Str("op", op).Int("attempt", attempt).Dur("retry_in", next).Msg("Backend request failed, retrying")
		}),
	)
	return err
}

func (c *Client) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initial
	b.MaxInterval = 30 * c.initial
	return b
}

func (c *Client) roundTrip(ctx context.Context, op, method, target string, scope documents.Scope, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to build %s request: %w", op, err))
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set(HeaderTenant, scope.TenantID)
	req.Header.Set(HeaderAgent, scope.AgentName)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(agenterr.Timeout(op, err))
		}
		return fmt.Errorf("%s request failed: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return backoff.Permanent(fmt.Errorf("failed to decode %s response: %w", op, err))
		}
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	text := strings.TrimSpace(string(msg))
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return backoff.Permanent(agenterr.NotFound(op, "%s", nonEmpty(text, "not found")))
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusConflict, resp.StatusCode == http.StatusUnprocessableEntity:
		return backoff.Permanent(agenterr.Validation(op, "%s", nonEmpty(text, http.StatusText(resp.StatusCode))))
	case resp.StatusCode == http.StatusTooManyRequests:
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			return backoff.RetryAfter(secs)
		}
		return &StatusError{StatusCode: resp.StatusCode, Body: text}
	case resp.StatusCode >= 500:
		return &StatusError{StatusCode: resp.StatusCode, Body: text}
	default:
		return backoff.Permanent(&StatusError{StatusCode: resp.StatusCode, Body: text})
	}
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

type saveRequest struct {
	Document documents.Document    `json:"document"`
	Options  documents.SaveOptions `json:"options"`
}

// SaveDocument implements documents.DocumentStore.
func (c *Client) SaveDocument(ctx context.Context, scope documents.Scope, doc documents.Document, opts documents.SaveOptions) (documents.Document, error) {
	var out documents.Document
	err := c.do(ctx, "documents.Save", http.MethodPost, "/api/agent/documents", scope, saveRequest{Document: doc, Options: opts}, &out)
	return out, err
}

// GetDocument implements documents.DocumentStore.
func (c *Client) GetDocument(ctx context.Context, scope documents.Scope, id string) (documents.Document, error) {
	var out documents.Document
	err := c.do(ctx, "documents.Get", http.MethodGet, "/api/agent/documents/"+url.PathEscape(id), scope, nil, &out)
	return out, err
}

// QueryDocuments implements documents.DocumentStore.
func (c *Client) QueryDocuments(ctx context.Context, scope documents.Scope, q documents.Query) ([]documents.Document, error) {
	var out []documents.Document
	err := c.do(ctx, "documents.Query", http.MethodPost, "/api/agent/documents/query", scope, q, &out)
	return out, err
}

// DeleteDocument implements documents.DocumentStore.
func (c *Client) DeleteDocument(ctx context.Context, scope documents.Scope, id string) (bool, error) {
	return c.delete(ctx, "documents.Delete", "/api/agent/documents/"+url.PathEscape(id), scope)
}

// GetKnowledge implements documents.KnowledgeStore.
func (c *Client) GetKnowledge(ctx context.Context, scope documents.Scope, name string) (documents.Knowledge, error) {
	var out documents.Knowledge
	err := c.do(ctx, "knowledge.Get", http.MethodGet, "/api/agent/knowledge/"+url.PathEscape(name), scope, nil, &out)
	return out, err
}

// UpdateKnowledge implements documents.KnowledgeStore.
func (c *Client) UpdateKnowledge(ctx context.Context, scope documents.Scope, k documents.Knowledge) (documents.Knowledge, error) {
	var out documents.Knowledge
	err := c.do(ctx, "knowledge.Update", http.MethodPut, "/api/agent/knowledge/"+url.PathEscape(k.Name), scope, k, &out)
	return out, err
}

// DeleteKnowledge implements documents.KnowledgeStore.
func (c *Client) DeleteKnowledge(ctx context.Context, scope documents.Scope, name string) (bool, error) {
	return c.delete(ctx, "knowledge.Delete", "/api/agent/knowledge/"+url.PathEscape(name), scope)
}

// ListKnowledge implements documents.KnowledgeStore.
func (c *Client) ListKnowledge(ctx context.Context, scope documents.Scope) ([]documents.Knowledge, error) {
	var out []documents.Knowledge
	err := c.do(ctx, "knowledge.List", http.MethodGet, "/api/agent/knowledge", scope, nil, &out)
	return out, err
}

func (c *Client) delete(ctx context.Context, op, path string, scope documents.Scope) (bool, error) {
	err := c.do(ctx, op, http.MethodDelete, path, scope, nil, nil)
	if errors.Is(err, agenterr.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}
