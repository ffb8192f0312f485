// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agenterr"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/documents"
)

var scope = documents.Scope{TenantID: "acme", AgentName: "Support"}

func newTestClient(t *testing.T, r http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	c, err := New(Options{
		BaseURL:        srv.URL,
		APIKey:         "secret",
		Timeout:        time.Second,
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
	})
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestSendsScopeAndCredentials(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/api/agent/documents", func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "Bearer secret", req.Header.Get("Authorization"))
		assert.Equal(t, "acme", req.Header.Get(HeaderTenant))
		assert.Equal(t, "Support", req.Header.Get(HeaderAgent))

		var body saveRequest
		assert.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		assert.True(t, body.Options.Overwrite)
		body.Document.ID = "doc-1"
		writeJSON(w, body.Document)
	})
	c := newTestClient(t, r)

	saved, err := c.SaveDocument(context.Background(), scope,
		documents.Document{Type: "ticket", Content: json.RawMessage(`{"a":1}`)}, documents.SaveOptions{Overwrite: true})
	require.NoError(t, err)
	assert.Equal(t, "doc-1", saved.ID)
	assert.JSONEq(t, `{"a":1}`, string(saved.Content))
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	r := chi.NewRouter()
	r.Get("/api/agent/knowledge/{name}", func(w http.ResponseWriter, req *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "try later", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, documents.Knowledge{Name: chi.URLParam(req, "name"), Content: "Be brief.", Version: 4})
	})
	c := newTestClient(t, r)

	k, err := c.GetKnowledge(context.Background(), scope, "tone")
	require.NoError(t, err)
	assert.Equal(t, "tone", k.Name)
	assert.Equal(t, 4, k.Version)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	r := chi.NewRouter()
	r.Get("/api/agent/knowledge", func(w http.ResponseWriter, req *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	c := newTestClient(t, r)

	_, err := c.ListKnowledge(context.Background(), scope)
	var status *StatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusInternalServerError, status.StatusCode)
	assert.Equal(t, int32(4), calls.Load())
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	r := chi.NewRouter()
	r.Get("/api/agent/documents/{id}", func(w http.ResponseWriter, req *http.Request) {
		calls.Add(1)
		http.Error(w, "no such document", http.StatusNotFound)
	})
	r.Post("/api/agent/documents/query", func(w http.ResponseWriter, req *http.Request) {
		calls.Add(1)
		http.Error(w, "bad filter", http.StatusBadRequest)
	})
	c := newTestClient(t, r)

	_, err := c.GetDocument(context.Background(), scope, "nope")
	assert.ErrorIs(t, err, agenterr.ErrNotFound)
	_, err = c.QueryDocuments(context.Background(), scope, documents.Query{Type: "x"})
	assert.ErrorIs(t, err, agenterr.ErrValidation)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDeleteReportsExistence(t *testing.T) {
	r := chi.NewRouter()
	r.Delete("/api/agent/documents/{id}", func(w http.ResponseWriter, req *http.Request) {
		if chi.URLParam(req, "id") == "gone" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	c := newTestClient(t, r)

	deleted, err := c.DeleteDocument(context.Background(), scope, "doc-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = c.DeleteDocument(context.Background(), scope, "gone")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestTooManyRequestsIsRetried(t *testing.T) {
	var calls atomic.Int32
	r := chi.NewRouter()
	r.Put("/api/agent/knowledge/{name}", func(w http.ResponseWriter, req *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		var k documents.Knowledge
		assert.NoError(t, json.NewDecoder(req.Body).Decode(&k))
		k.Version = 1
		writeJSON(w, k)
	})
	c := newTestClient(t, r)

	k, err := c.UpdateKnowledge(context.Background(), scope, documents.Knowledge{Name: "tone", Content: "x"})
	require.NoError(t, err)
	assert.Equal(t, 1, k.Version)
	assert.Equal(t, int32(2), calls.Load())
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, agenterr.ErrValidation)
	_, err = New(Options{BaseURL: "not a url"})
	assert.ErrorIs(t, err, agenterr.ErrValidation)

	c, err := New(Options{BaseURL: "https://api.example.com/", RequestsPerSecond: 5})
	require.NoError(t, err)
	assert.Equal(t, 1, c.limiter.Burst())
}
