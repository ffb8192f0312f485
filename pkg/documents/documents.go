// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package documents stores agent documents and knowledge. Every call is
// scoped by the calling agent's tenant and name, and every call goes through
// the dispatcher so workflows can use it directly.
package documents

import (
	"context"
	"encoding/json"
	"time"
)

// Scope partitions stored data. It is taken from the caller, never from
// arguments.
type Scope struct {
	TenantID  string `json:"tenantId"`
	AgentName string `json:"agentName"`
}

// Document is a JSON payload with optional lookup key and metadata.
type Document struct {
	ID            string            `json:"id,omitempty"`
	Type          string            `json:"type"`
	Key           string            `json:"key,omitempty"`
	ParticipantID string            `json:"participantId,omitempty"`
	Content       json.RawMessage   `json:"content"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"createdAt,omitempty"`
	UpdatedAt     time.Time         `json:"updatedAt,omitempty"`
	ExpiresAt     *time.Time        `json:"expiresAt,omitempty"`
}

// Decode unmarshals the document content into v.
func (d Document) Decode(v any) error {
	return json.Unmarshal(d.Content, v)
}

// SaveOptions controls how Save treats existing documents.
type SaveOptions struct {
	// UseKeyAsIdentifier makes Type+Key the identity of the document.
	UseKeyAsIdentifier bool `json:"useKeyAsIdentifier,omitempty"`
	// Overwrite replaces an existing document instead of failing.
	Overwrite bool `json:"overwrite,omitempty"`
	// TTL expires the document after the given duration when non-zero.
	TTL time.Duration `json:"ttl,omitempty"`
}

// Query selects documents. Empty fields match everything; metadata entries
// must all match.
type Query struct {
	Type          string            `json:"type,omitempty"`
	Key           string            `json:"key,omitempty"`
	ParticipantID string            `json:"participantId,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Limit         int               `json:"limit,omitempty"`
	Skip          int               `json:"skip,omitempty"`
	Newest        bool              `json:"newest,omitempty"`
}

// Knowledge is a named instruction or reference text.
type Knowledge struct {
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	Type      string    `json:"type,omitempty"`
	Version   int       `json:"version,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// DocumentStore persists documents.
type DocumentStore interface {
	SaveDocument(ctx context.Context, scope Scope, doc Document, opts SaveOptions) (Document, error)
	GetDocument(ctx context.Context, scope Scope, id string) (Document, error)
	QueryDocuments(ctx context.Context, scope Scope, q Query) ([]Document, error)
	DeleteDocument(ctx context.Context, scope Scope, id string) (bool, error)
}

// KnowledgeStore persists knowledge.
type KnowledgeStore interface {
	GetKnowledge(ctx context.Context, scope Scope, name string) (Knowledge, error)
	UpdateKnowledge(ctx context.Context, scope Scope, k Knowledge) (Knowledge, error)
	DeleteKnowledge(ctx context.Context, scope Scope, name string) (bool, error)
	ListKnowledge(ctx context.Context, scope Scope) ([]Knowledge, error)
}

// Store is implemented by the backend client and the local database.
type Store interface {
	DocumentStore
	KnowledgeStore
}
