// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package documents

import (
	"context"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agentctx"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agenterr"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/dispatch"
)

// Operation names registered on the dispatcher.
const (
	OpSave            = "documents.Save"
	OpGet             = "documents.Get"
	OpQuery           = "documents.Query"
	OpDelete          = "documents.Delete"
	OpGetKnowledge    = "knowledge.Get"
	OpUpdateKnowledge = "knowledge.Update"
	OpDeleteKnowledge = "knowledge.Delete"
	OpListKnowledge   = "knowledge.List"
)

type saveArgs struct {
	Scope    Scope
	Document Document
	Options  SaveOptions
}

type idArgs struct {
	Scope Scope
	ID    string
}

type queryArgs struct {
	Scope Scope
	Query Query
}

type knowledgeArgs struct {
	Scope     Scope
	Knowledge Knowledge
}

// Client exposes the store to agent code in either execution context.
type Client struct {
	save   *dispatch.Operation[saveArgs, Document]
	get    *dispatch.Operation[idArgs, Document]
	query  *dispatch.Operation[queryArgs, []Document]
	delete *dispatch.Operation[idArgs, bool]

	getKnowledge    *dispatch.Operation[idArgs, Knowledge]
	updateKnowledge *dispatch.Operation[knowledgeArgs, Knowledge]
	deleteKnowledge *dispatch.Operation[idArgs, bool]
	listKnowledge   *dispatch.Operation[Scope, []Knowledge]
}

// NewClient registers the document and knowledge operations on d.
func NewClient(d *dispatch.Dispatcher, store Store) (*Client, error) {
	if store == nil {
		return nil, agenterr.Validation("documents", "store must not be nil")
	}
	c := &Client{}
	var err error
	if c.save, err = dispatch.Register(d, OpSave, func(ctx context.Context, a saveArgs) (Document, error) {
		return store.SaveDocument(ctx, a.Scope, a.Document, a.Options)
	}); err != nil {
		return nil, err
	}
	if c.get, err = dispatch.Register(d, OpGet, func(ctx context.Context, a idArgs) (Document, error) {
		return store.GetDocument(ctx, a.Scope, a.ID)
	}); err != nil {
		return nil, err
	}
	if c.query, err = dispatch.Register(d, OpQuery, func(ctx context.Context, a queryArgs) ([]Document, error) {
		return store.QueryDocuments(ctx, a.Scope, a.Query)
	}); err != nil {
		return nil, err
	}
	if c.delete, err = dispatch.Register(d, OpDelete, func(ctx context.Context, a idArgs) (bool, error) {
		return store.DeleteDocument(ctx, a.Scope, a.ID)
	}); err != nil {
		return nil, err
	}
	if c.getKnowledge, err = dispatch.Register(d, OpGetKnowledge, func(ctx context.Context, a idArgs) (Knowledge, error) {
		return store.GetKnowledge(ctx, a.Scope, a.ID)
	}); err != nil {
		return nil, err
	}
	if c.updateKnowledge, err = dispatch.Register(d, OpUpdateKnowledge, func(ctx context.Context, a knowledgeArgs) (Knowledge, error) {
		return store.UpdateKnowledge(ctx, a.Scope, a.Knowledge)
	}); err != nil {
		return nil, err
	}
	if c.deleteKnowledge, err = dispatch.Register(d, OpDeleteKnowledge, func(ctx context.Context, a idArgs) (bool, error) {
		return store.DeleteKnowledge(ctx, a.Scope, a.ID)
	}); err != nil {
		return nil, err
	}
	if c.listKnowledge, err = dispatch.Register(d, OpListKnowledge, store.ListKnowledge); err != nil {
		return nil, err
	}
	return c, nil
}

// ScopeOf returns the scope of the calling agent.
func ScopeOf(ac *agentctx.Context) Scope {
	return Scope{TenantID: ac.Agent().TenantID, AgentName: ac.Agent().Name}
}

// Save stores doc and returns it with its ID and timestamps set.
func (c *Client) Save(ac *agentctx.Context, doc Document, opts SaveOptions) (Document, error) {
	if doc.Type == "" {
		return Document{}, agenterr.Validation(OpSave, "document type must not be empty")
	}
	if opts.UseKeyAsIdentifier && doc.Key == "" {
		return Document{}, agenterr.Validation(OpSave, "document key must be set when used as identifier")
	}
	return c.save.Invoke(ac, saveArgs{Scope: ScopeOf(ac), Document: doc, Options: opts})
}

// Get returns the document with the given ID.
func (c *Client) Get(ac *agentctx.Context, id string) (Document, error) {
	if id == "" {
		return Document{}, agenterr.Validation(OpGet, "document ID must not be empty")
	}
	return c.get.Invoke(ac, idArgs{Scope: ScopeOf(ac), ID: id})
}

// Query returns the documents matching q.
func (c *Client) Query(ac *agentctx.Context, q Query) ([]Document, error) {
	if q.Limit < 0 || q.Skip < 0 {
		return nil, agenterr.Validation(OpQuery, "limit and skip must not be negative")
	}
	return c.query.Invoke(ac, queryArgs{Scope: ScopeOf(ac), Query: q})
}

// Delete removes a document and reports whether it existed.
func (c *Client) Delete(ac *agentctx.Context, id string) (bool, error) {
	if id == "" {
		return false, agenterr.Validation(OpDelete, "document ID must not be empty")
	}
	return c.delete.Invoke(ac, idArgs{Scope: ScopeOf(ac), ID: id})
}

// GetKnowledge returns the named knowledge.
func (c *Client) GetKnowledge(ac *agentctx.Context, name string) (Knowledge, error) {
	if name == "" {
		return Knowledge{}, agenterr.Validation(OpGetKnowledge, "knowledge name must not be empty")
	}
	return c.getKnowledge.Invoke(ac, idArgs{Scope: ScopeOf(ac), ID: name})
}

// UpdateKnowledge creates or replaces knowledge and returns the stored
// version.
func (c *Client) UpdateKnowledge(ac *agentctx.Context, k Knowledge) (Knowledge, error) {
	if k.Name == "" {
		return Knowledge{}, agenterr.Validation(OpUpdateKnowledge, "knowledge name must not be empty")
	}
	return c.updateKnowledge.Invoke(ac, knowledgeArgs{Scope: ScopeOf(ac), Knowledge: k})
}

// DeleteKnowledge removes knowledge and reports whether it existed.
func (c *Client) DeleteKnowledge(ac *agentctx.Context, name string) (bool, error) {
	if name == "" {
		return false, agenterr.Validation(OpDeleteKnowledge, "knowledge name must not be empty")
	}
	return c.deleteKnowledge.Invoke(ac, idArgs{Scope: ScopeOf(ac), ID: name})
}

// ListKnowledge returns all knowledge of the calling agent.
func (c *Client) ListKnowledge(ac *agentctx.Context) ([]Knowledge, error) {
	return c.listKnowledge.Invoke(ac, ScopeOf(ac))
}
