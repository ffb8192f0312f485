// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store keeps documents and knowledge in a local SQL database. It
// backs the documents client when no platform backend is configured.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/internal/config"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/agenterr"
	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/pkg/documents"
)

// GormStore wraps the GORM database connection
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

var _ documents.Store = (*GormStore)(nil)

// NewGormStore opens the configured database.
func NewGormStore(cfg *config.DatabaseConfig) (*GormStore, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.GetDSN())
	case "postgres":
		dialector = postgres.Open(cfg.GetDSN())
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &GormStore{db: db, now: time.Now}, nil
}

// AutoMigrate runs database migrations
func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(&DocumentRecord{}, &KnowledgeRecord{})
}

// ValidateSchema checks that the tables and columns the store uses exist.
func (s *GormStore) ValidateSchema() error {
	var missing []string
	for _, m := range []struct {
		model   any
		table   string
		columns []string
	}{
		{&DocumentRecord{}, "documents", []string{"id", "tenant_id", "agent_name", "type", "doc_key", "participant_id", "content", "metadata", "expires_at"}},
		{&KnowledgeRecord{}, "knowledge", []string{"tenant_id", "agent_name", "name", "content", "version"}},
	} {
		if !s.db.Migrator().HasTable(m.model) {
			missing = append(missing, m.table)
			continue
		}
		for _, col := range m.columns {
			if !s.db.Migrator().HasColumn(m.model, col) {
				missing = append(missing, fmt.Sprintf("%s.%s", m.table, col))
			}
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("database schema is out of date, missing: %v", missing)
	}
	return nil
}

// Close closes the database connection
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) scoped(ctx context.Context, scope documents.Scope) *gorm.DB {
	return s.db.WithContext(ctx).Where("tenant_id = ? AND agent_name = ?", scope.TenantID, scope.AgentName)
}

// SaveDocument inserts a document, or replaces the existing one when
// overwrite is requested.
func (s *GormStore) SaveDocument(ctx context.Context, scope documents.Scope, doc documents.Document, opts documents.SaveOptions) (documents.Document, error) {
	var existing DocumentRecord
	var err error
	switch {
	case opts.UseKeyAsIdentifier:
		err = s.scoped(ctx, scope).Where("type = ? AND doc_key = ?", doc.Type, doc.Key).First(&existing).Error
	case doc.ID != "":
		err = s.scoped(ctx, scope).First(&existing, "id = ?", doc.ID).Error
	default:
		err = gorm.ErrRecordNotFound
	}
	found := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return documents.Document{}, fmt.Errorf("failed to look up document: %w", err)
	}
	if found && !opts.Overwrite {
		return documents.Document{}, agenterr.Validation("documents.Save", "document %s already exists", existing.ID)
	}

	rec := toRecord(scope, doc)
	if found {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
	} else if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if opts.TTL > 0 {
		rec.ExpiresAt = lo.ToPtr(s.now().Add(opts.TTL))
	}

	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error; err != nil {
		return documents.Document{}, fmt.Errorf("failed to save document: %w", err)
	}
	return fromRecord(rec), nil
}

// GetDocument returns a live document by ID.
func (s *GormStore) GetDocument(ctx context.Context, scope documents.Scope, id string) (documents.Document, error) {
	var rec DocumentRecord
	err := s.live(s.scoped(ctx, scope)).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return documents.Document{}, agenterr.NotFound("documents.Get", "document %s not found", id)
	}
	if err != nil {
		return documents.Document{}, fmt.Errorf("failed to get document: %w", err)
	}
	return fromRecord(rec), nil
}

// QueryDocuments returns live documents matching q.
func (s *GormStore) QueryDocuments(ctx context.Context, scope documents.Scope, q documents.Query) ([]documents.Document, error) {
	tx := s.live(s.scoped(ctx, scope))
	if q.Type != "" {
		tx = tx.Where("type = ?", q.Type)
	}
	if q.Key != "" {
		tx = tx.Where("doc_key = ?", q.Key)
	}
	if q.ParticipantID != "" {
		tx = tx.Where("participant_id = ?", q.ParticipantID)
	}
	if q.Newest {
		tx = tx.Order("created_at DESC")
	} else {
		tx = tx.Order("created_at ASC")
	}
	// Metadata is matched after loading, so paging moves with it.
	if len(q.Metadata) == 0 {
		if q.Skip > 0 {
			tx = tx.Offset(q.Skip)
		}
		if q.Limit > 0 {
			tx = tx.Limit(q.Limit)
		}
	}

	var recs []DocumentRecord
	if err := tx.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}

	if len(q.Metadata) > 0 {
		recs = lo.Filter(recs, func(r DocumentRecord, _ int) bool {
			return lo.EveryBy(lo.Entries(q.Metadata), func(e lo.Entry[string, string]) bool {
				v, ok := r.Metadata[e.Key]
				return ok && v == e.Value
			})
		})
		recs = lo.Drop(recs, q.Skip)
		if q.Limit > 0 && len(recs) > q.Limit {
			recs = recs[:q.Limit]
		}
	}
	return lo.Map(recs, func(r DocumentRecord, _ int) documents.Document { return fromRecord(r) }), nil
}

// DeleteDocument removes a document.
func (s *GormStore) DeleteDocument(ctx context.Context, scope documents.Scope, id string) (bool, error) {
	res := s.scoped(ctx, scope).Delete(&DocumentRecord{}, "id = ?", id)
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete document: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// PurgeExpired deletes expired documents across all scopes.
func (s *GormStore) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at IS NOT NULL AND expires_at <= ?", s.now()).Delete(&DocumentRecord{})
	return res.RowsAffected, res.Error
}

func (s *GormStore) live(tx *gorm.DB) *gorm.DB {
	return tx.Where("expires_at IS NULL OR expires_at > ?", s.now())
}

// GetKnowledge returns the named knowledge.
func (s *GormStore) GetKnowledge(ctx context.Context, scope documents.Scope, name string) (documents.Knowledge, error) {
	var rec KnowledgeRecord
	err := s.scoped(ctx, scope).First(&rec, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return documents.Knowledge{}, agenterr.NotFound("knowledge.Get", "knowledge %q not found", name)
	}
	if err != nil {
		return documents.Knowledge{}, fmt.Errorf("failed to get knowledge: %w", err)
	}
	return fromKnowledgeRecord(rec), nil
}

// UpdateKnowledge creates the knowledge or replaces it, bumping its version.
func (s *GormStore) UpdateKnowledge(ctx context.Context, scope documents.Scope, k documents.Knowledge) (documents.Knowledge, error) {
	var out KnowledgeRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec KnowledgeRecord
		err := tx.Where("tenant_id = ? AND agent_name = ? AND name = ?", scope.TenantID, scope.AgentName, k.Name).First(&rec).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			rec = KnowledgeRecord{TenantID: scope.TenantID, AgentName: scope.AgentName, Name: k.Name, Version: 1}
		case err != nil:
			return err
		default:
			rec.Version++
		}
		rec.Type = k.Type
		rec.Content = k.Content
		if err := tx.Save(&rec).Error; err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return documents.Knowledge{}, fmt.Errorf("failed to update knowledge: %w", err)
	}
	return fromKnowledgeRecord(out), nil
}

// DeleteKnowledge removes the named knowledge.
func (s *GormStore) DeleteKnowledge(ctx context.Context, scope documents.Scope, name string) (bool, error) {
	res := s.scoped(ctx, scope).Delete(&KnowledgeRecord{}, "name = ?", name)
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete knowledge: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListKnowledge returns all knowledge of the scope ordered by name.
func (s *GormStore) ListKnowledge(ctx context.Context, scope documents.Scope) ([]documents.Knowledge, error) {
	var recs []KnowledgeRecord
	if err := s.scoped(ctx, scope).Order("name ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list knowledge: %w", err)
	}
	return lo.Map(recs, func(r KnowledgeRecord, _ int) documents.Knowledge { return fromKnowledgeRecord(r) }), nil
}

func toRecord(scope documents.Scope, d documents.Document) DocumentRecord {
	return DocumentRecord{
		ID:            d.ID,
		TenantID:      scope.TenantID,
		AgentName:     scope.AgentName,
		Type:          d.Type,
		Key:           d.Key,
		ParticipantID: d.ParticipantID,
		Content:       string(d.Content),
		Metadata:      Metadata(d.Metadata),
		ExpiresAt:     d.ExpiresAt,
	}
}

func fromRecord(r DocumentRecord) documents.Document {
	d := documents.Document{
		ID:            r.ID,
		Type:          r.Type,
		Key:           r.Key,
		ParticipantID: r.ParticipantID,
		Metadata:      map[string]string(r.Metadata),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		ExpiresAt:     r.ExpiresAt,
	}
	if r.Content != "" {
		d.Content = []byte(r.Content)
	}
	if len(d.Metadata) == 0 {
		d.Metadata = nil
	}
	return d
}

func fromKnowledgeRecord(r KnowledgeRecord) documents.Knowledge {
	return documents.Knowledge{
		Name:      r.Name,
		Content:   r.Content,
		Type:      r.Type,
		Version:   r.Version,
		UpdatedAt: r.UpdatedAt,
	}
}
