// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Metadata is a string map stored as a JSON column.
type Metadata map[string]string

// Scan implements the sql.Scanner interface
func (m *Metadata) Scan(value any) error {
	if value == nil {
		*m = Metadata{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return errors.New("cannot scan Metadata from non-string/[]byte value")
	}
}

// Value implements the driver.Valuer interface
func (m Metadata) Value() (driver.Value, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// DocumentRecord is the GORM model for documents
type DocumentRecord struct {
	ID            string   `gorm:"primaryKey;type:text"`
	TenantID      string   `gorm:"index:idx_documents_scope;type:text"`
	AgentName     string   `gorm:"index:idx_documents_scope;type:text"`
	Type          string   `gorm:"index;not null;type:text"`
	Key           string   `gorm:"column:doc_key;index;type:text"`
	ParticipantID string   `gorm:"index;type:text"`
	Content       string   `gorm:"type:text"`
	Metadata      Metadata `gorm:"type:text"`
	ExpiresAt     *time.Time
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

// TableName overrides the default table name
func (DocumentRecord) TableName() string { return "documents" }

// KnowledgeRecord is the GORM model for knowledge
type KnowledgeRecord struct {
	TenantID  string    `gorm:"primaryKey;type:text"`
	AgentName string    `gorm:"primaryKey;type:text"`
	Name      string    `gorm:"primaryKey;type:text"`
	Type      string    `gorm:"type:text"`
	Content   string    `gorm:"type:text"`
	Version   int       `gorm:"not null;default:1"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName overrides the default table name
func (KnowledgeRecord) TableName() string { return "knowledge" }
