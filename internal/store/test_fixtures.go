// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/internal/config"
)

// StoreFixture is a migrated store with cleanup
type StoreFixture struct {
	Store   *GormStore
	Cleanup func()
}

// UseFreshInMemoryStore creates a private in-memory SQLite database with
// migrations applied
func UseFreshInMemoryStore(t testing.TB) *StoreFixture {
	t.Helper()
	cfg := &config.DatabaseConfig{
		Driver:   "sqlite",
		Database: "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	}

	s, err := NewGormStore(cfg)
	require.NoError(t, err, "Failed to create in-memory database")

	require.NoError(t, s.AutoMigrate(), "Failed to run migrations on in-memory database")

	return &StoreFixture{
		Store:   s,
		Cleanup: func() { _ = s.Close() },
	}
}
