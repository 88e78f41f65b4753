// Reclaim Core
// Copyright (c) 2026 The Reclaim Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Reclaim Core.
//
// Reclaim Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Reclaim Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Reclaim Core. If not, see <http://www.gnu.org/licenses/>.

package helpers

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/ReclaimProject/reclaim-core/pkg/database"
	"github.com/ReclaimProject/reclaim-core/pkg/database/sessiondb"
	"github.com/ReclaimProject/reclaim-core/pkg/testing/mocks"
	_ "github.com/mattn/go-sqlite3"
)

// NewInMemorySessionDB creates a SessionDB backed by a temp-file SQLite
// database with the full schema applied. The file (rather than :memory:)
// keeps the data alive across connection close/reopen.
func NewInMemorySessionDB(t *testing.T) (db *sessiondb.SessionDB, cleanup func()) {
	t.Helper()

	ctx := context.Background()
	mockPlatform := mocks.NewMockPlatform()
	mockPlatform.On("ID").Return("test-platform")

	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "sessiondb_test.db")

	sqlDB, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	db = &sessiondb.SessionDB{}
	err = db.SetSQLForTesting(ctx, sqlDB, mockPlatform)
	if err != nil {
		if closeErr := sqlDB.Close(); closeErr != nil {
			t.Errorf("Failed to close SQL database after setup error: %v", closeErr)
		}
		t.Fatalf("Failed to set up SessionDB for testing: %v", err)
	}

	cleanup = func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close SessionDB: %v", err)
		}
	}

	return db, cleanup
}

// NewTestDatabase creates a Database wrapper around an in-memory session DB.
// The returned cleanup function should be deferred.
func NewTestDatabase(t *testing.T) (db *database.Database, cleanup func()) {
	t.Helper()

	sessionDB, sessionCleanup := NewInMemorySessionDB(t)

	db = &database.Database{
		SessionDB: sessionDB,
	}

	return db, sessionCleanup
}
