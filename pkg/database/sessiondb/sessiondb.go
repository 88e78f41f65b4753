// Reclaim Core
// Copyright (c) 2025 The Reclaim Project Contributors.
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
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Reclaim Core.  If not, see <http://www.gnu.org/licenses/>.

package sessiondb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ReclaimProject/reclaim-core/pkg/config"
	"github.com/ReclaimProject/reclaim-core/pkg/database"
	"github.com/ReclaimProject/reclaim-core/pkg/helpers"
	"github.com/ReclaimProject/reclaim-core/pkg/platforms"
	_ "github.com/mattn/go-sqlite3"
)

var ErrNullSQL = errors.New("SessionDB is not connected")

const sqliteConnParams = "?_journal_mode=WAL&_synchronous=FULL&_busy_timeout=5000"

// SessionDB stores the audit event log and recovery run history.
type SessionDB struct {
	sql *sql.DB
	pl  platforms.Platform
	ctx context.Context
}

func OpenSessionDB(ctx context.Context, pl platforms.Platform) (*SessionDB, error) {
	db := &SessionDB{sql: nil, pl: pl, ctx: ctx}
	err := db.Open()
	return db, err
}

func (db *SessionDB) Open() error {
	exists := true
	dbPath := db.GetDBPath()
	_, err := os.Stat(dbPath)
	if err != nil {
		exists = false
		mkdirErr := os.MkdirAll(filepath.Dir(dbPath), 0o750)
		if mkdirErr != nil {
			return fmt.Errorf("failed to create directory for database: %w", mkdirErr)
		}
	}
	sqlInstance, err := sql.Open("sqlite3", dbPath+sqliteConnParams)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	db.sql = sqlInstance
	if !exists {
		return db.Allocate()
	}
	return nil
}

func (db *SessionDB) GetDBPath() string {
	return filepath.Join(helpers.DataDir(db.pl), config.SessionDbFile)
}

func (db *SessionDB) UnsafeGetSQLDb() *sql.DB {
	return db.sql
}

func (db *SessionDB) Truncate() error {
	if db.sql == nil {
		return ErrNullSQL
	}
	return sqlTruncate(db.ctx, db.sql)
}

func (db *SessionDB) Allocate() error {
	if db.sql == nil {
		return ErrNullSQL
	}
	return sqlAllocate(db.sql)
}

func (db *SessionDB) MigrateUp() error {
	if db.sql == nil {
		return ErrNullSQL
	}
	return sqlMigrateUp(db.sql)
}

func (db *SessionDB) Vacuum() error {
	if db.sql == nil {
		return ErrNullSQL
	}
	return sqlVacuum(db.ctx, db.sql)
}

func (db *SessionDB) Close() error {
	if db.sql == nil {
		return nil
	}
	err := db.sql.Close()
	if err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// SetSQLForTesting allows injection of a sql.DB instance for testing purposes.
// This method should only be used in tests to set up in-memory databases.
func (db *SessionDB) SetSQLForTesting(ctx context.Context, sqlDB *sql.DB, platform platforms.Platform) error {
	db.sql = sqlDB
	db.pl = platform
	db.ctx = ctx

	// Initialize the database schema
	return db.Allocate()
}

func (db *SessionDB) AddEvent(entry *database.Event) error {
	if db.sql == nil {
		return ErrNullSQL
	}
	return sqlAddEvent(db.ctx, db.sql, entry)
}

func (db *SessionDB) GetEvents(lastID, limit int) ([]database.Event, error) {
	if db.sql == nil {
		return nil, ErrNullSQL
	}
	return sqlGetEvents(db.ctx, db.sql, lastID, limit)
}

// CleanupEvents removes audit events older than the retention period.
func (db *SessionDB) CleanupEvents(retentionDays int) (int64, error) {
	if db.sql == nil {
		return 0, ErrNullSQL
	}
	return sqlCleanupEvents(db.ctx, db.sql, retentionDays)
}

func (db *SessionDB) AddRun(run *database.RecoveryRun) (int64, error) {
	if db.sql == nil {
		return 0, ErrNullSQL
	}
	return sqlAddRun(db.ctx, db.sql, run)
}

// FinishRun finalizes a run row with its end time, exit reason and the
// recovered-file census.
func (db *SessionDB) FinishRun(
	dbid int64, finishedAt time.Time, exitReason string, filesRecovered, dirsCreated int,
) error {
	if db.sql == nil {
		return ErrNullSQL
	}
	return sqlFinishRun(db.ctx, db.sql, dbid, finishedAt, exitReason, filesRecovered, dirsCreated)
}

// LastRunForDevice returns the most recent run recorded against a device,
// or nil when the device has never been recovered from.
func (db *SessionDB) LastRunForDevice(device string) (*database.RecoveryRun, error) {
	if db.sql == nil {
		return nil, ErrNullSQL
	}
	return sqlLastRunForDevice(db.ctx, db.sql, device)
}

// CloseHangingRuns finalizes run rows left open by an unclean shutdown.
func (db *SessionDB) CloseHangingRuns() (int64, error) {
	if db.sql == nil {
		return 0, ErrNullSQL
	}
	return sqlCloseHangingRuns(db.ctx, db.sql)
}

func (db *SessionDB) Statistics() (*database.Statistics, error) {
	if db.sql == nil {
		return nil, ErrNullSQL
	}
	return sqlStatistics(db.ctx, db.sql)
}
