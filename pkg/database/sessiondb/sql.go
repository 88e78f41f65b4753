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
	"embed"
	"fmt"
	"time"

	"github.com/ReclaimProject/reclaim-core/pkg/database"
	"github.com/rs/zerolog/log"
)

// Queries go here to keep the interface clean

//go:embed migrations/*.sql
var migrationFiles embed.FS

func sqlMigrateUp(db *sql.DB) error {
	if err := database.MigrateUp(db, migrationFiles, "migrations"); err != nil {
		return fmt.Errorf("failed to run session database migrations: %w", err)
	}
	return nil
}

func sqlAllocate(db *sql.DB) error {
	return sqlMigrateUp(db)
}

//goland:noinspection SqlWithoutWhere
func sqlTruncate(ctx context.Context, db *sql.DB) error {
	sqlStmt := `
	delete from Events;
	delete from RecoveryRuns;
	vacuum;
	`
	_, err := db.ExecContext(ctx, sqlStmt)
	if err != nil {
		return fmt.Errorf("failed to truncate database: %w", err)
	}
	return nil
}

func sqlVacuum(ctx context.Context, db *sql.DB) error {
	sqlStmt := `
	vacuum;
	`
	_, err := db.ExecContext(ctx, sqlStmt)
	if err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	return nil
}

//nolint:gocritic // struct passed for DB insertion
func sqlAddEvent(ctx context.Context, db *sql.DB, entry *database.Event) error {
	stmt, err := db.PrepareContext(ctx, `
		insert into Events(
			Time, Type, ContextID, Device, Data
		) values (?, ?, ?, ?, ?);
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare event insert statement: %w", err)
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close sql statement")
		}
	}()
	_, err = stmt.ExecContext(ctx,
		entry.Time.Unix(),
		entry.Type,
		entry.ContextID,
		entry.Device,
		entry.Data,
	)
	if err != nil {
		return fmt.Errorf("failed to execute event insert: %w", err)
	}
	return nil
}

func sqlGetEvents(ctx context.Context, db *sql.DB, lastID, limit int) ([]database.Event, error) {
	if limit <= 0 {
		limit = 25
	}
	if limit > 100 {
		limit = 100
	}

	list := make([]database.Event, 0, limit)

	// Token-based pagination instead of offset
	if lastID == 0 {
		lastID = 2147483646
	}

	q, err := db.PrepareContext(ctx, `
		select
		DBID, Time, Type, ContextID, Device, Data
		from Events
		where DBID < ?
		order by DBID DESC
		limit ?;
	`)
	if err != nil {
		return list, fmt.Errorf("failed to prepare events query statement: %w", err)
	}
	defer func() {
		if closeErr := q.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close sql statement")
		}
	}()

	rows, err := q.QueryContext(ctx, lastID, limit)
	if err != nil {
		return list, fmt.Errorf("failed to query events: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close sql rows")
		}
	}()
	for rows.Next() {
		row := database.Event{}
		var timeInt int64
		scanErr := rows.Scan(
			&row.DBID,
			&timeInt,
			&row.Type,
			&row.ContextID,
			&row.Device,
			&row.Data,
		)
		if scanErr != nil {
			return list, fmt.Errorf("failed to scan event row: %w", scanErr)
		}
		row.Time = time.Unix(timeInt, 0)
		list = append(list, row)
	}
	if err = rows.Err(); err != nil {
		return list, fmt.Errorf("error iterating event rows: %w", err)
	}
	return list, nil
}

func sqlCleanupEvents(ctx context.Context, db *sql.DB, retentionDays int) (int64, error) {
	cutoffTime := time.Now().AddDate(0, 0, -retentionDays).Unix()

	stmt, err := db.PrepareContext(ctx, `DELETE FROM Events WHERE Time < ?;`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare event cleanup statement: %w", err)
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close sql statement")
		}
	}()

	result, err := stmt.ExecContext(ctx, cutoffTime)
	if err != nil {
		return 0, fmt.Errorf("failed to execute event cleanup: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	// Vacuum to reclaim disk space after cleanup
	if rowsAffected > 0 {
		if err := sqlVacuum(ctx, db); err != nil {
			return rowsAffected, fmt.Errorf("cleanup succeeded but vacuum failed: %w", err)
		}
	}

	return rowsAffected, nil
}
