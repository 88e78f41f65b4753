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

package sessiondb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ReclaimProject/reclaim-core/pkg/database"
	"github.com/rs/zerolog/log"
)

// Exit reason written for runs left open by an unclean shutdown. The live
// exit reasons (completed, stopped, killed, failed) come from the engine.
const exitReasonInterrupted = "interrupted"

/*
 * Internal SQL functions for the RecoveryRuns table
 */

func sqlAddRun(ctx context.Context, db *sql.DB, run *database.RecoveryRun) (int64, error) {
	stmt, err := db.PrepareContext(ctx, `
		INSERT INTO RecoveryRuns(
			RunID, ContextID, Device, StartedAt, FilesRecovered, DirsCreated
		) VALUES (?, ?, ?, ?, ?, ?);
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare run insert statement: %w", err)
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close sql statement")
		}
	}()

	result, err := stmt.ExecContext(ctx,
		run.RunID,
		run.ContextID,
		run.Device,
		run.StartedAt.Unix(),
		run.FilesRecovered,
		run.DirsCreated,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to execute run insert: %w", err)
	}

	dbid, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	return dbid, nil
}

func sqlFinishRun(
	ctx context.Context, db *sql.DB,
	dbid int64, finishedAt time.Time, exitReason string, filesRecovered, dirsCreated int,
) error {
	stmt, err := db.PrepareContext(ctx, `
		UPDATE RecoveryRuns
		SET FinishedAt = ?, ExitReason = ?, FilesRecovered = ?, DirsCreated = ?
		WHERE DBID = ?;
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare run finish statement: %w", err)
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close sql statement")
		}
	}()

	_, err = stmt.ExecContext(ctx, finishedAt.Unix(), exitReason, filesRecovered, dirsCreated, dbid)
	if err != nil {
		return fmt.Errorf("failed to execute run finish: %w", err)
	}

	return nil
}

func sqlLastRunForDevice(ctx context.Context, db *sql.DB, device string) (*database.RecoveryRun, error) {
	q, err := db.PrepareContext(ctx, `
		SELECT
		DBID, RunID, ContextID, Device, StartedAt, FinishedAt, ExitReason,
		FilesRecovered, DirsCreated
		FROM RecoveryRuns
		WHERE Device = ?
		ORDER BY DBID DESC
		LIMIT 1;
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare last run query statement: %w", err)
	}
	defer func() {
		if closeErr := q.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close sql statement")
		}
	}()

	var run database.RecoveryRun
	var startedAtUnix int64
	var finishedAtUnix sql.NullInt64
	var exitReason sql.NullString

	err = q.QueryRowContext(ctx, device).Scan(
		&run.DBID,
		&run.RunID,
		&run.ContextID,
		&run.Device,
		&startedAtUnix,
		&finishedAtUnix,
		&exitReason,
		&run.FilesRecovered,
		&run.DirsCreated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // no row is not an error here
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan last run row: %w", err)
	}

	run.StartedAt = time.Unix(startedAtUnix, 0)
	if finishedAtUnix.Valid {
		finishedAt := time.Unix(finishedAtUnix.Int64, 0)
		run.FinishedAt = &finishedAt
	}
	if exitReason.Valid {
		run.ExitReason = exitReason.String
	}

	return &run, nil
}

func sqlCloseHangingRuns(ctx context.Context, db *sql.DB) (int64, error) {
	// A run with no FinishedAt means the service died while the engine was
	// working. The best available end time is the start time.
	stmt, err := db.PrepareContext(ctx, `
		UPDATE RecoveryRuns
		SET FinishedAt = StartedAt,
		    ExitReason = ?
		WHERE FinishedAt IS NULL;
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare close hanging runs statement: %w", err)
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close sql statement")
		}
	}()

	result, err := stmt.ExecContext(ctx, exitReasonInterrupted)
	if err != nil {
		return 0, fmt.Errorf("failed to close hanging runs: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		log.Info().Msgf("closed %d hanging recovery runs", rows)
	}

	return rows, nil
}

func sqlStatistics(ctx context.Context, db *sql.DB) (*database.Statistics, error) {
	stats := &database.Statistics{EventsPerDay: make([]database.DayCount, 0)}

	err := db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM Events WHERE Type = ?),
			(SELECT COUNT(*) FROM RecoveryRuns),
			(SELECT COUNT(*) FROM RecoveryRuns WHERE ExitReason = 'completed'),
			(SELECT COALESCE(SUM(FilesRecovered), 0) FROM RecoveryRuns);
	`, database.EventContextCreated).Scan(
		&stats.ContextsCreated,
		&stats.RunsStarted,
		&stats.RunsCompleted,
		&stats.FilesRecovered,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan statistics totals: %w", err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT date(Time, 'unixepoch') AS Day, COUNT(*)
		FROM Events
		GROUP BY Day
		ORDER BY Day DESC
		LIMIT 30;
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query per-day event counts: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close sql rows")
		}
	}()

	for rows.Next() {
		var day database.DayCount
		if scanErr := rows.Scan(&day.Day, &day.Count); scanErr != nil {
			return nil, fmt.Errorf("failed to scan per-day event row: %w", scanErr)
		}
		stats.EventsPerDay = append(stats.EventsPerDay, day)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating per-day event rows: %w", err)
	}

	return stats, nil
}
