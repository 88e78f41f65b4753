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

package database

import (
	"database/sql"
	"time"
)

/*
 * Non-concrete interfaces live at this generic package level to avoid
 * circular import deps. The implementation is in sessiondb.
 */

// Database is a portable interface for ENV bindings
type Database struct {
	SessionDB SessionDBI
}

// Event types mirror the notification methods that produce them, plus
// service.started which is written directly at boot.
const (
	EventServiceStarted  = "service.started"
	EventServiceStopping = "service.stopping"
	EventContextCreated  = "contexts.added"
	EventContextRemoved  = "contexts.removed"
	EventRunStarted      = "recovery.started"
	EventRunFinished     = "recovery.stopped"
)

/*
 * Structs for SQL records
 */

// Event is one row of the session audit log.
type Event struct {
	Time      time.Time `json:"time"      csv:"time"`
	Type      string    `json:"type"      csv:"type"`
	ContextID string    `json:"contextId" csv:"context_id"`
	Device    string    `json:"device"    csv:"device"`
	Data      string    `json:"data"      csv:"data"`
	DBID      int64     `db:"DBID" json:"id" csv:"id"`
}

// RecoveryRun is one engine run recorded against a context. FinishedAt
// and ExitReason stay empty while the run is live.
type RecoveryRun struct {
	StartedAt      time.Time  `json:"startedAt"`
	FinishedAt     *time.Time `json:"finishedAt,omitempty"`
	RunID          string     `json:"runId"`
	ContextID      string     `json:"contextId"`
	Device         string     `json:"device"`
	ExitReason     string     `json:"exitReason,omitempty"`
	DBID           int64      `db:"DBID" json:"id"`
	FilesRecovered int        `json:"filesRecovered"`
	DirsCreated    int        `json:"dirsCreated"`
}

// DayCount is a per-day event tally for statistics responses.
type DayCount struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

// Statistics aggregates session totals for service.statistics.
type Statistics struct {
	EventsPerDay    []DayCount `json:"eventsPerDay"`
	ContextsCreated int64      `json:"contextsCreated"`
	RunsStarted     int64      `json:"runsStarted"`
	RunsCompleted   int64      `json:"runsCompleted"`
	FilesRecovered  int64      `json:"filesRecovered"`
}

/*
 * Interfaces for external deps
 */

type GenericDBI interface {
	Open() error
	UnsafeGetSQLDb() *sql.DB
	Truncate() error
	Allocate() error
	MigrateUp() error
	Vacuum() error
	Close() error
	GetDBPath() string
}

type SessionDBI interface {
	GenericDBI

	AddEvent(entry *Event) error
	GetEvents(lastID, limit int) ([]Event, error)
	CleanupEvents(retentionDays int) (int64, error)

	AddRun(run *RecoveryRun) (int64, error)
	FinishRun(dbid int64, finishedAt time.Time, exitReason string, filesRecovered, dirsCreated int) error
	LastRunForDevice(device string) (*RecoveryRun, error)
	CloseHangingRuns() (int64, error)

	Statistics() (*Statistics, error)
}
