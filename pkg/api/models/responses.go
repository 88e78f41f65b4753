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
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Reclaim Core. If not, see <http://www.gnu.org/licenses/>.

package models

import "time"

type ContextResponse struct {
	CreatedAt   time.Time `json:"createdAt"`
	ContextID   string    `json:"contextId"`
	Device      string    `json:"device"`
	RecoveryDir string    `json:"recoveryDir"`
	LogMode     string    `json:"logMode"`
	LogFile     string    `json:"logFile,omitempty"`
	State       string    `json:"state"`
	Arch        string    `json:"arch,omitempty"`
}

type ContextsResponse struct {
	Contexts []ContextResponse `json:"contexts"`
}

type DiskResponse struct {
	Device     string `json:"device"`
	Model      string `json:"model,omitempty"`
	Serial     string `json:"serial,omitempty"`
	Vendor     string `json:"vendor,omitempty"`
	Size       uint64 `json:"size"`
	SectorSize uint32 `json:"sectorSize"`
	Removable  bool   `json:"removable"`
	Image      bool   `json:"image,omitempty"`
}

type DisksResponse struct {
	Disks []DiskResponse `json:"disks"`
}

type PartitionResponse struct {
	Name       string `json:"name,omitempty"`
	Filesystem string `json:"filesystem,omitempty"`
	Role       string `json:"role,omitempty"`
	Status     string `json:"status"`
	Offset     uint64 `json:"offset"`
	Size       uint64 `json:"size"`
	Order      int    `json:"order"`
}

type PartitionsResponse struct {
	Arch       string              `json:"arch"`
	Partitions []PartitionResponse `json:"partitions"`
}

type ArchsResponse struct {
	Archs []string `json:"archs"`
}

type ShutdownResponse struct {
	Message string `json:"message"`
}

type HeartbeatResponse struct {
	ContextValid     *bool  `json:"contextValid,omitempty"`
	Version          string `json:"version"`
	UptimeSeconds    uint64 `json:"uptimeSeconds"`
	FreeSpace        uint64 `json:"freeSpace,omitempty"`
	ActiveContexts   int    `json:"activeContexts"`
	ActiveRecoveries int    `json:"activeRecoveries"`
}

type DayCount struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

type StatisticsResponse struct {
	EventsPerDay    []DayCount `json:"eventsPerDay"`
	ContextsCreated int64      `json:"contextsCreated"`
	RecoveriesRun   int64      `json:"recoveriesRun"`
	FilesRecovered  int64      `json:"filesRecovered"`
}

type RecoveryStatusResponse struct {
	StartedAt      time.Time  `json:"startedAt"`
	FinishedAt     *time.Time `json:"finishedAt,omitempty"`
	RunID          string     `json:"runId"`
	ContextID      string     `json:"contextId"`
	ExitReason     string     `json:"exitReason,omitempty"`
	FilesRecovered int        `json:"filesRecovered"`
	DirsCreated    int        `json:"dirsCreated"`
	ElapsedSeconds int64      `json:"elapsedSeconds"`
	Running        bool       `json:"running"`
}

type OptionsResponse struct {
	Options   map[string]any `json:"options"`
	ContextID string         `json:"contextId"`
}

type HistoryResponseEntry struct {
	Time      time.Time `json:"time"`
	Type      string    `json:"type"`
	ContextID string    `json:"contextId,omitempty"`
	Device    string    `json:"device,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	ID        int64     `json:"id"`
}

type HistoryResponse struct {
	Entries []HistoryResponseEntry `json:"entries"`
}

type SettingsResponse struct {
	RecoveryDir        string   `json:"recoveryDir"`
	EnginePath         string   `json:"enginePath"`
	DeviceAllow        []string `json:"deviceAllow"`
	DeviceDeny         []string `json:"deviceDeny"`
	MaxContexts        int      `json:"maxContexts"`
	DrainTimeoutSecs   int      `json:"drainTimeoutSecs"`
	AuditRetentionDays int      `json:"auditRetentionDays"`
	AllowImages        bool     `json:"allowImages"`
	DebugLogging       bool     `json:"debugLogging"`
}

type VersionResponse struct {
	Version  string `json:"version"`
	Platform string `json:"platform"`
}
