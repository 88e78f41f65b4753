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

package state

import (
	"io"
	"time"

	"github.com/ReclaimProject/reclaim-core/pkg/api/models"
	"github.com/ReclaimProject/reclaim-core/pkg/helpers/syncutil"
	"github.com/ReclaimProject/reclaim-core/pkg/partitions"
	"github.com/ReclaimProject/reclaim-core/pkg/recovery"
	"github.com/rs/zerolog/log"
)

// Context states reported over the API.
const (
	StateIdle       = "idle"
	StateRecovering = "recovering"
)

// DeviceBinding is the exclusive claim a context holds on its device for
// its whole lifetime. Satisfied by *disks.Binding.
type DeviceBinding interface {
	Device() string
	ReaderAt() io.ReaderAt
	Size() (size uint64, sectorSize uint32, err error)
	Close() error
}

// LogSink receives the engine's output for the context. Satisfied by
// *os.File.
type LogSink interface {
	io.WriteCloser
	Name() string
}

// RecoveryContext is one client's exclusive recovery session on a device:
// the binding, the engine options tuned for it, and at most one engine run
// at a time.
//
// id, device, recoveryDir and logMode are fixed at creation and safe to
// read without the lock; everything else is guarded by mu.
type RecoveryContext struct {
	createdAt   time.Time
	binding     DeviceBinding
	logFile     LogSink
	run         *recovery.Run
	arch        partitions.Arch
	id          string
	device      string
	recoveryDir string
	logMode     string
	options     recovery.Options
	mu          syncutil.RWMutex
}

func newRecoveryContext(args CreateContextArgs) *RecoveryContext {
	return &RecoveryContext{
		id:          newContextID(),
		device:      args.Device,
		recoveryDir: args.RecoveryDir,
		logMode:     args.LogMode,
		binding:     args.Binding,
		logFile:     args.LogFile,
		options:     recovery.DefaultOptions(),
		arch:        partitions.ArchAuto,
		createdAt:   time.Now(),
	}
}

func (rc *RecoveryContext) ID() string {
	return rc.id
}

func (rc *RecoveryContext) Device() string {
	return rc.device
}

func (rc *RecoveryContext) RecoveryDir() string {
	return rc.recoveryDir
}

func (rc *RecoveryContext) LogMode() string {
	return rc.logMode
}

func (rc *RecoveryContext) CreatedAt() time.Time {
	return rc.createdAt
}

// Binding returns the context's device claim, nil for contexts created
// without one.
func (rc *RecoveryContext) Binding() DeviceBinding {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.binding
}

// LogFile returns the open session log, nil when logging is off.
func (rc *RecoveryContext) LogFile() LogSink {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.logFile
}

// LogPath returns the session log path, empty when logging is off.
func (rc *RecoveryContext) LogPath() string {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	if rc.logFile == nil {
		return ""
	}
	return rc.logFile.Name()
}

// Arch returns the partition table layout selected for the context's
// device.
func (rc *RecoveryContext) Arch() partitions.Arch {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.arch
}

func (rc *RecoveryContext) SetArch(arch partitions.Arch) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.arch = arch
}

func (rc *RecoveryContext) Options() recovery.Options {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.options
}

func (rc *RecoveryContext) SetOptions(opts recovery.Options) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.options = opts
}

// Run returns the context's current (or most recent) engine run, nil when
// none was ever started.
func (rc *RecoveryContext) Run() *recovery.Run {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.run
}

// SetRun installs a new engine run. A run that is still in progress blocks
// the slot; a finished one is replaced.
func (rc *RecoveryContext) SetRun(run *recovery.Run) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.run != nil && rc.run.Running() {
		return recovery.ErrRunActive
	}
	rc.run = run
	return nil
}

// State reports idle or recovering.
func (rc *RecoveryContext) State() string {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	if rc.run != nil && rc.run.Running() {
		return StateRecovering
	}
	return StateIdle
}

// Response renders the context for API responses and notifications.
func (rc *RecoveryContext) Response() models.ContextResponse {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	resp := models.ContextResponse{
		ContextID:   rc.id,
		Device:      rc.device,
		RecoveryDir: rc.recoveryDir,
		LogMode:     rc.logMode,
		State:       StateIdle,
		CreatedAt:   rc.createdAt,
	}
	if rc.logFile != nil {
		resp.LogFile = rc.logFile.Name()
	}
	if rc.run != nil && rc.run.Running() {
		resp.State = StateRecovering
	}
	if rc.arch != partitions.ArchAuto {
		resp.Arch = string(rc.arch)
	}
	return resp
}

// close releases the context's resources. A running engine is stopped
// first, with force escalating to a kill. Called with no locks held.
func (rc *RecoveryContext) close(force bool) {
	rc.mu.Lock()
	run := rc.run
	binding := rc.binding
	logFile := rc.logFile
	rc.binding = nil
	rc.logFile = nil
	rc.mu.Unlock()

	if run != nil && run.Running() {
		if err := run.Stop(force); err != nil {
			log.Warn().Err(err).Str("context", rc.id).Msg("error stopping recovery run during cleanup")
		}
	}
	if binding != nil {
		if err := binding.Close(); err != nil {
			log.Warn().Err(err).Str("context", rc.id).Msg("error releasing device binding")
		}
	}
	if logFile != nil {
		if err := logFile.Close(); err != nil {
			log.Warn().Err(err).Str("context", rc.id).Msg("error closing session log")
		}
	}
}
