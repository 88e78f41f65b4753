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

package recovery

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ReclaimProject/reclaim-core/pkg/helpers/syncutil"
)

// How a finished run exited.
const (
	ExitCompleted = "completed"
	ExitStopped   = "stopped"
	ExitKilled    = "killed"
	ExitFailed    = "failed"
)

// Run tracks one engine process from start to exit.
type Run struct {
	proc       EngineProc
	startedAt  time.Time
	finishedAt time.Time
	id         string
	contextID  string
	device     string
	dir        string
	exitReason string
	mu         syncutil.RWMutex
	stopped    bool
	killed     bool
}

// NewRun wraps an already-started engine process. Call Watch to arm exit
// tracking.
func NewRun(contextID, device, dir string, proc EngineProc) *Run {
	return &Run{
		id:        newRunID(),
		contextID: contextID,
		device:    device,
		dir:       dir,
		proc:      proc,
		startedAt: time.Now(),
	}
}

func newRunID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the OS entropy source is broken
		panic(fmt.Sprintf("generating run id: %v", err))
	}
	return "rec_" + hex.EncodeToString(buf)
}

// Watch waits for the engine process to exit in a background goroutine and
// records how it went, then calls onExit if non-nil.
func (r *Run) Watch(onExit func(*Run)) {
	go func() {
		<-r.proc.Done()
		procErr := r.proc.Err()

		r.mu.Lock()
		r.finishedAt = time.Now()
		switch {
		case r.killed:
			r.exitReason = ExitKilled
		case r.stopped:
			r.exitReason = ExitStopped
		case procErr == nil:
			r.exitReason = ExitCompleted
		default:
			r.exitReason = ExitFailed
		}
		r.mu.Unlock()

		if onExit != nil {
			onExit(r)
		}
	}()
}

// Stop signals the engine to finish. Stopping a run that already exited is
// a no-op.
func (r *Run) Stop(force bool) error {
	r.mu.Lock()
	if !r.finishedAt.IsZero() {
		r.mu.Unlock()
		return nil
	}
	if force {
		r.killed = true
	} else {
		r.stopped = true
	}
	r.mu.Unlock()

	if err := r.proc.Stop(force); err != nil {
		return fmt.Errorf("stopping run %s: %w", r.id, err)
	}
	return nil
}

func (r *Run) ID() string {
	return r.id
}

func (r *Run) ContextID() string {
	return r.contextID
}

func (r *Run) Device() string {
	return r.device
}

// Dir is the recovery directory the engine writes into.
func (r *Run) Dir() string {
	return r.dir
}

func (r *Run) Running() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.finishedAt.IsZero()
}

// Err reports the engine process error. Only meaningful once the run has
// finished.
func (r *Run) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.finishedAt.IsZero() {
		return nil
	}
	return r.proc.Err()
}

// RunStatus is a point-in-time snapshot of a run.
type RunStatus struct {
	StartedAt  time.Time
	FinishedAt time.Time
	ID         string
	ContextID  string
	Device     string
	ExitReason string
	Elapsed    time.Duration
	Running    bool
}

// Status snapshots the run's current state.
func (r *Run) Status() RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := RunStatus{
		ID:         r.id,
		ContextID:  r.contextID,
		Device:     r.device,
		StartedAt:  r.startedAt,
		FinishedAt: r.finishedAt,
		ExitReason: r.exitReason,
		Running:    r.finishedAt.IsZero(),
	}
	if status.Running {
		status.Elapsed = time.Since(r.startedAt)
	} else {
		status.Elapsed = r.finishedAt.Sub(r.startedAt)
	}
	return status
}
