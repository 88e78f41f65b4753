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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// stubProc is a controllable EngineProc for run lifecycle tests.
type stubProc struct {
	err      error
	stopErr  error
	done     chan struct{}
	stopped  chan bool
	exitOnce bool
}

func newStubProc() *stubProc {
	return &stubProc{
		done:    make(chan struct{}),
		stopped: make(chan bool, 1),
	}
}

func (s *stubProc) Stop(force bool) error {
	s.stopped <- force
	if s.stopErr != nil {
		return s.stopErr
	}
	if !s.exitOnce {
		s.exitOnce = true
		close(s.done)
	}
	return nil
}

func (s *stubProc) exit(err error) {
	s.err = err
	if !s.exitOnce {
		s.exitOnce = true
		close(s.done)
	}
}

func (s *stubProc) Done() <-chan struct{} { return s.done }
func (s *stubProc) Err() error            { return s.err }

func waitExit(t *testing.T, exited <-chan *Run) *Run {
	t.Helper()
	select {
	case r := <-exited:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("run did not report exit")
		return nil
	}
}

func TestNewRun_ID(t *testing.T) {
	t.Parallel()

	proc := newStubProc()
	run := NewRun("ctx_0011223344556677", "/dev/sdb", "/tmp/rescue", proc)
	assert.Regexp(t, `^rec_[0-9a-f]{16}$`, run.ID())
	assert.Equal(t, "ctx_0011223344556677", run.ContextID())
	assert.Equal(t, "/dev/sdb", run.Device())
	assert.Equal(t, "/tmp/rescue", run.Dir())
	assert.True(t, run.Running())

	other := NewRun("ctx_0011223344556677", "/dev/sdb", "/tmp/rescue", proc)
	assert.NotEqual(t, run.ID(), other.ID())

	proc.exit(nil)
}

func TestRun_CompletedExit(t *testing.T) {
	t.Parallel()

	proc := newStubProc()
	run := NewRun("ctx_0011223344556677", "/dev/sdb", t.TempDir(), proc)

	exited := make(chan *Run, 1)
	run.Watch(func(r *Run) { exited <- r })

	proc.exit(nil)
	r := waitExit(t, exited)

	status := r.Status()
	assert.False(t, status.Running)
	assert.Equal(t, ExitCompleted, status.ExitReason)
	assert.False(t, status.FinishedAt.IsZero())
	assert.GreaterOrEqual(t, status.Elapsed, time.Duration(0))
	assert.NoError(t, r.Err())
}

func TestRun_FailedExit(t *testing.T) {
	t.Parallel()

	proc := newStubProc()
	run := NewRun("ctx_0011223344556677", "/dev/sdb", t.TempDir(), proc)

	exited := make(chan *Run, 1)
	run.Watch(func(r *Run) { exited <- r })

	procErr := errors.New("exit status 1")
	proc.exit(procErr)
	r := waitExit(t, exited)

	assert.Equal(t, ExitFailed, r.Status().ExitReason)
	assert.ErrorIs(t, r.Err(), procErr)
}

func TestRun_GracefulStop(t *testing.T) {
	t.Parallel()

	proc := newStubProc()
	run := NewRun("ctx_0011223344556677", "/dev/sdb", t.TempDir(), proc)

	exited := make(chan *Run, 1)
	run.Watch(func(r *Run) { exited <- r })

	require.NoError(t, run.Stop(false))
	assert.False(t, <-proc.stopped)

	r := waitExit(t, exited)
	assert.Equal(t, ExitStopped, r.Status().ExitReason)
}

func TestRun_ForcedStop(t *testing.T) {
	t.Parallel()

	proc := newStubProc()
	run := NewRun("ctx_0011223344556677", "/dev/sdb", t.TempDir(), proc)

	exited := make(chan *Run, 1)
	run.Watch(func(r *Run) { exited <- r })

	require.NoError(t, run.Stop(true))
	assert.True(t, <-proc.stopped)

	r := waitExit(t, exited)
	assert.Equal(t, ExitKilled, r.Status().ExitReason)
}

func TestRun_StopAfterExitIsNoop(t *testing.T) {
	t.Parallel()

	proc := newStubProc()
	run := NewRun("ctx_0011223344556677", "/dev/sdb", t.TempDir(), proc)

	exited := make(chan *Run, 1)
	run.Watch(func(r *Run) { exited <- r })

	proc.exit(nil)
	waitExit(t, exited)

	require.NoError(t, run.Stop(false))
	select {
	case <-proc.stopped:
		t.Fatal("stop reached the process after it exited")
	default:
	}
	assert.Equal(t, ExitCompleted, run.Status().ExitReason)
}

func TestRun_StopError(t *testing.T) {
	t.Parallel()

	proc := newStubProc()
	proc.stopErr = errors.New("no such process")
	run := NewRun("ctx_0011223344556677", "/dev/sdb", t.TempDir(), proc)

	exited := make(chan *Run, 1)
	run.Watch(func(r *Run) { exited <- r })

	err := run.Stop(false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), run.ID())
	<-proc.stopped

	proc.exit(errors.New("signal: interrupt"))
	r := waitExit(t, exited)
	// the stop intent was recorded even though signalling failed
	assert.Equal(t, ExitStopped, r.Status().ExitReason)
}

func TestRun_StatusWhileRunning(t *testing.T) {
	t.Parallel()

	proc := newStubProc()
	run := NewRun("ctx_0011223344556677", "/dev/sdb", t.TempDir(), proc)

	exited := make(chan *Run, 1)
	run.Watch(func(r *Run) { exited <- r })

	status := run.Status()
	assert.True(t, status.Running)
	assert.Empty(t, status.ExitReason)
	assert.True(t, status.FinishedAt.IsZero())
	assert.NoError(t, run.Err())

	proc.exit(nil)
	waitExit(t, exited)
}
