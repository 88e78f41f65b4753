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
	"testing"
	"time"

	"github.com/ReclaimProject/reclaim-core/pkg/recovery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProc is a controllable recovery.EngineProc.
type stubProc struct {
	err  error
	done chan struct{}
}

func newStubProc() *stubProc {
	return &stubProc{done: make(chan struct{})}
}

func (s *stubProc) Stop(bool) error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return nil
}

func (s *stubProc) exit() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

func (s *stubProc) Done() <-chan struct{} { return s.done }
func (s *stubProc) Err() error            { return s.err }

func TestContext_RunLifecycle(t *testing.T) {
	t.Parallel()

	st, ns := NewState(nil)
	done := make(chan struct{})
	defer close(done)
	drainNotifications(t, ns, done)

	rc, err := st.CreateContext(createArgs("/dev/sdb"))
	require.NoError(t, err)
	assert.Nil(t, rc.Run())

	proc := newStubProc()
	run := recovery.NewRun(rc.ID(), rc.Device(), rc.RecoveryDir(), proc)
	exited := make(chan *recovery.Run, 1)
	run.Watch(func(r *recovery.Run) { exited <- r })

	require.NoError(t, rc.SetRun(run))
	assert.Equal(t, StateRecovering, rc.State())
	assert.Equal(t, StateRecovering, rc.Response().State)
	assert.Equal(t, 1, st.RunningRecoveries())

	// a second run is refused while the first is in progress
	other := recovery.NewRun(rc.ID(), rc.Device(), rc.RecoveryDir(), newStubProc())
	require.ErrorIs(t, rc.SetRun(other), recovery.ErrRunActive)

	proc.exit()
	select {
	case <-exited:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not exit")
	}

	assert.Equal(t, StateIdle, rc.State())
	assert.Zero(t, st.RunningRecoveries())
	// the finished run stays readable for recovery.status
	assert.Same(t, run, rc.Run())

	// and a finished run can be replaced
	replacement := recovery.NewRun(rc.ID(), rc.Device(), rc.RecoveryDir(), newStubProc())
	require.NoError(t, rc.SetRun(replacement))
}

func TestRemoveContext_StopsRunningRecovery(t *testing.T) {
	t.Parallel()

	st, ns := NewState(nil)
	done := make(chan struct{})
	defer close(done)
	drainNotifications(t, ns, done)

	rc, err := st.CreateContext(createArgs("/dev/sdb"))
	require.NoError(t, err)

	proc := newStubProc()
	run := recovery.NewRun(rc.ID(), rc.Device(), rc.RecoveryDir(), proc)
	exited := make(chan *recovery.Run, 1)
	run.Watch(func(r *recovery.Run) { exited <- r })
	require.NoError(t, rc.SetRun(run))

	_, err = st.RemoveContext(rc.ID(), false)
	require.NoError(t, err)

	select {
	case r := <-exited:
		assert.Equal(t, recovery.ExitStopped, r.Status().ExitReason)
	case <-time.After(5 * time.Second):
		t.Fatal("cleanup did not stop the running recovery")
	}
}
