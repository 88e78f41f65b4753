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
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/ReclaimProject/reclaim-core/pkg/api/models"
	"github.com/ReclaimProject/reclaim-core/pkg/partitions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBinding is an in-memory DeviceBinding for registry tests.
type fakeBinding struct {
	closeErr error
	device   string
	closed   bool
}

func (f *fakeBinding) Device() string      { return f.device }
func (*fakeBinding) ReaderAt() io.ReaderAt { return bytes.NewReader(nil) }
func (*fakeBinding) Size() (uint64, uint32, error) {
	return 1 << 20, 512, nil
}

func (f *fakeBinding) Close() error {
	f.closed = true
	return f.closeErr
}

// fakeLog is an in-memory LogSink.
type fakeLog struct {
	buf    bytes.Buffer
	name   string
	closed bool
}

func (f *fakeLog) Write(p []byte) (int, error) { return f.buf.Write(p) }
func (f *fakeLog) Close() error                { f.closed = true; return nil }
func (f *fakeLog) Name() string                { return f.name }

func createArgs(device string) CreateContextArgs {
	return CreateContextArgs{
		Device:      device,
		RecoveryDir: "/data/rescue",
		LogMode:     "new",
		Binding:     &fakeBinding{device: device},
		LogFile:     &fakeLog{name: "/data/rescue/recovery.log"},
	}
}

func drainNotifications(t *testing.T, ns <-chan models.Notification, done chan struct{}) {
	t.Helper()
	go func() {
		for {
			select {
			case <-ns:
			case <-done:
				return
			}
		}
	}()
}

func TestCreateContext(t *testing.T) {
	t.Parallel()

	st, ns := NewState(nil)

	rc, err := st.CreateContext(createArgs("/dev/sdb"))
	require.NoError(t, err)

	assert.Regexp(t, `^ctx_[0-9a-f]{16}$`, rc.ID())
	assert.Equal(t, "/dev/sdb", rc.Device())
	assert.Equal(t, "/data/rescue", rc.RecoveryDir())
	assert.Equal(t, "new", rc.LogMode())
	assert.Equal(t, "/data/rescue/recovery.log", rc.LogPath())
	assert.Equal(t, StateIdle, rc.State())
	assert.Equal(t, partitions.ArchAuto, rc.Arch())
	assert.Equal(t, 1, st.ActiveCount())

	select {
	case n := <-ns:
		assert.Equal(t, models.NotificationContextsAdded, n.Method)
		assert.Contains(t, string(n.Params), rc.ID())
	case <-time.After(time.Second):
		t.Fatal("expected contexts.added notification")
	}
}

func TestCreateContext_DeviceExclusivity(t *testing.T) {
	t.Parallel()

	st, ns := NewState(nil)
	done := make(chan struct{})
	defer close(done)
	drainNotifications(t, ns, done)

	first, err := st.CreateContext(createArgs("/dev/sdb"))
	require.NoError(t, err)

	_, err = st.CreateContext(createArgs("/dev/sdb"))
	require.ErrorIs(t, err, ErrDeviceBusy)
	assert.Contains(t, err.Error(), first.ID())
	assert.Equal(t, 1, st.ActiveCount())

	// a different device is fine
	_, err = st.CreateContext(createArgs("/dev/sdc"))
	require.NoError(t, err)
	assert.Equal(t, 2, st.ActiveCount())
}

func TestCreateContext_MaxContexts(t *testing.T) {
	t.Parallel()

	st, ns := NewState(nil)
	done := make(chan struct{})
	defer close(done)
	drainNotifications(t, ns, done)

	args := createArgs("/dev/sdb")
	args.MaxContexts = 1
	_, err := st.CreateContext(args)
	require.NoError(t, err)

	args = createArgs("/dev/sdc")
	args.MaxContexts = 1
	_, err = st.CreateContext(args)
	require.ErrorIs(t, err, ErrTooManyContexts)
}

func TestCreateContext_WhileShuttingDown(t *testing.T) {
	t.Parallel()

	st, _ := NewState(nil)
	st.SetShuttingDown(true)

	_, err := st.CreateContext(createArgs("/dev/sdb"))
	require.ErrorIs(t, err, ErrShuttingDown)

	// drain timeout re-opens the gate
	st.SetShuttingDown(false)
	_, err = st.CreateContext(createArgs("/dev/sdb"))
	require.NoError(t, err)
}

func TestGetContext(t *testing.T) {
	t.Parallel()

	st, ns := NewState(nil)
	done := make(chan struct{})
	defer close(done)
	drainNotifications(t, ns, done)

	rc, err := st.CreateContext(createArgs("/dev/sdb"))
	require.NoError(t, err)

	got, err := st.GetContext(rc.ID())
	require.NoError(t, err)
	assert.Same(t, rc, got)

	_, err = st.GetContext("ctx_ffffffffffffffff")
	require.ErrorIs(t, err, ErrContextNotFound)
	assert.Contains(t, err.Error(), "ctx_ffffffffffffffff")
}

func TestRemoveContext(t *testing.T) {
	t.Parallel()

	st, ns := NewState(nil)

	binding := &fakeBinding{device: "/dev/sdb"}
	logFile := &fakeLog{name: "/data/rescue/recovery.log"}
	args := createArgs("/dev/sdb")
	args.Binding = binding
	args.LogFile = logFile

	rc, err := st.CreateContext(args)
	require.NoError(t, err)
	<-ns // contexts.added

	removed, err := st.RemoveContext(rc.ID(), false)
	require.NoError(t, err)
	assert.Same(t, rc, removed)
	assert.Zero(t, st.ActiveCount())
	assert.True(t, binding.closed, "binding must be released on remove")
	assert.True(t, logFile.closed, "session log must be closed on remove")

	select {
	case n := <-ns:
		assert.Equal(t, models.NotificationContextsRemoved, n.Method)
		assert.Contains(t, string(n.Params), rc.ID())
	case <-time.After(time.Second):
		t.Fatal("expected contexts.removed notification")
	}

	// device is free again
	_, err = st.CreateContext(createArgs("/dev/sdb"))
	require.NoError(t, err)
}

func TestRemoveContext_NotFound(t *testing.T) {
	t.Parallel()

	st, _ := NewState(nil)
	_, err := st.RemoveContext("ctx_0000000000000000", false)
	require.ErrorIs(t, err, ErrContextNotFound)
}

func TestRemoveContext_BindingCloseError(t *testing.T) {
	t.Parallel()

	st, ns := NewState(nil)
	done := make(chan struct{})
	defer close(done)
	drainNotifications(t, ns, done)

	binding := &fakeBinding{device: "/dev/sdb", closeErr: errors.New("flock: bad fd")}
	args := createArgs("/dev/sdb")
	args.Binding = binding

	rc, err := st.CreateContext(args)
	require.NoError(t, err)

	// a failing close is logged, not surfaced; the context is gone either way
	_, err = st.RemoveContext(rc.ID(), false)
	require.NoError(t, err)
	assert.Zero(t, st.ActiveCount())
}

func TestRemoveAllContexts(t *testing.T) {
	t.Parallel()

	st, ns := NewState(nil)
	done := make(chan struct{})
	defer close(done)
	drainNotifications(t, ns, done)

	for _, dev := range []string{"/dev/sdb", "/dev/sdc", "/dev/sdd"} {
		_, err := st.CreateContext(createArgs(dev))
		require.NoError(t, err)
	}

	removed := st.RemoveAllContexts(true)
	assert.Equal(t, 3, removed)
	assert.Zero(t, st.ActiveCount())
}

func TestListContexts_Ordering(t *testing.T) {
	t.Parallel()

	st, ns := NewState(nil)
	done := make(chan struct{})
	defer close(done)
	drainNotifications(t, ns, done)

	var created []*RecoveryContext
	for _, dev := range []string{"/dev/sdb", "/dev/sdc", "/dev/sdd"} {
		rc, err := st.CreateContext(createArgs(dev))
		require.NoError(t, err)
		created = append(created, rc)
	}

	listed := st.ListContexts()
	require.Len(t, listed, 3)
	for i, rc := range created {
		assert.Same(t, rc, listed[i])
	}
}

func TestContextResponse(t *testing.T) {
	t.Parallel()

	st, ns := NewState(nil)
	done := make(chan struct{})
	defer close(done)
	drainNotifications(t, ns, done)

	rc, err := st.CreateContext(createArgs("/dev/sdb"))
	require.NoError(t, err)

	resp := rc.Response()
	assert.Equal(t, rc.ID(), resp.ContextID)
	assert.Equal(t, "/dev/sdb", resp.Device)
	assert.Equal(t, StateIdle, resp.State)
	assert.Empty(t, resp.Arch, "auto arch is omitted from responses")
	assert.False(t, resp.CreatedAt.IsZero())

	rc.SetArch(partitions.ArchGPT)
	assert.Equal(t, "gpt", rc.Response().Arch)
}

func TestContextOptions(t *testing.T) {
	t.Parallel()

	st, ns := NewState(nil)
	done := make(chan struct{})
	defer close(done)
	drainNotifications(t, ns, done)

	rc, err := st.CreateContext(createArgs("/dev/sdb"))
	require.NoError(t, err)

	opts := rc.Options()
	opts.Expert = true
	rc.SetOptions(opts)
	assert.True(t, rc.Options().Expert)
}

func TestStopService(t *testing.T) {
	t.Parallel()

	st, _ := NewState(nil)

	select {
	case <-st.ServiceContext().Done():
		t.Fatal("service context done before StopService")
	default:
	}

	st.StopService()

	select {
	case <-st.ServiceContext().Done():
	case <-time.After(time.Second):
		t.Fatal("StopService did not cancel the service context")
	}

	_, err := st.CreateContext(createArgs("/dev/sdb"))
	require.ErrorIs(t, err, ErrShuttingDown)
}

func TestStartedAt(t *testing.T) {
	t.Parallel()

	before := time.Now()
	st, _ := NewState(nil)
	after := time.Now()

	startedAt := st.StartedAt()
	assert.False(t, startedAt.Before(before))
	assert.False(t, startedAt.After(after))
}
