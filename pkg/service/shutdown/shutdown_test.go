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

package shutdown

import (
	"sync"
	"testing"
	"time"

	"github.com/ReclaimProject/reclaim-core/pkg/api/models"
	"github.com/ReclaimProject/reclaim-core/pkg/config"
	"github.com/ReclaimProject/reclaim-core/pkg/service/state"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestConfig creates a config instance with the given values for testing
func newTestConfig(t *testing.T, vals *config.Values) *config.Instance {
	t.Helper()

	cfg, err := config.NewConfig(t.TempDir(), *vals)
	require.NoError(t, err)

	return cfg
}

func newTestState(t *testing.T) (*state.State, <-chan models.Notification) {
	t.Helper()
	return state.NewState(nil)
}

func addContext(t *testing.T, st *state.State, device string) *state.RecoveryContext {
	t.Helper()
	rc, err := st.CreateContext(state.CreateContextArgs{
		Device:      device,
		RecoveryDir: t.TempDir(),
		LogMode:     config.LogModeNone,
	})
	require.NoError(t, err)
	return rc
}

func serviceStopped(st *state.State) bool {
	select {
	case <-st.ServiceContext().Done():
		return true
	default:
		return false
	}
}

func TestGraceful_NoContexts(t *testing.T) {
	t.Parallel()

	st, ns := newTestState(t)
	cfg := newTestConfig(t, &config.Values{})
	coord := NewCoordinator(st, cfg, clockwork.NewFakeClock())

	require.NoError(t, coord.Graceful("maintenance"))
	assert.True(t, serviceStopped(st))

	// the stopping notification went out before the drain check
	var sawStopping bool
	for done := false; !done; {
		select {
		case n := <-ns:
			if n.Method == models.NotificationServiceStopping {
				sawStopping = true
				assert.Contains(t, string(n.Params), "maintenance")
			}
		default:
			done = true
		}
	}
	assert.True(t, sawStopping, "expected service.stopping notification")
}

func TestGraceful_DrainsThenStops(t *testing.T) {
	t.Parallel()

	st, _ := newTestState(t)
	cfg := newTestConfig(t, &config.Values{
		Service: config.Service{DrainTimeout: 10},
	})
	clock := clockwork.NewFakeClock()
	coord := NewCoordinator(st, cfg, clock)

	rc := addContext(t, st, "/dev/sdb")

	result := make(chan error, 1)
	go func() { result <- coord.Graceful("host going down") }()

	// wait for the drain loop to arm its deadline and poll ticker
	clock.BlockUntil(2)
	assert.True(t, st.IsShuttingDown())

	// new contexts are refused mid-drain
	_, err := st.CreateContext(state.CreateContextArgs{Device: "/dev/sdc"})
	require.ErrorIs(t, err, state.ErrShuttingDown)

	// natural cleanup finishes the drain
	_, err = st.RemoveContext(rc.ID(), false)
	require.NoError(t, err)
	clock.Advance(drainPollInterval)

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("graceful shutdown did not finish after drain")
	}
	assert.True(t, serviceStopped(st))
}

func TestGraceful_TimeoutReopensService(t *testing.T) {
	t.Parallel()

	st, _ := newTestState(t)
	cfg := newTestConfig(t, &config.Values{
		Service: config.Service{DrainTimeout: 10},
	})
	clock := clockwork.NewFakeClock()
	coord := NewCoordinator(st, cfg, clock)

	addContext(t, st, "/dev/sdb")

	result := make(chan error, 1)
	go func() { result <- coord.Graceful("host going down") }()

	clock.BlockUntil(2)
	clock.Advance(11 * time.Second)

	select {
	case err := <-result:
		require.ErrorIs(t, err, ErrDrainTimeout)
	case <-time.After(5 * time.Second):
		t.Fatal("graceful shutdown did not report timeout")
	}

	// the service stays up with the context intact and accepts work again
	assert.False(t, serviceStopped(st))
	assert.False(t, st.IsShuttingDown())
	assert.Equal(t, 1, st.ActiveCount())
	_, err := st.CreateContext(state.CreateContextArgs{Device: "/dev/sdc"})
	require.NoError(t, err)
}

func TestGraceful_ConcurrentCallersJoin(t *testing.T) {
	t.Parallel()

	st, ns := newTestState(t)
	cfg := newTestConfig(t, &config.Values{
		Service: config.Service{DrainTimeout: 10},
	})
	clock := clockwork.NewFakeClock()
	coord := NewCoordinator(st, cfg, clock)

	rc := addContext(t, st, "/dev/sdb")

	const callers = 3
	results := make(chan error, callers)
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- coord.Graceful("shared drain")
		}()
	}

	clock.BlockUntil(2)
	_, err := st.RemoveContext(rc.ID(), false)
	require.NoError(t, err)
	clock.Advance(drainPollInterval)

	finished := make(chan struct{})
	go func() { wg.Wait(); close(finished) }()
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("joined graceful calls did not finish")
	}

	for range callers {
		assert.NoError(t, <-results)
	}

	// the drain ran once, so exactly one stopping notification went out
	stopping := 0
	for done := false; !done; {
		select {
		case n := <-ns:
			if n.Method == models.NotificationServiceStopping {
				stopping++
			}
		default:
			done = true
		}
	}
	assert.Equal(t, 1, stopping)
}

func TestForced_RemovesContextsAndStops(t *testing.T) {
	t.Parallel()

	st, ns := newTestState(t)
	cfg := newTestConfig(t, &config.Values{})
	coord := NewCoordinator(st, cfg, clockwork.NewFakeClock())

	addContext(t, st, "/dev/sdb")
	addContext(t, st, "/dev/sdc")

	coord.Forced("emergency stop")

	assert.Zero(t, st.ActiveCount())
	assert.True(t, serviceStopped(st))

	var sawStopping, sawRemoved bool
	for done := false; !done; {
		select {
		case n := <-ns:
			switch n.Method {
			case models.NotificationServiceStopping:
				sawStopping = true
			case models.NotificationContextsRemoved:
				sawRemoved = true
			}
		default:
			done = true
		}
	}
	assert.True(t, sawStopping)
	assert.True(t, sawRemoved)
}
