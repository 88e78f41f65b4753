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

// Package shutdown coordinates the two ways the service goes down:
// graceful, which drains live contexts within a bounded window, and
// forced, which tears everything down immediately.
package shutdown

import (
	"errors"
	"fmt"
	"time"

	"github.com/ReclaimProject/reclaim-core/pkg/api/models"
	"github.com/ReclaimProject/reclaim-core/pkg/api/notifications"
	"github.com/ReclaimProject/reclaim-core/pkg/config"
	"github.com/ReclaimProject/reclaim-core/pkg/helpers/syncutil"
	"github.com/ReclaimProject/reclaim-core/pkg/service/state"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// ErrDrainTimeout is returned when a graceful shutdown gives up waiting
// for contexts to be cleaned up. The service stays up afterwards.
var ErrDrainTimeout = errors.New("graceful shutdown timed out waiting for contexts")

// drainPollInterval is how often the drain loop re-checks the registry.
const drainPollInterval = 100 * time.Millisecond

// Coordinator serializes shutdown requests against the registry. At most
// one graceful drain runs at a time; concurrent callers join it and share
// its outcome.
type Coordinator struct {
	st         *state.State
	cfg        *config.Instance
	clock      clockwork.Clock
	waiters    []chan error
	mu         syncutil.Mutex
	inProgress bool
}

// NewCoordinator wires a coordinator to the registry. A nil clock selects
// the real one; tests inject a fake to drive the drain window.
func NewCoordinator(st *state.State, cfg *config.Instance, clock clockwork.Clock) *Coordinator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Coordinator{
		st:    st,
		cfg:   cfg,
		clock: clock,
	}
}

// Graceful refuses new contexts and waits up to the configured drain
// timeout for existing ones to be cleaned up, then stops the service. On
// timeout it reports ErrDrainTimeout and re-opens the service, leaving all
// contexts intact. Concurrent calls join the drain already in progress.
func (c *Coordinator) Graceful(reason string) error {
	c.mu.Lock()
	if c.inProgress {
		waiter := make(chan error, 1)
		c.waiters = append(c.waiters, waiter)
		c.mu.Unlock()
		return <-waiter
	}
	c.inProgress = true
	c.mu.Unlock()

	err := c.drain(reason)

	c.mu.Lock()
	c.inProgress = false
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()

	for _, waiter := range waiters {
		waiter <- err
	}
	return err
}

func (c *Coordinator) drain(reason string) error {
	active := c.st.ActiveCount()
	log.Info().
		Str("reason", reason).
		Int("activeContexts", active).
		Msg("graceful shutdown requested")

	c.st.SetShuttingDown(true)
	notifications.ServiceStopping(c.st.Notifications, models.ServiceStoppingParams{Reason: reason})

	timeout := c.cfg.DrainTimeout()
	deadline := c.clock.After(timeout)
	poll := c.clock.NewTicker(drainPollInterval)
	defer poll.Stop()

	for {
		if c.st.ActiveCount() == 0 {
			log.Info().Msg("all contexts drained, stopping service")
			c.st.StopService()
			return nil
		}

		select {
		case <-deadline:
			remaining := c.st.ActiveCount()
			// Re-open so the caller can retry or escalate to a forced
			// shutdown instead of leaving the service half-stopped.
			c.st.SetShuttingDown(false)
			log.Warn().
				Int("activeContexts", remaining).
				Dur("timeout", timeout).
				Msg("graceful shutdown timed out, service stays up")
			return fmt.Errorf("%w after %s: %d context(s) still active", ErrDrainTimeout, timeout, remaining)
		case <-poll.Chan():
		}
	}
}

// Forced removes every context immediately, killing any engine processes
// still running, and stops the service.
func (c *Coordinator) Forced(reason string) {
	log.Info().
		Str("reason", reason).
		Int("activeContexts", c.st.ActiveCount()).
		Msg("forced shutdown requested")

	c.st.SetShuttingDown(true)
	notifications.ServiceStopping(c.st.Notifications, models.ServiceStoppingParams{Reason: reason})

	removed := c.st.RemoveAllContexts(true)
	if removed > 0 {
		log.Info().Int("contexts", removed).Msg("cleaned up contexts for forced shutdown")
	}
	c.st.StopService()
}
