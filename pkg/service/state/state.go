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
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ReclaimProject/reclaim-core/pkg/api/models"
	"github.com/ReclaimProject/reclaim-core/pkg/api/notifications"
	"github.com/ReclaimProject/reclaim-core/pkg/helpers/syncutil"
	"github.com/ReclaimProject/reclaim-core/pkg/platforms"
	"github.com/rs/zerolog/log"
)

var (
	// ErrContextNotFound is returned when a context id has no live
	// context behind it.
	ErrContextNotFound = errors.New("context not found")
	// ErrDeviceBusy is returned when a device is already bound to a live
	// context.
	ErrDeviceBusy = errors.New("device busy")
	// ErrTooManyContexts is returned when the configured context limit
	// is reached.
	ErrTooManyContexts = errors.New("too many contexts")
	// ErrShuttingDown is returned for work refused because the service
	// is draining or stopped.
	ErrShuttingDown = errors.New("service is shutting down")
)

// State holds the runtime state of the Reclaim service: the registry of
// live recovery contexts and the device-exclusivity index over them.
//
// LOCKING RULES: The mu mutex protects all mutable fields. To prevent deadlocks:
//   - Never send to channels while holding the lock (notifications, callbacks)
//   - Never call external methods (binding close, engine stop) while holding the lock
//   - Pattern: lock → modify state → copy needed data → unlock → send notifications
//
// Per-context mutable fields live behind each RecoveryContext's own lock;
// lock ordering is always State.mu before RecoveryContext.mu.
type State struct {
	startedAt     time.Time
	platform      platforms.Platform
	ctx           context.Context
	ctxCancelFunc context.CancelFunc
	contexts      map[string]*RecoveryContext
	deviceOwners  map[string]string
	Notifications chan<- models.Notification
	mu            syncutil.RWMutex
	shuttingDown  bool
	stopService   bool
}

func NewState(platform platforms.Platform) (state *State, notificationCh <-chan models.Notification) {
	// Buffer size of 500 provides headroom for bursty events (hotplug
	// storms, short-lived contexts) without dropping user-facing state
	// notifications
	ns := make(chan models.Notification, 500)
	ctx, ctxCancelFunc := context.WithCancel(context.Background())
	return &State{
		platform:      platform,
		contexts:      make(map[string]*RecoveryContext),
		deviceOwners:  make(map[string]string),
		Notifications: ns,
		ctx:           ctx,
		ctxCancelFunc: ctxCancelFunc,
		startedAt:     time.Now(),
	}, ns
}

// CreateContextArgs carries everything CreateContext needs to register a
// new context. Binding and LogFile may be nil; ownership of both passes to
// the context on success, so the caller must close them itself only when
// CreateContext fails.
type CreateContextArgs struct {
	Binding     DeviceBinding
	LogFile     LogSink
	Device      string
	RecoveryDir string
	LogMode     string
	MaxContexts int
}

// CreateContext registers a new recovery context bound exclusively to a
// device. It refuses devices already bound to a live context and refuses
// all work while the service is shutting down.
func (s *State) CreateContext(args CreateContextArgs) (*RecoveryContext, error) {
	s.mu.Lock()

	if s.shuttingDown || s.stopService {
		s.mu.Unlock()
		return nil, ErrShuttingDown
	}
	if owner, ok := s.deviceOwners[args.Device]; ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s is bound to %s", ErrDeviceBusy, args.Device, owner)
	}
	if args.MaxContexts > 0 && len(s.contexts) >= args.MaxContexts {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: limit of %d reached", ErrTooManyContexts, args.MaxContexts)
	}

	rc := newRecoveryContext(args)
	s.contexts[rc.id] = rc
	s.deviceOwners[rc.device] = rc.id

	// Prepare notification payload inside lock, send outside
	payload := rc.Response()

	s.mu.Unlock()

	// Send notification outside lock to prevent deadlock
	notifications.ContextsAdded(s.Notifications, payload)

	log.Info().
		Str("context", rc.id).
		Str("device", rc.device).
		Str("recoveryDir", rc.recoveryDir).
		Msg("recovery context created")
	return rc, nil
}

// GetContext returns the live context with the given id.
func (s *State) GetContext(id string) (*RecoveryContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rc, ok := s.contexts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrContextNotFound, id)
	}
	return rc, nil
}

// RemoveContext unregisters a context and releases its resources: a
// running recovery is stopped (force escalates to kill), the device
// binding is unlocked and the session log closed.
func (s *State) RemoveContext(id string, force bool) (*RecoveryContext, error) {
	s.mu.Lock()

	rc, ok := s.contexts[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrContextNotFound, id)
	}
	delete(s.contexts, id)
	delete(s.deviceOwners, rc.device)

	// Prepare notification payload inside lock, send outside
	payload := rc.Response()

	s.mu.Unlock()

	// Release resources and send notification outside lock to prevent
	// deadlock
	rc.close(force)
	notifications.ContextsRemoved(s.Notifications, payload)

	log.Info().
		Str("context", rc.id).
		Str("device", rc.device).
		Msg("recovery context removed")
	return rc, nil
}

// RemoveAllContexts removes every live context, reporting how many were
// removed. Used by forced shutdown.
func (s *State) RemoveAllContexts(force bool) int {
	s.mu.RLock()
	ids := make([]string, 0, len(s.contexts))
	for id := range s.contexts {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	removed := 0
	for _, id := range ids {
		if _, err := s.RemoveContext(id, force); err == nil {
			removed++
		}
	}
	return removed
}

// ListContexts returns a snapshot of live contexts ordered by creation
// time.
func (s *State) ListContexts() []*RecoveryContext {
	s.mu.RLock()
	rcs := make([]*RecoveryContext, 0, len(s.contexts))
	for _, rc := range s.contexts {
		rcs = append(rcs, rc)
	}
	s.mu.RUnlock()

	sort.Slice(rcs, func(i, j int) bool {
		if rcs[i].createdAt.Equal(rcs[j].createdAt) {
			return rcs[i].id < rcs[j].id
		}
		return rcs[i].createdAt.Before(rcs[j].createdAt)
	})
	return rcs
}

// ActiveCount returns the number of live contexts.
func (s *State) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contexts)
}

// RunningRecoveries returns how many contexts have an engine process
// running right now.
func (s *State) RunningRecoveries() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	running := 0
	for _, rc := range s.contexts {
		if run := rc.Run(); run != nil && run.Running() {
			running++
		}
	}
	return running
}

// SetShuttingDown flips the drain gate: while set, CreateContext refuses
// new work. The shutdown coordinator re-opens the gate when a graceful
// drain times out.
func (s *State) SetShuttingDown(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shuttingDown = v
}

func (s *State) IsShuttingDown() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shuttingDown
}

// StopService marks the service as stopped for good and cancels the root
// context. There is no way back from this one.
func (s *State) StopService() {
	s.mu.Lock()
	s.stopService = true
	s.mu.Unlock()
	s.ctxCancelFunc()
}

// ServiceContext returns the root context cancelled by StopService.
func (s *State) ServiceContext() context.Context {
	return s.ctx
}

func (s *State) StartedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startedAt
}

func (s *State) Platform() platforms.Platform {
	return s.platform
}

func newContextID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the OS entropy source is broken
		panic(fmt.Sprintf("generating context id: %v", err))
	}
	return "ctx_" + hex.EncodeToString(buf)
}
