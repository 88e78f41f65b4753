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

// Package devicewatcher publishes disk hotplug notifications. It watches the
// device directory for node churn and rescans the enumerator to work out
// which whole disks actually appeared or disappeared.
package devicewatcher

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ReclaimProject/reclaim-core/pkg/api/models"
	"github.com/ReclaimProject/reclaim-core/pkg/api/notifications"
	"github.com/ReclaimProject/reclaim-core/pkg/disks"
	"github.com/ReclaimProject/reclaim-core/pkg/helpers/syncutil"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

const (
	// debounceInterval coalesces the burst of node events udev produces when
	// a device with several partitions is attached.
	debounceInterval = 100 * time.Millisecond
	// rescanInterval is a safety net for device directories that don't
	// deliver inotify events reliably.
	rescanInterval = 30 * time.Second
	// scanTimeout bounds a single enumerator scan.
	scanTimeout = 10 * time.Second
)

// diskNodePrefixes match device node names for disk-like block devices.
// Partition nodes (sda1) match too, since one appearing means its parent
// disk changed.
var diskNodePrefixes = []string{"sd", "hd", "vd", "xvd", "nvme", "mmcblk"}

// Watcher emits disks.added and disks.removed notifications when block
// devices are attached or detached.
type Watcher struct {
	enum     *disks.Enumerator
	ns       chan<- models.Notification
	watcher  *fsnotify.Watcher
	known    map[string]bool
	watchDir string
	stopChan chan struct{}
	wg       sync.WaitGroup
	mu       syncutil.RWMutex
	stopOnce sync.Once
}

// New returns a Watcher over /dev backed by the given enumerator.
func New(enum *disks.Enumerator, ns chan<- models.Notification) *Watcher {
	return NewWithDir(enum, ns, "/dev")
}

// NewWithDir returns a Watcher over the given device directory so tests can
// point it at a synthetic tree.
func NewWithDir(enum *disks.Enumerator, ns chan<- models.Notification, dir string) *Watcher {
	return &Watcher{
		enum:     enum,
		ns:       ns,
		known:    make(map[string]bool),
		watchDir: dir,
		stopChan: make(chan struct{}),
	}
}

// Start snapshots the currently attached disks and begins watching for
// changes. Disks already present at startup do not produce notifications.
func (w *Watcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(w.watchDir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", w.watchDir, err)
	}
	w.watcher = watcher

	current, err := w.scan()
	if err != nil {
		_ = watcher.Close()
		return fmt.Errorf("initial device scan: %w", err)
	}
	w.mu.Lock()
	w.known = current
	w.mu.Unlock()

	w.wg.Add(1)
	go w.watchEvents()

	log.Debug().
		Str("dir", w.watchDir).
		Int("devices", len(current)).
		Msg("started watching for device changes")

	return nil
}

// Stop halts the event loop and waits for it to exit. Safe to call more
// than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
		if w.watcher != nil {
			_ = w.watcher.Close()
		}
		w.wg.Wait()
	})
}

func (w *Watcher) watchEvents() {
	defer w.wg.Done()

	debounceTimer := time.NewTimer(0)
	if !debounceTimer.Stop() {
		<-debounceTimer.C
	}
	defer debounceTimer.Stop()

	rescanTicker := time.NewTicker(rescanInterval)
	defer rescanTicker.Stop()

	for {
		select {
		case <-w.stopChan:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Remove) {
				continue
			}
			// Direct children only, /dev has event-heavy subdirectories.
			if filepath.Dir(event.Name) != w.watchDir {
				continue
			}
			if !isDiskNode(filepath.Base(event.Name)) {
				continue
			}
			debounceTimer.Reset(debounceInterval)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("fsnotify error")

		case <-debounceTimer.C:
			w.rescan()

		case <-rescanTicker.C:
			w.rescan()
		}
	}
}

// rescan diffs the enumerator's current view against the known set and
// emits one notification per appeared or vanished disk.
func (w *Watcher) rescan() {
	current, err := w.scan()
	if err != nil {
		log.Warn().Err(err).Msg("device rescan failed")
		return
	}

	w.mu.Lock()
	previous := w.known
	w.known = current
	w.mu.Unlock()

	for device := range current {
		if !previous[device] {
			log.Info().Str("device", device).Msg("disk attached")
			notifications.DisksAdded(w.ns, models.DiskEventParams{Device: device})
		}
	}
	for device := range previous {
		if !current[device] {
			log.Info().Str("device", device).Msg("disk detached")
			notifications.DisksRemoved(w.ns, models.DiskEventParams{Device: device})
		}
	}
}

// scan returns the set of physical device paths currently enumerable.
// Registered images are not hotplug events and are excluded.
func (w *Watcher) scan() (map[string]bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()

	found, err := w.enum.List(ctx)
	if err != nil {
		return nil, err
	}

	current := make(map[string]bool, len(found))
	for _, disk := range found {
		if disk.Image {
			continue
		}
		current[disk.Device] = true
	}
	return current, nil
}

func isDiskNode(name string) bool {
	for _, prefix := range diskNodePrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
