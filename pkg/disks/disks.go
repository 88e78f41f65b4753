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

// Package disks enumerates block devices from sysfs and manages exclusive
// read-only device bindings for recovery contexts. Registered disk images
// appear alongside physical devices as pseudo-devices.
package disks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ReclaimProject/reclaim-core/pkg/helpers/syncutil"
	"github.com/hbollon/go-edlib"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrDeviceNotFound is returned when a device path does not correspond to
	// any enumerable device or registered image.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrDeviceBusy is returned when a device is mounted or exclusively
	// locked by another process or context.
	ErrDeviceBusy = errors.New("device busy")
	// ErrImageExists is returned when registering an image path twice.
	ErrImageExists = errors.New("image already registered")
	// ErrNotRegularFile is returned when an image path is not a regular file.
	ErrNotRegularFile = errors.New("not a regular file")
)

// Entries under /sys/block that are not recoverable media: SCSI generic,
// optical, loopback, RAID/device-mapper composites and RAM-backed devices.
var skipPrefixes = []string{"sg", "sr", "loop", "md", "dm-", "ram", "zram", "nbd"}

// suggestSimilarity is the minimum Jaro-Winkler similarity for a device path
// to be offered as a "did you mean" suggestion.
const suggestSimilarity float32 = 0.75

// Disk describes a block device read from sysfs, or a registered disk image.
type Disk struct {
	// Device is the device node path (e.g. /dev/sda), or the file path for
	// a registered image.
	Device     string
	Model      string
	Serial     string
	Vendor     string
	Size       uint64
	SectorSize uint32
	Removable  bool
	Image      bool
}

type imageEntry struct {
	disk      Disk
	contextID string
}

// Enumerator lists recoverable devices. The sysfs and dev roots are
// parameterized so tests can point it at a synthetic tree.
type Enumerator struct {
	images  map[string]imageEntry
	sysRoot string
	devRoot string
	mu      syncutil.RWMutex
}

// NewEnumerator returns an Enumerator reading the real /sys/block tree.
func NewEnumerator() *Enumerator {
	return NewEnumeratorWithRoots("/sys/block", "/dev")
}

// NewEnumeratorWithRoots returns an Enumerator rooted at the given sysfs
// block directory and device directory.
func NewEnumeratorWithRoots(sysRoot, devRoot string) *Enumerator {
	return &Enumerator{
		images:  make(map[string]imageEntry),
		sysRoot: sysRoot,
		devRoot: devRoot,
	}
}

// List enumerates devices by walking the sysfs block directory, probing each
// candidate concurrently. A device whose probe fails is dropped from the
// results; List only fails when the walk itself fails or every probe failed.
// Registered images are appended to the results.
func (e *Enumerator) List(ctx context.Context) ([]Disk, error) {
	entries, err := os.ReadDir(e.sysRoot)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", e.sysRoot, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if skipDevice(name) {
			continue
		}
		names = append(names, name)
	}

	results := make([]Disk, len(names))
	found := make([]bool, len(names))
	probeErrs := make([]error, len(names))

	g, ctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("probing %s: %w", name, err)
			}
			disk, err := e.probe(name)
			if err != nil {
				log.Warn().Err(err).Str("device", name).Msg("dropping device from results")
				probeErrs[i] = err
				return nil
			}
			results[i] = disk
			found[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	disks := make([]Disk, 0, len(names))
	failures := 0
	for i := range names {
		if found[i] {
			disks = append(disks, results[i])
		} else if probeErrs[i] != nil {
			failures++
		}
	}
	if len(disks) == 0 && failures > 0 {
		return nil, fmt.Errorf("all %d device probes failed, last: %w", failures, lastErr(probeErrs))
	}

	disks = append(disks, e.imageDisks()...)
	sort.Slice(disks, func(i, j int) bool { return disks[i].Device < disks[j].Device })
	return disks, nil
}

// Lookup resolves a device path to its descriptor. Unknown paths get a
// near-miss suggestion in the error when one is close enough.
func (e *Enumerator) Lookup(ctx context.Context, device string) (Disk, error) {
	disks, err := e.List(ctx)
	if err != nil {
		return Disk{}, err
	}
	candidates := make([]string, 0, len(disks))
	for _, disk := range disks {
		if disk.Device == device {
			return disk, nil
		}
		candidates = append(candidates, disk.Device)
	}
	if suggestion := suggest(device, candidates); suggestion != "" {
		return Disk{}, fmt.Errorf("%w: %s (did you mean %s?)", ErrDeviceNotFound, device, suggestion)
	}
	return Disk{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, device)
}

// AddImage registers a disk image file as a pseudo-device owned by the given
// context. It appears in List results until the context is cleaned up.
func (e *Enumerator) AddImage(contextID, path string) (Disk, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Disk{}, fmt.Errorf("resolving image path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Disk{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, abs)
	}
	if !info.Mode().IsRegular() {
		return Disk{}, fmt.Errorf("%w: %s", ErrNotRegularFile, abs)
	}

	disk := Disk{
		Device:     abs,
		Size:       uint64(info.Size()),
		SectorSize: 512,
		Image:      true,
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.images[abs]; ok {
		return Disk{}, fmt.Errorf("%w: %s", ErrImageExists, abs)
	}
	e.images[abs] = imageEntry{disk: disk, contextID: contextID}
	return disk, nil
}

// RemoveImages unregisters all images owned by a context and returns their
// paths. Called when the owning context is cleaned up.
func (e *Enumerator) RemoveImages(contextID string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var removed []string
	for path, entry := range e.images {
		if entry.contextID == contextID {
			delete(e.images, path)
			removed = append(removed, path)
		}
	}
	sort.Strings(removed)
	return removed
}

func (e *Enumerator) imageDisks() []Disk {
	e.mu.RLock()
	defer e.mu.RUnlock()
	disks := make([]Disk, 0, len(e.images))
	for _, entry := range e.images {
		disks = append(disks, entry.disk)
	}
	return disks
}

// probe reads a single device's attributes from sysfs. Size is reported by
// the kernel in 512-byte sectors scaled by the queue's logical block size.
func (e *Enumerator) probe(name string) (Disk, error) {
	base := filepath.Join(e.sysRoot, name)

	sectorSize := uint32(512)
	if s := readAttr(base, "queue/logical_block_size"); s != "" {
		if v, err := strconv.ParseUint(s, 10, 32); err == nil && v > 0 {
			sectorSize = uint32(v)
		}
	}

	var size uint64
	if s := readAttr(base, "size"); s != "" {
		sectors, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return Disk{}, fmt.Errorf("parsing size of %s: %w", name, err)
		}
		size = sectors * uint64(sectorSize)
	}

	devPath := filepath.Join(e.devRoot, name)
	if size == 0 {
		// No usable sysfs size attribute, ask the device itself.
		var err error
		size, sectorSize, err = probeDeviceSize(devPath)
		if err != nil {
			return Disk{}, fmt.Errorf("sizing %s: %w", devPath, err)
		}
	}
	if size == 0 {
		return Disk{}, fmt.Errorf("device %s has zero size", name)
	}

	return Disk{
		Device:     devPath,
		Model:      readAttr(base, "device/model"),
		Serial:     firstAttr(base, "serial", "device/serial"),
		Vendor:     readAttr(base, "device/vendor"),
		Size:       size,
		SectorSize: sectorSize,
		Removable:  readAttr(base, "removable") == "1",
	}, nil
}

func skipDevice(name string) bool {
	for _, prefix := range skipPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func readAttr(parts ...string) string {
	data, err := os.ReadFile(filepath.Join(parts...))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func firstAttr(base string, names ...string) string {
	for _, name := range names {
		if v := readAttr(base, name); v != "" {
			return v
		}
	}
	return ""
}

func suggest(query string, candidates []string) string {
	best := ""
	var bestScore float32
	for _, candidate := range candidates {
		similarity := edlib.JaroWinklerSimilarity(query, candidate)
		if similarity >= suggestSimilarity && similarity > bestScore {
			best = candidate
			bestScore = similarity
		}
	}
	return best
}

func lastErr(errs []error) error {
	for i := len(errs) - 1; i >= 0; i-- {
		if errs[i] != nil {
			return errs[i]
		}
	}
	return nil
}
