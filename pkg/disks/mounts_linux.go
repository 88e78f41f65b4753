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

package disks

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog/log"
)

const (
	udisks2Service        = "org.freedesktop.UDisks2"
	udisks2Path           = "/org/freedesktop/UDisks2"
	udisks2BlockInterface = "org.freedesktop.UDisks2.Block"
	udisks2FSInterface    = "org.freedesktop.UDisks2.Filesystem"
	dbusObjectManager     = "org.freedesktop.DBus.ObjectManager"
)

// IsMounted reports whether a device or any of its partitions is currently
// mounted. It asks UDisks2 over D-Bus when available and falls back to
// scanning /proc/self/mounts on minimal systems without a system bus.
func IsMounted(ctx context.Context, device string) (bool, error) {
	mounted, err := udisksMounted(ctx, device)
	if err == nil {
		return mounted, nil
	}
	log.Debug().Err(err).Msg("UDisks2 unavailable, falling back to /proc/self/mounts")
	return procMounted(device, "/proc/self/mounts")
}

// udisksMounted checks mount state via the UDisks2 object tree. A private
// bus connection is used so closing it cannot disturb the process-wide
// shared connection.
func udisksMounted(ctx context.Context, device string) (bool, error) {
	conn, err := dbus.SystemBusPrivate()
	if err != nil {
		return false, fmt.Errorf("connecting to system bus: %w", err)
	}
	defer func() { _ = conn.Close() }()
	if err := conn.Auth(nil); err != nil {
		return false, fmt.Errorf("authenticating to system bus: %w", err)
	}
	if err := conn.Hello(); err != nil {
		return false, fmt.Errorf("completing bus handshake: %w", err)
	}

	obj := conn.Object(udisks2Service, udisks2Path)
	call := obj.CallWithContext(ctx, dbusObjectManager+".GetManagedObjects", 0)
	if call.Err != nil {
		return false, fmt.Errorf("querying UDisks2 objects: %w", call.Err)
	}

	var objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	if err := call.Store(&objects); err != nil {
		return false, fmt.Errorf("decoding UDisks2 objects: %w", err)
	}

	for _, interfaces := range objects {
		blockProps, hasBlock := interfaces[udisks2BlockInterface]
		fsProps, hasFS := interfaces[udisks2FSInterface]
		if !hasBlock || !hasFS {
			continue
		}
		node := byteVariantString(blockProps["Device"])
		if !deviceMatches(device, node) {
			continue
		}
		if mountPoints, ok := fsProps["MountPoints"]; ok {
			if points, ok := mountPoints.Value().([][]byte); ok && len(points) > 0 {
				return true, nil
			}
		}
	}
	return false, nil
}

// procMounted scans a mounts file (normally /proc/self/mounts) for the
// device or one of its partitions.
func procMounted(device, mountsPath string) (bool, error) {
	f, err := os.Open(mountsPath)
	if err != nil {
		return false, fmt.Errorf("opening %s: %w", mountsPath, err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		if deviceMatches(device, fields[0]) {
			return true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("reading %s: %w", mountsPath, err)
	}
	return false, nil
}

// deviceMatches reports whether mounted is the device itself or one of its
// partition nodes (sda -> sda1, nvme0n1 -> nvme0n1p1). The partition suffix
// check keeps /dev/sda from matching /dev/sdab.
func deviceMatches(device, mounted string) bool {
	if mounted == device {
		return true
	}
	if !strings.HasPrefix(mounted, device) {
		return false
	}
	rest := mounted[len(device):]
	if rest == "" {
		return true
	}
	if rest[0] >= '0' && rest[0] <= '9' {
		return true
	}
	return len(rest) > 1 && rest[0] == 'p' && rest[1] >= '0' && rest[1] <= '9'
}

// UDisks2 encodes device paths as NUL-terminated byte arrays.
func byteVariantString(v dbus.Variant) string {
	if data, ok := v.Value().([]byte); ok {
		return strings.TrimRight(string(data), "\x00")
	}
	return ""
}
