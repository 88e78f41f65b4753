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
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// Binding is an exclusive read-only handle on a device or image file, held
// by a recovery context for its lifetime. The advisory flock keeps two
// contexts (or two service instances) off the same media.
type Binding struct {
	f      *os.File
	device string
}

// OpenExclusive opens the device read-only and takes a non-blocking
// exclusive flock on it. A device locked elsewhere returns ErrDeviceBusy.
func OpenExclusive(device string) (*Binding, error) {
	fd, err := openNonblock(device)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", device, err)
	}
	f := os.NewFile(uintptr(fd), device)

	if err := flock(f, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s is locked by another process", ErrDeviceBusy, device)
		}
		return nil, fmt.Errorf("locking %s: %w", device, err)
	}

	return &Binding{f: f, device: device}, nil
}

// OpenReadOnly opens the device without taking a lock, for non-destructive
// scans that must not conflict with an existing binding.
func OpenReadOnly(device string) (*os.File, error) {
	fd, err := openNonblock(device)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", device, err)
	}
	return os.NewFile(uintptr(fd), device), nil
}

// Device returns the bound device path.
func (b *Binding) Device() string {
	return b.device
}

// ReaderAt exposes the underlying handle for partition scanning.
func (b *Binding) ReaderAt() io.ReaderAt {
	return b.f
}

// Size returns the media size in bytes and its sector size. Regular files
// report their stat size with 512-byte sectors; block devices are asked via
// ioctl.
func (b *Binding) Size() (uint64, uint32, error) {
	return fileSize(b.f)
}

// Close releases the lock and the handle. Safe to call once per binding.
func (b *Binding) Close() error {
	if err := flock(b.f, unix.LOCK_UN); err != nil {
		_ = b.f.Close()
		return fmt.Errorf("unlocking %s: %w", b.device, err)
	}
	if err := b.f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", b.device, err)
	}
	return nil
}

func openNonblock(path string) (int, error) {
	for {
		fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC|unix.O_NONBLOCK, 0)
		if err == nil {
			return fd, nil
		}
		if !errors.Is(err, unix.EINTR) {
			return -1, err
		}
	}
}

// flock retries on EINTR, which flock(2) can return under signal load.
func flock(f *os.File, how int) error {
	for {
		err := unix.Flock(int(f.Fd()), how)
		if !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}

func fileSize(f *os.File) (uint64, uint32, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, 0, fmt.Errorf("stat %s: %w", f.Name(), err)
	}
	if info.Mode().IsRegular() {
		return uint64(info.Size()), 512, nil
	}
	return blockDeviceSize(f)
}

// probeDeviceSize opens a device just long enough to read its size.
func probeDeviceSize(device string) (uint64, uint32, error) {
	f, err := OpenReadOnly(device)
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = f.Close() }()
	return fileSize(f)
}
