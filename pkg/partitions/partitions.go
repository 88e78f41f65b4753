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

// Package partitions reads partition tables from block devices and disk
// images. It works on any io.ReaderAt so the same code path covers live
// devices and image files, and it never writes to the underlying media.
package partitions

import (
	"fmt"
	"io"
	"strings"
)

// Arch identifies a partition table layout.
type Arch string

// Supported partition table layouts.
const (
	// ArchAuto selects the layout by probing the media.
	ArchAuto Arch = "auto"
	// ArchIntel is the classic MBR table with EBR chains for logicals.
	ArchIntel Arch = "intel"
	// ArchGPT is the EFI GUID partition table.
	ArchGPT Arch = "gpt"
	// ArchMac is the Apple partition map.
	ArchMac Arch = "mac"
	// ArchSun is the Sun/Solaris disklabel.
	ArchSun Arch = "sun"
	// ArchXbox is the fixed layout used by original Xbox drives.
	ArchXbox Arch = "xbox"
	// ArchNone treats the whole media as a single partition.
	ArchNone Arch = "none"
)

// Archs returns the selectable partition table layouts, excluding auto.
func Archs() []Arch {
	return []Arch{ArchIntel, ArchGPT, ArchMac, ArchSun, ArchXbox, ArchNone}
}

// ParseArch converts a string to an Arch. An empty string selects auto
// detection.
func ParseArch(s string) (Arch, error) {
	switch Arch(strings.ToLower(strings.TrimSpace(s))) {
	case "", ArchAuto:
		return ArchAuto, nil
	case ArchIntel:
		return ArchIntel, nil
	case ArchGPT:
		return ArchGPT, nil
	case ArchMac:
		return ArchMac, nil
	case ArchSun:
		return ArchSun, nil
	case ArchXbox:
		return ArchXbox, nil
	case ArchNone:
		return ArchNone, nil
	default:
		return "", fmt.Errorf("unknown partition table arch: %q", s)
	}
}

// Status reflects whether a partition's contents could be read and
// recognized during the scan.
type Status string

// Partition statuses.
const (
	// StatusUnknown means the first sectors were readable but no known
	// filesystem was recognized.
	StatusUnknown Status = "unknown"
	// StatusOK means the first sectors were readable and a filesystem
	// was recognized.
	StatusOK Status = "ok"
	// StatusUnreadable means the partition's first sectors could not be
	// read at all.
	StatusUnreadable Status = "unreadable"
)

// Partition is one partition table entry, sizes and offsets in bytes.
type Partition struct {
	Name       string `json:"name"`
	Filesystem string `json:"filesystem"`
	Role       string `json:"role"`
	Status     Status `json:"status"`
	Offset     uint64 `json:"offset"`
	Size       uint64 `json:"size"`
	Order      int    `json:"order"`
}

// Partition roles within a table.
const (
	RolePrimary     = "Primary"
	RolePrimaryBoot = "Primary Boot"
	RoleLogical     = "Logical"
	RoleExtended    = "Extended"
)

// Table is the result of scanning one device or image.
type Table struct {
	Arch       Arch        `json:"arch"`
	Partitions []Partition `json:"partitions"`
}

// Scan reads the partition table of the media behind r. size is the total
// media size in bytes and sectorSize its logical sector size (0 defaults
// to 512). arch forces a specific table layout; ArchAuto probes for one.
//
// Partitions are returned in on-disk table order with contiguous Order
// values starting at 0. Each partition's first sectors are probed to fill
// Filesystem and Status; probe failures degrade the partition's Status,
// never the whole scan.
func Scan(r io.ReaderAt, size uint64, sectorSize uint32, arch Arch) (*Table, error) {
	if sectorSize == 0 {
		sectorSize = 512
	}
	if size < uint64(sectorSize) {
		return nil, fmt.Errorf("media too small to hold a partition table: %d bytes", size)
	}

	if arch == ArchAuto || arch == "" {
		detected, err := DetectArch(r, size, sectorSize)
		if err != nil {
			return nil, err
		}
		arch = detected
	}

	var (
		parts []Partition
		err   error
	)
	switch arch {
	case ArchIntel:
		parts, err = scanIntel(r, size, sectorSize)
	case ArchGPT:
		parts, err = scanGPT(r, size, sectorSize)
	case ArchMac:
		parts, err = scanMac(r, size)
	case ArchSun:
		parts, err = scanSun(r, size)
	case ArchXbox:
		parts = scanXbox(size)
	case ArchNone:
		parts = []Partition{{
			Name:   "whole-disk",
			Role:   RolePrimary,
			Offset: 0,
			Size:   size,
		}}
	case ArchAuto:
		// DetectArch never returns auto
		return nil, fmt.Errorf("unresolved partition table arch")
	default:
		return nil, fmt.Errorf("unsupported partition table arch: %q", arch)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s partition table: %w", arch, err)
	}

	for i := range parts {
		parts[i].Order = i
		probePartition(r, size, &parts[i])
	}

	return &Table{Arch: arch, Partitions: parts}, nil
}

// DetectArch probes the media for a recognizable partition table layout.
// Media with a bare filesystem at offset 0, or nothing recognizable at
// all, detect as ArchNone.
func DetectArch(r io.ReaderAt, size uint64, sectorSize uint32) (Arch, error) {
	if sectorSize == 0 {
		sectorSize = 512
	}

	sector := make([]byte, 512)
	if _, err := r.ReadAt(sector, 0); err != nil {
		return "", fmt.Errorf("failed to read first sector: %w", err)
	}

	if hasGPTHeader(r, size, sectorSize) {
		return ArchGPT, nil
	}

	// A filesystem written directly to the media (no table at all) can
	// carry an MBR-style boot signature, so the filesystem check must
	// run before the MBR one.
	if fs := sniffAt(r, size, 0); fs != "" {
		return ArchNone, nil
	}

	if hasMBRSignature(sector) && hasUsableMBREntry(sector) {
		return ArchIntel, nil
	}

	if hasAPMEntry(r, size) {
		return ArchMac, nil
	}

	if hasSunLabel(sector) {
		return ArchSun, nil
	}

	if hasXboxLayout(r, size) {
		return ArchXbox, nil
	}

	return ArchNone, nil
}

// SniffFilesystem identifies a filesystem written at the start of the
// media, returning an empty string when none is recognized.
func SniffFilesystem(r io.ReaderAt, size uint64) string {
	return sniffAt(r, size, 0)
}
