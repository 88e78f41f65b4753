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

package partitions

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	mbrEntriesOffset  = 446
	mbrEntrySize      = 16
	mbrEntryCount     = 4
	mbrSignatureLow   = 510
	mbrSignatureHigh  = 511
	mbrBootFlag       = 0x80
	ebrChainMaxLength = 128
)

// Partition type bytes that mark an extended container.
func isExtendedType(t byte) bool {
	return t == 0x05 || t == 0x0f || t == 0x85
}

// mbrTypeHints maps well-known MBR partition type bytes to filesystem
// names. Ambiguous types (0x07, 0x83, ...) are left out and rely on the
// content probe instead.
var mbrTypeHints = map[byte]string{
	0x01: "fat12",
	0x04: "fat16",
	0x06: "fat16",
	0x0b: "fat32",
	0x0c: "fat32",
	0x0e: "fat16",
	0x82: "swap",
	0xaf: "hfs+",
}

func hasMBRSignature(sector []byte) bool {
	return len(sector) > mbrSignatureHigh &&
		sector[mbrSignatureLow] == 0x55 && sector[mbrSignatureHigh] == 0xaa
}

// hasUsableMBREntry reports whether at least one of the four primary
// slots describes a partition with a nonzero start and length. Boot
// sectors of bare filesystems carry the 0x55aa signature too, but their
// entry area holds code or zeros that fails this check.
func hasUsableMBREntry(sector []byte) bool {
	for slot := 0; slot < mbrEntryCount; slot++ {
		entry := sector[mbrEntriesOffset+slot*mbrEntrySize:]
		ptype := entry[4]
		if ptype == 0 {
			continue
		}
		start := binary.LittleEndian.Uint32(entry[8:12])
		length := binary.LittleEndian.Uint32(entry[12:16])
		if start > 0 && length > 0 {
			return true
		}
	}
	return false
}

func scanIntel(r io.ReaderAt, size uint64, sectorSize uint32) ([]Partition, error) {
	sector := make([]byte, 512)
	if _, err := r.ReadAt(sector, 0); err != nil {
		return nil, fmt.Errorf("failed to read MBR: %w", err)
	}
	if !hasMBRSignature(sector) {
		return nil, nil
	}

	ss := uint64(sectorSize)
	var parts []Partition
	logicalIndex := mbrEntryCount + 1

	for slot := 0; slot < mbrEntryCount; slot++ {
		entry := sector[mbrEntriesOffset+slot*mbrEntrySize:]
		ptype := entry[4]
		if ptype == 0 {
			continue
		}
		startLBA := uint64(binary.LittleEndian.Uint32(entry[8:12]))
		lengthLBA := uint64(binary.LittleEndian.Uint32(entry[12:16]))
		if lengthLBA == 0 {
			continue
		}

		if isExtendedType(ptype) {
			parts = append(parts, Partition{
				Name:   fmt.Sprintf("p%d", slot+1),
				Role:   RoleExtended,
				Offset: startLBA * ss,
				Size:   lengthLBA * ss,
			})
			logicals, err := walkExtended(r, startLBA*ss, ss, &logicalIndex)
			if err != nil {
				return nil, err
			}
			parts = append(parts, logicals...)
			continue
		}

		role := RolePrimary
		if entry[0]&mbrBootFlag != 0 {
			role = RolePrimaryBoot
		}
		parts = append(parts, Partition{
			Name:       fmt.Sprintf("p%d", slot+1),
			Filesystem: mbrTypeHints[ptype],
			Role:       role,
			Offset:     startLBA * ss,
			Size:       lengthLBA * ss,
		})
	}

	return parts, nil
}

// walkExtended follows the EBR chain inside an extended partition. The
// first entry of each EBR describes a logical partition relative to that
// EBR, the second entry links to the next EBR relative to the start of
// the extended partition.
func walkExtended(r io.ReaderAt, extStart uint64, ss uint64, index *int) ([]Partition, error) {
	var parts []Partition
	ebrOffset := extStart
	sector := make([]byte, 512)

	for hop := 0; hop < ebrChainMaxLength; hop++ {
		if _, err := r.ReadAt(sector, int64(ebrOffset)); err != nil {
			// A truncated or damaged chain ends the walk, it does
			// not invalidate the primaries already parsed.
			return parts, nil
		}
		if !hasMBRSignature(sector) {
			return parts, nil
		}

		logical := sector[mbrEntriesOffset:]
		ptype := logical[4]
		startLBA := uint64(binary.LittleEndian.Uint32(logical[8:12]))
		lengthLBA := uint64(binary.LittleEndian.Uint32(logical[12:16]))
		if ptype != 0 && lengthLBA > 0 {
			parts = append(parts, Partition{
				Name:       fmt.Sprintf("p%d", *index),
				Filesystem: mbrTypeHints[ptype],
				Role:       RoleLogical,
				Offset:     ebrOffset + startLBA*ss,
				Size:       lengthLBA * ss,
			})
			*index++
		}

		next := sector[mbrEntriesOffset+mbrEntrySize:]
		nextType := next[4]
		nextLBA := uint64(binary.LittleEndian.Uint32(next[8:12]))
		if nextType == 0 || nextLBA == 0 {
			return parts, nil
		}
		ebrOffset = extStart + nextLBA*ss
	}

	return parts, nil
}
