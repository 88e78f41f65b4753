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

// The Sun disklabel lives in the first 512 bytes. Partition starts are
// recorded in cylinders, so the geometry fields are needed to convert
// them to byte offsets. All multi-byte fields are big endian.
const (
	sunLabelSize        = 512
	sunMagic            = 0xdabe
	sunMagicOffset      = 508
	sunTracksOffset     = 436
	sunSectorsOffset    = 438
	sunPartitionsOffset = 444
	sunPartitionCount   = 8
	sunSectorSize       = 512
)

func hasSunLabel(sector []byte) bool {
	if len(sector) < sunLabelSize {
		return false
	}
	if binary.BigEndian.Uint16(sector[sunMagicOffset:]) != sunMagic {
		return false
	}
	// The label checksum XORs all 256 big-endian words to zero.
	var sum uint16
	for i := 0; i < sunLabelSize; i += 2 {
		sum ^= binary.BigEndian.Uint16(sector[i:])
	}
	return sum == 0
}

func scanSun(r io.ReaderAt, size uint64) ([]Partition, error) {
	sector := make([]byte, sunLabelSize)
	if _, err := r.ReadAt(sector, 0); err != nil {
		return nil, fmt.Errorf("failed to read Sun disklabel: %w", err)
	}
	if !hasSunLabel(sector) {
		return nil, nil
	}

	tracks := uint64(binary.BigEndian.Uint16(sector[sunTracksOffset:]))
	sectors := uint64(binary.BigEndian.Uint16(sector[sunSectorsOffset:]))
	if tracks == 0 || sectors == 0 {
		return nil, nil
	}
	cylinderSize := tracks * sectors * sunSectorSize

	var parts []Partition
	for i := 0; i < sunPartitionCount; i++ {
		entry := sector[sunPartitionsOffset+i*8:]
		startCylinder := uint64(binary.BigEndian.Uint32(entry[0:4]))
		numSectors := uint64(binary.BigEndian.Uint32(entry[4:8]))
		if numSectors == 0 {
			continue
		}

		parts = append(parts, Partition{
			Name:   fmt.Sprintf("p%d", i+1),
			Role:   RolePrimary,
			Offset: startCylinder * cylinderSize,
			Size:   numSectors * sunSectorSize,
		})
	}

	return parts, nil
}
