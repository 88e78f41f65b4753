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
	"bytes"
	"io"
)

// Original Xbox drives carry no on-disk partition table. The retail
// layout is hardcoded in the kernel, with FATX filesystems at fixed
// byte offsets. The data partition extends to the end of the drive.
var xboxLayout = []struct {
	name   string
	offset uint64
	size   uint64
}{
	{"cache-x", 0x00080000, 0x2ee00000},
	{"cache-y", 0x2ee80000, 0x2ee00000},
	{"cache-z", 0x5dc80000, 0x2ee00000},
	{"system", 0x8ca80000, 0x1f400000},
	{"data", 0xabe80000, 0},
}

var fatxMagic = []byte("FATX")

func hasXboxLayout(r io.ReaderAt, size uint64) bool {
	system := xboxLayout[3]
	if size < system.offset+system.size {
		return false
	}
	magic := make([]byte, 4)
	if _, err := r.ReadAt(magic, int64(system.offset)); err != nil {
		return false
	}
	return bytes.Equal(magic, fatxMagic)
}

func scanXbox(size uint64) []Partition {
	var parts []Partition
	for _, entry := range xboxLayout {
		if entry.offset >= size {
			continue
		}
		psize := entry.size
		if psize == 0 || entry.offset+psize > size {
			psize = size - entry.offset
		}
		parts = append(parts, Partition{
			Name:       entry.name,
			Filesystem: "fatx",
			Role:       RolePrimary,
			Offset:     entry.offset,
			Size:       psize,
		})
	}
	return parts
}
