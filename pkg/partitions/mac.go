// Reclaim Core
// Copyright (c) 2026 The Reclaim Project Contributors.
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
	"encoding/binary"
	"fmt"
	"io"
)

// The Apple partition map stores one 512-byte entry per partition
// starting at block 1, each tagged "PM". Block 0 holds the driver
// descriptor map tagged "ER". All multi-byte fields are big endian.
const (
	apmBlockSize  = 512
	apmEntryMagic = 0x504d // "PM"
	apmMaxEntries = 63
)

// apmTypeHints maps Apple partition type strings to filesystem names.
var apmTypeHints = map[string]string{
	"Apple_HFS":  "hfs+",
	"Apple_HFSX": "hfs+",
	"Apple_UFS":  "ufs",
	"Apple_Free": "free",
}

func hasAPMEntry(r io.ReaderAt, size uint64) bool {
	if size < 2*apmBlockSize {
		return false
	}
	entry := make([]byte, apmBlockSize)
	if _, err := r.ReadAt(entry, apmBlockSize); err != nil {
		return false
	}
	return binary.BigEndian.Uint16(entry[0:2]) == apmEntryMagic
}

func scanMac(r io.ReaderAt, size uint64) ([]Partition, error) {
	if size < 2*apmBlockSize {
		return nil, nil
	}

	entry := make([]byte, apmBlockSize)
	if _, err := r.ReadAt(entry, apmBlockSize); err != nil {
		return nil, fmt.Errorf("failed to read Apple partition map: %w", err)
	}
	if binary.BigEndian.Uint16(entry[0:2]) != apmEntryMagic {
		return nil, nil
	}

	// Every entry repeats the total map entry count.
	count := binary.BigEndian.Uint32(entry[4:8])
	if count == 0 || count > apmMaxEntries {
		return nil, nil
	}

	var parts []Partition
	for i := uint32(0); i < count; i++ {
		if i > 0 {
			if _, err := r.ReadAt(entry, int64(apmBlockSize*(1+i))); err != nil {
				return parts, nil
			}
			if binary.BigEndian.Uint16(entry[0:2]) != apmEntryMagic {
				return parts, nil
			}
		}

		startBlock := uint64(binary.BigEndian.Uint32(entry[8:12]))
		blockCount := uint64(binary.BigEndian.Uint32(entry[12:16]))
		if blockCount == 0 {
			continue
		}

		name := cString(entry[16:48])
		ptype := cString(entry[48:80])
		if name == "" {
			name = fmt.Sprintf("p%d", i+1)
		}

		parts = append(parts, Partition{
			Name:       name,
			Filesystem: apmTypeHints[ptype],
			Role:       RolePrimary,
			Offset:     startBlock * apmBlockSize,
			Size:       blockCount * apmBlockSize,
		})
	}

	return parts, nil
}

// cString trims a fixed-size NUL-padded field to a Go string.
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
