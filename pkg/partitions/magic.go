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
	"encoding/binary"
	"io"
)

// sniffSize covers the deepest magic offset probed below, the btrfs
// superblock at 64 KiB.
const sniffSize = 68 * 1024

// fsMagic matches a fixed byte sequence at a fixed offset from the
// start of a partition.
type fsMagic struct {
	name   string
	magic  []byte
	offset int64
}

// fsMagics are checked in order, most specific first. Filesystems that
// need more than a byte comparison (ext variants, swap page sizes) are
// handled separately in sniffFilesystem.
var fsMagics = []fsMagic{
	{name: "btrfs", magic: []byte("_BHRfS_M"), offset: 0x10040},
	{name: "xfs", magic: []byte("XFSB"), offset: 0},
	{name: "ntfs", magic: []byte("NTFS    "), offset: 3},
	{name: "exfat", magic: []byte("EXFAT   "), offset: 3},
	{name: "fat32", magic: []byte("FAT32   "), offset: 82},
	{name: "fat16", magic: []byte("FAT16   "), offset: 54},
	{name: "fat12", magic: []byte("FAT12   "), offset: 54},
	{name: "fatx", magic: []byte("FATX"), offset: 0},
	{name: "luks", magic: []byte{'L', 'U', 'K', 'S', 0xba, 0xbe}, offset: 0},
	{name: "iso9660", magic: []byte("CD001"), offset: 32769},
	{name: "hfs+", magic: []byte("H+"), offset: 1024},
	{name: "hfs+", magic: []byte("HX"), offset: 1024},
	{name: "apfs", magic: []byte("NXSB"), offset: 32},
}

const (
	extSuperblockOffset = 1024
	extMagic            = 0xef53

	// ext superblock feature flags used to tell the variants apart.
	extCompatHasJournal = 0x0004
	extIncompatExtents  = 0x0040
	extIncompat64Bit    = 0x0080

	f2fsMagic            = 0xf2f52010
	f2fsSuperblockOffset = 1024
)

// sniffFilesystem identifies the filesystem at the start of buf, which
// holds the first bytes of a partition. Returns an empty string when
// nothing is recognized.
func sniffFilesystem(buf []byte) string {
	if fs := extVariant(buf); fs != "" {
		return fs
	}

	if len(buf) >= f2fsSuperblockOffset+4 &&
		binary.LittleEndian.Uint32(buf[f2fsSuperblockOffset:]) == f2fsMagic {
		return "f2fs"
	}

	// The swap signature sits at the end of the first page, so its
	// offset depends on the page size of the machine that made it.
	for _, pageSize := range []int{4096, 8192} {
		off := pageSize - 10
		if len(buf) < off+10 {
			continue
		}
		tag := buf[off : off+10]
		if bytes.Equal(tag, []byte("SWAPSPACE2")) || bytes.Equal(tag, []byte("SWAP-SPACE")) {
			return "swap"
		}
	}

	for _, m := range fsMagics {
		end := m.offset + int64(len(m.magic))
		if int64(len(buf)) < end {
			continue
		}
		if bytes.Equal(buf[m.offset:end], m.magic) {
			return m.name
		}
	}

	return ""
}

// extVariant distinguishes ext2, ext3 and ext4 by superblock feature
// flags: extents (or 64bit) means ext4, a journal without extents means
// ext3, neither means ext2.
func extVariant(buf []byte) string {
	if len(buf) < extSuperblockOffset+100 {
		return ""
	}
	sb := buf[extSuperblockOffset:]
	if binary.LittleEndian.Uint16(sb[56:]) != extMagic {
		return ""
	}
	compat := binary.LittleEndian.Uint32(sb[92:])
	incompat := binary.LittleEndian.Uint32(sb[96:])

	switch {
	case incompat&(extIncompatExtents|extIncompat64Bit) != 0:
		return "ext4"
	case compat&extCompatHasJournal != 0:
		return "ext3"
	default:
		return "ext2"
	}
}

// sniffAt reads the probe window at the given offset and identifies the
// filesystem there. Read failures return an empty string.
func sniffAt(r io.ReaderAt, size uint64, offset uint64) string {
	if offset >= size {
		return ""
	}
	want := uint64(sniffSize)
	if remaining := size - offset; remaining < want {
		want = remaining
	}
	buf := make([]byte, want)
	n, err := r.ReadAt(buf, int64(offset))
	if err != nil && n == 0 {
		return ""
	}
	return sniffFilesystem(buf[:n])
}

// probePartition reads the first bytes of a partition to identify its
// filesystem and set its status. A recognized filesystem overrides any
// hint taken from the table entry's type field; with neither, the
// filesystem is reported as unknown.
func probePartition(r io.ReaderAt, size uint64, p *Partition) {
	defer func() {
		if p.Filesystem == "" {
			p.Filesystem = "unknown"
		}
	}()

	if p.Size == 0 || p.Offset >= size {
		p.Status = StatusUnreadable
		return
	}

	want := uint64(sniffSize)
	if p.Size < want {
		want = p.Size
	}
	if remaining := size - p.Offset; remaining < want {
		want = remaining
	}

	buf := make([]byte, want)
	n, err := r.ReadAt(buf, int64(p.Offset))
	if err != nil && n == 0 {
		p.Status = StatusUnreadable
		return
	}

	if fs := sniffFilesystem(buf[:n]); fs != "" {
		p.Filesystem = fs
		p.Status = StatusOK
		return
	}
	p.Status = StatusUnknown
}
