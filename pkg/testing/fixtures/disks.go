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

// Package fixtures builds realistic disk image fixtures for tests,
// byte-exact partition tables included.
package fixtures

import (
	"encoding/binary"
	"hash/crc32"
	"io"
	"unicode/utf16"
)

// MBRPartition describes one primary slot for BuildMBRImage.
type MBRPartition struct {
	Type     byte
	Boot     bool
	StartLBA uint32
	Sectors  uint32
}

// BuildMBRImage returns a disk image of the given size with an MBR
// partition table holding up to four primary entries.
func BuildMBRImage(size uint64, parts []MBRPartition) []byte {
	img := make([]byte, size)
	for i, p := range parts {
		if i >= 4 {
			break
		}
		entry := img[446+i*16:]
		if p.Boot {
			entry[0] = 0x80
		}
		entry[4] = p.Type
		binary.LittleEndian.PutUint32(entry[8:12], p.StartLBA)
		binary.LittleEndian.PutUint32(entry[12:16], p.Sectors)
	}
	img[510] = 0x55
	img[511] = 0xaa
	return img
}

// WriteEBR writes an extended boot record at the given LBA. logicalStart
// is relative to the EBR itself, nextStart is relative to the start of
// the extended partition; nextStart zero terminates the chain.
func WriteEBR(img []byte, ebrLBA uint32, logicalType byte, logicalStart, logicalSectors, nextStart, nextSectors uint32) {
	off := int(ebrLBA) * 512
	sector := img[off : off+512]

	entry := sector[446:]
	entry[4] = logicalType
	binary.LittleEndian.PutUint32(entry[8:12], logicalStart)
	binary.LittleEndian.PutUint32(entry[12:16], logicalSectors)

	if nextStart != 0 {
		next := sector[462:]
		next[4] = 0x05
		binary.LittleEndian.PutUint32(next[8:12], nextStart)
		binary.LittleEndian.PutUint32(next[12:16], nextSectors)
	}

	sector[510] = 0x55
	sector[511] = 0xaa
}

// GPTPartition describes one entry for BuildGPTImage.
type GPTPartition struct {
	Name     string
	StartLBA uint64
	EndLBA   uint64
}

// Linux filesystem data, used as the type GUID of generated entries.
var gptLinuxTypeGUID = [16]byte{
	0xaf, 0x3d, 0xc6, 0x0f, 0x83, 0x84, 0x72, 0x47,
	0x8e, 0x79, 0x3d, 0x69, 0xd8, 0x47, 0x7d, 0xe4,
}

// BuildGPTImage returns a disk image with a valid GPT: protective MBR,
// primary header and entries, and a backup copy at the end of the disk.
// All checksums are computed so the table parses as written.
func BuildGPTImage(size uint64, sectorSize uint32, parts []GPTPartition) []byte {
	img := make([]byte, size)
	ss := uint64(sectorSize)
	lastLBA := size/ss - 1
	entriesBytes := uint64(128 * 128)
	entriesSectors := entriesBytes / ss
	firstUsable := 2 + entriesSectors
	lastUsable := lastLBA - 1 - entriesSectors

	// Protective MBR covering the whole disk.
	pmbr := img[446:]
	pmbr[4] = 0xee
	binary.LittleEndian.PutUint32(pmbr[8:12], 1)
	binary.LittleEndian.PutUint32(pmbr[12:16], uint32(lastLBA))
	img[510] = 0x55
	img[511] = 0xaa

	entries := make([]byte, entriesBytes)
	for i, p := range parts {
		entry := entries[i*128:]
		copy(entry[0:16], gptLinuxTypeGUID[:])
		entry[16] = byte(i + 1) // unique GUID just needs to be nonzero
		binary.LittleEndian.PutUint64(entry[32:40], p.StartLBA)
		binary.LittleEndian.PutUint64(entry[40:48], p.EndLBA)
		for j, u := range utf16.Encode([]rune(p.Name)) {
			if j >= 36 {
				break
			}
			binary.LittleEndian.PutUint16(entry[56+j*2:], u)
		}
	}
	entriesCRC := crc32.ChecksumIEEE(entries)

	writeHeader := func(myLBA, altLBA, entriesLBA uint64) {
		hdr := make([]byte, 92)
		binary.LittleEndian.PutUint64(hdr[0:8], 0x5452415020494645)
		binary.LittleEndian.PutUint32(hdr[8:12], 0x00010000)
		binary.LittleEndian.PutUint32(hdr[12:16], 92)
		binary.LittleEndian.PutUint64(hdr[24:32], myLBA)
		binary.LittleEndian.PutUint64(hdr[32:40], altLBA)
		binary.LittleEndian.PutUint64(hdr[40:48], firstUsable)
		binary.LittleEndian.PutUint64(hdr[48:56], lastUsable)
		hdr[56] = 0xd1 // disk GUID only needs to be stable
		binary.LittleEndian.PutUint64(hdr[72:80], entriesLBA)
		binary.LittleEndian.PutUint32(hdr[80:84], 128)
		binary.LittleEndian.PutUint32(hdr[84:88], 128)
		binary.LittleEndian.PutUint32(hdr[88:92], entriesCRC)
		binary.LittleEndian.PutUint32(hdr[16:20], crc32.ChecksumIEEE(hdr))
		copy(img[myLBA*ss:], hdr)
	}

	copy(img[2*ss:], entries)
	writeHeader(1, lastLBA, 2)

	backupEntriesLBA := lastLBA - entriesSectors
	copy(img[backupEntriesLBA*ss:], entries)
	writeHeader(lastLBA, 1, backupEntriesLBA)

	return img
}

// CorruptGPTPrimary damages the primary GPT header so only the backup
// copy at the last sector stays valid.
func CorruptGPTPrimary(img []byte, sectorSize uint32) {
	img[sectorSize] ^= 0xff
}

// APMPartition describes one entry for BuildAPMImage.
type APMPartition struct {
	Name       string
	Type       string
	StartBlock uint32
	Blocks     uint32
}

// BuildAPMImage returns a disk image with an Apple partition map.
func BuildAPMImage(size uint64, parts []APMPartition) []byte {
	img := make([]byte, size)
	img[0] = 'E'
	img[1] = 'R'
	for i, p := range parts {
		entry := img[512*(1+i):]
		binary.BigEndian.PutUint16(entry[0:2], 0x504d)
		binary.BigEndian.PutUint32(entry[4:8], uint32(len(parts)))
		binary.BigEndian.PutUint32(entry[8:12], p.StartBlock)
		binary.BigEndian.PutUint32(entry[12:16], p.Blocks)
		copy(entry[16:48], p.Name)
		copy(entry[48:80], p.Type)
	}
	return img
}

// SunPartition describes one slot for BuildSunImage.
type SunPartition struct {
	StartCylinder uint32
	NumSectors    uint32
}

// BuildSunImage returns a disk image with a Sun disklabel using the
// given geometry. The label checksum is balanced so the XOR of all
// words is zero.
func BuildSunImage(size uint64, tracks, sectors uint16, parts []SunPartition) []byte {
	img := make([]byte, size)
	label := img[:512]
	binary.BigEndian.PutUint16(label[436:], tracks)
	binary.BigEndian.PutUint16(label[438:], sectors)
	for i, p := range parts {
		if i >= 8 {
			break
		}
		entry := label[444+i*8:]
		binary.BigEndian.PutUint32(entry[0:4], p.StartCylinder)
		binary.BigEndian.PutUint32(entry[4:8], p.NumSectors)
	}
	binary.BigEndian.PutUint16(label[508:], 0xdabe)

	var sum uint16
	for i := 0; i < 510; i += 2 {
		sum ^= binary.BigEndian.Uint16(label[i:])
	}
	binary.BigEndian.PutUint16(label[510:], sum)
	return img
}

// SparseImage is an io.ReaderAt that materializes only the regions
// written to it. Reads outside those regions return zeros, so tests can
// model multi-gigabyte disks without allocating them.
type SparseImage struct {
	regions map[uint64][]byte
	size    uint64
}

// NewSparseImage returns an all-zero sparse image of the given size.
func NewSparseImage(size uint64) *SparseImage {
	return &SparseImage{regions: make(map[uint64][]byte), size: size}
}

// Set places data at the given offset.
func (s *SparseImage) Set(offset uint64, data []byte) {
	s.regions[offset] = append([]byte(nil), data...)
}

// Size returns the size of the image in bytes.
func (s *SparseImage) Size() uint64 {
	return s.size
}

// ReadAt implements io.ReaderAt with standard short-read semantics at
// the end of the image.
func (s *SparseImage) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || uint64(off) >= s.size {
		return 0, io.EOF
	}
	n := len(p)
	var rerr error
	if uint64(off)+uint64(n) > s.size {
		n = int(s.size - uint64(off))
		rerr = io.EOF
	}
	for i := 0; i < n; i++ {
		p[i] = 0
	}
	for start, data := range s.regions {
		end := start + uint64(len(data))
		lo := uint64(off)
		hi := uint64(off) + uint64(n)
		if end <= lo || start >= hi {
			continue
		}
		from := uint64(0)
		to := lo
		if start > lo {
			to = start
		} else {
			from = lo - start
		}
		copy(p[to-lo:n], data[from:])
	}
	return n, rerr
}

// BuildXboxSparse returns a sparse image with FATX magic at the fixed
// retail offsets an Xbox drive uses.
func BuildXboxSparse(size uint64) *SparseImage {
	img := NewSparseImage(size)
	for _, off := range []uint64{0x00080000, 0x2ee80000, 0x5dc80000, 0x8ca80000, 0xabe80000} {
		if off+4 <= size {
			img.Set(off, []byte("FATX"))
		}
	}
	return img
}

// StampExt writes an ext superblock magic and feature flags at the
// given partition offset. variant selects 2, 3 or 4.
func StampExt(img []byte, offset uint64, variant int) {
	sb := img[offset+1024:]
	binary.LittleEndian.PutUint16(sb[56:], 0xef53)
	switch variant {
	case 3:
		binary.LittleEndian.PutUint32(sb[92:], 0x0004)
	case 4:
		binary.LittleEndian.PutUint32(sb[92:], 0x0004)
		binary.LittleEndian.PutUint32(sb[96:], 0x0040)
	}
}

// StampNTFS writes the NTFS boot sector OEM string at the given offset.
func StampNTFS(img []byte, offset uint64) {
	copy(img[offset+3:], "NTFS    ")
}

// StampFAT32 writes the FAT32 boot sector type string at the given
// offset.
func StampFAT32(img []byte, offset uint64) {
	copy(img[offset+82:], "FAT32   ")
}

// StampXFS writes the XFS superblock magic at the given offset.
func StampXFS(img []byte, offset uint64) {
	copy(img[offset:], "XFSB")
}

// StampSwap writes a Linux swap signature for a 4 KiB page size at the
// given offset.
func StampSwap(img []byte, offset uint64) {
	copy(img[offset+4096-10:], "SWAPSPACE2")
}
