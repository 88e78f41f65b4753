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
	"fmt"
	"hash/crc32"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/unicode/norm"
)

const (
	// "EFI PART" read as a little-endian uint64.
	gptSignature uint64 = 0x5452415020494645

	gptHeaderSize = 92
	gptEntrySize  = 128
	gptMaxEntries = 128

	gptNameOffset = 56
	gptNameSize   = 72
)

// gptHeader holds the validated fields of a GPT header.
// Fields are ordered for optimal memory alignment.
type gptHeader struct {
	currentLBA     uint64
	alternateLBA   uint64
	firstUsableLBA uint64
	lastUsableLBA  uint64
	entriesLBA     uint64
	entryCount     uint32
	entrySize      uint32
	entriesCRC     uint32
}

// hasGPTHeader reports whether the media carries a valid primary or
// backup GPT header.
func hasGPTHeader(r io.ReaderAt, size uint64, sectorSize uint32) bool {
	lastLBA := size/uint64(sectorSize) - 1
	if lastLBA < 2 {
		return false
	}
	if hdr, _, _ := readGPTHeader(r, 1, lastLBA, sectorSize); hdr != nil {
		return true
	}
	if hdr, _, _ := readGPTHeader(r, lastLBA, lastLBA, sectorSize); hdr != nil {
		return true
	}
	return false
}

func scanGPT(r io.ReaderAt, size uint64, sectorSize uint32) ([]Partition, error) {
	lastLBA := size/uint64(sectorSize) - 1
	if lastLBA < 2 {
		return nil, nil
	}

	hdr, entries, err := readGPTHeader(r, 1, lastLBA, sectorSize)
	if err != nil {
		return nil, err
	}
	if hdr == nil {
		// The primary header is damaged, fall back to the backup at
		// the last sector.
		hdr, entries, err = readGPTHeader(r, lastLBA, lastLBA, sectorSize)
		if err != nil {
			return nil, err
		}
	}
	if hdr == nil {
		return nil, nil
	}

	ss := uint64(sectorSize)
	var parts []Partition
	for i := uint32(0); i < hdr.entryCount; i++ {
		entry := entries[i*hdr.entrySize : (i+1)*hdr.entrySize]

		// An all-zero type GUID marks an unused slot.
		if isZero(entry[0:16]) {
			continue
		}

		startLBA := binary.LittleEndian.Uint64(entry[32:40])
		endLBA := binary.LittleEndian.Uint64(entry[40:48])
		if startLBA < hdr.firstUsableLBA || endLBA > hdr.lastUsableLBA || endLBA < startLBA {
			continue
		}

		name := decodeGPTName(entry[gptNameOffset : gptNameOffset+gptNameSize])
		if name == "" {
			name = fmt.Sprintf("p%d", i+1)
		}

		parts = append(parts, Partition{
			Name:   name,
			Role:   RolePrimary,
			Offset: startLBA * ss,
			Size:   (endLBA - startLBA + 1) * ss,
		})
	}

	return parts, nil
}

// readGPTHeader reads and validates the GPT header at the given LBA,
// returning it together with its checksummed entries array. A header
// that fails validation returns (nil, nil, nil) so the caller can try
// the backup copy; only read errors are returned.
func readGPTHeader(r io.ReaderAt, lba uint64, lastLBA uint64, sectorSize uint32) (*gptHeader, []byte, error) {
	buf := make([]byte, sectorSize)
	if _, err := r.ReadAt(buf, int64(lba*uint64(sectorSize))); err != nil {
		return nil, nil, fmt.Errorf("failed to read GPT header at LBA %d: %w", lba, err)
	}

	if binary.LittleEndian.Uint64(buf[0:8]) != gptSignature {
		return nil, nil, nil
	}

	headerSize := binary.LittleEndian.Uint32(buf[12:16])
	if headerSize < gptHeaderSize || uint64(headerSize) > uint64(sectorSize) {
		return nil, nil, nil
	}

	// The header checksum is computed with its own CRC field zeroed.
	headerCRC := binary.LittleEndian.Uint32(buf[16:20])
	scratch := make([]byte, headerSize)
	copy(scratch, buf[:headerSize])
	scratch[16], scratch[17], scratch[18], scratch[19] = 0, 0, 0, 0
	if crc32.ChecksumIEEE(scratch) != headerCRC {
		return nil, nil, nil
	}

	hdr := &gptHeader{
		currentLBA:     binary.LittleEndian.Uint64(buf[24:32]),
		alternateLBA:   binary.LittleEndian.Uint64(buf[32:40]),
		firstUsableLBA: binary.LittleEndian.Uint64(buf[40:48]),
		lastUsableLBA:  binary.LittleEndian.Uint64(buf[48:56]),
		entriesLBA:     binary.LittleEndian.Uint64(buf[72:80]),
		entryCount:     binary.LittleEndian.Uint32(buf[80:84]),
		entrySize:      binary.LittleEndian.Uint32(buf[84:88]),
		entriesCRC:     binary.LittleEndian.Uint32(buf[88:92]),
	}

	if hdr.currentLBA != lba {
		return nil, nil, nil
	}
	if hdr.firstUsableLBA > hdr.lastUsableLBA || hdr.lastUsableLBA > lastLBA {
		return nil, nil, nil
	}
	if hdr.entrySize != gptEntrySize {
		return nil, nil, nil
	}
	if hdr.entryCount == 0 || hdr.entryCount > gptMaxEntries {
		return nil, nil, nil
	}

	entries := make([]byte, uint64(hdr.entryCount)*uint64(hdr.entrySize))
	if _, err := r.ReadAt(entries, int64(hdr.entriesLBA*uint64(sectorSize))); err != nil {
		return nil, nil, fmt.Errorf("failed to read GPT entries at LBA %d: %w", hdr.entriesLBA, err)
	}
	if crc32.ChecksumIEEE(entries) != hdr.entriesCRC {
		return nil, nil, nil
	}

	return hdr, entries, nil
}

// decodeGPTName converts the fixed UTF-16LE name field to a normalized
// Go string.
func decodeGPTName(raw []byte) string {
	decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(raw)
	if err != nil {
		return ""
	}
	name := string(bytes.TrimRight(decoded, "\x00"))
	return norm.NFC.String(name)
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
