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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceMatches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		device  string
		mounted string
		want    bool
	}{
		{"exact", "/dev/sda", "/dev/sda", true},
		{"partition", "/dev/sda", "/dev/sda1", true},
		{"multi digit partition", "/dev/sda", "/dev/sda12", true},
		{"nvme partition", "/dev/nvme0n1", "/dev/nvme0n1p2", true},
		{"sibling device", "/dev/sda", "/dev/sdab", false},
		{"different device", "/dev/sda", "/dev/sdb1", false},
		{"prefix only", "/dev/sd", "/dev/sda", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, deviceMatches(tt.device, tt.mounted))
		})
	}
}

func TestProcMounted(t *testing.T) {
	t.Parallel()

	mounts := filepath.Join(t.TempDir(), "mounts")
	content := "/dev/sda1 / ext4 rw,relatime 0 0\n" +
		"/dev/sdb2 /home ext4 rw,relatime 0 0\n" +
		"tmpfs /tmp tmpfs rw,nosuid 0 0\n"
	require.NoError(t, os.WriteFile(mounts, []byte(content), 0o600))

	mounted, err := procMounted("/dev/sda", mounts)
	require.NoError(t, err)
	assert.True(t, mounted, "whole disk is busy when a partition is mounted")

	mounted, err = procMounted("/dev/sdb2", mounts)
	require.NoError(t, err)
	assert.True(t, mounted)

	mounted, err = procMounted("/dev/sdc", mounts)
	require.NoError(t, err)
	assert.False(t, mounted)
}

func TestProcMounted_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := procMounted("/dev/sda", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}
