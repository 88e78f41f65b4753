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
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Reclaim Core.  If not, see <http://www.gnu.org/licenses/>.

package helpers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ReclaimProject/reclaim-core/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTestConfig(t *testing.T) {
	t.Parallel()

	fs := NewMemoryFS()
	configDir := t.TempDir()

	cfg, err := NewTestConfig(fs, configDir)

	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, config.DefaultAPIPort, cfg.APIPort())

	// Verify the config file exists on the real filesystem
	configPath := filepath.Join(configDir, config.CfgFile)
	_, err = os.Stat(configPath)
	assert.NoError(t, err, "config file should exist")
}

func TestNewTestConfigWithPort(t *testing.T) {
	t.Parallel()

	fs := NewMemoryFS()
	configDir := t.TempDir()

	cfg, err := NewTestConfigWithPort(fs, configDir, 18290)

	require.NoError(t, err)
	assert.Equal(t, 18290, cfg.APIPort())
}
