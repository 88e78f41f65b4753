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
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/ReclaimProject/reclaim-core/pkg/platforms"
	"github.com/ReclaimProject/reclaim-core/pkg/testing/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDirectories(t *testing.T) {
	t.Parallel()

	t.Run("creates directories", func(t *testing.T) {
		t.Parallel()

		testRoot := t.TempDir()
		tempDir := filepath.Join(testRoot, "temp", "nested")
		dataDir := filepath.Join(testRoot, "data")
		configDir := filepath.Join(testRoot, "config")

		platform := mocks.NewMockPlatform()
		platform.On("Settings").Return(platforms.Settings{
			TempDir:   tempDir,
			DataDir:   dataDir,
			ConfigDir: configDir,
		})

		require.NoError(t, EnsureDirectories(platform))

		for _, dir := range []string{tempDir, dataDir, configDir} {
			info, err := os.Stat(dir)
			require.NoError(t, err)
			assert.True(t, info.IsDir())
			if runtime.GOOS != "windows" {
				assert.Equal(t, os.FileMode(0o750), info.Mode().Perm())
			}
		}
	})

	t.Run("works when directories already exist", func(t *testing.T) {
		t.Parallel()

		testRoot := t.TempDir()

		platform := mocks.NewMockPlatform()
		platform.On("Settings").Return(platforms.Settings{
			TempDir:   testRoot,
			DataDir:   testRoot,
			ConfigDir: testRoot,
		})

		require.NoError(t, EnsureDirectories(platform))
	})

	t.Run("fails when temp dir path is invalid", func(t *testing.T) {
		t.Parallel()

		platform := mocks.NewMockPlatform()
		platform.On("Settings").Return(platforms.Settings{
			TempDir:   "/proc/invalid\x00path",
			DataDir:   t.TempDir(),
			ConfigDir: t.TempDir(),
		})

		err := EnsureDirectories(platform)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create temp directory")
	})
}

func TestInitLogging(t *testing.T) {
	// Note: Cannot use t.Parallel() because InitLogging modifies global log.Logger

	t.Run("configures logging under temp dir", func(t *testing.T) {
		testRoot := t.TempDir()
		tempDir := filepath.Join(testRoot, "temp")

		platform := mocks.NewMockPlatform()
		platform.On("Settings").Return(platforms.Settings{
			TempDir:   tempDir,
			DataDir:   filepath.Join(testRoot, "data"),
			ConfigDir: filepath.Join(testRoot, "config"),
		})

		require.NoError(t, InitLogging(platform, nil))

		info, err := os.Stat(tempDir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())

		assert.NotNil(t, LogWriter())
	})

	t.Run("works with additional writers", func(t *testing.T) {
		testRoot := t.TempDir()

		platform := mocks.NewMockPlatform()
		platform.On("Settings").Return(platforms.Settings{
			TempDir:   filepath.Join(testRoot, "temp"),
			DataDir:   filepath.Join(testRoot, "data"),
			ConfigDir: filepath.Join(testRoot, "config"),
		})

		dummyWriter := &testWriter{}
		require.NoError(t, InitLogging(platform, []io.Writer{dummyWriter}))
	})
}

// testWriter is a no-op io.Writer for testing
type testWriter struct{}

func (*testWriter) Write(p []byte) (n int, err error) {
	return len(p), nil
}
