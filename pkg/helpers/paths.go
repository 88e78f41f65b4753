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
	"sync"

	"github.com/ReclaimProject/reclaim-core/pkg/config"
	"github.com/ReclaimProject/reclaim-core/pkg/platforms"
)

func ExeDir() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}

	return filepath.Dir(exe)
}

// userDirCache caches the result of HasUserDir to avoid repeated filesystem checks
var (
	userDirCache       string
	userDirCacheExists bool
	userDirOnce        sync.Once
)

// HasUserDir checks if a "user" directory exists next to the binary and
// returns true and the absolute path to it. This directory is used as a
// parent for all platform directories if it exists, for a portable install.
// The result is cached after the first call.
// This function is safe for concurrent use.
func HasUserDir() (string, bool) {
	userDirOnce.Do(func() {
		exeDir := ""
		envExe := os.Getenv(config.AppEnv)
		var err error

		if envExe != "" {
			exeDir = envExe
		} else {
			exeDir, err = os.Executable()
			if err != nil {
				userDirCacheExists = false
				return
			}
		}

		parent := filepath.Dir(exeDir)
		userDir := filepath.Join(parent, config.UserDir)

		info, err := os.Stat(userDir)
		if err != nil {
			userDirCacheExists = false
			return
		}
		if !info.IsDir() {
			userDirCacheExists = false
			return
		}

		userDirCache = userDir
		userDirCacheExists = true
	})

	return userDirCache, userDirCacheExists
}

func ConfigDir(pl platforms.Platform) string {
	if v, ok := HasUserDir(); ok {
		return v
	}
	return pl.Settings().ConfigDir
}

func DataDir(pl platforms.Platform) string {
	if v, ok := HasUserDir(); ok {
		return v
	}
	return pl.Settings().DataDir
}
