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

package recovery

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"
)

// MaxFilesPerDir is how many files the engine writes into one recup_dir.N
// directory before rolling over to the next.
const MaxFilesPerDir = 500

var recupDirPattern = regexp.MustCompile(`^recup_dir\.\d+$`)

// Census counts the engine's output under dir: recovered files and the
// recup_dir.N directories holding them. Other files in dir, like session
// logs, are not counted. A missing dir counts as empty.
func Census(dir string) (files, dirs int, err error) {
	var fileCount, dirCount atomic.Int64

	conf := fastwalk.Config{Follow: false}
	walkErr := fastwalk.Walk(&conf, dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// entries that vanish mid-walk don't fail the census
			return nil
		}
		if d.IsDir() {
			if path == dir {
				return nil
			}
			if recupDirPattern.MatchString(d.Name()) {
				dirCount.Add(1)
				return nil
			}
			return filepath.SkipDir
		}
		if d.Type().IsRegular() && recupDirPattern.MatchString(filepath.Base(filepath.Dir(path))) {
			fileCount.Add(1)
		}
		return nil
	})
	if walkErr != nil {
		if os.IsNotExist(walkErr) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("walking recovery dir: %w", walkErr)
	}

	return int(fileCount.Load()), int(dirCount.Load()), nil
}
