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

//go:build !linux

package disks

import (
	"errors"
	"fmt"
	"os"
)

// Raw block device sizing is Linux-only. Images still work everywhere since
// they are sized by stat.
func blockDeviceSize(f *os.File) (uint64, uint32, error) {
	return 0, 0, fmt.Errorf("sizing block device %s: %w", f.Name(), errors.ErrUnsupported)
}
