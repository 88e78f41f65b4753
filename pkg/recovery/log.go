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
	"os"
	"path/filepath"

	"github.com/ReclaimProject/reclaim-core/pkg/config"
)

// SessionLogName is the default engine log file name inside the recovery
// directory, used when the context names no log file of its own.
const SessionLogName = "recovery.log"

// OpenSessionLog opens the context's engine log according to mode. An
// empty name selects SessionLogName; a relative name resolves against
// dir. Mode none returns nil without touching the filesystem.
func OpenSessionLog(dir, name, mode string) (*os.File, error) {
	var flags int
	switch mode {
	case "", config.LogModeNone:
		return nil, nil
	case config.LogModeAppend:
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	case config.LogModeNew:
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	default:
		return nil, fmt.Errorf("unknown log mode %q", mode)
	}

	if name == "" {
		name = SessionLogName
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, name)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating log dir: %w", err)
	}
	f, err := os.OpenFile(path, flags, 0o600) //nolint:gosec // path is config-derived
	if err != nil {
		return nil, fmt.Errorf("opening session log: %w", err)
	}
	return f, nil
}
