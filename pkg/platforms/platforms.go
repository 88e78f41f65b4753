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
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Reclaim Core.  If not, see <http://www.gnu.org/licenses/>.

package platforms

import (
	"github.com/ReclaimProject/reclaim-core/pkg/config"
)

const (
	PlatformIDLinux = "linux"
	PlatformIDMac   = "mac"
)

// Settings is all simple platform-specific values.
type Settings struct {
	// DataDir is the directory where the service will store persistent data
	// such as the session database and recovered files.
	DataDir string
	// ConfigDir is the directory where the service config file is stored.
	ConfigDir string
	// TempDir is the directory for temporary files such as the log file and
	// pid file. It may be called multiple times per session.
	TempDir string
}

// Platform is the interface that each supported operating system implements
// to integrate with the rest of the service.
type Platform interface {
	// ID returns the unique ID of this platform.
	ID() string
	// Settings returns all simple platform-specific settings such as paths.
	Settings() Settings
	// StartPre runs any necessary platform setup BEFORE the main service has
	// started running.
	StartPre(cfg *config.Instance) error
	// StartPost runs any necessary platform setup AFTER the main service has
	// started running.
	StartPost(cfg *config.Instance) error
	// Stop runs any necessary cleanup tasks before the rest of the service
	// starts shutting down.
	Stop() error
}
