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

package requests

import (
	"encoding/json"

	"github.com/ReclaimProject/reclaim-core/pkg/config"
	"github.com/ReclaimProject/reclaim-core/pkg/database"
	"github.com/ReclaimProject/reclaim-core/pkg/disks"
	"github.com/ReclaimProject/reclaim-core/pkg/platforms"
	"github.com/ReclaimProject/reclaim-core/pkg/recovery"
	"github.com/ReclaimProject/reclaim-core/pkg/service/shutdown"
	"github.com/ReclaimProject/reclaim-core/pkg/service/state"
	"github.com/google/uuid"
)

type RequestEnv struct {
	Platform    platforms.Platform
	Config      *config.Instance
	State       *state.State
	Database    *database.Database
	Disks       *disks.Enumerator
	Coordinator *shutdown.Coordinator
	// Engine runs recoveries. When nil, handlers fall back to the
	// engine binary named in the config.
	Engine  recovery.Engine
	Params  json.RawMessage
	ID      uuid.UUID
	IsLocal bool
}
