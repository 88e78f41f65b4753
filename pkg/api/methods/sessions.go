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

package methods

import (
	"fmt"

	"github.com/ReclaimProject/reclaim-core/pkg/api/models"
	"github.com/ReclaimProject/reclaim-core/pkg/api/models/requests"
	"github.com/ReclaimProject/reclaim-core/pkg/api/validation"
	"github.com/rs/zerolog/log"
)

//nolint:gocritic // single-use parameter in API handler
func HandleHistory(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received sessions history request")

	var params models.HistoryParams
	if len(env.Params) > 0 {
		if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
			return nil, fmt.Errorf("invalid params: %w", err)
		}
	}

	lastID := 0
	if params.Before != nil {
		lastID = int(*params.Before)
	}
	limit := 0
	if params.Limit != nil {
		limit = *params.Limit
	}

	events, err := env.Database.SessionDB.GetEvents(lastID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read session history: %w", err)
	}

	resp := models.HistoryResponse{
		Entries: make([]models.HistoryResponseEntry, 0, len(events)),
	}
	for _, event := range events {
		resp.Entries = append(resp.Entries, models.HistoryResponseEntry{
			Time:      event.Time,
			Type:      event.Type,
			ContextID: event.ContextID,
			Device:    event.Device,
			Detail:    event.Data,
			ID:        event.DBID,
		})
	}
	return resp, nil
}
