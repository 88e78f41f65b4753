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
	"github.com/ReclaimProject/reclaim-core/pkg/config"
	"github.com/ReclaimProject/reclaim-core/pkg/helpers"
	"github.com/mackerelio/go-osstat/uptime"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/disk"
)

//nolint:gocritic // single-use parameter in API handler
func HandleShutdown(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received service shutdown request")

	var params models.ShutdownParams
	if len(env.Params) > 0 {
		if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
			return nil, fmt.Errorf("invalid params: %w", err)
		}
	}

	reason := "api request"
	if params.Reason != nil && *params.Reason != "" {
		reason = *params.Reason
	}

	if params.Force {
		env.Coordinator.Forced(reason)
	} else if err := env.Coordinator.Graceful(reason); err != nil {
		return nil, err
	}

	return models.ShutdownResponse{Message: "service stopping"}, nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleHeartbeat(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received service heartbeat request")

	var params models.HeartbeatParams
	if len(env.Params) > 0 {
		if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
			return nil, fmt.Errorf("invalid params: %w", err)
		}
	}

	resp := models.HeartbeatResponse{
		Version:          config.AppVersion,
		ActiveContexts:   env.State.ActiveCount(),
		ActiveRecoveries: env.State.RunningRecoveries(),
	}

	up, err := uptime.Get()
	if err != nil {
		log.Warn().Err(err).Msg("failed to read system uptime")
	} else {
		resp.UptimeSeconds = uint64(up.Seconds())
	}

	// Free space at the default recovery dir, falling back to the data
	// dir when the recovery dir does not exist yet.
	dataDir := helpers.DataDir(env.Platform)
	usage, err := disk.Usage(env.Config.RecoveryDir(dataDir))
	if err != nil {
		usage, err = disk.Usage(dataDir)
	}
	if err == nil {
		resp.FreeSpace = usage.Free
	}

	if params.ContextID != nil && *params.ContextID != "" {
		_, getErr := env.State.GetContext(*params.ContextID)
		valid := getErr == nil
		resp.ContextValid = &valid
	}

	return resp, nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleStatistics(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received service statistics request")

	stats, err := env.Database.SessionDB.Statistics()
	if err != nil {
		return nil, fmt.Errorf("failed to read statistics: %w", err)
	}

	resp := models.StatisticsResponse{
		ContextsCreated: stats.ContextsCreated,
		RecoveriesRun:   stats.RunsStarted,
		FilesRecovered:  stats.FilesRecovered,
		EventsPerDay:    make([]models.DayCount, 0, len(stats.EventsPerDay)),
	}
	for _, day := range stats.EventsPerDay {
		resp.EventsPerDay = append(resp.EventsPerDay, models.DayCount{
			Day:   day.Day,
			Count: day.Count,
		})
	}
	return resp, nil
}
