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
	"errors"
	"fmt"
	"time"

	"github.com/ReclaimProject/reclaim-core/pkg/api/models"
	"github.com/ReclaimProject/reclaim-core/pkg/api/models/requests"
	"github.com/ReclaimProject/reclaim-core/pkg/api/validation"
	"github.com/ReclaimProject/reclaim-core/pkg/helpers"
	"github.com/rs/zerolog/log"
)

func HandleSettings(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	log.Info().Msg("received settings request")

	resp := models.SettingsResponse{
		RecoveryDir:        env.Config.RecoveryDir(helpers.DataDir(env.Platform)),
		EnginePath:         env.Config.EnginePath(),
		MaxContexts:        env.Config.MaxContexts(),
		AllowImages:        env.Config.AllowImages(),
		DrainTimeoutSecs:   int(env.Config.DrainTimeout() / time.Second),
		AuditRetentionDays: env.Config.AuditRetention(),
		DebugLogging:       env.Config.DebugLogging(),
		DeviceAllow:        make([]string, 0),
		DeviceDeny:         make([]string, 0),
	}

	resp.DeviceAllow = append(resp.DeviceAllow, env.Config.DeviceAllow()...)
	resp.DeviceDeny = append(resp.DeviceDeny, env.Config.DeviceDeny()...)

	return resp, nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleSettingsReload(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received settings reload request")

	err := env.Config.Load()
	if err != nil {
		log.Error().Err(err).Msg("error loading settings")
		return nil, errors.New("error loading settings")
	}

	return NoContent{}, nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleSettingsUpdate(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received settings update request")

	var params models.UpdateSettingsParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	if params.DebugLogging != nil {
		log.Info().Bool("debugLogging", *params.DebugLogging).Msg("update")
		env.Config.SetDebugLogging(*params.DebugLogging)
	}

	if params.RecoveryDir != nil {
		log.Info().Str("recoveryDir", *params.RecoveryDir).Msg("update")
		env.Config.SetRecoveryDir(*params.RecoveryDir)
	}

	if params.EnginePath != nil {
		log.Info().Str("enginePath", *params.EnginePath).Msg("update")
		env.Config.SetEnginePath(*params.EnginePath)
	}

	if params.MaxContexts != nil {
		log.Info().Int("maxContexts", *params.MaxContexts).Msg("update")
		env.Config.SetMaxContexts(*params.MaxContexts)
	}

	if params.AllowImages != nil {
		log.Info().Bool("allowImages", *params.AllowImages).Msg("update")
		env.Config.SetAllowImages(*params.AllowImages)
	}

	if params.DrainTimeoutSecs != nil {
		log.Info().Int("drainTimeoutSecs", *params.DrainTimeoutSecs).Msg("update")
		env.Config.SetDrainTimeout(*params.DrainTimeoutSecs)
	}

	if params.AuditRetentionDays != nil {
		log.Info().Int("auditRetentionDays", *params.AuditRetentionDays).Msg("update")
		env.Config.SetAuditRetention(*params.AuditRetentionDays)
	}

	if params.DeviceAllow != nil {
		log.Info().Strs("deviceAllow", *params.DeviceAllow).Msg("update")
		env.Config.SetDeviceAllow(*params.DeviceAllow)
	}

	if params.DeviceDeny != nil {
		log.Info().Strs("deviceDeny", *params.DeviceDeny).Msg("update")
		env.Config.SetDeviceDeny(*params.DeviceDeny)
	}

	err := env.Config.Save()
	if err != nil {
		return nil, fmt.Errorf("failed to save config: %w", err)
	}
	return NoContent{}, nil
}
