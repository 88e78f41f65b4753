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
	"os"
	"path/filepath"

	"github.com/ReclaimProject/reclaim-core/pkg/api/models"
	"github.com/ReclaimProject/reclaim-core/pkg/api/models/requests"
	"github.com/ReclaimProject/reclaim-core/pkg/api/validation"
	"github.com/ReclaimProject/reclaim-core/pkg/config"
	"github.com/ReclaimProject/reclaim-core/pkg/disks"
	"github.com/ReclaimProject/reclaim-core/pkg/helpers"
	"github.com/ReclaimProject/reclaim-core/pkg/partitions"
	"github.com/ReclaimProject/reclaim-core/pkg/recovery"
	"github.com/ReclaimProject/reclaim-core/pkg/service/state"
	"github.com/rs/zerolog/log"
)

// ErrNotAllowed is returned when the config's device allow/deny lists
// reject the requested device.
var ErrNotAllowed = errors.New("not allowed")

// NoContent is the result of methods that succeed without a payload.
type NoContent struct{}

//nolint:gocritic // single-use parameter in API handler
func HandleInitContext(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received contexts init request")

	var params models.InitContextParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	if !env.Config.IsDeviceAllowed(params.Device) {
		return nil, fmt.Errorf("%w: device %s", ErrNotAllowed, params.Device)
	}

	disk, err := env.Disks.Lookup(env.State.ServiceContext(), params.Device)
	if err != nil {
		return nil, fmt.Errorf("device lookup failed: %w", err)
	}

	if !disk.Image {
		mounted, mountErr := disks.IsMounted(env.State.ServiceContext(), disk.Device)
		if mountErr != nil {
			log.Debug().Err(mountErr).Str("device", disk.Device).Msg("mount probe failed")
		} else if mounted {
			return nil, fmt.Errorf("%w: %s is mounted", disks.ErrDeviceBusy, disk.Device)
		}
	}

	logMode := config.LogModeNone
	if params.LogMode != nil && *params.LogMode != "" {
		logMode = *params.LogMode
	}

	recoveryDir := params.RecoveryDir
	if !filepath.IsAbs(recoveryDir) {
		recoveryDir = filepath.Join(env.Config.RecoveryDir(helpers.DataDir(env.Platform)), recoveryDir)
	}

	binding, err := disks.OpenExclusive(disk.Device)
	if err != nil {
		return nil, fmt.Errorf("failed to bind device: %w", err)
	}

	if err := os.MkdirAll(recoveryDir, 0o750); err != nil {
		_ = binding.Close()
		return nil, fmt.Errorf("failed to create recovery dir: %w", err)
	}

	logName := ""
	if params.LogFile != nil {
		logName = *params.LogFile
	}

	logFile, err := recovery.OpenSessionLog(recoveryDir, logName, logMode)
	if err != nil {
		_ = binding.Close()
		return nil, fmt.Errorf("failed to open session log: %w", err)
	}

	args := state.CreateContextArgs{
		Binding:     binding,
		Device:      disk.Device,
		RecoveryDir: recoveryDir,
		LogMode:     logMode,
		MaxContexts: env.Config.MaxContexts(),
	}
	// An *os.File nil pointer must not end up inside the LogSink
	// interface, or the nil checks downstream stop working.
	if logFile != nil {
		args.LogFile = logFile
	}

	rc, err := env.State.CreateContext(args)
	if err != nil {
		_ = binding.Close()
		if logFile != nil {
			_ = logFile.Close()
		}
		return nil, err
	}

	return rc.Response(), nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleCleanupContext(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received contexts cleanup request")

	var params models.CleanupContextParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	rc, err := env.State.RemoveContext(params.ContextID, false)
	if err != nil {
		return nil, err
	}

	for _, path := range env.Disks.RemoveImages(rc.ID()) {
		log.Debug().Str("context", rc.ID()).Str("image", path).Msg("unregistered disk image")
	}

	return NoContent{}, nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleContexts(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received contexts request")

	live := env.State.ListContexts()
	resp := models.ContextsResponse{
		Contexts: make([]models.ContextResponse, 0, len(live)),
	}
	for _, rc := range live {
		resp.Contexts = append(resp.Contexts, rc.Response())
	}
	return resp, nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleContextOptions(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received contexts options request")

	var params models.ContextOptionsParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	rc, err := env.State.GetContext(params.ContextID)
	if err != nil {
		return nil, err
	}

	return models.OptionsResponse{
		ContextID: rc.ID(),
		Options:   rc.Options().Map(),
	}, nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleUpdateContextOptions(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received contexts options update request")

	var params models.UpdateContextOptionsParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	rc, err := env.State.GetContext(params.ContextID)
	if err != nil {
		return nil, err
	}

	opts := rc.Options()
	if err := opts.Decode(params.Options); err != nil {
		return nil, fmt.Errorf("%w: %v", validation.ErrInvalidParams, err)
	}
	rc.SetOptions(opts)

	// Decode validated the arch, so a parse failure here means empty.
	if opts.Arch != "" {
		if arch, archErr := partitions.ParseArch(opts.Arch); archErr == nil {
			rc.SetArch(arch)
		}
	}

	log.Info().
		Str("context", rc.ID()).
		Interface("options", opts.Map()).
		Msg("updated context options")

	return models.OptionsResponse{
		ContextID: rc.ID(),
		Options:   opts.Map(),
	}, nil
}
