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
	"time"

	"github.com/ReclaimProject/reclaim-core/pkg/api/models"
	"github.com/ReclaimProject/reclaim-core/pkg/api/models/requests"
	"github.com/ReclaimProject/reclaim-core/pkg/api/notifications"
	"github.com/ReclaimProject/reclaim-core/pkg/api/validation"
	"github.com/ReclaimProject/reclaim-core/pkg/database"
	"github.com/ReclaimProject/reclaim-core/pkg/partitions"
	"github.com/ReclaimProject/reclaim-core/pkg/recovery"
	"github.com/rs/zerolog/log"
)

func runStatusResponse(status recovery.RunStatus, files, dirs int) models.RecoveryStatusResponse {
	resp := models.RecoveryStatusResponse{
		RunID:          status.ID,
		ContextID:      status.ContextID,
		StartedAt:      status.StartedAt,
		ExitReason:     status.ExitReason,
		FilesRecovered: files,
		DirsCreated:    dirs,
		ElapsedSeconds: int64(status.Elapsed / time.Second),
		Running:        status.Running,
	}
	if !status.FinishedAt.IsZero() {
		finished := status.FinishedAt
		resp.FinishedAt = &finished
	}
	return resp
}

//nolint:gocritic // single-use parameter in API handler
func HandleRecoveryStart(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received recovery start request")

	var params models.RecoveryStartParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	rc, err := env.State.GetContext(params.ContextID)
	if err != nil {
		return nil, err
	}

	if run := rc.Run(); run != nil && run.Running() {
		return nil, fmt.Errorf("%w: %s", recovery.ErrRunActive, run.ID())
	}

	engine := env.Engine
	if engine == nil {
		engine = recovery.NewPhotoRec(env.Config.EnginePath())
	}

	opts := rc.Options()
	if opts.Arch == "" && rc.Arch() != partitions.ArchAuto {
		opts.Arch = string(rc.Arch())
	}

	spec := recovery.RunSpec{
		Device:      rc.Device(),
		RecoveryDir: rc.RecoveryDir(),
		Partition:   params.Partition,
		Options:     opts,
	}
	if logFile := rc.LogFile(); logFile != nil {
		spec.LogWriter = logFile
	}

	proc, err := engine.Start(env.State.ServiceContext(), spec)
	if err != nil {
		return nil, fmt.Errorf("failed to start recovery engine: %w", err)
	}

	run := recovery.NewRun(rc.ID(), rc.Device(), rc.RecoveryDir(), proc)
	if err := rc.SetRun(run); err != nil {
		// Lost the race to another start on the same context.
		if stopErr := proc.Stop(true); stopErr != nil {
			log.Warn().Err(stopErr).Str("context", rc.ID()).Msg("error killing orphaned engine process")
		}
		return nil, err
	}

	status := run.Status()
	dbid, err := env.Database.SessionDB.AddRun(&database.RecoveryRun{
		RunID:     run.ID(),
		ContextID: rc.ID(),
		Device:    rc.Device(),
		StartedAt: status.StartedAt,
	})
	if err != nil {
		log.Error().Err(err).Str("run", run.ID()).Msg("failed to record recovery run")
	}

	notifications.RecoveryStarted(env.State.Notifications, models.RecoveryEventParams{
		ContextID: rc.ID(),
		RunID:     run.ID(),
		Device:    rc.Device(),
	})

	sessionDB := env.Database.SessionDB
	ns := env.State.Notifications
	run.Watch(func(r *recovery.Run) {
		exit := r.Status()
		files, dirs, censusErr := recovery.Census(r.Dir())
		if censusErr != nil {
			log.Warn().Err(censusErr).Str("run", r.ID()).Msg("census of recovery dir failed")
		}
		if dbid > 0 {
			finishErr := sessionDB.FinishRun(dbid, exit.FinishedAt, exit.ExitReason, files, dirs)
			if finishErr != nil {
				log.Error().Err(finishErr).Str("run", r.ID()).Msg("failed to finalize recovery run record")
			}
		}
		notifications.RecoveryStopped(ns, models.RecoveryEventParams{
			ContextID:  r.ContextID(),
			RunID:      r.ID(),
			Device:     r.Device(),
			ExitReason: exit.ExitReason,
		})
		log.Info().
			Str("run", r.ID()).
			Str("context", r.ContextID()).
			Str("exitReason", exit.ExitReason).
			Int("filesRecovered", files).
			Msg("recovery run finished")
	})

	log.Info().
		Str("run", run.ID()).
		Str("context", rc.ID()).
		Str("device", rc.Device()).
		Msg("recovery run started")

	return runStatusResponse(status, 0, 0), nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleRecoveryStop(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received recovery stop request")

	var params models.RecoveryStopParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	rc, err := env.State.GetContext(params.ContextID)
	if err != nil {
		return nil, err
	}

	run := rc.Run()
	if run == nil {
		return nil, fmt.Errorf("%w: context %s", recovery.ErrNoRun, rc.ID())
	}

	if err := run.Stop(params.Force); err != nil {
		return nil, fmt.Errorf("failed to stop recovery run: %w", err)
	}

	return NoContent{}, nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleRecoveryStatus(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received recovery status request")

	var params models.RecoveryStatusParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	rc, err := env.State.GetContext(params.ContextID)
	if err != nil {
		return nil, err
	}

	if run := rc.Run(); run != nil {
		status := run.Status()
		files, dirs, censusErr := recovery.Census(run.Dir())
		if censusErr != nil {
			log.Debug().Err(censusErr).Str("run", run.ID()).Msg("census of recovery dir failed")
		}
		return runStatusResponse(status, files, dirs), nil
	}

	// Nothing run under this context yet; report the last recorded run
	// against the same device, if any.
	last, err := env.Database.SessionDB.LastRunForDevice(rc.Device())
	if err != nil {
		return nil, fmt.Errorf("failed to read last run: %w", err)
	}
	if last == nil {
		return nil, fmt.Errorf("%w: context %s", recovery.ErrNoRun, rc.ID())
	}

	resp := models.RecoveryStatusResponse{
		RunID:          last.RunID,
		ContextID:      last.ContextID,
		StartedAt:      last.StartedAt,
		FinishedAt:     last.FinishedAt,
		ExitReason:     last.ExitReason,
		FilesRecovered: last.FilesRecovered,
		DirsCreated:    last.DirsCreated,
	}
	if last.FinishedAt != nil {
		resp.ElapsedSeconds = int64(last.FinishedAt.Sub(last.StartedAt) / time.Second)
	}
	return resp, nil
}
