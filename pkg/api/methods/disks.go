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
	"io"

	"github.com/ReclaimProject/reclaim-core/pkg/api/models"
	"github.com/ReclaimProject/reclaim-core/pkg/api/models/requests"
	"github.com/ReclaimProject/reclaim-core/pkg/api/validation"
	"github.com/ReclaimProject/reclaim-core/pkg/disks"
	"github.com/ReclaimProject/reclaim-core/pkg/partitions"
	"github.com/rs/zerolog/log"
)

func diskResponse(d disks.Disk) models.DiskResponse {
	return models.DiskResponse{
		Device:     d.Device,
		Model:      d.Model,
		Serial:     d.Serial,
		Vendor:     d.Vendor,
		Size:       d.Size,
		SectorSize: d.SectorSize,
		Removable:  d.Removable,
		Image:      d.Image,
	}
}

//nolint:gocritic // single-use parameter in API handler
func HandleDisks(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received disks request")

	var params models.DisksParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	if _, err := env.State.GetContext(params.ContextID); err != nil {
		return nil, err
	}

	found, err := env.Disks.List(env.State.ServiceContext())
	if err != nil {
		return nil, fmt.Errorf("disk enumeration failed: %w", err)
	}

	resp := models.DisksResponse{
		Disks: make([]models.DiskResponse, 0, len(found)),
	}
	for _, d := range found {
		resp.Disks = append(resp.Disks, diskResponse(d))
	}
	return resp, nil
}

//nolint:gocritic // single-use parameter in API handler
func HandlePartitions(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received disks partitions request")

	var params models.PartitionsParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	rc, err := env.State.GetContext(params.ContextID)
	if err != nil {
		return nil, err
	}

	disk, err := env.Disks.Lookup(env.State.ServiceContext(), params.Device)
	if err != nil {
		return nil, fmt.Errorf("device lookup failed: %w", err)
	}

	arch := partitions.ArchAuto
	switch {
	case params.Arch != nil && *params.Arch != "":
		arch, err = partitions.ParseArch(*params.Arch)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", validation.ErrInvalidParams, err)
		}
	case disk.Device == rc.Device():
		arch = rc.Arch()
	}

	// Scanning the context's own device reuses its exclusive binding; any
	// other device is opened read-only for the duration of the call.
	var reader io.ReaderAt
	if binding := rc.Binding(); binding != nil && disk.Device == rc.Device() {
		reader = binding.ReaderAt()
	} else {
		f, openErr := disks.OpenReadOnly(disk.Device)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open device: %w", openErr)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil {
				log.Warn().Err(closeErr).Str("device", disk.Device).Msg("error closing device")
			}
		}()
		reader = f
	}

	table, err := partitions.Scan(reader, disk.Size, disk.SectorSize, arch)
	if err != nil {
		return nil, fmt.Errorf("partition scan failed: %w", err)
	}

	resp := models.PartitionsResponse{
		Arch:       string(table.Arch),
		Partitions: make([]models.PartitionResponse, 0, len(table.Partitions)),
	}
	for _, p := range table.Partitions {
		resp.Partitions = append(resp.Partitions, models.PartitionResponse{
			Name:       p.Name,
			Filesystem: p.Filesystem,
			Role:       p.Role,
			Status:     string(p.Status),
			Offset:     p.Offset,
			Size:       p.Size,
			Order:      p.Order,
		})
	}
	return resp, nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleArchs(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received disks arch request")

	supported := partitions.Archs()
	resp := models.ArchsResponse{
		Archs: make([]string, 0, len(supported)),
	}
	for _, arch := range supported {
		resp.Archs = append(resp.Archs, string(arch))
	}
	return resp, nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleAddImage(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received disks image add request")

	var params models.AddImageParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	if !env.Config.AllowImages() {
		return nil, fmt.Errorf("%w: disk images are disabled", ErrNotAllowed)
	}

	rc, err := env.State.GetContext(params.ContextID)
	if err != nil {
		return nil, err
	}

	disk, err := env.Disks.AddImage(rc.ID(), params.Path)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("context", rc.ID()).
		Str("image", disk.Device).
		Msg("registered disk image")

	return diskResponse(disk), nil
}
