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

package helpers

import (
	"fmt"

	"github.com/ReclaimProject/reclaim-core/pkg/config"
)

// NewTestConfig creates a config instance backed by a temp directory with
// base defaults applied. The FSHelper argument reserves room for future
// filesystem-backed config loading; config files currently live on the
// real filesystem, so pass a t.TempDir() for configDir.
func NewTestConfig(_ *FSHelper, configDir string) (*config.Instance, error) {
	cfg, err := config.NewConfig(configDir, config.BaseDefaults)
	if err != nil {
		return nil, fmt.Errorf("failed to create test config: %w", err)
	}
	return cfg, nil
}

// NewTestConfigWithPort creates a test config with the API port overridden,
// for tests that talk to an httptest server on an ephemeral port.
func NewTestConfigWithPort(fsh *FSHelper, configDir string, port int) (*config.Instance, error) {
	cfg, err := NewTestConfig(fsh, configDir)
	if err != nil {
		return nil, err
	}
	cfg.SetAPIPort(port)
	return cfg, nil
}
