//go:build darwin

/*
Reclaim Core
Copyright (C) 2025 The Reclaim Project Contributors

This file is part of Reclaim Core.

Reclaim Core is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Reclaim Core is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Reclaim Core.  If not, see <http://www.gnu.org/licenses/>.
*/

package mac

import (
	"os"
	"path/filepath"

	"github.com/ReclaimProject/reclaim-core/pkg/config"
	"github.com/ReclaimProject/reclaim-core/pkg/platforms"
	"github.com/adrg/xdg"
)

type Platform struct{}

func (*Platform) ID() string {
	return platforms.PlatformIDMac
}

func (*Platform) Settings() platforms.Settings {
	return platforms.Settings{
		DataDir:   filepath.Join(xdg.DataHome, config.AppName),
		ConfigDir: filepath.Join(xdg.ConfigHome, config.AppName),
		TempDir:   filepath.Join(os.TempDir(), config.AppName),
	}
}

func (*Platform) StartPre(_ *config.Instance) error {
	return nil
}

func (*Platform) StartPost(_ *config.Instance) error {
	return nil
}

func (*Platform) Stop() error {
	return nil
}
