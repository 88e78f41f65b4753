// Reclaim Core
// Copyright (c) 2026 The Reclaim Project Contributors.
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

package config

import (
	"path/filepath"
	"regexp"
)

type Recovery struct {
	RecoveryDir   string   `toml:"recovery_dir,omitempty"`
	Engine        string   `toml:"engine,omitempty"`
	DeviceAllow   []string `toml:"device_allow,omitempty,multiline"`
	deviceAllowRe []*regexp.Regexp
	DeviceDeny    []string `toml:"device_deny,omitempty,multiline"`
	deviceDenyRe  []*regexp.Regexp
	MaxContexts   int  `toml:"max_contexts,omitempty"`
	AllowImages   bool `toml:"allow_images"`
}

// RecoveryDir returns the default recovery output directory, resolving a
// relative configured path against dataDir. Falls back to dataDir/recovered
// when unset.
func (c *Instance) RecoveryDir(dataDir string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dir := c.vals.Recovery.RecoveryDir
	if dir == "" {
		return filepath.Join(dataDir, "recovered")
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(dataDir, dir)
}

// EnginePath returns the configured recovery engine binary. An empty value
// means look up "photorec" on PATH.
func (c *Instance) EnginePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Recovery.Engine == "" {
		return "photorec"
	}
	return c.vals.Recovery.Engine
}

// MaxContexts returns the maximum number of concurrently active recovery
// contexts. Zero means unlimited.
func (c *Instance) MaxContexts() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Recovery.MaxContexts < 0 {
		return 0
	}
	return c.vals.Recovery.MaxContexts
}

func (c *Instance) AllowImages() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Recovery.AllowImages
}

// IsDeviceAllowed checks a device path against the configured allow and deny
// lists. An empty allow list permits all devices; deny rules always win.
func (c *Instance) IsDeviceAllowed(device string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if checkAllow(c.vals.Recovery.DeviceDeny, c.vals.Recovery.deviceDenyRe, device) {
		return false
	}

	if len(c.vals.Recovery.DeviceAllow) == 0 {
		return true
	}

	return checkAllow(c.vals.Recovery.DeviceAllow, c.vals.Recovery.deviceAllowRe, device)
}

func (c *Instance) SetRecoveryDir(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Recovery.RecoveryDir = dir
}

func (c *Instance) SetEnginePath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Recovery.Engine = path
}

func (c *Instance) SetMaxContexts(limit int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Recovery.MaxContexts = limit
}

func (c *Instance) SetAllowImages(allow bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Recovery.AllowImages = allow
}

func (c *Instance) DeviceAllow() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	allow := make([]string, len(c.vals.Recovery.DeviceAllow))
	copy(allow, c.vals.Recovery.DeviceAllow)
	return allow
}

// SetDeviceAllow replaces the device allow list. Patterns that do not
// compile are kept in the config but never match.
func (c *Instance) SetDeviceAllow(patterns []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Recovery.DeviceAllow = patterns
	c.vals.Recovery.deviceAllowRe = compilePatterns(patterns, "device allow")
}

func (c *Instance) DeviceDeny() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	deny := make([]string, len(c.vals.Recovery.DeviceDeny))
	copy(deny, c.vals.Recovery.DeviceDeny)
	return deny
}

// SetDeviceDeny replaces the device deny list.
func (c *Instance) SetDeviceDeny(patterns []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Recovery.DeviceDeny = patterns
	c.vals.Recovery.deviceDenyRe = compilePatterns(patterns, "device deny")
}
