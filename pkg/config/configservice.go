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

package config

import (
	"strconv"
	"time"
)

const (
	DefaultAPIPort = 7717
	// DefaultDrainTimeout bounds how long a graceful shutdown waits for
	// active contexts to be cleaned up before reporting a timeout.
	DefaultDrainTimeout = 30
	// DefaultAuditRetention is how many days of audit events to keep.
	DefaultAuditRetention = 90
)

type Service struct {
	APIPort        *int       `toml:"api_port,omitempty"`
	AuditRetention *int       `toml:"audit_retention_days,omitempty"`
	Discovery      Discovery  `toml:"discovery,omitempty"`
	DeviceID       string     `toml:"device_id,omitempty"`
	APIListen      string     `toml:"api_listen,omitempty"`
	AllowedOrigins []string   `toml:"allowed_origins,omitempty,multiline"`
	AllowedIPs     []string   `toml:"allowed_ips,omitempty,multiline"`
	Publishers     Publishers `toml:"publishers,omitempty"`
	DrainTimeout   int        `toml:"drain_timeout,omitempty"`
	ErrorReporting bool       `toml:"error_reporting,omitempty"`
}

type Discovery struct {
	Enabled      *bool  `toml:"enabled,omitempty"`
	InstanceName string `toml:"instance_name,omitempty"`
}

type Publishers struct {
	MQTT []MQTTPublisher `toml:"mqtt,omitempty"`
}

type MQTTPublisher struct {
	Enabled *bool  `toml:"enabled,omitempty"`
	Broker  string `toml:"broker"`
	Topic   string `toml:"topic"`
	Filter  string `toml:"filter,omitempty"`
}

func (c *Instance) APIPort() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Service.APIPort == nil {
		return DefaultAPIPort
	}
	return *c.vals.Service.APIPort
}

func (c *Instance) SetAPIPort(port int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Service.APIPort = &port
}

// APIListen returns the listen address for the API server. An empty
// configured value means listen on all interfaces at the API port.
func (c *Instance) APIListen() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	listen := c.vals.Service.APIListen
	if listen == "" {
		port := DefaultAPIPort
		if c.vals.Service.APIPort != nil {
			port = *c.vals.Service.APIPort
		}
		return ":" + strconv.Itoa(port)
	}
	return listen
}

func (c *Instance) DeviceID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Service.DeviceID
}

// DiscoveryEnabled reports whether mDNS service advertisement is on.
// Defaults to true when unset.
func (c *Instance) DiscoveryEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Service.Discovery.Enabled == nil {
		return true
	}
	return *c.vals.Service.Discovery.Enabled
}

func (c *Instance) DiscoveryInstanceName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Service.Discovery.InstanceName
}

func (c *Instance) GetMQTTPublishers() []MQTTPublisher {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pubs := make([]MQTTPublisher, len(c.vals.Service.Publishers.MQTT))
	copy(pubs, c.vals.Service.Publishers.MQTT)
	return pubs
}

func (c *Instance) AllowedIPs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ips := make([]string, len(c.vals.Service.AllowedIPs))
	copy(ips, c.vals.Service.AllowedIPs)
	return ips
}

func (c *Instance) AllowedOrigins() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	origins := make([]string, len(c.vals.Service.AllowedOrigins))
	copy(origins, c.vals.Service.AllowedOrigins)
	return origins
}

// DrainTimeout returns the graceful shutdown drain bound.
func (c *Instance) DrainTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	secs := c.vals.Service.DrainTimeout
	if secs <= 0 {
		secs = DefaultDrainTimeout
	}
	return time.Duration(secs) * time.Second
}

func (c *Instance) SetDrainTimeout(secs int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Service.DrainTimeout = secs
}

// AuditRetention returns the number of days to retain session audit events.
// Returns 0 if cleanup is disabled, or 90 days by default.
func (c *Instance) AuditRetention() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Service.AuditRetention == nil {
		return DefaultAuditRetention
	}
	return *c.vals.Service.AuditRetention
}

func (c *Instance) SetAuditRetention(days int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Service.AuditRetention = &days
}

func (c *Instance) ErrorReporting() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Service.ErrorReporting
}

func (c *Instance) SetErrorReporting(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Service.ErrorReporting = enabled
}
