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

package mocks

import (
	"fmt"

	"github.com/ReclaimProject/reclaim-core/pkg/config"
	"github.com/ReclaimProject/reclaim-core/pkg/platforms"
	"github.com/stretchr/testify/mock"
)

// MockPlatform is a mock implementation of the Platform interface using testify/mock
type MockPlatform struct {
	mock.Mock
}

// NewMockPlatform creates a new mock platform instance
func NewMockPlatform() *MockPlatform {
	return &MockPlatform{}
}

// ID returns the unique ID of this platform
func (m *MockPlatform) ID() string {
	args := m.Called()
	return args.String(0)
}

// Settings returns the base settings for this platform
func (m *MockPlatform) Settings() platforms.Settings {
	args := m.Called()
	if settings, ok := args.Get(0).(platforms.Settings); ok {
		return settings
	}
	return platforms.Settings{}
}

// StartPre runs any necessary platform setup BEFORE the main service has started running
func (m *MockPlatform) StartPre(cfg *config.Instance) error {
	args := m.Called(cfg)
	if err := args.Error(0); err != nil {
		return fmt.Errorf("mock platform start pre failed: %w", err)
	}
	return nil
}

// StartPost runs any necessary platform setup AFTER the main service has started running
func (m *MockPlatform) StartPost(cfg *config.Instance) error {
	args := m.Called(cfg)
	if err := args.Error(0); err != nil {
		return fmt.Errorf("mock platform start post failed: %w", err)
	}
	return nil
}

// Stop runs any necessary cleanup tasks before the rest of the service starts shutting down
func (m *MockPlatform) Stop() error {
	args := m.Called()
	if err := args.Error(0); err != nil {
		return fmt.Errorf("mock platform stop failed: %w", err)
	}
	return nil
}

// SetupBasicMock configures the mock with typical default values for basic operations
func (m *MockPlatform) SetupBasicMock() {
	m.On("ID").Return("mock-platform")
	m.On("Settings").Return(platforms.Settings{})
	m.On("StartPre", mock.AnythingOfType("*config.Instance")).Return(nil)
	m.On("StartPost", mock.AnythingOfType("*config.Instance")).Return(nil)
	m.On("Stop").Return(nil)
}

// SetupBasicMockWithDirs is SetupBasicMock with platform directories rooted
// at the given path, for tests that touch the filesystem.
func (m *MockPlatform) SetupBasicMockWithDirs(dir string) {
	m.On("ID").Return("mock-platform")
	m.On("Settings").Return(platforms.Settings{
		DataDir:   dir,
		ConfigDir: dir,
		TempDir:   dir,
	})
	m.On("StartPre", mock.AnythingOfType("*config.Instance")).Return(nil)
	m.On("StartPost", mock.AnythingOfType("*config.Instance")).Return(nil)
	m.On("Stop").Return(nil)
}
