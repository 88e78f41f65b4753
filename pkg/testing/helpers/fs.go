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
	"path/filepath"

	"github.com/spf13/afero"
)

// FSHelper provides utilities for filesystem mocking in tests
type FSHelper struct {
	Fs afero.Fs
}

// NewMemoryFS creates a new in-memory filesystem for testing
func NewMemoryFS() *FSHelper {
	return &FSHelper{
		Fs: afero.NewMemMapFs(),
	}
}

// NewOSFS creates a filesystem helper using the real filesystem (for integration tests)
func NewOSFS() *FSHelper {
	return &FSHelper{
		Fs: afero.NewOsFs(),
	}
}

// CreateConfigFile creates a TOML config file with the provided content
func (h *FSHelper) CreateConfigFile(path, content string) error {
	// Ensure directory exists
	if err := h.Fs.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for config file: %w", err)
	}

	if err := afero.WriteFile(h.Fs, path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// CreateDiskImage creates a disk image file with the given raw contents,
// padded with zeros up to size bytes.
func (h *FSHelper) CreateDiskImage(path string, contents []byte, size int) error {
	if err := h.Fs.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for disk image: %w", err)
	}

	data := contents
	if size > len(contents) {
		data = make([]byte, size)
		copy(data, contents)
	}

	if err := afero.WriteFile(h.Fs, path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write disk image: %w", err)
	}
	return nil
}

// CreateRecoveryOutput creates a recovery destination tree matching the
// layout the recovery engine produces: numbered recup_dir.N directories
// each holding recovered files.
func (h *FSHelper) CreateRecoveryOutput(basePath string, dirs int, filesPerDir int) error {
	if err := h.Fs.MkdirAll(basePath, 0o755); err != nil {
		return fmt.Errorf("failed to create recovery base directory: %w", err)
	}

	for i := 1; i <= dirs; i++ {
		dirPath := filepath.Join(basePath, fmt.Sprintf("recup_dir.%d", i))
		if err := h.Fs.MkdirAll(dirPath, 0o755); err != nil {
			return fmt.Errorf("failed to create recovery directory %s: %w", dirPath, err)
		}

		for j := 0; j < filesPerDir; j++ {
			filePath := filepath.Join(dirPath, fmt.Sprintf("f%07d.jpg", i*1000+j))
			if err := afero.WriteFile(h.Fs, filePath, []byte{0xFF, 0xD8, 0xFF}, 0o644); err != nil {
				return fmt.Errorf("failed to create recovered file %s: %w", filePath, err)
			}
		}
	}

	return nil
}

// CreateDirectoryStructure creates a complex directory structure for testing
func (h *FSHelper) CreateDirectoryStructure(structure map[string]any) error {
	return h.createStructureRecursive("", structure)
}

// createStructureRecursive recursively creates directory structures
func (h *FSHelper) createStructureRecursive(basePath string, structure map[string]any) error {
	for name, content := range structure {
		fullPath := filepath.Join(basePath, name)

		switch v := content.(type) {
		case string:
			// It's a file with content
			if err := h.Fs.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
				return fmt.Errorf("failed to create directory for file %s: %w", fullPath, err)
			}
			if err := afero.WriteFile(h.Fs, fullPath, []byte(v), 0o644); err != nil {
				return fmt.Errorf("failed to write file %s: %w", fullPath, err)
			}
		case []byte:
			// It's a file with binary content
			if err := h.Fs.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
				return fmt.Errorf("failed to create directory for binary file %s: %w", fullPath, err)
			}
			if err := afero.WriteFile(h.Fs, fullPath, v, 0o644); err != nil {
				return fmt.Errorf("failed to write binary file %s: %w", fullPath, err)
			}
		case map[string]any:
			// It's a directory with subdirectories/files
			if err := h.Fs.MkdirAll(fullPath, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", fullPath, err)
			}
			if err := h.createStructureRecursive(fullPath, v); err != nil {
				return err
			}
		case nil:
			// It's an empty directory
			if err := h.Fs.MkdirAll(fullPath, 0o755); err != nil {
				return fmt.Errorf("failed to create empty directory %s: %w", fullPath, err)
			}
		}
	}
	return nil
}

// FileExists checks if a file exists
func (h *FSHelper) FileExists(path string) bool {
	exists, err := afero.Exists(h.Fs, path)
	if err != nil {
		return false
	}
	return exists
}

// ReadFile reads a file and returns its content
func (h *FSHelper) ReadFile(path string) ([]byte, error) {
	data, err := afero.ReadFile(h.Fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return data, nil
}

// WriteFile writes content to a file
func (h *FSHelper) WriteFile(path string, content []byte) error {
	// Ensure directory exists
	if err := h.Fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for file %s: %w", path, err)
	}
	if err := afero.WriteFile(h.Fs, path, content, 0o644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}
	return nil
}

// ListFiles lists all files in a directory
func (h *FSHelper) ListFiles(path string) ([]string, error) {
	files, err := afero.ReadDir(h.Fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", path, err)
	}

	fileNames := make([]string, len(files))
	for i, file := range files {
		fileNames[i] = file.Name()
	}

	return fileNames, nil
}

// CleanupDir removes all contents from a directory
func (h *FSHelper) CleanupDir(path string) error {
	if err := h.Fs.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to remove directory %s: %w", path, err)
	}
	return nil
}
