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

package recovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	assert.Equal(t, ParanoidYes, opts.Paranoid)
	assert.False(t, opts.KeepCorrupted)
	assert.False(t, opts.Expert)
	assert.False(t, opts.LowMemory)
	assert.False(t, opts.FreeSpaceOnly)
}

func TestOptions_Decode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw        map[string]any
		check      func(t *testing.T, opts Options)
		name       string
		errContain string
		wantErr    bool
	}{
		{
			name: "empty map keeps defaults",
			raw:  map[string]any{},
			check: func(t *testing.T, opts Options) {
				assert.Equal(t, ParanoidYes, opts.Paranoid)
			},
		},
		{
			name: "booleans and arch",
			raw: map[string]any{
				"keep_corrupted_file": true,
				"expert":              true,
				"arch":                "gpt",
			},
			check: func(t *testing.T, opts Options) {
				assert.True(t, opts.KeepCorrupted)
				assert.True(t, opts.Expert)
				assert.Equal(t, "gpt", opts.Arch)
				// untouched fields keep previous values
				assert.Equal(t, ParanoidYes, opts.Paranoid)
			},
		},
		{
			name: "weakly typed booleans from json",
			raw: map[string]any{
				"low_memory":      "true",
				"free_space_only": 1,
			},
			check: func(t *testing.T, opts Options) {
				assert.True(t, opts.LowMemory)
				assert.True(t, opts.FreeSpaceOnly)
			},
		},
		{
			name: "type lists",
			raw: map[string]any{
				"enable_types": []any{"jpg", "png"},
			},
			check: func(t *testing.T, opts Options) {
				assert.Equal(t, []string{"jpg", "png"}, opts.EnableTypes)
			},
		},
		{
			name: "paranoid brute force",
			raw:  map[string]any{"paranoid": "bf"},
			check: func(t *testing.T, opts Options) {
				assert.Equal(t, ParanoidBruteForce, opts.Paranoid)
			},
		},
		{
			name:       "unknown key rejected",
			raw:        map[string]any{"paranoidd": "yes"},
			wantErr:    true,
			errContain: "paranoidd",
		},
		{
			name:       "invalid paranoid mode",
			raw:        map[string]any{"paranoid": "maybe"},
			wantErr:    true,
			errContain: "paranoid",
		},
		{
			name:       "invalid arch",
			raw:        map[string]any{"arch": "amiga"},
			wantErr:    true,
			errContain: "arch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			opts := DefaultOptions()
			err := opts.Decode(tt.raw)

			if tt.wantErr {
				require.Error(t, err)
				if tt.errContain != "" {
					assert.Contains(t, err.Error(), tt.errContain)
				}
				return
			}

			require.NoError(t, err)
			tt.check(t, opts)
		})
	}
}

func TestOptions_Map(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	m := opts.Map()
	assert.Equal(t, ParanoidYes, m["paranoid"])
	assert.Equal(t, false, m["expert"])
	assert.NotContains(t, m, "arch")
	assert.NotContains(t, m, "enable_types")

	opts.Arch = "intel"
	opts.DisableTypes = []string{"mov"}
	m = opts.Map()
	assert.Equal(t, "intel", m["arch"])
	assert.Equal(t, []string{"mov"}, m["disable_types"])
}

func TestOptions_DecodeMapRoundTrip(t *testing.T) {
	t.Parallel()

	orig := Options{
		Paranoid:      ParanoidBruteForce,
		Arch:          "mac",
		EnableTypes:   []string{"jpg"},
		KeepCorrupted: true,
		LowMemory:     true,
	}

	var decoded Options
	require.NoError(t, decoded.Decode(orig.Map()))
	assert.Equal(t, orig, decoded)
}
