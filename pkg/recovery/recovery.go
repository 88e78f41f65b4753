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

// Package recovery drives an external file-carving engine for a recovery
// context: per-context engine options, one tracked run per context, and a
// census of what the engine has written so far.
package recovery

import (
	"errors"
	"fmt"

	"github.com/ReclaimProject/reclaim-core/pkg/partitions"
	"github.com/go-viper/mapstructure/v2"
)

var (
	// ErrRunActive is returned when starting a run on a context that
	// already has one in progress.
	ErrRunActive = errors.New("recovery run already active")
	// ErrNoRun is returned when stopping or querying a context that has no
	// run.
	ErrNoRun = errors.New("no recovery run")
)

// Paranoid mode values accepted by the engine: normal checks, none, or
// brute force.
const (
	ParanoidYes        = "yes"
	ParanoidNo         = "no"
	ParanoidBruteForce = "bf"
)

// Options are the per-context engine options. Keys arriving over the API
// use the snake_case names in the mapstructure tags.
type Options struct {
	Paranoid      string   `mapstructure:"paranoid"`
	Arch          string   `mapstructure:"arch"`
	EnableTypes   []string `mapstructure:"enable_types"`
	DisableTypes  []string `mapstructure:"disable_types"`
	KeepCorrupted bool     `mapstructure:"keep_corrupted_file"`
	Expert        bool     `mapstructure:"expert"`
	LowMemory     bool     `mapstructure:"low_memory"`
	Verbose       bool     `mapstructure:"verbose"`
	FreeSpaceOnly bool     `mapstructure:"free_space_only"`
}

// DefaultOptions returns the engine defaults for a fresh context.
func DefaultOptions() Options {
	return Options{Paranoid: ParanoidYes}
}

// Decode merges raw option values from the API onto o. Unknown keys and
// unusable values are rejected rather than silently dropped.
func (o *Options) Decode(raw map[string]any) error {
	decoderConfig := &mapstructure.DecoderConfig{
		Result:           o,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	}
	decoder, err := mapstructure.NewDecoder(decoderConfig)
	if err != nil {
		return fmt.Errorf("creating options decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("decoding options: %w", err)
	}
	return o.validate()
}

func (o *Options) validate() error {
	switch o.Paranoid {
	case "", ParanoidYes, ParanoidNo, ParanoidBruteForce:
	default:
		return fmt.Errorf("invalid paranoid mode %q", o.Paranoid)
	}
	if o.Arch != "" {
		if _, err := partitions.ParseArch(o.Arch); err != nil {
			return fmt.Errorf("invalid arch: %w", err)
		}
	}
	return nil
}

// Map renders the options for the contexts.options response, mirroring the
// keys accepted by Decode.
func (o Options) Map() map[string]any {
	m := map[string]any{
		"paranoid":            o.Paranoid,
		"keep_corrupted_file": o.KeepCorrupted,
		"expert":              o.Expert,
		"low_memory":          o.LowMemory,
		"verbose":             o.Verbose,
		"free_space_only":     o.FreeSpaceOnly,
	}
	if o.Arch != "" {
		m["arch"] = o.Arch
	}
	if len(o.EnableTypes) > 0 {
		m["enable_types"] = o.EnableTypes
	}
	if len(o.DisableTypes) > 0 {
		m["disable_types"] = o.DisableTypes
	}
	return m
}
