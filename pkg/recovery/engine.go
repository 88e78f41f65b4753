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
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ReclaimProject/reclaim-core/pkg/partitions"
	"github.com/rs/zerolog/log"
)

// RunSpec is everything an engine needs to start carving one device.
type RunSpec struct {
	// Device is the block device or image file to carve.
	Device string
	// RecoveryDir is where the engine writes recovered files, in
	// recup_dir.N subdirectories.
	RecoveryDir string
	// Partition restricts carving to one partition by its zero-based
	// table order. Nil carves per the free_space_only/whole-media option.
	Partition *int
	// LogWriter receives the engine's combined output. Nil discards it.
	LogWriter io.Writer
	// Options tune the engine for this run.
	Options Options
}

// Engine starts carving processes. Implementations must not block in Start
// beyond launching the process.
type Engine interface {
	Start(ctx context.Context, spec RunSpec) (EngineProc, error)
}

// EngineProc is one live carving process. After Done is closed, Err
// reports how the process exited.
type EngineProc interface {
	// Stop asks the process to finish. Graceful stops let the engine
	// flush the file it is writing; force kills outright.
	Stop(force bool) error
	Done() <-chan struct{}
	Err() error
}

// PhotoRec runs the photorec binary in its scripted /cmd mode.
type PhotoRec struct {
	path string
}

// NewPhotoRec returns an engine invoking the binary at path, or "photorec"
// from PATH when empty.
func NewPhotoRec(path string) *PhotoRec {
	if path == "" {
		path = "photorec"
	}
	return &PhotoRec{path: path}
}

// Start launches photorec against spec.Device. The process is bound to ctx:
// cancelling it kills the engine.
func (p *PhotoRec) Start(ctx context.Context, spec RunSpec) (EngineProc, error) {
	if spec.Device == "" {
		return nil, fmt.Errorf("empty device")
	}
	if spec.RecoveryDir == "" {
		return nil, fmt.Errorf("empty recovery dir")
	}
	if err := os.MkdirAll(spec.RecoveryDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating recovery dir: %w", err)
	}

	args := buildEngineArgs(spec)
	cmd := exec.CommandContext(ctx, p.path, args...)
	cmd.Dir = spec.RecoveryDir
	out := spec.LogWriter
	if out == nil {
		out = io.Discard
	}
	cmd.Stdout = out
	cmd.Stderr = out

	log.Debug().
		Str("engine", p.path).
		Strs("args", args).
		Msg("starting recovery engine")

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting recovery engine: %w", err)
	}

	proc := &photorecProc{
		cmd:  cmd,
		done: make(chan struct{}),
	}
	go func() {
		proc.err = cmd.Wait()
		close(proc.done)
	}()
	return proc, nil
}

type photorecProc struct {
	cmd *exec.Cmd
	// err is written once before done is closed; readers must wait on
	// Done first.
	err  error
	done chan struct{}
}

func (p *photorecProc) Stop(force bool) error {
	if force {
		if err := p.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("killing recovery engine: %w", err)
		}
		return nil
	}
	// SIGINT lets photorec finish the file it is writing and update its
	// session state before exiting.
	if err := p.cmd.Process.Signal(os.Interrupt); err != nil {
		return fmt.Errorf("interrupting recovery engine: %w", err)
	}
	return nil
}

func (p *photorecProc) Done() <-chan struct{} {
	return p.done
}

func (p *photorecProc) Err() error {
	return p.err
}

// buildEngineArgs renders spec into photorec's CLI:
//
//	photorec /log /d <dir>/recup_dir /cmd <device> <chain>
func buildEngineArgs(spec RunSpec) []string {
	args := []string{"/log"}
	if spec.Options.Verbose {
		args = append(args, "/debug")
	}
	args = append(args,
		"/d", filepath.Join(spec.RecoveryDir, "recup_dir"),
		"/cmd", spec.Device, buildCmdChain(spec),
	)
	return args
}

// buildCmdChain renders the comma-separated command chain photorec runs
// after opening the device: table layout, file type toggles, option
// toggles, partition choice, then search.
func buildCmdChain(spec RunSpec) string {
	var tokens []string

	if tok := archToken(spec.Options.Arch); tok != "" {
		tokens = append(tokens, "partition_"+tok)
	}

	// Type selection starts from everything-on or everything-off and
	// toggles individual families, matching how the interactive file
	// opts screen scripts.
	switch {
	case len(spec.Options.EnableTypes) > 0 && len(spec.Options.DisableTypes) == 0:
		tokens = append(tokens, "fileopt", "everything", "disable")
		for _, t := range spec.Options.EnableTypes {
			tokens = append(tokens, t, "enable")
		}
	case len(spec.Options.DisableTypes) > 0:
		tokens = append(tokens, "fileopt", "everything", "enable")
		for _, t := range spec.Options.DisableTypes {
			tokens = append(tokens, t, "disable")
		}
	}

	if opts := optionTokens(spec.Options); len(opts) > 0 {
		tokens = append(tokens, "options")
		tokens = append(tokens, opts...)
	}

	if spec.Partition != nil {
		// Partition numbers are 1-based in the engine's command chain.
		tokens = append(tokens, strconv.Itoa(*spec.Partition+1))
	}

	if spec.Options.FreeSpaceOnly {
		tokens = append(tokens, "freespace")
	} else {
		tokens = append(tokens, "wholespace")
	}

	tokens = append(tokens, "search")
	return strings.Join(tokens, ",")
}

func optionTokens(o Options) []string {
	var tokens []string
	switch o.Paranoid {
	case ParanoidNo:
		tokens = append(tokens, "paranoid_no")
	case ParanoidBruteForce:
		tokens = append(tokens, "paranoid_bf")
	case "", ParanoidYes:
		// engine default
	}
	if o.KeepCorrupted {
		tokens = append(tokens, "keep_corrupted_file")
	}
	if o.Expert {
		tokens = append(tokens, "expert")
	}
	if o.LowMemory {
		tokens = append(tokens, "lowmem")
	}
	return tokens
}

func archToken(arch string) string {
	parsed, err := partitions.ParseArch(arch)
	if err != nil || parsed == partitions.ArchAuto {
		return ""
	}
	if parsed == partitions.ArchIntel {
		return "i386"
	}
	return string(parsed)
}
