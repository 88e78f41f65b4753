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

package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ReclaimProject/reclaim-core/internal/telemetry"
	"github.com/ReclaimProject/reclaim-core/pkg/api/client"
	"github.com/ReclaimProject/reclaim-core/pkg/api/models"
	"github.com/ReclaimProject/reclaim-core/pkg/config"
	"github.com/ReclaimProject/reclaim-core/pkg/helpers"
	"github.com/ReclaimProject/reclaim-core/pkg/platforms"
	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Flags struct {
	API           *string
	Version       *bool
	Disks         *bool
	Shutdown      *bool
	Force         *bool
	Reason        *string
	Reload        *bool
	ExportHistory *string
}

// SetupFlags defines all common CLI flags between platforms.
func SetupFlags() *Flags {
	return &Flags{
		API: flag.String(
			"api",
			"",
			"send method and params to API and print response",
		),
		Version: flag.Bool(
			"version",
			false,
			"print version and exit",
		),
		Disks: flag.Bool(
			"disks",
			false,
			"list disks visible to the running service",
		),
		Shutdown: flag.Bool(
			"shutdown",
			false,
			"request a graceful service shutdown",
		),
		Force: flag.Bool(
			"force",
			false,
			"with -shutdown, stop without draining active contexts",
		),
		Reason: flag.String(
			"reason",
			"",
			"with -shutdown, reason recorded in the session history",
		),
		Reload: flag.Bool(
			"reload",
			false,
			"reload config from disk",
		),
		ExportHistory: flag.String(
			"export-history",
			"",
			"export session history to a CSV file",
		),
	}
}

func isFlagPassed(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// Pre runs flag parsing and actions any immediate flags that don't
// require environment setup. Add any custom flags before running this.
func (f *Flags) Pre(pl platforms.Platform) {
	flag.Parse()

	if *f.Version {
		_, _ = fmt.Printf("Reclaim v%s (%s)\n", config.AppVersion, pl.ID())
		os.Exit(0)
	}
}

// Post actions all remaining common flags that require the environment to be
// set up. Logging is allowed.
func (f *Flags) Post(cfg *config.Instance, _ platforms.Platform) {
	switch {
	case isFlagPassed("api"):
		if *f.API == "" {
			_, _ = fmt.Fprint(os.Stderr, "Error: api flag requires a value\n")
			os.Exit(1)
		}

		ps := strings.SplitN(*f.API, ":", 2)
		method := ps[0]
		params := ""
		if len(ps) > 1 {
			params = ps[1]
		}

		resp, err := client.LocalClient(context.Background(), cfg, method, params)
		if err != nil {
			log.Error().Err(err).Msg("error calling API")
			_, _ = fmt.Fprintf(os.Stderr, "Error calling API: %v\n", err)
			os.Exit(1)
		}

		_, _ = fmt.Println(resp)
		os.Exit(0)
	case *f.Disks:
		resp, err := client.LocalClient(context.Background(), cfg, models.MethodDisks, "")
		if err != nil {
			log.Error().Err(err).Msg("error listing disks")
			_, _ = fmt.Fprintf(os.Stderr, "Error listing disks: %v\n", err)
			os.Exit(1)
		}

		var disks models.DisksResponse
		if err := json.Unmarshal([]byte(resp), &disks); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error decoding response: %v\n", err)
			os.Exit(1)
		}

		for i := range disks.Disks {
			_, _ = fmt.Println(formatDisk(&disks.Disks[i]))
		}
		os.Exit(0)
	case *f.Shutdown:
		var reason *string
		if isFlagPassed("reason") {
			reason = f.Reason
		}

		data, err := json.Marshal(&models.ShutdownParams{
			Reason: reason,
			Force:  *f.Force,
		})
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error encoding params: %v\n", err)
			os.Exit(1)
		}

		_, err = client.LocalClient(
			context.Background(), cfg,
			models.MethodServiceShutdown, string(data),
		)
		if err != nil {
			log.Error().Err(err).Msg("error requesting shutdown")
			_, _ = fmt.Fprintf(os.Stderr, "Error requesting shutdown: %v\n", err)
			os.Exit(1)
		}

		_, _ = fmt.Fprintln(os.Stderr, "Shutdown requested")
		os.Exit(0)
	case *f.Reload:
		_, err := client.LocalClient(context.Background(), cfg, models.MethodSettingsReload, "")
		if err != nil {
			log.Error().Err(err).Msg("error reloading settings")
			_, _ = fmt.Fprintf(os.Stderr, "Error reloading: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	case isFlagPassed("export-history"):
		if *f.ExportHistory == "" {
			_, _ = fmt.Fprint(os.Stderr, "Error: export-history flag requires a path\n")
			os.Exit(1)
		}

		count, err := exportHistory(context.Background(), cfg, *f.ExportHistory)
		if err != nil {
			log.Error().Err(err).Msg("error exporting history")
			_, _ = fmt.Fprintf(os.Stderr, "Error exporting history: %v\n", err)
			os.Exit(1)
		}

		_, _ = fmt.Fprintf(os.Stderr, "Exported %d events to %s\n", count, *f.ExportHistory)
		os.Exit(0)
	}
}

func formatDisk(d *models.DiskResponse) string {
	desc := strings.TrimSpace(d.Vendor + " " + d.Model)
	if desc == "" {
		desc = "unknown"
	}
	out := fmt.Sprintf("%s\t%d bytes\t%s", d.Device, d.Size, desc)
	if d.Removable {
		out += " (removable)"
	}
	if d.Image {
		out += " (image)"
	}
	return out
}

// historyCSVRow mirrors a session history entry with CSV column tags.
type historyCSVRow struct {
	Time      string `csv:"time"`
	Type      string `csv:"type"`
	ContextID string `csv:"context_id"`
	Device    string `csv:"device"`
	Detail    string `csv:"detail"`
	ID        int64  `csv:"id"`
}

const exportPageSize = 100

// exportHistory pages the full session history out of the running service
// and writes it to path as CSV, newest event first.
func exportHistory(ctx context.Context, cfg *config.Instance, path string) (int, error) {
	rows := make([]historyCSVRow, 0)
	var before *int64

	for {
		limit := exportPageSize
		data, err := json.Marshal(&models.HistoryParams{
			Limit:  &limit,
			Before: before,
		})
		if err != nil {
			return 0, fmt.Errorf("failed to encode params: %w", err)
		}

		resp, err := client.LocalClient(ctx, cfg, models.MethodSessionsHistory, string(data))
		if err != nil {
			return 0, fmt.Errorf("failed to query history: %w", err)
		}

		var page models.HistoryResponse
		if err := json.Unmarshal([]byte(resp), &page); err != nil {
			return 0, fmt.Errorf("failed to decode history: %w", err)
		}

		if len(page.Entries) == 0 {
			break
		}

		for i := range page.Entries {
			entry := &page.Entries[i]
			rows = append(rows, historyCSVRow{
				Time:      entry.Time.Format(time.RFC3339),
				Type:      entry.Type,
				ContextID: entry.ContextID,
				Device:    entry.Device,
				Detail:    entry.Detail,
				ID:        entry.ID,
			})
		}

		last := page.Entries[len(page.Entries)-1].ID
		before = &last
	}

	out, err := gocsv.MarshalString(&rows)
	if err != nil {
		return 0, fmt.Errorf("failed to encode CSV: %w", err)
	}

	if err := os.WriteFile(path, []byte(out), 0o600); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", path, err)
	}

	return len(rows), nil
}

// Setup initializes the user config and logging. Returns a user config object.
//
//nolint:gocritic // config struct copied for immutability
func Setup(
	pl platforms.Platform,
	defaultConfig config.Values,
	writers []io.Writer,
) *config.Instance {
	// Ensure directories exist before logging initialization
	err := helpers.EnsureDirectories(pl)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error creating directories: %v\n", err)
		os.Exit(1)
	}

	err = helpers.InitLogging(pl, writers)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.NewConfig(helpers.ConfigDir(pl), defaultConfig)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if cfg.DebugLogging() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// Initialize error reporting (opt-in)
	if err := telemetry.Init(
		cfg.ErrorReporting(),
		cfg.DeviceID(),
		config.AppVersion,
		pl.ID(),
	); err != nil {
		log.Warn().Err(err).Msg("failed to initialize error reporting")
	}

	return cfg
}
