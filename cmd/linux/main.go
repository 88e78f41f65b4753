//go:build linux

/*
Reclaim Core
Copyright (c) 2025 The Reclaim Project Contributors.
SPDX-License-Identifier: GPL-3.0-or-later

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

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ReclaimProject/reclaim-core/pkg/api/client"
	"github.com/ReclaimProject/reclaim-core/pkg/cli"
	"github.com/ReclaimProject/reclaim-core/pkg/config"
	"github.com/ReclaimProject/reclaim-core/pkg/platforms/linux"
	"github.com/ReclaimProject/reclaim-core/pkg/service"
	"github.com/ReclaimProject/reclaim-core/pkg/service/daemon"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	pl := &linux.Platform{}
	flags := cli.SetupFlags()

	serviceFlag := flag.String(
		"service",
		"",
		"manage the reclaim service (start|stop|restart|status)",
	)
	daemonMode := flag.Bool(
		"daemon",
		false,
		"run service in the foreground",
	)

	flags.Pre(pl)

	if os.Geteuid() != 0 {
		log.Warn().Msg("not running as root, raw device access will likely fail")
	}

	var logWriters []io.Writer
	if *daemonMode {
		logWriters = []io.Writer{os.Stderr}
	}

	cfg := cli.Setup(
		pl,
		config.BaseDefaults,
		logWriters,
	)

	defer func() {
		if err := recover(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Panic: %s\n", err)
			log.Fatal().Msgf("panic: %v", err)
		}
	}()

	if *daemonMode {
		flags.Post(cfg, pl)

		stopSvc, done, err := service.Start(pl, cfg)
		if err != nil {
			log.Error().Err(err).Msg("error starting service")
			return fmt.Errorf("error starting service: %w", err)
		}

		log.Info().Msg("started in daemon mode")

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

		select {
		case <-sigs:
			if stopErr := stopSvc(); stopErr != nil {
				log.Error().Err(stopErr).Msg("error stopping service")
				return stopErr
			}
		case <-done:
			log.Info().Msg("service shut down internally")
		}

		return nil
	}

	svc, err := daemon.NewService(daemon.ServiceArgs{
		Entry: func() (func() error, <-chan struct{}, error) {
			return service.Start(pl, cfg)
		},
		Platform: pl,
	})
	if err != nil {
		log.Error().Err(err).Msg("error creating service")
		return fmt.Errorf("error creating service: %w", err)
	}

	err = svc.ServiceHandler(serviceFlag)
	if err != nil {
		return fmt.Errorf("service handler failed: %w", err)
	}

	flags.Post(cfg, pl)

	// no actionable flags given
	if client.IsServiceRunning(cfg) {
		_, _ = fmt.Printf("Reclaim service is running (v%s)\n", config.AppVersion)
	} else {
		_, _ = fmt.Println("Reclaim service is not running")
		_, _ = fmt.Println("Start it with: reclaim -service start")
	}

	return nil
}
