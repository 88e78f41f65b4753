/*
Reclaim Core
Copyright (c) 2026 The Reclaim Project Contributors.
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

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ReclaimProject/reclaim-core/pkg/api"
	"github.com/ReclaimProject/reclaim-core/pkg/api/models"
	"github.com/ReclaimProject/reclaim-core/pkg/config"
	"github.com/ReclaimProject/reclaim-core/pkg/database"
	"github.com/ReclaimProject/reclaim-core/pkg/database/sessiondb"
	"github.com/ReclaimProject/reclaim-core/pkg/disks"
	"github.com/ReclaimProject/reclaim-core/pkg/helpers"
	"github.com/ReclaimProject/reclaim-core/pkg/platforms"
	"github.com/ReclaimProject/reclaim-core/pkg/recovery"
	"github.com/ReclaimProject/reclaim-core/pkg/service/broker"
	"github.com/ReclaimProject/reclaim-core/pkg/service/devicewatcher"
	"github.com/ReclaimProject/reclaim-core/pkg/service/discovery"
	"github.com/ReclaimProject/reclaim-core/pkg/service/publishers"
	"github.com/ReclaimProject/reclaim-core/pkg/service/shutdown"
	"github.com/ReclaimProject/reclaim-core/pkg/service/state"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// auditPruneInterval is how often the audit recorder re-applies the
// configured retention while the service is running.
const auditPruneInterval = 6 * time.Hour

func setupEnvironment(pl platforms.Platform, cfg *config.Instance) error {
	if _, ok := helpers.HasUserDir(); ok {
		log.Info().Msg("using 'user' directory for storage")
	}

	log.Info().Msg("creating platform directories")
	dirs := []string{
		helpers.ConfigDir(pl),
		pl.Settings().TempDir,
		helpers.DataDir(pl),
		cfg.RecoveryDir(helpers.DataDir(pl)),
	}
	for _, dir := range dirs {
		err := os.MkdirAll(dir, 0o750)
		if err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

func makeDatabase(ctx context.Context, pl platforms.Platform) (*database.Database, error) {
	log.Debug().Msg("opening session database")
	sessionDB, err := sessiondb.OpenSessionDB(ctx, pl)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	log.Debug().Msg("running session database migrations")
	err = sessionDB.MigrateUp()
	if err != nil {
		return nil, fmt.Errorf("error migrating session database: %w", err)
	}

	return &database.Database{SessionDB: sessionDB}, nil
}

// cleanupSessionsOnStartup performs all session log cleanup operations at service startup
func cleanupSessionsOnStartup(cfg *config.Instance, db *database.Database) {
	// Close any recovery runs left open by an unclean shutdown
	log.Info().Msg("closing hanging recovery runs")
	closed, hangingErr := db.SessionDB.CloseHangingRuns()
	switch {
	case hangingErr != nil:
		log.Error().Err(hangingErr).Msg("error closing hanging recovery runs")
	case closed > 0:
		log.Info().Msgf("closed %d recovery runs from unclean shutdown", closed)
	default:
		log.Debug().Msg("no hanging recovery runs to close")
	}

	// Cleanup old audit events if retention is configured
	retentionDays := cfg.AuditRetention()
	if retentionDays > 0 {
		log.Info().Msgf("cleaning up audit events older than %d days", retentionDays)
		rowsDeleted, cleanupErr := db.SessionDB.CleanupEvents(retentionDays)
		switch {
		case cleanupErr != nil:
			log.Error().Err(cleanupErr).Msg("error cleaning up audit events")
		case rowsDeleted > 0:
			log.Info().Msgf("deleted %d old audit events", rowsDeleted)
		default:
			log.Debug().Msg("no old audit events to clean up")
		}
	} else {
		log.Debug().Msg("audit event cleanup disabled (retention set to 0)")
	}
}

func Start(
	pl platforms.Platform,
	cfg *config.Instance,
) (stop func() error, done <-chan struct{}, err error) {
	log.Info().Msgf("version: %s", config.AppVersion)

	err = setupEnvironment(pl, cfg)
	if err != nil {
		log.Error().Err(err).Msg("error setting up environment")
		return nil, nil, err
	}

	log.Info().Msg("running platform pre start")
	err = pl.StartPre(cfg)
	if err != nil {
		log.Error().Err(err).Msg("platform start pre error")
		return nil, nil, fmt.Errorf("platform start pre failed: %w", err)
	}

	st, ns := state.NewState(pl) // global state, notification queue (source)

	// Create and start notification broker to broadcast to all consumers
	notifBroker := broker.NewBroker(st.ServiceContext(), ns)
	notifBroker.Start()

	log.Info().Msg("opening session database")
	db, err := makeDatabase(st.ServiceContext(), pl)
	if err != nil {
		log.Error().Err(err).Msg("error opening session database")
		st.StopService()
		return nil, nil, err
	}

	// Perform all session log cleanup operations
	cleanupSessionsOnStartup(cfg, db)

	if addErr := db.SessionDB.AddEvent(&database.Event{
		Time: time.Now(),
		Type: database.EventServiceStarted,
		Data: config.AppVersion,
	}); addErr != nil {
		log.Error().Err(addErr).Msg("failed to record service start event")
	}

	enum := disks.NewEnumerator()
	engine := recovery.NewPhotoRec(cfg.EnginePath())
	coordinator := shutdown.NewCoordinator(st, cfg, clockwork.NewRealClock())

	log.Info().Msg("starting mDNS discovery service")
	discoveryService := discovery.New(cfg, pl.ID())
	if discoveryErr := discoveryService.Start(); discoveryErr != nil {
		log.Error().Err(discoveryErr).Msg("mDNS discovery failed to start (continuing without discovery)")
	}

	log.Info().Msg("starting API service")
	apiNotifications, _ := notifBroker.Subscribe(100)
	err = api.Start(pl, cfg, st, db, enum, coordinator, engine, apiNotifications)
	if err != nil {
		log.Error().Err(err).Msg("error starting API service")
		discoveryService.Stop()
		st.StopService()
		if closeErr := db.SessionDB.Close(); closeErr != nil {
			log.Warn().Msgf("error closing session database: %s", closeErr)
		}
		return nil, nil, err
	}

	log.Info().Msg("starting publishers")
	activePublishers := startPublishers(cfg, notifBroker)

	// Start audit trail recording
	log.Info().Msg("starting audit listener")
	recorder := &auditRecorder{
		clock: clockwork.NewRealClock(),
		cfg:   cfg,
		db:    db,
	}
	auditNotifications, _ := notifBroker.Subscribe(100)
	go recorder.listen(auditNotifications)
	log.Info().Msg("starting audit retention pruner")
	go recorder.prune(st.ServiceContext())

	log.Info().Msg("starting device hotplug watcher")
	deviceWatcher := devicewatcher.New(enum, st.Notifications)
	if watchErr := deviceWatcher.Start(); watchErr != nil {
		log.Error().Err(watchErr).Msg("device watcher failed to start (continuing without hotplug events)")
	}

	doneCh := make(chan struct{})
	go func() {
		<-st.ServiceContext().Done()
		log.Info().Msg("service context cancelled, running cleanup")

		deviceWatcher.Stop()
		discoveryService.Stop()
		for _, publisher := range activePublishers {
			publisher.Stop()
		}
		if stopErr := pl.Stop(); stopErr != nil {
			log.Warn().Msgf("error stopping platform: %s", stopErr)
		}
		notifBroker.Stop()
		if closeErr := db.SessionDB.Close(); closeErr != nil {
			log.Warn().Msgf("error closing session database: %s", closeErr)
		}

		log.Info().Msg("service cleanup completed")
		close(doneCh)
	}()

	log.Info().Msg("running platform post start")
	err = pl.StartPost(cfg)
	if err != nil {
		log.Error().Err(err).Msg("platform post start error")
		st.StopService()
		<-doneCh
		return nil, nil, fmt.Errorf("platform start post failed: %w", err)
	}
	log.Info().Msg("platform post start completed, service fully initialized")

	stop = func() error {
		st.StopService()
		<-doneCh
		return nil
	}
	done = doneCh
	return stop, done, nil
}

// auditRecorder persists lifecycle notifications to the session audit log.
// It coordinates between the notification listener and the periodic
// retention pruner.
type auditRecorder struct {
	clock clockwork.Clock
	cfg   *config.Instance
	db    *database.Database
}

// listen processes lifecycle notifications and records them in the database.
func (r *auditRecorder) listen(notificationChan <-chan models.Notification) {
	for notif := range notificationChan {
		event, ok := r.eventFor(notif)
		if !ok {
			continue
		}

		if addErr := r.db.SessionDB.AddEvent(event); addErr != nil {
			log.Error().Err(addErr).Str("type", event.Type).Msg("failed to record audit event")
		} else {
			log.Debug().Str("type", event.Type).Msg("recorded audit event")
		}
	}
}

// eventFor maps a notification to an audit event. Disk hotplug
// notifications are deliberately not audited, they carry no session
// context and can be noisy on machines with removable media.
func (r *auditRecorder) eventFor(notif models.Notification) (*database.Event, bool) {
	event := &database.Event{Time: r.clock.Now()}

	switch notif.Method {
	case models.NotificationContextsAdded, models.NotificationContextsRemoved:
		var params models.ContextResponse
		if err := json.Unmarshal(notif.Params, &params); err != nil {
			log.Error().Err(err).Str("method", notif.Method).Msg("failed to decode context notification")
			return nil, false
		}
		if notif.Method == models.NotificationContextsAdded {
			event.Type = database.EventContextCreated
		} else {
			event.Type = database.EventContextRemoved
		}
		event.ContextID = params.ContextID
		event.Device = params.Device
	case models.NotificationRecoveryStarted, models.NotificationRecoveryStopped:
		var params models.RecoveryEventParams
		if err := json.Unmarshal(notif.Params, &params); err != nil {
			log.Error().Err(err).Str("method", notif.Method).Msg("failed to decode recovery notification")
			return nil, false
		}
		if notif.Method == models.NotificationRecoveryStarted {
			event.Type = database.EventRunStarted
			event.Data = params.RunID
		} else {
			event.Type = database.EventRunFinished
			event.Data = params.ExitReason
		}
		event.ContextID = params.ContextID
		event.Device = params.Device
	case models.NotificationServiceStopping:
		var params models.ServiceStoppingParams
		if err := json.Unmarshal(notif.Params, &params); err != nil {
			log.Error().Err(err).Str("method", notif.Method).Msg("failed to decode shutdown notification")
			return nil, false
		}
		event.Type = database.EventServiceStopping
		event.Data = params.Reason
	default:
		return nil, false
	}

	return event, true
}

// prune periodically re-applies the configured audit retention so a
// long-running service does not accumulate events between restarts.
func (r *auditRecorder) prune(ctx context.Context) {
	ticker := r.clock.NewTicker(auditPruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			retentionDays := r.cfg.AuditRetention()
			if retentionDays <= 0 {
				continue
			}

			rowsDeleted, cleanupErr := r.db.SessionDB.CleanupEvents(retentionDays)
			switch {
			case cleanupErr != nil:
				log.Error().Err(cleanupErr).Msg("error pruning audit events")
			case rowsDeleted > 0:
				log.Info().Msgf("pruned %d audit events past retention", rowsDeleted)
			default:
				log.Debug().Msg("no audit events past retention")
			}
		case <-ctx.Done():
			return
		}
	}
}

// startPublishers initializes and starts all configured publishers, each
// consuming its own broker subscription.
func startPublishers(cfg *config.Instance, notifBroker *broker.Broker) []*publishers.MQTTPublisher {
	activePublishers := make([]*publishers.MQTTPublisher, 0)

	for _, mqttCfg := range cfg.GetMQTTPublishers() {
		// Skip if explicitly disabled (nil = enabled by default)
		if mqttCfg.Enabled != nil && !*mqttCfg.Enabled {
			continue
		}

		log.Info().Msgf("starting MQTT publisher: %s (topic: %s)", mqttCfg.Broker, mqttCfg.Topic)

		publisher := publishers.NewMQTTPublisher(mqttCfg.Broker, mqttCfg.Topic, splitFilter(mqttCfg.Filter))
		notifChan, id := notifBroker.Subscribe(100)
		if err := publisher.Start(notifChan); err != nil {
			log.Error().Err(err).Msgf("failed to start MQTT publisher for %s", mqttCfg.Broker)
			notifBroker.Unsubscribe(id)
			continue
		}

		activePublishers = append(activePublishers, publisher)
	}

	if len(activePublishers) > 0 {
		log.Info().Msgf("started %d MQTT publisher(s)", len(activePublishers))
	}

	return activePublishers
}

// splitFilter parses a comma-separated notification method filter from the
// config file into the list form publishers expect. An empty filter means
// all notifications are published.
func splitFilter(filter string) []string {
	if strings.TrimSpace(filter) == "" {
		return nil
	}

	parts := strings.Split(filter, ",")
	methods := make([]string, 0, len(parts))
	for _, part := range parts {
		if method := strings.TrimSpace(part); method != "" {
			methods = append(methods, method)
		}
	}
	return methods
}
