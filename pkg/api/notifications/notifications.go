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

package notifications

import (
	"encoding/json"

	"github.com/ReclaimProject/reclaim-core/pkg/api/models"
	"github.com/rs/zerolog/log"
)

// criticalNotifications are never expected to be dropped; losing one is
// worth a warning in the log. High-volume hotplug events are excluded.
var criticalNotifications = map[string]bool{
	models.NotificationContextsAdded:   true,
	models.NotificationContextsRemoved: true,
	models.NotificationRecoveryStarted: true,
	models.NotificationRecoveryStopped: true,
	models.NotificationServiceStopping: true,
}

// sendNotification marshals the payload and sends it without blocking.
// When the channel is full the notification is dropped, so a slow consumer
// can never wedge state transitions.
func sendNotification(ns chan<- models.Notification, method string, payload any) {
	var params json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Error().Err(err).Str("method", method).Msg("failed to marshal notification payload")
			return
		}
		params = data
	}

	select {
	case ns <- models.Notification{Method: method, Params: params}:
	default:
		if criticalNotifications[method] {
			log.Warn().Str("method", method).Msg("notification channel full, dropped critical notification")
		} else {
			log.Debug().Str("method", method).Msg("notification channel full, dropped notification")
		}
	}
}

func ContextsAdded(ns chan<- models.Notification, payload models.ContextResponse) {
	sendNotification(ns, models.NotificationContextsAdded, payload)
}

func ContextsRemoved(ns chan<- models.Notification, payload models.ContextResponse) {
	sendNotification(ns, models.NotificationContextsRemoved, payload)
}

func DisksAdded(ns chan<- models.Notification, payload models.DiskEventParams) {
	sendNotification(ns, models.NotificationDisksAdded, payload)
}

func DisksRemoved(ns chan<- models.Notification, payload models.DiskEventParams) {
	sendNotification(ns, models.NotificationDisksRemoved, payload)
}

func RecoveryStarted(ns chan<- models.Notification, payload models.RecoveryEventParams) {
	sendNotification(ns, models.NotificationRecoveryStarted, payload)
}

func RecoveryStopped(ns chan<- models.Notification, payload models.RecoveryEventParams) {
	sendNotification(ns, models.NotificationRecoveryStopped, payload)
}

func ServiceStopping(ns chan<- models.Notification, payload models.ServiceStoppingParams) {
	sendNotification(ns, models.NotificationServiceStopping, payload)
}
