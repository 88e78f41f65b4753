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

// Package broker fans service notifications out to any number of
// consumers (the API server, publishers) without letting a slow one
// stall the registry.
package broker

import (
	"context"

	"github.com/ReclaimProject/reclaim-core/pkg/api/models"
	"github.com/ReclaimProject/reclaim-core/pkg/helpers/syncutil"
	"github.com/rs/zerolog/log"
)

// Broker owns the subscriber set. Sends are non-blocking; a full
// subscriber buffer drops that subscriber's copy of the notification.
type Broker struct {
	ctx         context.Context
	source      <-chan models.Notification
	subscribers map[int]chan models.Notification
	mu          syncutil.RWMutex
	nextID      int
}

// NewBroker wires a broker to the registry's notification channel.
func NewBroker(ctx context.Context, source <-chan models.Notification) *Broker {
	return &Broker{
		ctx:         ctx,
		source:      source,
		subscribers: make(map[int]chan models.Notification),
		nextID:      0,
	}
}

// Start runs the broadcast loop until the source channel closes or the
// service context is cancelled, then closes every subscriber channel.
func (b *Broker) Start() {
	go func() {
		for {
			select {
			case notif, ok := <-b.source:
				if !ok {
					log.Debug().Msg("broker: source channel closed")
					b.closeAllSubscribers()
					return
				}
				b.broadcast(notif)
			case <-b.ctx.Done():
				log.Debug().Msg("broker: context cancelled, shutting down")
				b.closeAllSubscribers()
				return
			}
		}
	}()
}

// broadcast delivers one notification to every subscriber that has
// buffer room for it.
func (b *Broker) broadcast(notif models.Notification) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- notif:
		default:
			log.Warn().
				Int("subscriber_id", id).
				Str("method", notif.Method).
				Msg("subscriber channel full, dropping notification")
		}
	}
}

// Subscribe registers a new consumer. bufferSize bounds how far the
// consumer may lag before broadcasts to it are dropped. The returned id
// is the handle for Unsubscribe.
func (b *Broker) Subscribe(bufferSize int) (notifChan <-chan models.Notification, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id = b.nextID
	b.nextID++

	ch := make(chan models.Notification, bufferSize)
	b.subscribers[id] = ch

	log.Debug().
		Int("subscriber_id", id).
		Int("buffer_size", bufferSize).
		Msg("new subscriber registered")

	notifChan = ch
	return
}

// Unsubscribe removes a subscription and closes its channel. Safe to
// call twice with the same id.
func (b *Broker) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(ch)
		log.Debug().Int("subscriber_id", id).Msg("subscriber unsubscribed")
	}
}

// Stop closes all subscriber channels. Called during service shutdown.
func (b *Broker) Stop() {
	b.closeAllSubscribers()
}

func (b *Broker) closeAllSubscribers() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subscribers {
		close(ch)
		log.Debug().Int("subscriber_id", id).Msg("closed subscriber channel on shutdown")
	}
	b.subscribers = make(map[int]chan models.Notification)
}
