// Reclaim Core
// Copyright (c) 2026 The Reclaim Project Contributors.
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
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Reclaim Core.  If not, see <http://www.gnu.org/licenses/>.

package helpers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/olahol/melody"
)

// WebSocketTestServer is a melody-backed stand-in for the service API,
// serving the API path so client code can dial it unchanged.
type WebSocketTestServer struct {
	Server *httptest.Server
	Melody *melody.Melody
	t      *testing.T
}

// NewWebSocketTestServer starts a WebSocket server that passes every
// inbound message to handler. A nil handler accepts connections and
// discards messages, which is enough for notification broadcast tests.
func NewWebSocketTestServer(t *testing.T, handler func(*melody.Session, []byte)) *WebSocketTestServer {
	t.Helper()

	m := melody.New()
	if handler != nil {
		m.HandleMessage(handler)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v0.1", func(w http.ResponseWriter, r *http.Request) {
		_ = m.HandleRequest(w, r)
	})

	wsts := &WebSocketTestServer{
		Server: httptest.NewServer(mux),
		Melody: m,
		t:      t,
	}

	// Brief wait so the listener is accepting before clients dial;
	// avoids bad-handshake flakes on loaded CI machines.
	time.Sleep(5 * time.Millisecond)

	return wsts
}

// Close shuts down the melody instance and the HTTP server.
func (wsts *WebSocketTestServer) Close() {
	_ = wsts.Melody.Close()
	wsts.Server.Close()
}
