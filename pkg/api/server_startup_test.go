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

package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ReclaimProject/reclaim-core/pkg/api/models"
	"github.com/ReclaimProject/reclaim-core/pkg/config"
	"github.com/ReclaimProject/reclaim-core/pkg/service/state"
	"github.com/ReclaimProject/reclaim-core/pkg/testing/helpers"
	"github.com/ReclaimProject/reclaim-core/pkg/testing/mocks"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// freePort reserves an ephemeral port and releases it for the server to
// bind. There is a small window where another process could grab it, which
// is acceptable for tests.
func freePort(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr, ok := l.Addr().(*net.TCPAddr)
	require.True(t, ok)
	require.NoError(t, l.Close())
	return addr.Port
}

// startTestServer starts the full API server on a loopback port and returns
// the address it listens on.
func startTestServer(t *testing.T) string {
	t.Helper()

	platform := mocks.NewMockPlatform()
	platform.SetupBasicMock()

	listen := "127.0.0.1:" + strconv.Itoa(freePort(t))
	cfg := newTestConfig(t, &config.Values{
		Service: config.Service{APIListen: listen},
	})

	st, notifications := state.NewState(platform)
	t.Cleanup(st.StopService)

	db, dbCleanup := helpers.NewTestDatabase(t)
	t.Cleanup(dbCleanup)

	err := Start(platform, cfg, st, db, nil, nil, nil, notifications)
	require.NoError(t, err)

	return listen
}

// TestStart_ListenerReadyOnReturn verifies that the listener is bound before
// Start returns, so a request made immediately afterwards cannot be refused.
// This is a regression test for the startup race where the server was bound
// inside a goroutine with no synchronization.
func TestStart_ListenerReadyOnReturn(t *testing.T) {
	t.Parallel()

	addr := startTestServer(t)

	reqBody := `{"jsonrpc":"2.0","id":"` + uuid.New().String() + `","method":"version"}`
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"http://"+addr+"/api", strings.NewReader(reqBody))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err, "server must accept connections immediately after Start returns")
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
}

// TestStart_VersionedPath verifies the versioned API path serves the same
// method table.
func TestStart_VersionedPath(t *testing.T) {
	t.Parallel()

	addr := startTestServer(t)

	reqBody := `{"jsonrpc":"2.0","id":"` + uuid.New().String() + `","method":"version"}`
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"http://"+addr+"/api/v0.1", strings.NewReader(reqBody))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
}

// TestStart_PortConflict verifies that a bind failure surfaces as an error
// instead of being logged from a goroutine after Start has returned.
func TestStart_PortConflict(t *testing.T) {
	t.Parallel()

	addr := startTestServer(t)

	platform := mocks.NewMockPlatform()
	platform.SetupBasicMock()

	cfg := newTestConfig(t, &config.Values{
		Service: config.Service{APIListen: addr},
	})

	st, notifications := state.NewState(platform)
	t.Cleanup(st.StopService)

	db, dbCleanup := helpers.NewTestDatabase(t)
	t.Cleanup(dbCleanup)

	err := Start(platform, cfg, st, db, nil, nil, nil, notifications)
	require.Error(t, err, "second bind on the same address should fail")
}

// TestStart_WebSocketPing verifies the WebSocket transport comes up with the
// server and answers the plain ping heartbeat.
func TestStart_WebSocketPing(t *testing.T) {
	t.Parallel()

	addr := startTestServer(t)

	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/api", nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	defer func() { _ = conn.Close() }()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))

	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "pong", string(msg))
}

// TestStart_WebSocketRequest verifies a JSON-RPC request over the WebSocket
// transport round-trips with the ID echoed back.
func TestStart_WebSocketRequest(t *testing.T) {
	t.Parallel()

	addr := startTestServer(t)

	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/api", nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	defer func() { _ = conn.Close() }()

	id := uuid.New().String()
	reqBody := `{"jsonrpc":"2.0","id":"` + id + `","method":"version"}`

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(reqBody)))

	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var rpcResp models.ResponseObject
	require.NoError(t, json.Unmarshal(msg, &rpcResp))
	assert.Equal(t, "2.0", rpcResp.JSONRPC)
	assert.JSONEq(t, `"`+id+`"`, string(rpcResp.ID.RawMessage))
	assert.NotNil(t, rpcResp.Result)
}
