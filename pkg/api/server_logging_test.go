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
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Reclaim Core.  If not, see <http://www.gnu.org/licenses/>.

package api

import (
	"bytes"
	"testing"
	"time"

	"github.com/ReclaimProject/reclaim-core/pkg/api/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestLogSafeResponse(t *testing.T) {
	tests := []struct {
		result        any
		name          string
		expectSummary bool
	}{
		{
			name: "plain result logs in full",
			result: map[string]string{
				"test": "normal response",
			},
			expectSummary: false,
		},
		{
			name: "history payload logs entry count only",
			result: models.HistoryResponse{
				Entries: []models.HistoryResponseEntry{
					{
						ID:        1,
						Time:      time.Now(),
						Type:      "run.started",
						ContextID: "ctx-1",
						Device:    "/dev/sdb",
						Detail:    "imaging started on customer drive WD-WXP1E",
					},
					{
						ID:     2,
						Time:   time.Now(),
						Type:   "run.stopped",
						Device: "/dev/sdb",
					},
				},
			},
			expectSummary: true,
		},
		{
			name:          "empty history payload still summarized",
			result:        models.HistoryResponse{},
			expectSummary: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Capture log output. Not parallel: swaps the global logger.
			var buf bytes.Buffer
			originalLogger := log.Logger
			log.Logger = zerolog.New(&buf).Level(zerolog.DebugLevel)

			logSafeResponse(tt.result)

			log.Logger = originalLogger

			logOutput := buf.String()
			assert.Contains(t, logOutput, "sending response")

			if tt.expectSummary {
				assert.Contains(t, logOutput, "entries")
				// Recovered event details must never reach the service log.
				if resp, ok := tt.result.(models.HistoryResponse); ok {
					for _, entry := range resp.Entries {
						if entry.Detail != "" {
							assert.NotContains(t, logOutput, entry.Detail)
						}
					}
				}
			} else {
				assert.Contains(t, logOutput, "normal response")
				assert.NotContains(t, logOutput, "entries")
			}
		})
	}
}
