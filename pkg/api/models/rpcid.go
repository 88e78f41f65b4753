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
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Reclaim Core. If not, see <http://www.gnu.org/licenses/>.

package models

import (
	"bytes"
	"encoding/json"
	"errors"
)

// RPCID is a JSON-RPC 2.0 request ID. The spec allows a String, Number or
// Null value, and requires the server to echo the ID back exactly as it was
// received, so the raw JSON representation is preserved.
type RPCID struct {
	json.RawMessage
}

// ErrInvalidRPCID is returned when an ID is an object or array.
var ErrInvalidRPCID = errors.New("JSON-RPC ID cannot be an object or array")

// StringID returns an RPCID holding a JSON string value.
func StringID(s string) RPCID {
	raw, _ := json.Marshal(s)
	return RPCID{RawMessage: raw}
}

// UnmarshalJSON rejects object and array ID values at parse time.
func (id *RPCID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return ErrInvalidRPCID
	}
	id.RawMessage = make([]byte, len(data))
	copy(id.RawMessage, data)
	return nil
}

// MarshalJSON returns the raw JSON bytes of the ID.
func (id RPCID) MarshalJSON() ([]byte, error) {
	if len(id.RawMessage) == 0 {
		return []byte("null"), nil
	}
	return id.RawMessage, nil
}

// IsAbsent reports whether the ID field was not present in the JSON, which
// marks the request as a JSON-RPC notification.
func (id *RPCID) IsAbsent() bool {
	return id == nil || len(id.RawMessage) == 0
}

// IsNull reports whether the ID is explicitly JSON null. Unlike an absent
// ID, a null ID still expects a response.
func (id *RPCID) IsNull() bool {
	return id != nil && bytes.Equal(id.RawMessage, []byte("null"))
}

// String returns the raw representation for logging. A JSON string ID keeps
// its quotes.
func (id *RPCID) String() string {
	if id == nil || len(id.RawMessage) == 0 {
		return "null"
	}
	return string(id.RawMessage)
}
