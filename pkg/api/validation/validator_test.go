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

//nolint:revive // custom validation tags (contextid, arch, regex) are unknown to revive
package validation

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateContextID(t *testing.T) {
	t.Parallel()

	type testStruct struct {
		ContextID string `validate:"contextid"`
	}

	tests := []struct {
		name      string
		value     string
		wantError bool
	}{
		{name: "empty id skips validation", value: "", wantError: false},
		{name: "valid context id", value: "ctx_0011223344556677", wantError: false},
		{name: "valid all hex digits", value: "ctx_89abcdef01234567", wantError: false},
		{name: "uppercase hex rejected", value: "ctx_0011223344556AFF", wantError: true},
		{name: "too short", value: "ctx_00112233", wantError: true},
		{name: "too long", value: "ctx_00112233445566778899", wantError: true},
		{name: "missing prefix", value: "0011223344556677", wantError: true},
		{name: "wrong prefix", value: "ses_0011223344556677", wantError: true},
		{name: "non-hex characters", value: "ctx_001122334455667g", wantError: true},
	}

	v := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := testStruct{ContextID: tt.value}
			err := v.Validate(&s)
			if tt.wantError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "is not a valid context id")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateArch(t *testing.T) {
	t.Parallel()

	type testStruct struct {
		Arch string `validate:"arch"`
	}

	tests := []struct {
		name      string
		value     string
		wantError bool
	}{
		{name: "empty arch skips validation", value: "", wantError: false},
		{name: "intel", value: "intel", wantError: false},
		{name: "gpt", value: "gpt", wantError: false},
		{name: "mac", value: "mac", wantError: false},
		{name: "sun", value: "sun", wantError: false},
		{name: "xbox", value: "xbox", wantError: false},
		{name: "none", value: "none", wantError: false},
		{name: "case insensitive", value: "Intel", wantError: false},
		{name: "unknown arch", value: "amiga", wantError: true},
		{name: "partial name", value: "int", wantError: true},
	}

	v := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := testStruct{Arch: tt.value}
			err := v.Validate(&s)
			if tt.wantError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "is not supported")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateRegex(t *testing.T) {
	t.Parallel()

	type testStruct struct {
		Pattern string `validate:"regex"`
	}

	tests := []struct {
		name      string
		value     string
		wantError bool
	}{
		{name: "empty pattern is valid", value: "", wantError: false},
		{name: "simple pattern", value: "abc", wantError: false},
		{name: "wildcard pattern", value: ".*", wantError: false},
		{name: "device path pattern", value: "^/dev/sd[a-z]$", wantError: false},
		{name: "groups", value: "(nvme|sd)[a-z0-9]+", wantError: false},
		{name: "unclosed bracket", value: "[abc", wantError: true},
		{name: "unclosed paren", value: "(abc", wantError: true},
		{name: "invalid repetition", value: "*invalid", wantError: true},
	}

	v := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := testStruct{Pattern: tt.value}
			err := v.Validate(&s)
			if tt.wantError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "must be a valid regex pattern")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateOneof(t *testing.T) {
	t.Parallel()

	type testStruct struct {
		LogMode string `validate:"oneof=none append new"`
	}

	tests := []struct {
		name      string
		value     string
		wantError bool
	}{
		{name: "none", value: "none", wantError: false},
		{name: "append", value: "append", wantError: false},
		{name: "new", value: "new", wantError: false},
		{name: "unknown mode", value: "rotate", wantError: true},
		{name: "empty is not a member", value: "", wantError: true},
	}

	v := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := testStruct{LogMode: tt.value}
			err := v.Validate(&s)
			if tt.wantError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "must be one of")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateAndUnmarshal(t *testing.T) {
	t.Parallel()

	type testParams struct {
		Device      string `json:"device"      validate:"required"`
		RecoveryDir string `json:"recoveryDir" validate:"required"`
		LogMode     string `json:"logMode"     validate:"omitempty,oneof=none append new"`
	}

	tests := []struct {
		wantError error
		name      string
		errorMsg  string
		input     json.RawMessage
	}{
		{
			name:      "nil params returns ErrMissingParams",
			input:     nil,
			wantError: ErrMissingParams,
		},
		{
			name:      "empty params returns ErrMissingParams",
			input:     json.RawMessage{},
			wantError: ErrMissingParams,
		},
		{
			name:      "invalid JSON returns ErrInvalidParams",
			input:     json.RawMessage(`{invalid}`),
			wantError: ErrInvalidParams,
		},
		{
			name:  "valid params pass validation",
			input: json.RawMessage(`{"device": "/dev/sdb", "recoveryDir": "/mnt/recovered", "logMode": "append"}`),
		},
		{
			name:     "missing required field",
			input:    json.RawMessage(`{"recoveryDir": "/mnt/recovered"}`),
			errorMsg: "device is required",
		},
		{
			name:     "invalid enum value",
			input:    json.RawMessage(`{"device": "/dev/sdb", "recoveryDir": "/mnt/recovered", "logMode": "rotate"}`),
			errorMsg: "logmode must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var params testParams
			err := ValidateAndUnmarshal(tt.input, &params)

			switch {
			case tt.wantError != nil:
				require.ErrorIs(t, err, tt.wantError)
			case tt.errorMsg != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateAndUnmarshalReturnsTypedError(t *testing.T) {
	t.Parallel()

	type testParams struct {
		Device string `json:"device" validate:"required"`
	}

	var params testParams
	err := ValidateAndUnmarshal(json.RawMessage(`{}`), &params)
	require.Error(t, err)

	var valErr *Error
	require.True(t, errors.As(err, &valErr))
	assert.NotEmpty(t, valErr.Fields)
}

func TestValidateRegexPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		pattern   string
		wantError bool
	}{
		{name: "empty pattern is valid", pattern: "", wantError: false},
		{name: "simple pattern", pattern: "abc", wantError: false},
		{name: "complex pattern", pattern: "^[a-zA-Z0-9]+\\.(img|dd)$", wantError: false},
		{name: "invalid bracket", pattern: "[abc", wantError: true},
		{name: "invalid paren", pattern: "(abc", wantError: true},
		{name: "invalid repetition", pattern: "*invalid", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateRegexPattern(tt.pattern)
			if tt.wantError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid regex pattern")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestErrorFormatting(t *testing.T) {
	t.Parallel()

	type testStruct struct {
		Device  string `validate:"required"`
		LogMode string `validate:"required,oneof=none append new"`
	}

	v := NewValidator()
	s := testStruct{Device: "", LogMode: ""}
	err := v.Validate(&s)

	require.Error(t, err)

	var valErr *Error
	require.True(t, errors.As(err, &valErr))
	assert.Len(t, valErr.Fields, 2)
	assert.Contains(t, err.Error(), "device is required")
	assert.Contains(t, err.Error(), "logmode is required")
}
