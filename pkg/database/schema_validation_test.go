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

package database

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestSchema_NullableFieldsUseCorrectTypes is a proactive regression test that
// ensures nullable database columns are represented with nil-able Go types.
// A nullable column mapped to a plain value type makes row scans fail the
// first time a NULL shows up.
//
// Add any new nullable fields to the list below.
func TestSchema_NullableFieldsUseCorrectTypes(t *testing.T) {
	t.Parallel()

	type fieldSpec struct {
		structType reflect.Type
		fieldName  string
		expectType string
	}

	nullableFields := []fieldSpec{
		{
			structType: reflect.TypeOf(RecoveryRun{}),
			fieldName:  "FinishedAt",
			expectType: "*time.Time",
		},
		// Add future nullable fields here as they're added to the schema
	}

	for _, spec := range nullableFields {
		t.Run(spec.structType.Name()+"."+spec.fieldName, func(t *testing.T) {
			field, found := spec.structType.FieldByName(spec.fieldName)
			assert.True(t, found, "Field %s.%s not found in struct",
				spec.structType.Name(), spec.fieldName)

			actualType := field.Type.String()

			assert.Equal(t, spec.expectType, actualType,
				"Field %s.%s should be %s to match nullable database column, but is %s. "+
					"Scanning NULL values will fail!",
				spec.structType.Name(), spec.fieldName, spec.expectType, actualType)
		})
	}
}

// TestSchema_EventTypesMatchNotificationMethods pins the event type strings:
// rows written by the audit tracker must stay queryable by the statistics
// code even if the notification constants move.
func TestSchema_EventTypesMatchNotificationMethods(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "contexts.added", EventContextCreated)
	assert.Equal(t, "contexts.removed", EventContextRemoved)
	assert.Equal(t, "recovery.started", EventRunStarted)
	assert.Equal(t, "recovery.stopped", EventRunFinished)
	assert.Equal(t, "service.stopping", EventServiceStopping)
}
