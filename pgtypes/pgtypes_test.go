// Copyright 2023 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package pgtypes_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cockroachdb/dbxfer/pgtypes"
)

func TestAssocMatchesDeclaredValueTypes(t *testing.T) {
	require.True(t, pgtypes.Assoc[int32](pgtypes.Int32))
	require.True(t, pgtypes.Assoc[int64](pgtypes.Int64))
	require.True(t, pgtypes.Assoc[float64](pgtypes.Float64))
	require.True(t, pgtypes.Assoc[string](pgtypes.Utf8))
	require.True(t, pgtypes.Assoc[string](pgtypes.Decimal))
	require.True(t, pgtypes.Assoc[string](pgtypes.Json))
	require.True(t, pgtypes.Assoc[bool](pgtypes.Bool))
	require.True(t, pgtypes.Assoc[[]byte](pgtypes.Bytes))
	require.True(t, pgtypes.Assoc[time.Time](pgtypes.Timestamptz))
	require.True(t, pgtypes.Assoc[[]int32](pgtypes.ListOfInt32))
	require.True(t, pgtypes.Assoc[*int32](pgtypes.NullableInt32))
	require.True(t, pgtypes.Assoc[*bool](pgtypes.NullableBool))
}

func TestAssocRejectsMismatch(t *testing.T) {
	require.False(t, pgtypes.Assoc[int32](pgtypes.Int64))
	require.False(t, pgtypes.Assoc[string](pgtypes.Int32))
	require.False(t, pgtypes.Assoc[*int32](pgtypes.Int32))
}

func TestOIDRoundTrip(t *testing.T) {
	for _, tag := range []pgtypes.Tag{
		pgtypes.Int32, pgtypes.Int64, pgtypes.Float64, pgtypes.Utf8, pgtypes.Bool,
		pgtypes.Bytes, pgtypes.Decimal, pgtypes.Timestamptz, pgtypes.Json, pgtypes.ListOfInt32,
	} {
		oid, ok := tag.OID()
		require.True(t, ok, "tag %v should have an OID", tag)
		got, ok := pgtypes.TagFromOID(oid)
		require.True(t, ok)
		require.Equal(t, tag, got)
	}
}

func TestTagFromOIDUnknown(t *testing.T) {
	_, ok := pgtypes.TagFromOID(0xdeadbeef)
	require.False(t, ok)
}

func TestTagStringIsStable(t *testing.T) {
	require.Equal(t, "int32", pgtypes.Int32.String())
	require.Equal(t, "nullable_timestamptz", pgtypes.NullableTimestamptz.String())
	require.Equal(t, "unknown-pgtype", pgtypes.Tag(999).String())
}
