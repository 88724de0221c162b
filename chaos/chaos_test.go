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

package chaos_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cockroachdb/dbxfer/arrowdest"
	"github.com/cockroachdb/dbxfer/chaos"
	"github.com/cockroachdb/dbxfer/dataorder"
	"github.com/cockroachdb/dbxfer/memsource"
	"github.com/cockroachdb/dbxfer/pgtypes"
	"github.com/cockroachdb/dbxfer/typesystem"
)

func TestSourceFetchMetadataAlwaysFails(t *testing.T) {
	results := map[string]memsource.QueryResult{
		"Q": {Columns: []memsource.Column{{Name: "a", Tag: pgtypes.Int32}}, Rows: [][]any{{int32(1)}}},
	}
	inner, err := memsource.New(results)
	require.NoError(t, err)

	wrapped := chaos.WrapSource[pgtypes.Tag, pgtypes.Producer](inner, chaos.WithProbability(1))
	wrapped.SetQueries([]string{"Q"})

	_, err = wrapped.FetchMetadata(context.Background())
	require.ErrorIs(t, err, chaos.ErrChaos)
}

func TestSourceNeverFailsAtZeroProbability(t *testing.T) {
	results := map[string]memsource.QueryResult{
		"Q": {Columns: []memsource.Column{{Name: "a", Tag: pgtypes.Int32}}, Rows: [][]any{{int32(1)}}},
	}
	inner, err := memsource.New(results)
	require.NoError(t, err)

	wrapped := chaos.WrapSource[pgtypes.Tag, pgtypes.Producer](inner)
	wrapped.SetQueries([]string{"Q"})

	_, err = wrapped.FetchMetadata(context.Background())
	require.NoError(t, err)
}

func TestPartitionOpenAlwaysFails(t *testing.T) {
	results := map[string]memsource.QueryResult{
		"Q": {Columns: []memsource.Column{{Name: "a", Tag: pgtypes.Int32}}, Rows: [][]any{{int32(1)}}},
	}
	inner, err := memsource.New(results)
	require.NoError(t, err)
	ctx := context.Background()

	chaosy := chaos.WrapSource[pgtypes.Tag, pgtypes.Producer](inner, chaos.WithProbability(1))
	chaosy.SetQueries([]string{"Q"})

	parts, err := chaosy.Partition(ctx)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	_, err = parts[0].Open(ctx)
	require.ErrorIs(t, err, chaos.ErrChaos)
}

func TestDestinationAllocatePartitionAlwaysFails(t *testing.T) {
	inner, err := arrowdest.New()
	require.NoError(t, err)

	schema, err := typesystem.New([]string{"a"}, []arrowdest.Tag{arrowdest.Int32})
	require.NoError(t, err)

	plain := chaos.WrapDestination[arrowdest.Tag, arrowdest.Consumer](inner)
	require.NoError(t, plain.SetMetadata(schema, dataorder.RowMajor))

	chaosy := chaos.WrapDestination[arrowdest.Tag, arrowdest.Consumer](inner, chaos.WithProbability(1))
	_, err = chaosy.AllocatePartition()
	require.ErrorIs(t, err, chaos.ErrChaos)
}

func TestDeterministicRandSource(t *testing.T) {
	calls := 0
	seq := []float32{0.9, 0.1}
	rnd := func() float32 {
		v := seq[calls%len(seq)]
		calls++
		return v
	}

	inner, err := arrowdest.New()
	require.NoError(t, err)
	w := chaos.WrapDestination[arrowdest.Tag, arrowdest.Consumer](inner, chaos.WithProbability(0.5), chaos.WithRand(rnd))

	schema, err := typesystem.New([]string{"a"}, []arrowdest.Tag{arrowdest.Int32})
	require.NoError(t, err)

	// First call: rnd()=0.9, not < 0.5, so it succeeds.
	require.NoError(t, w.SetMetadata(schema, dataorder.RowMajor))
	// Second call: rnd()=0.1, < 0.5, so it fails.
	_, err = w.AllocatePartition()
	require.ErrorIs(t, err, chaos.ErrChaos)
}
