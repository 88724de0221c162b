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

package dispatcher_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/stretchr/testify/require"

	"github.com/cockroachdb/dbxfer/arrowdest"
	"github.com/cockroachdb/dbxfer/chaos"
	"github.com/cockroachdb/dbxfer/dataorder"
	"github.com/cockroachdb/dbxfer/dispatcher"
	"github.com/cockroachdb/dbxfer/memsource"
	"github.com/cockroachdb/dbxfer/pgarrow"
	"github.com/cockroachdb/dbxfer/pgcsv"
	"github.com/cockroachdb/dbxfer/pgtypes"
	"github.com/cockroachdb/dbxfer/pool"
)

// newMemsourceDispatcher wires a memsource.Source, an arrowdest.Destination
// and the shared pgarrow.RuleSet into a Dispatcher, the way
// wiring.ProvideDispatcher does minus its connection pool and origin
// query, without going through package wire so tests can tweak the
// collaborators directly.
func newMemsourceDispatcher(
	t *testing.T, results map[string]memsource.QueryResult, queries []string,
) (*dispatcher.Dispatcher[pgtypes.Tag, arrowdest.Tag, pgtypes.Producer, arrowdest.Consumer], *arrowdest.Destination) {
	t.Helper()
	src, err := memsource.New(results)
	require.NoError(t, err)
	dst, err := arrowdest.New()
	require.NoError(t, err)
	rs := pgarrow.New()

	d := &dispatcher.Dispatcher[pgtypes.Tag, arrowdest.Tag, pgtypes.Producer, arrowdest.Consumer]{
		Source:      src,
		Destination: dst,
		Transport:   rs,
		Queries:     queries,
	}
	return d, dst
}

func TestGetMetaNegotiatesOrderAndConfiguresDestination(t *testing.T) {
	// S1.
	results := map[string]memsource.QueryResult{
		"Q": {Columns: []memsource.Column{{Name: "a", Tag: pgtypes.Int32}}, Rows: [][]any{{int32(1)}}},
	}
	d, dst := newMemsourceDispatcher(t, results, []string{"Q"})

	meta, err := d.GetMeta(context.Background())
	require.NoError(t, err)
	require.Equal(t, dataorder.RowMajor, meta.Order)
	require.Equal(t, []string{"a"}, meta.SrcSchema.Names)
	require.Equal(t, []string{"a"}, meta.DstSchema.Names)
	require.Equal(t, meta.DstSchema, dst.Schema())
}

func TestPrepareRunRoundTripsIntegerIdentity(t *testing.T) {
	// S3: two partitions, each with two Int32 columns, row count and
	// values preserved exactly.
	results := map[string]memsource.QueryResult{
		"Q1": {
			Columns: []memsource.Column{{Name: "a", Tag: pgtypes.Int32}, {Name: "b", Tag: pgtypes.Int32}},
			Rows:    [][]any{{int32(1), int32(2)}},
		},
		"Q2": {
			Columns: []memsource.Column{{Name: "a", Tag: pgtypes.Int32}, {Name: "b", Tag: pgtypes.Int32}},
			Rows:    [][]any{{int32(3), int32(4)}},
		},
	}
	d, dst := newMemsourceDispatcher(t, results, []string{"Q1", "Q2"})

	ctx := context.Background()
	plan, err := d.Prepare(ctx)
	require.NoError(t, err)
	require.Len(t, plan.Partitions, 2)
	require.Len(t, plan.Writers, 2)

	require.NoError(t, d.Run(ctx, plan))

	recs := dst.Records()
	require.Len(t, recs, 2)

	var total int64
	seen := map[int32]bool{}
	for _, rec := range recs {
		defer rec.Release()
		total += rec.NumRows()
		col0 := rec.Column(0).(*array.Int32)
		col1 := rec.Column(1).(*array.Int32)
		for r := 0; r < int(rec.NumRows()); r++ {
			seen[col0.Value(r)] = true
			seen[col1.Value(r)] = true
		}
	}
	require.EqualValues(t, 2, total)
	require.Equal(t, map[int32]bool{1: true, 2: true, 3: true, 4: true}, seen)
}

func TestPrepareFailsWhenOrdersDoNotAgree(t *testing.T) {
	// S2: a destination that advertises no orders in common with the
	// source cannot be negotiated against.
	results := map[string]memsource.QueryResult{
		"Q": {Columns: []memsource.Column{{Name: "a", Tag: pgtypes.Int32}}, Rows: [][]any{{int32(1)}}},
	}
	src, err := memsource.New(results)
	require.NoError(t, err)
	dst, err := arrowdest.New()
	require.NoError(t, err)

	d := &dispatcher.Dispatcher[pgtypes.Tag, arrowdest.Tag, pgtypes.Producer, arrowdest.Consumer]{
		Source:      src,
		Destination: noOrderDestination{dst},
		Transport:   pgarrow.New(),
		Queries:     []string{"Q"},
	}
	_, err = d.Prepare(context.Background())
	require.ErrorIs(t, err, dataorder.ErrUnsupportedDataOrder)
}

// noOrderDestination wraps an arrowdest.Destination and advertises no
// supported data orders, forcing Coordinate to fail regardless of what
// the source prefers.
type noOrderDestination struct {
	*arrowdest.Destination
}

func (noOrderDestination) DataOrders() []dataorder.Order { return nil }

func TestRunPreservesNullsInOptionalColumn(t *testing.T) {
	// S4: [Some(1), None, Some(3)] through the full pipeline.
	one := int32(1)
	three := int32(3)
	results := map[string]memsource.QueryResult{
		"Q": {
			Columns: []memsource.Column{{Name: "a", Tag: pgtypes.NullableInt32}},
			Rows:    [][]any{{&one}, {nil}, {&three}},
		},
	}
	d, dst := newMemsourceDispatcher(t, results, []string{"Q"})

	ctx := context.Background()
	plan, err := d.Prepare(ctx)
	require.NoError(t, err)
	require.NoError(t, d.Run(ctx, plan))

	recs := dst.Records()
	require.Len(t, recs, 1)
	defer recs[0].Release()
	require.EqualValues(t, 3, recs[0].NumRows())
	col := recs[0].Column(0)
	require.True(t, col.IsValid(0))
	require.False(t, col.IsValid(1))
	require.True(t, col.IsValid(2))
}

func TestRunThroughCSVTimestamptz(t *testing.T) {
	// S5: pgcsv as the Source, exercising the shared RuleSet against a
	// text-wire-format driver instead of memsource.
	results := map[string]pgcsv.QueryResult{
		"Q": {
			Columns: []pgcsv.Column{{Name: "ts", Tag: pgtypes.Timestamptz}},
			Rows:    [][]string{{"1970-01-01 00:00:01+00"}},
		},
	}
	src, err := pgcsv.New(results)
	require.NoError(t, err)
	dst, err := arrowdest.New()
	require.NoError(t, err)

	d := &dispatcher.Dispatcher[pgtypes.Tag, arrowdest.Tag, pgtypes.Producer, arrowdest.Consumer]{
		Source:      src,
		Destination: dst,
		Transport:   pgarrow.New(),
		Queries:     []string{"Q"},
	}

	ctx := context.Background()
	plan, err := d.Prepare(ctx)
	require.NoError(t, err)
	require.NoError(t, d.Run(ctx, plan))

	recs := dst.Records()
	require.Len(t, recs, 1)
	defer recs[0].Release()
	col := recs[0].Column(0).(*array.Timestamp)
	got := col.Value(0).ToTime(arrow.Microsecond).UTC()
	require.True(t, got.Equal(time.Date(1970, 1, 1, 0, 0, 1, 0, time.UTC)))
}

func TestRunEmptyResultSetProducesNoRows(t *testing.T) {
	// Boundary: an empty result set still negotiates and finishes
	// cleanly; the only FetchNext call reports n=0 and isLast=true.
	results := map[string]memsource.QueryResult{
		"Q": {Columns: []memsource.Column{{Name: "a", Tag: pgtypes.Int32}}, Rows: nil},
	}
	d, dst := newMemsourceDispatcher(t, results, []string{"Q"})

	ctx := context.Background()
	plan, err := d.Prepare(ctx)
	require.NoError(t, err)
	require.NoError(t, d.Run(ctx, plan))
	require.Empty(t, dst.Records())
}

func TestRunColumnMajorSingleColumnMatchesRowMajor(t *testing.T) {
	// Boundary: with a single column, row-major and column-major
	// traversal of a cell table are equivalent; exercised here by
	// forcing ColumnMajor via a destination that only accepts it.
	results := map[string]memsource.QueryResult{
		"Q": {
			Columns: []memsource.Column{{Name: "a", Tag: pgtypes.Int32}},
			Rows:    [][]any{{int32(1)}, {int32(2)}, {int32(3)}},
		},
	}
	src, err := memsource.New(results)
	require.NoError(t, err)
	dst, err := arrowdest.New()
	require.NoError(t, err)

	d := &dispatcher.Dispatcher[pgtypes.Tag, arrowdest.Tag, pgtypes.Producer, arrowdest.Consumer]{
		Source:      src,
		Destination: columnMajorOnlyDestination{dst},
		Transport:   pgarrow.New(),
		Queries:     []string{"Q"},
	}

	ctx := context.Background()
	plan, err := d.Prepare(ctx)
	require.NoError(t, err)
	require.Equal(t, dataorder.ColumnMajor, plan.Order)
	require.NoError(t, d.Run(ctx, plan))

	recs := dst.Records()
	require.Len(t, recs, 1)
	defer recs[0].Release()
	col := recs[0].Column(0).(*array.Int32)
	require.Equal(t, []int32{1, 2, 3}, col.Int32Values())
}

type columnMajorOnlyDestination struct {
	*arrowdest.Destination
}

func (columnMajorOnlyDestination) DataOrders() []dataorder.Order {
	return []dataorder.Order{dataorder.ColumnMajor}
}

func TestRunColumnMajorMultiColumnPreservesRows(t *testing.T) {
	// ColumnMajor with ncols > 1: the parser and writer cursors both
	// walk row-first within a column, so the materialized rows must
	// still come out aligned.
	results := map[string]memsource.QueryResult{
		"Q": {
			Columns: []memsource.Column{{Name: "a", Tag: pgtypes.Int32}, {Name: "b", Tag: pgtypes.Utf8}},
			Rows:    [][]any{{int32(1), "x"}, {int32(2), "y"}, {int32(3), "z"}},
		},
	}
	src, err := memsource.New(results)
	require.NoError(t, err)
	dst, err := arrowdest.New()
	require.NoError(t, err)

	d := &dispatcher.Dispatcher[pgtypes.Tag, arrowdest.Tag, pgtypes.Producer, arrowdest.Consumer]{
		Source:      src,
		Destination: columnMajorOnlyDestination{dst},
		Transport:   pgarrow.New(),
		Queries:     []string{"Q"},
	}

	ctx := context.Background()
	plan, err := d.Prepare(ctx)
	require.NoError(t, err)
	require.Equal(t, dataorder.ColumnMajor, plan.Order)
	require.NoError(t, d.Run(ctx, plan))

	recs := dst.Records()
	require.Len(t, recs, 1)
	defer recs[0].Release()
	ints := recs[0].Column(0).(*array.Int32)
	strs := recs[0].Column(1).(*array.String)
	require.Equal(t, []int32{1, 2, 3}, ints.Int32Values())
	require.Equal(t, "x", strs.Value(0))
	require.Equal(t, "y", strs.Value(1))
	require.Equal(t, "z", strs.Value(2))
}

func TestRunAcquiresAndReleasesPooledConnections(t *testing.T) {
	// Each partition worker checks one connection out of the pool for
	// the duration of its work; by the time Run returns, every slot
	// must be back.
	results := map[string]memsource.QueryResult{
		"Q1": {Columns: []memsource.Column{{Name: "a", Tag: pgtypes.Int32}}, Rows: [][]any{{int32(1)}}},
		"Q2": {Columns: []memsource.Column{{Name: "a", Tag: pgtypes.Int32}}, Rows: [][]any{{int32(2)}}},
	}
	src, err := memsource.New(results)
	require.NoError(t, err)
	dst, err := arrowdest.New()
	require.NoError(t, err)

	var opened int32
	conns, err := pool.New(2, func(ctx context.Context) (pool.Conn, error) {
		return atomic.AddInt32(&opened, 1), nil
	}, nil)
	require.NoError(t, err)

	d := &dispatcher.Dispatcher[pgtypes.Tag, arrowdest.Tag, pgtypes.Producer, arrowdest.Consumer]{
		Source:      src,
		Destination: dst,
		Transport:   pgarrow.New(),
		Queries:     []string{"Q1", "Q2"},
		ConnPool:    conns,
	}

	ctx := context.Background()
	plan, err := d.Prepare(ctx)
	require.NoError(t, err)
	require.NoError(t, d.Run(ctx, plan))

	require.EqualValues(t, 2, opened)
	require.Zero(t, conns.Len())
	for _, rec := range dst.Records() {
		rec.Release()
	}
}

func TestRunTwoBoolPartitionsBoundedBatches(t *testing.T) {
	// S6 (contract form): two partitions of booleans streamed through a
	// small DB buffer and a small destination batch size, so FetchNext
	// runs repeatedly and the writer splits its output into several
	// records while still delivering exactly the source-sent rows.
	rows := func(vals ...bool) [][]any {
		out := make([][]any, len(vals))
		for i, v := range vals {
			out[i] = []any{v}
		}
		return out
	}
	results := map[string]memsource.QueryResult{
		"Q1": {Columns: []memsource.Column{{Name: "ok", Tag: pgtypes.Bool}}, Rows: rows(true, false, true, true, false)},
		"Q2": {Columns: []memsource.Column{{Name: "ok", Tag: pgtypes.Bool}}, Rows: rows(false, false, true)},
	}
	src, err := memsource.New(results, memsource.WithDBBufferSize(2))
	require.NoError(t, err)
	dst, err := arrowdest.New(arrowdest.WithMinBatchSize(2))
	require.NoError(t, err)

	d := &dispatcher.Dispatcher[pgtypes.Tag, arrowdest.Tag, pgtypes.Producer, arrowdest.Consumer]{
		Source:      src,
		Destination: dst,
		Transport:   pgarrow.New(),
		Queries:     []string{"Q1", "Q2"},
	}

	ctx := context.Background()
	plan, err := d.Prepare(ctx)
	require.NoError(t, err)
	require.NoError(t, d.Run(ctx, plan))

	var total int64
	for _, rec := range dst.Records() {
		defer rec.Release()
		total += rec.NumRows()
	}
	require.EqualValues(t, 8, total)
}

func TestPrepareSurfacesInjectedSourceFailure(t *testing.T) {
	// Fault injection: a chaos-wrapped source that fails at every
	// injection point makes Prepare return an error that still matches
	// chaos.ErrChaos.
	results := map[string]memsource.QueryResult{
		"Q1": {Columns: []memsource.Column{{Name: "a", Tag: pgtypes.Int32}}, Rows: [][]any{{int32(1)}}},
		"Q2": {Columns: []memsource.Column{{Name: "a", Tag: pgtypes.Int32}}, Rows: [][]any{{int32(2)}}},
	}
	src, err := memsource.New(results)
	require.NoError(t, err)
	dst, err := arrowdest.New()
	require.NoError(t, err)

	chaosSrc := chaos.WrapSource[pgtypes.Tag, pgtypes.Producer](src, chaos.WithProbability(1))

	d := &dispatcher.Dispatcher[pgtypes.Tag, arrowdest.Tag, pgtypes.Producer, arrowdest.Consumer]{
		Source:      chaosSrc,
		Destination: dst,
		Transport:   pgarrow.New(),
		Queries:     []string{"Q1", "Q2"},
	}

	ctx := context.Background()
	// FetchMetadata is also chaos-injected at probability 1, so Prepare
	// itself is expected to fail here; this confirms the dispatcher
	// surfaces the underlying collaborator's error unwrapped to ErrChaos.
	_, err = d.Prepare(ctx)
	require.ErrorIs(t, err, chaos.ErrChaos)
}
