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

// Package dispatcher wires a source.Source, a destination.Destination,
// and a transport.Transport together and drives the whole bulk-load run:
// negotiate the data order, fetch metadata, derive the destination
// schema, partition the source, and move cells in parallel, one
// goroutine per partition, via package workerpool.
package dispatcher

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/cockroachdb/dbxfer/dataorder"
	"github.com/cockroachdb/dbxfer/destination"
	"github.com/cockroachdb/dbxfer/pool"
	"github.com/cockroachdb/dbxfer/source"
	"github.com/cockroachdb/dbxfer/transport"
	"github.com/cockroachdb/dbxfer/typesystem"
	"github.com/cockroachdb/dbxfer/workerpool"
	"github.com/cockroachdb/dbxfer/xferr"
)

// Dispatcher binds one Source to one Destination via a Transport and
// runs the bulk load described by Queries/OriginQuery. TSS and TSD are
// the source and destination type systems' tag types; P and W are the
// concrete Parser and Writer capability interfaces the Transport was
// built for (e.g. pgtypes.Producer and arrowdest.Consumer).
type Dispatcher[TSS, TSD comparable, P source.Parser, W destination.Writer] struct {
	Source      source.Source[TSS, P]
	Destination destination.Destination[TSD, W]
	Transport   transport.Transport[TSS, TSD, P, W]

	// Queries is the partition SQL, one statement per partition. Its
	// length determines how many partitions Source.Partition must
	// return and how many writers Prepare allocates.
	Queries []string

	// OriginQuery is passed to Source.SetOriginQuery unmodified; it may
	// be empty for sources that don't need one.
	OriginQuery string

	// ConnPool, when non-nil, bounds the driver connections shared
	// across partition workers: each worker acquires one connection
	// before opening its parser and releases it when the worker
	// returns. Sized to the partition count by convention, so workers
	// never block on one another's slot.
	ConnPool *pool.Pool[pool.Conn]
}

// Meta is the result of the metadata-only negotiation phase: the
// negotiated data order and both type systems' schemas, with the
// destination already configured via Destination.SetMetadata.
type Meta[TSS, TSD comparable] struct {
	Order     dataorder.Order
	SrcSchema typesystem.Schema[TSS]
	DstSchema typesystem.Schema[TSD]
}

// Plan is the result of Prepare: a Meta plus one not-yet-opened
// Partition and one allocated Writer per query, ready for Run.
type Plan[TSS, TSD comparable, P source.Parser, W destination.Writer] struct {
	Meta[TSS, TSD]
	Partitions []source.Partition[P]
	Writers    []W
}

// GetMeta runs the negotiation-and-metadata phase only: order
// negotiation, SetQueries/SetOriginQuery, FetchMetadata, schema
// conversion, and Destination.SetMetadata. It does not partition the
// source or allocate writers, and is meant for callers that only need
// to know the destination schema before committing to a full Prepare
// (e.g. to pre-create a table).
func (d *Dispatcher[TSS, TSD, P, W]) GetMeta(ctx context.Context) (*Meta[TSS, TSD], error) {
	runID := uuid.NewString()
	entry := log.WithFields(log.Fields{"run": runID, "phase": "meta"})

	order, err := dataorder.Coordinate(d.Source.DataOrders(), d.Destination.DataOrders())
	if err != nil {
		entry.WithError(err).Debug("data order negotiation failed")
		return nil, err
	}
	entry.WithField("order", order).Trace("negotiated data order")

	if err := d.Source.SetDataOrder(order); err != nil {
		return nil, errors.Wrap(err, "dispatcher: applying negotiated data order to source")
	}
	d.Source.SetQueries(d.Queries)
	d.Source.SetOriginQuery(d.OriginQuery)

	srcSchema, err := d.Source.FetchMetadata(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "dispatcher: fetching source metadata")
	}

	dstSchema, err := typesystem.Convert(srcSchema, d.Transport.ConvertTag)
	if err != nil {
		return nil, errors.Wrap(err, "dispatcher: converting source schema to destination type system")
	}

	if err := d.Destination.SetMetadata(dstSchema, order); err != nil {
		return nil, errors.Wrap(err, "dispatcher: configuring destination metadata")
	}

	entry.WithFields(log.Fields{"columns": srcSchema.NCols()}).Debug("metadata negotiated")
	return &Meta[TSS, TSD]{Order: order, SrcSchema: srcSchema, DstSchema: dstSchema}, nil
}

// Prepare runs GetMeta and then partitions the source and allocates one
// writer per partition. The returned Plan is ready to be passed to Run.
func (d *Dispatcher[TSS, TSD, P, W]) Prepare(ctx context.Context) (*Plan[TSS, TSD, P, W], error) {
	meta, err := d.GetMeta(ctx)
	if err != nil {
		return nil, err
	}

	partitions, err := d.Source.Partition(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "dispatcher: partitioning source")
	}
	if len(partitions) != len(d.Queries) {
		return nil, errors.Errorf(
			"dispatcher: source returned %d partitions for %d queries", len(partitions), len(d.Queries))
	}

	writers := make([]W, len(partitions))
	for i := range writers {
		w, err := d.Destination.AllocatePartition()
		if err != nil {
			return nil, errors.Wrapf(err, "dispatcher: allocating writer for partition %d", i)
		}
		writers[i] = w
	}

	log.WithFields(log.Fields{"partitions": len(partitions)}).Debug("partitions and writers allocated")
	return &Plan[TSS, TSD, P, W]{Meta: *meta, Partitions: partitions, Writers: writers}, nil
}

// Run drives every partition in plan to completion concurrently,
// stopping all partitions as soon as any one fails (workerpool's
// fail-fast semantics). It returns the first error seen, or nil if
// every partition's writer finished successfully.
func (d *Dispatcher[TSS, TSD, P, W]) Run(ctx context.Context, plan *Plan[TSS, TSD, P, W]) error {
	runID := uuid.NewString()
	timer := prometheus.NewTimer(runDuration)
	defer timer.ObserveDuration()

	for col := range plan.SrcSchema.Tags {
		cellConversionsTotal.WithLabelValues(
			fmt.Sprintf("%v", plan.SrcSchema.Tags[col]),
			fmt.Sprintf("%v", plan.DstSchema.Tags[col]),
		).Inc()
	}

	tasks := make([]func(context.Context) error, len(plan.Partitions))
	for i := range plan.Partitions {
		i := i
		tasks[i] = func(ctx context.Context) error {
			return d.runPartition(ctx, runID, i, plan)
		}
	}
	return workerpool.Run(ctx, tasks)
}

// runPartition opens partition i, builds its per-column table, pumps
// every row through that table in the negotiated order, and finishes its
// writer. It is invoked once per partition, each on its own goroutine,
// by Run.
func (d *Dispatcher[TSS, TSD, P, W]) runPartition(
	ctx context.Context,
	runID string,
	i int,
	plan *Plan[TSS, TSD, P, W],
) (err error) {
	entry := log.WithFields(log.Fields{"run": runID, "partition": i})
	defer func() {
		if err != nil {
			partitionErrorsTotal.Inc()
		}
	}()

	if d.ConnPool != nil {
		conn, err := d.ConnPool.Acquire(ctx)
		if err != nil {
			return errors.Wrapf(err, "dispatcher: acquiring connection for partition %d", i)
		}
		defer func() {
			if err := d.ConnPool.Release(conn); err != nil {
				entry.WithError(err).Warn("releasing partition connection")
			}
		}()
	}

	parser, err := plan.Partitions[i].Open(ctx)
	if err != nil {
		return errors.Wrapf(err, "dispatcher: opening parser for partition %d", i)
	}
	table, err := transport.BuildColumnTable(d.Transport, plan.SrcSchema.Tags, plan.DstSchema.Tags)
	if err != nil {
		return errors.Wrapf(err, "dispatcher: building column table for partition %d", i)
	}
	writer := plan.Writers[i]
	ncols := len(table)

	var rowsMoved int
	for {
		if workerpool.Cancelled(ctx) {
			entry.Debug("stopping: peer partition failed")
			return errors.WithStack(xferr.ErrCancelled)
		}

		n, isLast, err := parser.FetchNext(ctx)
		if err != nil {
			return errors.Wrapf(err, "dispatcher: fetching next batch for partition %d", i)
		}

		if err := writer.ReserveRows(n); err != nil {
			return errors.Wrapf(err, "dispatcher: reserving %d rows for partition %d", n, i)
		}

		switch plan.Order {
		case dataorder.RowMajor:
			for r := 0; r < n; r++ {
				for c := 0; c < ncols; c++ {
					if err := table[c](parser, writer); err != nil {
						return errors.Wrapf(err, "dispatcher: partition %d row %d col %d", i, r, c)
					}
				}
			}
		case dataorder.ColumnMajor:
			for c := 0; c < ncols; c++ {
				for r := 0; r < n; r++ {
					if err := table[c](parser, writer); err != nil {
						return errors.Wrapf(err, "dispatcher: partition %d row %d col %d", i, r, c)
					}
				}
			}
		}
		rowsMoved += n

		if isLast {
			break
		}
	}

	if err := writer.Finish(); err != nil {
		return errors.Wrapf(err, "dispatcher: finishing writer for partition %d", i)
	}

	rowsMovedTotal.Add(float64(rowsMoved))
	partitionsCompletedTotal.Inc()
	entry.WithField("rows", rowsMoved).Debug("partition finished")
	return nil
}
