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

// Package source defines the driver-facing contract a database client
// implements in order to act as a bulk-load source: a schema-fetching,
// partitioning, streaming-cursor trio. Concrete drivers (a real
// Postgres/MySQL/etc. client) live outside this module; this package
// only defines the shapes the dispatcher drives.
package source

import (
	"context"

	"github.com/cockroachdb/dbxfer/dataorder"
	"github.com/cockroachdb/dbxfer/typesystem"
)

// Parser is a stateful, batched cursor over one partition's rows. Each
// concrete driver parser additionally exposes typed Produce* methods
// for every value type it supports; those live outside this interface
// because Go has no way to express "one method per T" generically, so
// a Transport is written against the concrete parser type it was
// built for (see package transport).
type Parser interface {
	// FetchNext advances the underlying stream, filling an internal
	// buffer with up to some driver-chosen batch size of rows. It
	// returns how many rows are now available to be consumed via
	// Produce* calls and whether the source is now exhausted. It may
	// be called again after returning isLast=true, and must then
	// return (0, true, nil).
	//
	// FetchNext must only be called when the column cursor is at 0;
	// the dispatcher enforces this.
	FetchNext(ctx context.Context) (rowsAvailable int, isLast bool, err error)
}

// Partition is one SQL query's share of the logical result. It owns
// whatever connection or cursor state its query needs, but does not
// open the actual result stream until Open is called from the
// partition's own worker.
type Partition[P Parser] interface {
	// Open returns the streaming parser for this partition. It is
	// called exactly once, from the goroutine that owns this
	// partition.
	Open(ctx context.Context) (P, error)
}

// Source is constructed once, configured with queries, asked for its
// schema, and then split into partitions that are handed off to
// per-partition workers.
type Source[TS comparable, P Parser] interface {
	// DataOrders lists the traversal orders this source can produce,
	// in preference order.
	DataOrders() []dataorder.Order

	// SetDataOrder records the negotiated traversal order. The
	// dispatcher calls it with an element of DataOrders before
	// SetQueries; a driver returns an error for an order it did not
	// advertise.
	SetDataOrder(order dataorder.Order) error

	// SetQueries records the partition SQL strings. It must be called
	// before FetchMetadata.
	SetQueries(queries []string)

	// SetOriginQuery records an optional pre-partition query used by
	// drivers that need it to fetch metadata (e.g. when the
	// partition queries only cover a WHERE-clause slice of a larger
	// SELECT). May be a no-op for drivers that don't need it.
	SetOriginQuery(query string)

	// FetchMetadata opens a lightweight connection, prepares the
	// origin (or first) query, and returns the source-side schema.
	FetchMetadata(ctx context.Context) (typesystem.Schema[TS], error)

	// Partition returns exactly len(queries) partitions, one per
	// query, in query order.
	Partition(ctx context.Context) ([]Partition[P], error)
}
