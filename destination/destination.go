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

// Package destination defines the consumer-facing contract a buffer
// format (Arrow, a CSV writer, a database bulk-insert, ...) implements
// in order to receive the rows a Dispatcher moves.
package destination

import (
	"github.com/cockroachdb/dbxfer/dataorder"
	"github.com/cockroachdb/dbxfer/typesystem"
)

// Writer is a per-partition appender. Each concrete destination
// additionally exposes typed Consume*/ConsumeOpt* methods for every
// value type it supports; those live outside this interface for the
// same reason source.Parser's Produce* methods do.
type Writer interface {
	// ReserveRows declares that the next n rows will be appended, so
	// internal buffers can be pre-sized. It may flush an in-progress
	// batch first if adding n rows would exceed a target batch size.
	ReserveRows(n int) error

	// NCols returns the number of columns this writer's schema has.
	NCols() int

	// Finish flushes any in-progress batch into the owned result and
	// releases scratch buffers. Called exactly once, after the last
	// cell of the partition has been consumed.
	Finish() error
}

// Destination is constructed once, configured with the (already
// tag-converted) schema and negotiated data order, and then asked to
// allocate one Writer per partition.
type Destination[TS comparable, W Writer] interface {
	// DataOrders lists the traversal orders this destination can
	// consume, in preference order.
	DataOrders() []dataorder.Order

	// SetMetadata configures the column layout and negotiated data
	// order. It must be called before AllocatePartition, and is
	// idempotent iff called again with identical arguments.
	SetMetadata(schema typesystem.Schema[TS], order dataorder.Order) error

	// AllocatePartition returns a fresh writer bound to the schema
	// passed to SetMetadata.
	AllocatePartition() (W, error)

	// Schema returns the schema configured by SetMetadata.
	Schema() typesystem.Schema[TS]
}
