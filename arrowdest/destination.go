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

package arrowdest

import (
	"reflect"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/pkg/errors"

	"github.com/cockroachdb/dbxfer/dataorder"
	"github.com/cockroachdb/dbxfer/typesystem"
)

// defaultMinBatchSize mirrors the teacher's preference for small,
// conservative defaults (cf. stdpool's default pool sizing) over an
// unbounded one; callers doing bulk loads will usually override it
// with WithMinBatchSize.
const defaultMinBatchSize = 1024

// Option configures a Destination at construction time, in the
// functional-options style the teacher uses throughout
// internal/util/stdpool.
type Option func(*Destination) error

// WithMinBatchSize sets the row count a Writer accumulates before it
// flushes an in-progress batch into the owned arrow.Record sequence.
func WithMinBatchSize(n int) Option {
	return func(d *Destination) error {
		if n <= 0 {
			return errors.Errorf("arrowdest: min batch size must be positive, got %d", n)
		}
		d.minBatchSize = n
		return nil
	}
}

// WithAllocator overrides the memory.Allocator used for every builder.
// Defaults to memory.NewGoAllocator().
func WithAllocator(alloc memory.Allocator) Option {
	return func(d *Destination) error {
		d.alloc = alloc
		return nil
	}
}

// Destination accumulates Apache Arrow record batches, one Writer per
// partition, behind the destination.Destination[Tag, Consumer]
// contract. It is the reference consumer-facing collaborator named in
// §6.2 of the design.
type Destination struct {
	minBatchSize int
	alloc        memory.Allocator

	mu          sync.Mutex
	metadataSet bool
	schema      typesystem.Schema[Tag]
	order       dataorder.Order
	arrowSchema *arrow.Schema
	records     [][]arrow.Record // indexed by partition
}

// New returns a Destination ready to receive SetMetadata.
func New(opts ...Option) (*Destination, error) {
	d := &Destination{
		minBatchSize: defaultMinBatchSize,
		alloc:        memory.NewGoAllocator(),
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// DataOrders implements destination.Destination.
func (d *Destination) DataOrders() []dataorder.Order { return DataOrders }

// SetMetadata implements destination.Destination. It is idempotent iff
// called again with an identical schema and order.
func (d *Destination) SetMetadata(schema typesystem.Schema[Tag], order dataorder.Order) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.metadataSet {
		if d.order != order || !reflect.DeepEqual(d.schema, schema) {
			return errors.New("arrowdest: SetMetadata called twice with different arguments")
		}
		return nil
	}

	fields := make([]arrow.Field, schema.NCols())
	for i, name := range schema.Names {
		tag := schema.Tags[i]
		fields[i] = arrow.Field{Name: name, Type: tag.arrowType(), Nullable: tag.nullable()}
	}

	d.schema = schema.Clone()
	d.order = order
	d.arrowSchema = arrow.NewSchema(fields, nil)
	d.metadataSet = true
	return nil
}

// Schema implements destination.Destination.
func (d *Destination) Schema() typesystem.Schema[Tag] {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.schema
}

// AllocatePartition implements destination.Destination. It must be
// called after SetMetadata, once per partition, from the single
// goroutine driving Dispatcher.Prepare. The return type is declared as
// Consumer, not *Writer, so that *Destination satisfies
// destination.Destination[Tag, Consumer] exactly: Go's generic
// interfaces require the method signature to match after substitution,
// not merely a result type that happens to implement it.
func (d *Destination) AllocatePartition() (Consumer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.metadataSet {
		return nil, errors.New("arrowdest: AllocatePartition called before SetMetadata")
	}
	idx := len(d.records)
	d.records = append(d.records, nil)
	return &Writer{
		dest:         d,
		idx:          idx,
		ncols:        d.schema.NCols(),
		order:        d.order,
		arrowSchema:  d.arrowSchema,
		alloc:        d.alloc,
		minBatchSize: d.minBatchSize,
		builder:      array.NewRecordBuilder(d.alloc, d.arrowSchema),
	}, nil
}

// Records returns every accumulated batch across every partition, in
// partition-index order, flattening the per-partition batch sequence.
// It is only meaningful to call after a successful Dispatcher.Run.
func (d *Destination) Records() []arrow.Record {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []arrow.Record
	for _, perPartition := range d.records {
		out = append(out, perPartition...)
	}
	return out
}

// appendBatch is called by a Writer's Finish/flush to hand a completed
// record into the owned, partition-indexed result.
func (d *Destination) appendBatch(idx int, rec arrow.Record) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records[idx] = append(d.records[idx], rec)
}
