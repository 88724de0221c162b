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
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/pkg/errors"

	"github.com/cockroachdb/dbxfer/dataorder"
)

// Writer is the per-partition appender bound to one Destination's
// schema. It is never shared across workers: the Dispatcher allocates
// exactly one per partition and consumes it within a single worker
// goroutine, so the column cursor below needs no locking.
type Writer struct {
	dest         *Destination
	idx          int
	ncols        int
	order        dataorder.Order
	arrowSchema  *arrow.Schema
	alloc        memory.Allocator
	minBatchSize int

	builder *array.RecordBuilder

	// organizer state: mirrors the parser's (row, col) cursor so the
	// Dispatcher can drive Produce/Consume calls in lock-step without
	// passing explicit coordinates. Under ColumnMajor, reserved is the
	// row count of the current ReserveRows window and rowsFilled the
	// rows appended so far to the current column of that window.
	col         int
	rowsInBatch int
	reserved    int
	rowsFilled  int

	finished bool
}

var _ Consumer = (*Writer)(nil)

// NCols implements destination.Writer.
func (w *Writer) NCols() int { return w.ncols }

// ReserveRows implements destination.Writer. It flushes the
// in-progress batch first if adding n rows would exceed the
// configured minimum batch size, so a single arrow.Record never grows
// far past that target.
func (w *Writer) ReserveRows(n int) error {
	if w.rowsInBatch > 0 && w.rowsInBatch+n > w.minBatchSize {
		if err := w.flush(); err != nil {
			return err
		}
	}
	w.reserved = n
	w.builder.Reserve(n)
	return nil
}

// advance moves the organizer's cursor in the negotiated order,
// mirroring the parser's cursor exactly: column-first within a row for
// RowMajor, row-first within a column for ColumnMajor.
func (w *Writer) advance() {
	if w.order == dataorder.ColumnMajor {
		w.rowsFilled++
		if w.rowsFilled == w.reserved {
			w.rowsFilled = 0
			w.col++
			if w.col == w.ncols {
				w.col = 0
				w.rowsInBatch += w.reserved
				w.reserved = 0
			}
		}
		return
	}
	w.col++
	if w.col == w.ncols {
		w.col = 0
		w.rowsInBatch++
	}
}

// flush finalizes the in-progress RecordBuilder into an arrow.Record
// and hands it to the owning Destination, then starts a fresh builder
// for the next batch.
func (w *Writer) flush() error {
	if w.rowsInBatch == 0 {
		return nil
	}
	rec := w.builder.NewRecord()
	w.dest.appendBatch(w.idx, rec)
	w.rowsInBatch = 0
	return nil
}

// Finish implements destination.Writer.
func (w *Writer) Finish() error {
	if w.finished {
		return nil
	}
	w.finished = true
	if err := w.flush(); err != nil {
		return err
	}
	w.builder.Release()
	return nil
}

// field returns the builder for the current column, asserted to the
// requested concrete builder type. A mismatch indicates a Transport
// rule wired a Consume* call against the wrong column tag.
func field[B array.Builder](w *Writer) (B, error) {
	b, ok := w.builder.Field(w.col).(B)
	if !ok {
		var zero B
		return zero, errors.Errorf(
			"arrowdest: column %d builder is %T, not %T", w.col, w.builder.Field(w.col), zero)
	}
	return b, nil
}

// ConsumeInt32 implements Consumer.
func (w *Writer) ConsumeInt32(v int32) error {
	b, err := field[*array.Int32Builder](w)
	if err != nil {
		return err
	}
	b.Append(v)
	w.advance()
	return nil
}

// ConsumeInt64 implements Consumer.
func (w *Writer) ConsumeInt64(v int64) error {
	b, err := field[*array.Int64Builder](w)
	if err != nil {
		return err
	}
	b.Append(v)
	w.advance()
	return nil
}

// ConsumeFloat64 implements Consumer.
func (w *Writer) ConsumeFloat64(v float64) error {
	b, err := field[*array.Float64Builder](w)
	if err != nil {
		return err
	}
	b.Append(v)
	w.advance()
	return nil
}

// ConsumeUtf8 implements Consumer.
func (w *Writer) ConsumeUtf8(v string) error {
	b, err := field[*array.StringBuilder](w)
	if err != nil {
		return err
	}
	b.Append(v)
	w.advance()
	return nil
}

// ConsumeBool implements Consumer.
func (w *Writer) ConsumeBool(v bool) error {
	b, err := field[*array.BooleanBuilder](w)
	if err != nil {
		return err
	}
	b.Append(v)
	w.advance()
	return nil
}

// ConsumeBinary implements Consumer.
func (w *Writer) ConsumeBinary(v []byte) error {
	b, err := field[*array.BinaryBuilder](w)
	if err != nil {
		return err
	}
	b.Append(v)
	w.advance()
	return nil
}

// ConsumeDecimal implements Consumer. Decimal values travel as
// normalized text (see pgtypes.Decimal); arrowdest stores them in a
// plain string column rather than a third-party arbitrary-precision
// type, since none is part of this corpus (see DESIGN.md).
func (w *Writer) ConsumeDecimal(v string) error {
	return w.ConsumeUtf8(v)
}

// ConsumeJson implements Consumer, storing the raw JSON text verbatim.
func (w *Writer) ConsumeJson(v string) error {
	return w.ConsumeUtf8(v)
}

// ConsumeTimestamptz implements Consumer.
func (w *Writer) ConsumeTimestamptz(v time.Time) error {
	b, err := field[*array.TimestampBuilder](w)
	if err != nil {
		return err
	}
	ts, err := arrow.TimestampFromTime(v.UTC(), arrow.Microsecond)
	if err != nil {
		return errors.Wrap(err, "arrowdest: converting timestamp")
	}
	b.Append(ts)
	w.advance()
	return nil
}

// ConsumeListOfInt32 implements Consumer.
func (w *Writer) ConsumeListOfInt32(v []int32) error {
	b, err := field[*array.ListBuilder](w)
	if err != nil {
		return err
	}
	b.Append(true)
	vb := b.ValueBuilder().(*array.Int32Builder)
	for _, elem := range v {
		vb.Append(elem)
	}
	w.advance()
	return nil
}

// ConsumeOptInt32 implements Consumer.
func (w *Writer) ConsumeOptInt32(v *int32) error {
	b, err := field[*array.Int32Builder](w)
	if err != nil {
		return err
	}
	if v == nil {
		b.AppendNull()
	} else {
		b.Append(*v)
	}
	w.advance()
	return nil
}

// ConsumeOptInt64 implements Consumer.
func (w *Writer) ConsumeOptInt64(v *int64) error {
	b, err := field[*array.Int64Builder](w)
	if err != nil {
		return err
	}
	if v == nil {
		b.AppendNull()
	} else {
		b.Append(*v)
	}
	w.advance()
	return nil
}

// ConsumeOptUtf8 implements Consumer.
func (w *Writer) ConsumeOptUtf8(v *string) error {
	b, err := field[*array.StringBuilder](w)
	if err != nil {
		return err
	}
	if v == nil {
		b.AppendNull()
	} else {
		b.Append(*v)
	}
	w.advance()
	return nil
}

// ConsumeOptBool implements Consumer.
func (w *Writer) ConsumeOptBool(v *bool) error {
	b, err := field[*array.BooleanBuilder](w)
	if err != nil {
		return err
	}
	if v == nil {
		b.AppendNull()
	} else {
		b.Append(*v)
	}
	w.advance()
	return nil
}

// ConsumeOptTimestamptz implements Consumer.
func (w *Writer) ConsumeOptTimestamptz(v *time.Time) error {
	b, err := field[*array.TimestampBuilder](w)
	if err != nil {
		return err
	}
	if v == nil {
		b.AppendNull()
		w.advance()
		return nil
	}
	ts, err := arrow.TimestampFromTime(v.UTC(), arrow.Microsecond)
	if err != nil {
		return errors.Wrap(err, "arrowdest: converting timestamp")
	}
	b.Append(ts)
	w.advance()
	return nil
}
