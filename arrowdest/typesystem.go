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

// Package arrowdest is the reference Destination: it accumulates
// Apache Arrow record batches (github.com/apache/arrow-go/v18) behind
// the destination.Destination/Writer contracts. It owns its own tag
// set, distinct from pgtypes, because a Transport binds two
// independent type systems (§4.4 of the design).
package arrowdest

import (
	"time"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/cockroachdb/dbxfer/dataorder"
	"github.com/cockroachdb/dbxfer/destination"
)

// Tag enumerates the destination-side column types arrowdest can
// build Arrow columns for.
type Tag int

const (
	// Int32 builds an arrow.PrimitiveTypes.Int32 column.
	Int32 Tag = iota
	// Int64 builds an arrow.PrimitiveTypes.Int64 column.
	Int64
	// Float64 builds an arrow.PrimitiveTypes.Float64 column.
	Float64
	// Utf8 builds an arrow.BinaryTypes.String column.
	Utf8
	// Bool builds an arrow.FixedWidthTypes.Boolean column.
	Bool
	// Binary builds an arrow.BinaryTypes.Binary column.
	Binary
	// Decimal builds a string-backed column holding normalized
	// decimal text (see pgtypes.Decimal and DESIGN.md).
	Decimal
	// Timestamptz builds a microsecond, UTC-zoned timestamp column.
	Timestamptz
	// Json builds a string-backed column holding raw JSON text.
	Json
	// ListOfInt32 builds a list<int32> column.
	ListOfInt32
	// NullableInt32 is Int32 with Field.Nullable = true.
	NullableInt32
	// NullableInt64 is Int64 with Field.Nullable = true.
	NullableInt64
	// NullableUtf8 is Utf8 with Field.Nullable = true.
	NullableUtf8
	// NullableBool is Bool with Field.Nullable = true.
	NullableBool
	// NullableTimestamptz is Timestamptz with Field.Nullable = true.
	NullableTimestamptz
)

var tagNames = map[Tag]string{
	Int32:               "int32",
	Int64:               "int64",
	Float64:             "float64",
	Utf8:                "utf8",
	Bool:                "bool",
	Binary:              "binary",
	Decimal:             "decimal",
	Timestamptz:         "timestamptz",
	Json:                "json",
	ListOfInt32:         "list_of_int32",
	NullableInt32:       "nullable_int32",
	NullableInt64:       "nullable_int64",
	NullableUtf8:        "nullable_utf8",
	NullableBool:        "nullable_bool",
	NullableTimestamptz: "nullable_timestamptz",
}

// String implements fmt.Stringer.
func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return "unknown-arrowtype"
}

// Assoc reports whether tag is associated with value type T, the
// destination-side counterpart of pgtypes.Assoc: a TypeCheckFailed
// guard for Consume calls dispatched against the wrong value type.
// String-backed tags (Utf8, Decimal, Json) all associate with string,
// the same way their produce-side counterparts do.
func Assoc[T any](tag Tag) bool {
	var zero T
	switch any(zero).(type) {
	case int32:
		return tag == Int32
	case int64:
		return tag == Int64
	case float64:
		return tag == Float64
	case string:
		return tag == Utf8 || tag == Decimal || tag == Json
	case bool:
		return tag == Bool
	case []byte:
		return tag == Binary
	case time.Time:
		return tag == Timestamptz
	case []int32:
		return tag == ListOfInt32
	case *int32:
		return tag == NullableInt32
	case *int64:
		return tag == NullableInt64
	case *string:
		return tag == NullableUtf8
	case *bool:
		return tag == NullableBool
	case *time.Time:
		return tag == NullableTimestamptz
	default:
		return false
	}
}

// nullable reports whether t carries a Nullable* tag.
func (t Tag) nullable() bool {
	switch t {
	case NullableInt32, NullableInt64, NullableUtf8, NullableBool, NullableTimestamptz:
		return true
	default:
		return false
	}
}

// arrowType returns the concrete arrow.DataType backing t.
func (t Tag) arrowType() arrow.DataType {
	switch t {
	case Int32, NullableInt32:
		return arrow.PrimitiveTypes.Int32
	case Int64, NullableInt64:
		return arrow.PrimitiveTypes.Int64
	case Float64:
		return arrow.PrimitiveTypes.Float64
	case Utf8, NullableUtf8, Decimal, Json:
		return arrow.BinaryTypes.String
	case Bool, NullableBool:
		return arrow.FixedWidthTypes.Boolean
	case Binary:
		return arrow.BinaryTypes.Binary
	case Timestamptz, NullableTimestamptz:
		return arrow.FixedWidthTypes.Timestamp_us
	case ListOfInt32:
		return arrow.ListOf(arrow.PrimitiveTypes.Int32)
	default:
		return arrow.Null
	}
}

// DataOrders is the preference list arrowdest advertises: it builds
// column-builder batches most efficiently in row-major order (one
// pass per row fills every column's builder in turn), but happily
// accepts column-major too since each builder only ever sees its own
// column's cells in order either way.
var DataOrders = []dataorder.Order{dataorder.RowMajor, dataorder.ColumnMajor}

// Consumer is the capability set a concrete writer exposes: the
// per-partition appender from package destination, plus one typed
// Consume/ConsumeOpt method per value type declared by Tag.
type Consumer interface {
	destination.Writer

	ConsumeInt32(v int32) error
	ConsumeInt64(v int64) error
	ConsumeFloat64(v float64) error
	ConsumeUtf8(v string) error
	ConsumeBool(v bool) error
	ConsumeBinary(v []byte) error
	ConsumeDecimal(v string) error
	ConsumeTimestamptz(v time.Time) error
	ConsumeJson(v string) error
	ConsumeListOfInt32(v []int32) error

	ConsumeOptInt32(v *int32) error
	ConsumeOptInt64(v *int64) error
	ConsumeOptUtf8(v *string) error
	ConsumeOptBool(v *bool) error
	ConsumeOptTimestamptz(v *time.Time) error
}
