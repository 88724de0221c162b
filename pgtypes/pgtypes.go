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

// Package pgtypes defines the source-side type system: a small,
// enumerated tag set modeled on the wire-level type OIDs that
// github.com/jackc/pgx/v5/pgtype assigns to PostgreSQL's built-in
// types, plus the Producer capability set a concrete parser
// implements to pull one typed value per cell.
//
// Go has no higher-kinded generic method (Rust's Produce<T>), so the
// capability set is a closed interface of concretely-named methods,
// one per value type a tag can associate with.
package pgtypes

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/cockroachdb/dbxfer/dataorder"
	"github.com/cockroachdb/dbxfer/source"
)

// Tag enumerates the source-side column types this type system
// recognizes. It is small enough to fit in a machine word and is
// usable as a map key, satisfying the "comparable" constraint the
// generic Schema/Transport machinery requires.
type Tag int

const (
	// Int32 associates with int32. Mirrors pgtype.Int4OID.
	Int32 Tag = iota
	// Int64 associates with int64. Mirrors pgtype.Int8OID.
	Int64
	// Float64 associates with float64. Mirrors pgtype.Float8OID.
	Float64
	// Utf8 associates with string. Mirrors pgtype.TextOID/VarcharOID.
	Utf8
	// Bool associates with bool. Mirrors pgtype.BoolOID.
	Bool
	// Bytes associates with []byte. Mirrors pgtype.ByteaOID.
	Bytes
	// Decimal associates with string, holding a normalized decimal
	// text representation (no third-party arbitrary-precision decimal
	// type is part of this corpus; see DESIGN.md). Mirrors
	// pgtype.NumericOID.
	Decimal
	// Timestamptz associates with time.Time, always normalized to
	// UTC. Mirrors pgtype.TimestamptzOID.
	Timestamptz
	// Json associates with string, holding the raw JSON text. Mirrors
	// pgtype.JSONOID/JSONBOID.
	Json
	// ListOfInt32 associates with []int32. Mirrors pgtype.Int4ArrayOID.
	ListOfInt32
	// NullableInt32 associates with *int32.
	NullableInt32
	// NullableInt64 associates with *int64.
	NullableInt64
	// NullableUtf8 associates with *string.
	NullableUtf8
	// NullableBool associates with *bool.
	NullableBool
	// NullableTimestamptz associates with *time.Time.
	NullableTimestamptz
)

// tagNames is used by String for diagnostics; keep in sync with the
// const block above.
var tagNames = map[Tag]string{
	Int32:               "int32",
	Int64:               "int64",
	Float64:             "float64",
	Utf8:                "utf8",
	Bool:                "bool",
	Bytes:               "bytes",
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
	return "unknown-pgtype"
}

// Assoc reports whether tag is associated with value type T, per §4.3
// of the design: a TypeCheckFailed guard uses this before a Produce
// call is dispatched against the wrong value type.
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
		return tag == Bytes
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

// oids maps each non-nullable tag to the pgx/v5/pgtype wire OID it was
// modeled on, so a real driver can recognize a column's tag from the
// OID a PostgreSQL RowDescription actually sends. Nullable tags share
// their base type's OID; NULL-ness is carried out of band by the wire
// protocol, not by a distinct type OID.
var oids = map[Tag]uint32{
	Int32:       pgtype.Int4OID,
	Int64:       pgtype.Int8OID,
	Float64:     pgtype.Float8OID,
	Utf8:        pgtype.TextOID,
	Bool:        pgtype.BoolOID,
	Bytes:       pgtype.ByteaOID,
	Decimal:     pgtype.NumericOID,
	Timestamptz: pgtype.TimestamptzOID,
	Json:        pgtype.JSONOID,
	ListOfInt32: pgtype.Int4ArrayOID,

	NullableInt32:       pgtype.Int4OID,
	NullableInt64:       pgtype.Int8OID,
	NullableUtf8:        pgtype.TextOID,
	NullableBool:        pgtype.BoolOID,
	NullableTimestamptz: pgtype.TimestamptzOID,
}

// OID returns the pgx/v5/pgtype wire OID t is modeled on, and whether t
// is a recognized tag at all.
func (t Tag) OID() (uint32, bool) {
	oid, ok := oids[t]
	return oid, ok
}

// TagFromOID reverses OID: it returns the non-nullable Tag a driver
// should use for a column reported under oid, e.g. when building a
// schema from a RowDescription. Callers that know the column is
// nullable should use NullableInt32 etc. instead; this is deliberately
// asymmetric with OID since the wire format alone doesn't say whether a
// column can be NULL.
func TagFromOID(oid uint32) (Tag, bool) {
	switch oid {
	case pgtype.Int4OID:
		return Int32, true
	case pgtype.Int8OID:
		return Int64, true
	case pgtype.Float8OID:
		return Float64, true
	case pgtype.TextOID, pgtype.VarcharOID:
		return Utf8, true
	case pgtype.BoolOID:
		return Bool, true
	case pgtype.ByteaOID:
		return Bytes, true
	case pgtype.NumericOID:
		return Decimal, true
	case pgtype.TimestamptzOID:
		return Timestamptz, true
	case pgtype.JSONOID, pgtype.JSONBOID:
		return Json, true
	case pgtype.Int4ArrayOID:
		return ListOfInt32, true
	default:
		return 0, false
	}
}

// DataOrders is the preference list every driver built against this
// type system advertises by default: row-major first, since PostgreSQL
// COPY and cursor protocols are fundamentally row streams.
var DataOrders = []dataorder.Order{dataorder.RowMajor, dataorder.ColumnMajor}

// Producer is the capability set a concrete parser exposes: the
// streaming cursor from package source, plus one typed Produce method
// per value type declared by Tag. A driver MAY return
// *xferr.ProduceNotSupportedError from any method for a tag/value
// combination it has declared unreachable.
type Producer interface {
	source.Parser

	ProduceInt32() (int32, error)
	ProduceInt64() (int64, error)
	ProduceFloat64() (float64, error)
	ProduceUtf8() (string, error)
	ProduceBool() (bool, error)
	ProduceBytes() ([]byte, error)
	ProduceDecimal() (string, error)
	ProduceTimestamptz() (time.Time, error)
	ProduceJson() (string, error)
	ProduceListOfInt32() ([]int32, error)

	ProduceNullableInt32() (*int32, error)
	ProduceNullableInt64() (*int64, error)
	ProduceNullableUtf8() (*string, error)
	ProduceNullableBool() (*bool, error)
	ProduceNullableTimestamptz() (*time.Time, error)
}
