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

// Package dataorder defines the row-major / column-major traversal
// order that a Source and a Destination must negotiate before a
// dispatcher run can begin.
package dataorder

import "github.com/pkg/errors"

// Order is the traversal order used to pump cells between a parser and
// a writer.
type Order int

const (
	// RowMajor visits all columns of row 0, then all columns of row 1,
	// and so on.
	RowMajor Order = iota
	// ColumnMajor visits all rows of column 0, then all rows of column
	// 1, and so on.
	ColumnMajor
)

// String implements fmt.Stringer.
func (o Order) String() string {
	switch o {
	case RowMajor:
		return "row-major"
	case ColumnMajor:
		return "column-major"
	default:
		return "unknown-order"
	}
}

// ErrUnsupportedDataOrder is returned by Coordinate when the source and
// destination preference lists share no common element.
var ErrUnsupportedDataOrder = errors.New("no data order is supported by both source and destination")

// Coordinate picks the first element of src that also appears anywhere
// in dst. Preference is given to the source's ordering, mirroring the
// reference implementation's negotiation rule.
func Coordinate(src, dst []Order) (Order, error) {
	for _, s := range src {
		for _, d := range dst {
			if s == d {
				return s, nil
			}
		}
	}
	return 0, errors.WithStack(ErrUnsupportedDataOrder)
}
