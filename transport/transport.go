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

// Package transport defines the binding between a source type system
// and a destination type system: the total tag-to-tag mapping used to
// derive a destination schema, and the per-cell conversion functions
// that move one value at a time from a parser to a writer.
//
// This package implements the function-pointer dispatch strategy
// described by the core design: a Transport builds, once per
// partition, a table of CellFunc values indexed by column, so that the
// per-cell hot path in the dispatcher never re-matches on the
// (srcTag, dstTag) pair.
package transport

import (
	"github.com/cockroachdb/dbxfer/destination"
	"github.com/cockroachdb/dbxfer/source"
)

// CellFunc moves exactly one cell: it reads one value from p via a
// Produce* method and writes it to w via a Consume*/ConsumeOpt*
// method, applying whatever pure value conversion the rule declares.
type CellFunc[P source.Parser, W destination.Writer] func(p P, w W) error

// Transport binds a specific source type system TSS to a specific
// destination type system TSD, for a specific concrete parser type P
// and writer type W.
type Transport[TSS, TSD comparable, P source.Parser, W destination.Writer] interface {
	// ConvertTag is a total mapping from a source tag to its
	// destination counterpart, used to derive the destination schema
	// column-by-column. It returns *xferr.NoConversionRuleError if
	// srcTag has no declared counterpart.
	ConvertTag(srcTag TSS) (TSD, error)

	// Processor returns the specialized cell-mover for one
	// (srcTag, dstTag) pair. It returns *xferr.NoConversionRuleError
	// if the pair has no declared rule.
	Processor(srcTag TSS, dstTag TSD) (CellFunc[P, W], error)
}

// BuildColumnTable resolves tp.Processor for every column implied by
// srcTags/dstTags (which must be the same length — the dispatcher
// guarantees this since dstTags was derived from srcTags via
// ConvertTag) and returns the per-column function table the dispatcher
// invokes once per cell.
func BuildColumnTable[TSS, TSD comparable, P source.Parser, W destination.Writer](
	tp Transport[TSS, TSD, P, W], srcTags []TSS, dstTags []TSD,
) ([]CellFunc[P, W], error) {
	table := make([]CellFunc[P, W], len(srcTags))
	for col := range srcTags {
		f, err := tp.Processor(srcTags[col], dstTags[col])
		if err != nil {
			return nil, err
		}
		table[col] = f
	}
	return table, nil
}
