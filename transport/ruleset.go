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

package transport

import (
	"fmt"

	"github.com/cockroachdb/dbxfer/destination"
	"github.com/cockroachdb/dbxfer/source"
	"github.com/cockroachdb/dbxfer/xferr"
)

// pairKey is the map key for a (srcTag, dstTag) rule lookup.
type pairKey[TSS, TSD comparable] struct {
	src TSS
	dst TSD
}

// RuleSet is a declarative, enumerable table of (srcTag, dstTag)
// conversion rules. It implements Transport once populated via
// Register. The table is a plain map built at construction time, so
// Processor never re-matches a tag pair at cell time: BuildColumnTable
// resolves the lookup once per column, not once per cell.
type RuleSet[TSS, TSD comparable, P source.Parser, W destination.Writer] struct {
	convert map[TSS]TSD
	cells   map[pairKey[TSS, TSD]]CellFunc[P, W]
	// order preserves registration order, so conformance tests can
	// enumerate every declared rule deterministically.
	order []pairKey[TSS, TSD]
}

// NewRuleSet returns an empty RuleSet ready for Register calls.
func NewRuleSet[TSS, TSD comparable, P source.Parser, W destination.Writer]() *RuleSet[TSS, TSD, P, W] {
	return &RuleSet[TSS, TSD, P, W]{
		convert: make(map[TSS]TSD),
		cells:   make(map[pairKey[TSS, TSD]]CellFunc[P, W]),
	}
}

// Register declares that srcTag converts to dstTag via fn. The first
// registration for a given srcTag also determines ConvertTag's result
// for that tag; later registrations may add further dstTag variants
// (e.g. widening to more than one destination type) without changing
// the schema-conversion mapping.
func (rs *RuleSet[TSS, TSD, P, W]) Register(srcTag TSS, dstTag TSD, fn CellFunc[P, W]) *RuleSet[TSS, TSD, P, W] {
	if _, ok := rs.convert[srcTag]; !ok {
		rs.convert[srcTag] = dstTag
	}
	key := pairKey[TSS, TSD]{src: srcTag, dst: dstTag}
	if _, exists := rs.cells[key]; !exists {
		rs.order = append(rs.order, key)
	}
	rs.cells[key] = fn
	return rs
}

// ConvertTag implements Transport.
func (rs *RuleSet[TSS, TSD, P, W]) ConvertTag(srcTag TSS) (TSD, error) {
	dstTag, ok := rs.convert[srcTag]
	if !ok {
		var zero TSD
		return zero, &xferr.NoConversionRuleError{SrcTag: srcTag, DstTS: fmt.Sprintf("%T", zero)}
	}
	return dstTag, nil
}

// Processor implements Transport.
func (rs *RuleSet[TSS, TSD, P, W]) Processor(srcTag TSS, dstTag TSD) (CellFunc[P, W], error) {
	fn, ok := rs.cells[pairKey[TSS, TSD]{src: srcTag, dst: dstTag}]
	if !ok {
		return nil, &xferr.NoConversionRuleError{SrcTag: srcTag, DstTS: fmt.Sprintf("%T", dstTag)}
	}
	return fn, nil
}

// RuleTag is one (srcTag, dstTag) pair, as returned by Rules.
type RuleTag[TSS, TSD comparable] struct {
	Src TSS
	Dst TSD
}

// Rules returns every declared (srcTag, dstTag) pair in registration
// order, for conformance tests that must enumerate and exercise each
// one (see §4.4 of the design).
func (rs *RuleSet[TSS, TSD, P, W]) Rules() []RuleTag[TSS, TSD] {
	out := make([]RuleTag[TSS, TSD], len(rs.order))
	for i, k := range rs.order {
		out[i] = RuleTag[TSS, TSD]{Src: k.src, Dst: k.dst}
	}
	return out
}
