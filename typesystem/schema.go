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

// Package typesystem defines the generic Schema type shared by every
// source and destination type system, plus the machinery used to
// convert a schema from one type system to another.
package typesystem

import "github.com/pkg/errors"

// Schema is an ordered list of (name, tag) columns. Tag is whatever
// small, comparable value a particular type system uses to mark a
// column's type (an enum constant, typically).
type Schema[Tag comparable] struct {
	Names []string
	Tags  []Tag
}

// New validates that names and tags have matching lengths and returns
// the corresponding Schema.
func New[Tag comparable](names []string, tags []Tag) (Schema[Tag], error) {
	if len(names) != len(tags) {
		return Schema[Tag]{}, errors.Errorf(
			"dbxfer: schema column count mismatch: %d names, %d tags", len(names), len(tags))
	}
	return Schema[Tag]{Names: names, Tags: tags}, nil
}

// NCols returns the number of columns in the schema.
func (s Schema[Tag]) NCols() int { return len(s.Names) }

// Clone returns a schema with independently-owned slices.
func (s Schema[Tag]) Clone() Schema[Tag] {
	names := make([]string, len(s.Names))
	copy(names, s.Names)
	tags := make([]Tag, len(s.Tags))
	copy(tags, s.Tags)
	return Schema[Tag]{Names: names, Tags: tags}
}

// Convert maps every tag in s through convertTag, preserving column
// names and order. It is used by the dispatcher to derive a
// destination schema from a source schema via a Transport's
// ConvertTag method.
func Convert[Src, Dst comparable](s Schema[Src], convertTag func(Src) (Dst, error)) (Schema[Dst], error) {
	dstTags := make([]Dst, len(s.Tags))
	for i, tag := range s.Tags {
		dstTag, err := convertTag(tag)
		if err != nil {
			return Schema[Dst]{}, errors.Wrapf(err, "column %q", s.Names[i])
		}
		dstTags[i] = dstTag
	}
	names := make([]string, len(s.Names))
	copy(names, s.Names)
	return Schema[Dst]{Names: names, Tags: dstTags}, nil
}
