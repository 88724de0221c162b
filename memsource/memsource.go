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

// Package memsource is the minimal, in-process reference Source named
// in §1 of the design: it holds already-typed Go values in memory,
// keyed by the exact query string a caller will later pass to
// SetQueries, and hands them out through the ordinary
// Source/Partition/Parser contracts. It exists to exercise and
// conformance-test the dispatcher without a real network driver.
package memsource

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/cockroachdb/dbxfer/dataorder"
	"github.com/cockroachdb/dbxfer/pgtypes"
	"github.com/cockroachdb/dbxfer/source"
	"github.com/cockroachdb/dbxfer/typesystem"
	"github.com/cockroachdb/dbxfer/xferr"
)

// DefaultDBBufferSize mirrors the design's DBBufferSize: the number of
// rows FetchNext makes available per call.
const DefaultDBBufferSize = 256

// Column describes one column of a QueryResult.
type Column struct {
	Name string
	Tag  pgtypes.Tag
}

// QueryResult is the canned answer memsource gives for one query
// string: its column layout, plus every row's cell values. A cell for
// a Nullable* tag holds either a typed pointer or an untyped nil (for
// NULL); a cell for every other tag holds the tag's plain value type.
type QueryResult struct {
	Columns []Column
	Rows    [][]any
}

// Option configures a Source at construction time.
type Option func(*Source) error

// WithDBBufferSize overrides DefaultDBBufferSize.
func WithDBBufferSize(n int) Option {
	return func(s *Source) error {
		if n <= 0 {
			return errors.Errorf("memsource: DB buffer size must be positive, got %d", n)
		}
		s.dbBufferSize = n
		return nil
	}
}

// Source is a canned, in-memory source.Source[pgtypes.Tag,
// pgtypes.Producer] implementation.
type Source struct {
	dbBufferSize int
	results      map[string]QueryResult

	queries     []string
	originQuery string
	order       dataorder.Order
}

var _ source.Source[pgtypes.Tag, pgtypes.Producer] = (*Source)(nil)

// New returns a Source that will answer FetchMetadata/Partition for
// any query string present in results.
func New(results map[string]QueryResult, opts ...Option) (*Source, error) {
	s := &Source{
		dbBufferSize: DefaultDBBufferSize,
		results:      results,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// DataOrders implements source.Source.
func (s *Source) DataOrders() []dataorder.Order { return pgtypes.DataOrders }

// SetDataOrder implements source.Source.
func (s *Source) SetDataOrder(order dataorder.Order) error {
	for _, o := range s.DataOrders() {
		if o == order {
			s.order = order
			return nil
		}
	}
	return errors.Errorf("memsource: data order %s not advertised", order)
}

// SetQueries implements source.Source.
func (s *Source) SetQueries(queries []string) { s.queries = queries }

// SetOriginQuery implements source.Source.
func (s *Source) SetOriginQuery(query string) { s.originQuery = query }

// metadataQuery returns the query FetchMetadata should describe: the
// origin query if one was set, otherwise the first partition query.
func (s *Source) metadataQuery() (string, error) {
	if s.originQuery != "" {
		return s.originQuery, nil
	}
	if len(s.queries) == 0 {
		return "", errors.WithStack(xferr.ErrNoContext)
	}
	return s.queries[0], nil
}

// FetchMetadata implements source.Source.
func (s *Source) FetchMetadata(ctx context.Context) (typesystem.Schema[pgtypes.Tag], error) {
	q, err := s.metadataQuery()
	if err != nil {
		return typesystem.Schema[pgtypes.Tag]{}, err
	}
	res, ok := s.results[q]
	if !ok {
		return typesystem.Schema[pgtypes.Tag]{}, xferr.NewDriverError(
			errors.Errorf("memsource: no canned result for query %q", q))
	}
	names := make([]string, len(res.Columns))
	tags := make([]pgtypes.Tag, len(res.Columns))
	for i, c := range res.Columns {
		names[i] = c.Name
		tags[i] = c.Tag
	}
	return typesystem.New(names, tags)
}

// Partition implements source.Source. It returns exactly
// len(s.queries) partitions, in query order.
func (s *Source) Partition(ctx context.Context) ([]source.Partition[pgtypes.Producer], error) {
	parts := make([]source.Partition[pgtypes.Producer], len(s.queries))
	for i, q := range s.queries {
		res, ok := s.results[q]
		if !ok {
			return nil, xferr.NewDriverError(errors.Errorf("memsource: no canned result for query %q", q))
		}
		tags := make([]pgtypes.Tag, len(res.Columns))
		for j, c := range res.Columns {
			tags[j] = c.Tag
		}
		parts[i] = &Partition{rows: res.Rows, tags: tags, dbBufferSize: s.dbBufferSize, order: s.order}
	}
	return parts, nil
}

// Partition owns one query's canned rows until Open hands them to a
// fresh Parser in the worker goroutine that claims this partition.
type Partition struct {
	rows         [][]any
	tags         []pgtypes.Tag
	dbBufferSize int
	order        dataorder.Order
}

var _ source.Partition[pgtypes.Producer] = (*Partition)(nil)

// Open implements source.Partition.
func (p *Partition) Open(ctx context.Context) (pgtypes.Producer, error) {
	return &Parser{
		rows:         p.rows,
		tags:         p.tags,
		ncols:        len(p.tags),
		dbBufferSize: p.dbBufferSize,
		order:        p.order,
	}, nil
}

// Parser is a stateful (row, col) cursor over one partition's canned
// rows. It is never shared across workers. The cursor walks the
// current batch in the negotiated data order: column-first within a
// row for RowMajor, row-first within a column for ColumnMajor.
type Parser struct {
	rows         [][]any
	tags         []pgtypes.Tag
	ncols        int
	dbBufferSize int
	order        dataorder.Order

	fetched int // rows made available by FetchNext so far
	base    int // first row of the current batch
	row     int
	col     int
}

var _ pgtypes.Producer = (*Parser)(nil)

// FetchNext implements source.Parser.
func (p *Parser) FetchNext(ctx context.Context) (int, bool, error) {
	if p.col != 0 || p.row != p.fetched {
		return 0, false, errors.New("memsource: FetchNext called before the current batch was consumed")
	}
	if p.fetched >= len(p.rows) {
		return 0, true, nil
	}
	p.base = p.fetched
	p.row = p.base
	remaining := len(p.rows) - p.fetched
	n := p.dbBufferSize
	if n > remaining {
		n = remaining
	}
	p.fetched += n
	return n, p.fetched >= len(p.rows), nil
}

// cell returns the raw value and tag at the current cursor, then
// advances the cursor through the batch in the negotiated order. Both
// orders leave the cursor at (fetched, 0) once the batch is consumed,
// which is what FetchNext's guard checks.
func (p *Parser) cell() (any, pgtypes.Tag, error) {
	if p.row >= p.fetched {
		return nil, 0, errors.New("memsource: Produce called before FetchNext made this row available")
	}
	v := p.rows[p.row][p.col]
	tag := p.tags[p.col]
	if p.order == dataorder.ColumnMajor {
		p.row++
		if p.row == p.fetched {
			p.col++
			p.row = p.base
			if p.col == p.ncols {
				p.col = 0
				p.row = p.fetched
			}
		}
		return v, tag, nil
	}
	p.col++
	if p.col == p.ncols {
		p.col = 0
		p.row++
	}
	return v, tag, nil
}

func cannotProduce(target string, v any) error {
	return &xferr.CannotProduceError{TargetType: target, Raw: fmt.Sprintf("%v", v)}
}

// ProduceInt32 implements pgtypes.Producer.
func (p *Parser) ProduceInt32() (int32, error) {
	v, tag, err := p.cell()
	if err != nil {
		return 0, err
	}
	if !pgtypes.Assoc[int32](tag) {
		return 0, &xferr.TypeCheckFailedError{ExpectedTag: tag, ValueType: "int32"}
	}
	iv, ok := v.(int32)
	if !ok {
		return 0, cannotProduce("int32", v)
	}
	return iv, nil
}

// ProduceInt64 implements pgtypes.Producer.
func (p *Parser) ProduceInt64() (int64, error) {
	v, tag, err := p.cell()
	if err != nil {
		return 0, err
	}
	if !pgtypes.Assoc[int64](tag) {
		return 0, &xferr.TypeCheckFailedError{ExpectedTag: tag, ValueType: "int64"}
	}
	iv, ok := v.(int64)
	if !ok {
		return 0, cannotProduce("int64", v)
	}
	return iv, nil
}

// ProduceFloat64 implements pgtypes.Producer.
func (p *Parser) ProduceFloat64() (float64, error) {
	v, tag, err := p.cell()
	if err != nil {
		return 0, err
	}
	if !pgtypes.Assoc[float64](tag) {
		return 0, &xferr.TypeCheckFailedError{ExpectedTag: tag, ValueType: "float64"}
	}
	fv, ok := v.(float64)
	if !ok {
		return 0, cannotProduce("float64", v)
	}
	return fv, nil
}

// ProduceUtf8 implements pgtypes.Producer.
func (p *Parser) ProduceUtf8() (string, error) {
	v, tag, err := p.cell()
	if err != nil {
		return "", err
	}
	if !pgtypes.Assoc[string](tag) {
		return "", &xferr.TypeCheckFailedError{ExpectedTag: tag, ValueType: "utf8"}
	}
	sv, ok := v.(string)
	if !ok {
		return "", cannotProduce("utf8", v)
	}
	return sv, nil
}

// ProduceBool implements pgtypes.Producer.
func (p *Parser) ProduceBool() (bool, error) {
	v, tag, err := p.cell()
	if err != nil {
		return false, err
	}
	if !pgtypes.Assoc[bool](tag) {
		return false, &xferr.TypeCheckFailedError{ExpectedTag: tag, ValueType: "bool"}
	}
	bv, ok := v.(bool)
	if !ok {
		return false, cannotProduce("bool", v)
	}
	return bv, nil
}

// ProduceBytes implements pgtypes.Producer.
func (p *Parser) ProduceBytes() ([]byte, error) {
	v, tag, err := p.cell()
	if err != nil {
		return nil, err
	}
	if !pgtypes.Assoc[[]byte](tag) {
		return nil, &xferr.TypeCheckFailedError{ExpectedTag: tag, ValueType: "bytes"}
	}
	bv, ok := v.([]byte)
	if !ok {
		return nil, cannotProduce("bytes", v)
	}
	return bv, nil
}

// ProduceDecimal implements pgtypes.Producer.
func (p *Parser) ProduceDecimal() (string, error) {
	v, tag, err := p.cell()
	if err != nil {
		return "", err
	}
	if !pgtypes.Assoc[string](tag) {
		return "", &xferr.TypeCheckFailedError{ExpectedTag: tag, ValueType: "decimal"}
	}
	sv, ok := v.(string)
	if !ok {
		return "", cannotProduce("decimal", v)
	}
	return sv, nil
}

// ProduceTimestamptz implements pgtypes.Producer.
func (p *Parser) ProduceTimestamptz() (time.Time, error) {
	v, tag, err := p.cell()
	if err != nil {
		return time.Time{}, err
	}
	if !pgtypes.Assoc[time.Time](tag) {
		return time.Time{}, &xferr.TypeCheckFailedError{ExpectedTag: tag, ValueType: "timestamptz"}
	}
	tv, ok := v.(time.Time)
	if !ok {
		return time.Time{}, cannotProduce("timestamptz", v)
	}
	return tv.UTC(), nil
}

// ProduceJson implements pgtypes.Producer.
func (p *Parser) ProduceJson() (string, error) {
	v, tag, err := p.cell()
	if err != nil {
		return "", err
	}
	if !pgtypes.Assoc[string](tag) {
		return "", &xferr.TypeCheckFailedError{ExpectedTag: tag, ValueType: "json"}
	}
	sv, ok := v.(string)
	if !ok {
		return "", cannotProduce("json", v)
	}
	return sv, nil
}

// ProduceListOfInt32 implements pgtypes.Producer.
func (p *Parser) ProduceListOfInt32() ([]int32, error) {
	v, tag, err := p.cell()
	if err != nil {
		return nil, err
	}
	if !pgtypes.Assoc[[]int32](tag) {
		return nil, &xferr.TypeCheckFailedError{ExpectedTag: tag, ValueType: "list_of_int32"}
	}
	lv, ok := v.([]int32)
	if !ok {
		return nil, cannotProduce("list_of_int32", v)
	}
	return lv, nil
}

// ProduceNullableInt32 implements pgtypes.Producer.
func (p *Parser) ProduceNullableInt32() (*int32, error) {
	v, tag, err := p.cell()
	if err != nil {
		return nil, err
	}
	if !pgtypes.Assoc[*int32](tag) {
		return nil, &xferr.TypeCheckFailedError{ExpectedTag: tag, ValueType: "nullable_int32"}
	}
	if v == nil {
		return nil, nil
	}
	pv, ok := v.(*int32)
	if !ok {
		return nil, cannotProduce("nullable_int32", v)
	}
	return pv, nil
}

// ProduceNullableInt64 implements pgtypes.Producer.
func (p *Parser) ProduceNullableInt64() (*int64, error) {
	v, tag, err := p.cell()
	if err != nil {
		return nil, err
	}
	if !pgtypes.Assoc[*int64](tag) {
		return nil, &xferr.TypeCheckFailedError{ExpectedTag: tag, ValueType: "nullable_int64"}
	}
	if v == nil {
		return nil, nil
	}
	pv, ok := v.(*int64)
	if !ok {
		return nil, cannotProduce("nullable_int64", v)
	}
	return pv, nil
}

// ProduceNullableUtf8 implements pgtypes.Producer.
func (p *Parser) ProduceNullableUtf8() (*string, error) {
	v, tag, err := p.cell()
	if err != nil {
		return nil, err
	}
	if !pgtypes.Assoc[*string](tag) {
		return nil, &xferr.TypeCheckFailedError{ExpectedTag: tag, ValueType: "nullable_utf8"}
	}
	if v == nil {
		return nil, nil
	}
	pv, ok := v.(*string)
	if !ok {
		return nil, cannotProduce("nullable_utf8", v)
	}
	return pv, nil
}

// ProduceNullableBool implements pgtypes.Producer.
func (p *Parser) ProduceNullableBool() (*bool, error) {
	v, tag, err := p.cell()
	if err != nil {
		return nil, err
	}
	if !pgtypes.Assoc[*bool](tag) {
		return nil, &xferr.TypeCheckFailedError{ExpectedTag: tag, ValueType: "nullable_bool"}
	}
	if v == nil {
		return nil, nil
	}
	pv, ok := v.(*bool)
	if !ok {
		return nil, cannotProduce("nullable_bool", v)
	}
	return pv, nil
}

// ProduceNullableTimestamptz implements pgtypes.Producer.
func (p *Parser) ProduceNullableTimestamptz() (*time.Time, error) {
	v, tag, err := p.cell()
	if err != nil {
		return nil, err
	}
	if !pgtypes.Assoc[*time.Time](tag) {
		return nil, &xferr.TypeCheckFailedError{ExpectedTag: tag, ValueType: "nullable_timestamptz"}
	}
	if v == nil {
		return nil, nil
	}
	pv, ok := v.(*time.Time)
	if !ok {
		return nil, cannotProduce("nullable_timestamptz", v)
	}
	utc := pv.UTC()
	return &utc, nil
}
