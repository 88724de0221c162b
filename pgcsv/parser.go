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

package pgcsv

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/cockroachdb/dbxfer/dataorder"
	"github.com/cockroachdb/dbxfer/pgtypes"
	"github.com/cockroachdb/dbxfer/source"
	"github.com/cockroachdb/dbxfer/typesystem"
	"github.com/cockroachdb/dbxfer/xferr"
)

// DefaultDBBufferSize mirrors memsource's constant of the same name;
// it governs how many rows FetchNext makes available per call.
const DefaultDBBufferSize = 256

// Column describes one column a CSV-driven QueryResult carries.
type Column struct {
	Name string
	Tag  pgtypes.Tag
}

// QueryResult is the canned answer for one query: its column layout
// and its rows, each cell still in raw `COPY ... WITH CSV` text form
// (no header row; empty string means NULL).
type QueryResult struct {
	Columns []Column
	Rows    [][]string
}

// Option configures a Source at construction time.
type Option func(*Source) error

// WithDBBufferSize overrides DefaultDBBufferSize.
func WithDBBufferSize(n int) Option {
	return func(s *Source) error {
		if n <= 0 {
			return errors.Errorf("pgcsv: DB buffer size must be positive, got %d", n)
		}
		s.dbBufferSize = n
		return nil
	}
}

// Source is a source.Source[pgtypes.Tag, pgtypes.Producer] backed by
// pre-fetched CSV cell text, standing in for a real `COPY ... WITH
// CSV` or simple-query driver.
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
	s := &Source{dbBufferSize: DefaultDBBufferSize, results: results}
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
	return errors.Errorf("pgcsv: data order %s not advertised", order)
}

// SetQueries implements source.Source.
func (s *Source) SetQueries(queries []string) { s.queries = queries }

// SetOriginQuery implements source.Source.
func (s *Source) SetOriginQuery(query string) { s.originQuery = query }

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
		return typesystem.Schema[pgtypes.Tag]{}, xferr.NewDriverError(errors.Errorf("pgcsv: no canned result for query %q", q))
	}
	names := make([]string, len(res.Columns))
	tags := make([]pgtypes.Tag, len(res.Columns))
	for i, c := range res.Columns {
		names[i] = c.Name
		tags[i] = c.Tag
	}
	return typesystem.New(names, tags)
}

// Partition implements source.Source.
func (s *Source) Partition(ctx context.Context) ([]source.Partition[pgtypes.Producer], error) {
	parts := make([]source.Partition[pgtypes.Producer], len(s.queries))
	for i, q := range s.queries {
		res, ok := s.results[q]
		if !ok {
			return nil, xferr.NewDriverError(errors.Errorf("pgcsv: no canned result for query %q", q))
		}
		tags := make([]pgtypes.Tag, len(res.Columns))
		for j, c := range res.Columns {
			tags[j] = c.Tag
		}
		parts[i] = &Partition{rows: res.Rows, tags: tags, dbBufferSize: s.dbBufferSize, order: s.order}
	}
	return parts, nil
}

// Partition owns one query's raw CSV rows until Open hands them to a
// fresh Parser.
type Partition struct {
	rows         [][]string
	tags         []pgtypes.Tag
	dbBufferSize int
	order        dataorder.Order
}

var _ source.Partition[pgtypes.Producer] = (*Partition)(nil)

// Open implements source.Partition.
func (p *Partition) Open(ctx context.Context) (pgtypes.Producer, error) {
	return &Parser{rows: p.rows, tags: p.tags, ncols: len(p.tags), dbBufferSize: p.dbBufferSize, order: p.order}, nil
}

// Parser is a stateful (row, col) cursor over one partition's raw CSV
// text rows, decoding each cell per §6.3 on demand. The cursor walks
// the current batch in the negotiated data order, the same way
// memsource's parser does.
type Parser struct {
	rows         [][]string
	tags         []pgtypes.Tag
	ncols        int
	dbBufferSize int
	order        dataorder.Order

	fetched int
	base    int
	row     int
	col     int
}

var _ pgtypes.Producer = (*Parser)(nil)

// FetchNext implements source.Parser.
func (p *Parser) FetchNext(ctx context.Context) (int, bool, error) {
	if p.col != 0 || p.row != p.fetched {
		return 0, false, errors.New("pgcsv: FetchNext called before the current batch was consumed")
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

// cell returns the raw text and tag at the current cursor, then
// advances the cursor through the batch in the negotiated order.
func (p *Parser) cell() (string, pgtypes.Tag, error) {
	if p.row >= p.fetched {
		return "", 0, errors.New("pgcsv: Produce called before FetchNext made this row available")
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

func wrongTag(tag pgtypes.Tag, want string) error {
	return &xferr.TypeCheckFailedError{ExpectedTag: tag, ValueType: want}
}

// ProduceInt32 implements pgtypes.Producer.
func (p *Parser) ProduceInt32() (int32, error) {
	raw, tag, err := p.cell()
	if err != nil {
		return 0, err
	}
	if !pgtypes.Assoc[int32](tag) {
		return 0, wrongTag(tag, "int32")
	}
	if raw == "" {
		return 0, &xferr.UnexpectedNullError{Column: "int32"}
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, &xferr.CannotProduceError{TargetType: "int32", Raw: raw}
	}
	return int32(v), nil
}

// ProduceInt64 implements pgtypes.Producer.
func (p *Parser) ProduceInt64() (int64, error) {
	raw, tag, err := p.cell()
	if err != nil {
		return 0, err
	}
	if !pgtypes.Assoc[int64](tag) {
		return 0, wrongTag(tag, "int64")
	}
	if raw == "" {
		return 0, &xferr.UnexpectedNullError{Column: "int64"}
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &xferr.CannotProduceError{TargetType: "int64", Raw: raw}
	}
	return v, nil
}

// ProduceFloat64 implements pgtypes.Producer.
func (p *Parser) ProduceFloat64() (float64, error) {
	raw, tag, err := p.cell()
	if err != nil {
		return 0, err
	}
	if !pgtypes.Assoc[float64](tag) {
		return 0, wrongTag(tag, "float64")
	}
	if raw == "" {
		return 0, &xferr.UnexpectedNullError{Column: "float64"}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &xferr.CannotProduceError{TargetType: "float64", Raw: raw}
	}
	return v, nil
}

// ProduceUtf8 implements pgtypes.Producer.
func (p *Parser) ProduceUtf8() (string, error) {
	raw, tag, err := p.cell()
	if err != nil {
		return "", err
	}
	if !pgtypes.Assoc[string](tag) {
		return "", wrongTag(tag, "utf8")
	}
	return raw, nil
}

// ProduceBool implements pgtypes.Producer.
func (p *Parser) ProduceBool() (bool, error) {
	raw, tag, err := p.cell()
	if err != nil {
		return false, err
	}
	if !pgtypes.Assoc[bool](tag) {
		return false, wrongTag(tag, "bool")
	}
	if raw == "" {
		return false, &xferr.UnexpectedNullError{Column: "bool"}
	}
	return DecodeBool(raw)
}

// ProduceBytes implements pgtypes.Producer.
func (p *Parser) ProduceBytes() ([]byte, error) {
	raw, tag, err := p.cell()
	if err != nil {
		return nil, err
	}
	if !pgtypes.Assoc[[]byte](tag) {
		return nil, wrongTag(tag, "bytes")
	}
	if raw == "" {
		return nil, &xferr.UnexpectedNullError{Column: "bytes"}
	}
	return DecodeBytea(raw)
}

// ProduceDecimal implements pgtypes.Producer. The decimal cell travels
// as its normalized source text unchanged (see pgtypes.Decimal).
func (p *Parser) ProduceDecimal() (string, error) {
	raw, tag, err := p.cell()
	if err != nil {
		return "", err
	}
	if !pgtypes.Assoc[string](tag) {
		return "", wrongTag(tag, "decimal")
	}
	if raw == "" {
		return "", &xferr.UnexpectedNullError{Column: "decimal"}
	}
	return raw, nil
}

// ProduceTimestamptz implements pgtypes.Producer.
func (p *Parser) ProduceTimestamptz() (time.Time, error) {
	raw, tag, err := p.cell()
	if err != nil {
		return time.Time{}, err
	}
	if !pgtypes.Assoc[time.Time](tag) {
		return time.Time{}, wrongTag(tag, "timestamptz")
	}
	if raw == "" {
		return time.Time{}, &xferr.UnexpectedNullError{Column: "timestamptz"}
	}
	return DecodeTimestamptz(raw)
}

// ProduceJson implements pgtypes.Producer.
func (p *Parser) ProduceJson() (string, error) {
	raw, tag, err := p.cell()
	if err != nil {
		return "", err
	}
	if !pgtypes.Assoc[string](tag) {
		return "", wrongTag(tag, "json")
	}
	if raw == "" {
		return "", &xferr.UnexpectedNullError{Column: "json"}
	}
	return raw, nil
}

// ProduceListOfInt32 implements pgtypes.Producer.
func (p *Parser) ProduceListOfInt32() ([]int32, error) {
	raw, tag, err := p.cell()
	if err != nil {
		return nil, err
	}
	if !pgtypes.Assoc[[]int32](tag) {
		return nil, wrongTag(tag, "list_of_int32")
	}
	if raw == "" {
		return nil, &xferr.UnexpectedNullError{Column: "list_of_int32"}
	}
	return DecodeArrayInt32(raw)
}

// ProduceNullableInt32 implements pgtypes.Producer.
func (p *Parser) ProduceNullableInt32() (*int32, error) {
	raw, tag, err := p.cell()
	if err != nil {
		return nil, err
	}
	if !pgtypes.Assoc[*int32](tag) {
		return nil, wrongTag(tag, "nullable_int32")
	}
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return nil, &xferr.CannotProduceError{TargetType: "nullable_int32", Raw: raw}
	}
	iv := int32(v)
	return &iv, nil
}

// ProduceNullableInt64 implements pgtypes.Producer.
func (p *Parser) ProduceNullableInt64() (*int64, error) {
	raw, tag, err := p.cell()
	if err != nil {
		return nil, err
	}
	if !pgtypes.Assoc[*int64](tag) {
		return nil, wrongTag(tag, "nullable_int64")
	}
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, &xferr.CannotProduceError{TargetType: "nullable_int64", Raw: raw}
	}
	return &v, nil
}

// ProduceNullableUtf8 implements pgtypes.Producer.
func (p *Parser) ProduceNullableUtf8() (*string, error) {
	raw, tag, err := p.cell()
	if err != nil {
		return nil, err
	}
	if !pgtypes.Assoc[*string](tag) {
		return nil, wrongTag(tag, "nullable_utf8")
	}
	if raw == "" {
		return nil, nil
	}
	return &raw, nil
}

// ProduceNullableBool implements pgtypes.Producer.
func (p *Parser) ProduceNullableBool() (*bool, error) {
	raw, tag, err := p.cell()
	if err != nil {
		return nil, err
	}
	if !pgtypes.Assoc[*bool](tag) {
		return nil, wrongTag(tag, "nullable_bool")
	}
	if raw == "" {
		return nil, nil
	}
	v, err := DecodeBool(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ProduceNullableTimestamptz implements pgtypes.Producer.
func (p *Parser) ProduceNullableTimestamptz() (*time.Time, error) {
	raw, tag, err := p.cell()
	if err != nil {
		return nil, err
	}
	if !pgtypes.Assoc[*time.Time](tag) {
		return nil, wrongTag(tag, "nullable_timestamptz")
	}
	if raw == "" {
		return nil, nil
	}
	v, err := DecodeTimestamptz(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
