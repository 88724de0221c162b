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

// Package chaos wraps a source.Source or destination.Destination with
// decorators that randomly fail, so the fail-fast cancellation path
// (package workerpool, driven by package dispatcher) can be exercised
// without a flaky real driver. The decorators only reach the methods
// that are generic over the type system tag; the capability interfaces
// (pgtypes.Producer, arrowdest.Consumer, ...) are returned unwrapped,
// since Go has no way to wrap an arbitrary closed interface of
// concretely-named methods without knowing its shape.
package chaos

import (
	"context"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/cockroachdb/dbxfer/dataorder"
	"github.com/cockroachdb/dbxfer/destination"
	"github.com/cockroachdb/dbxfer/source"
	"github.com/cockroachdb/dbxfer/typesystem"
)

// ErrChaos is the sentinel wrapped by every injected failure, so tests
// can assert on it via errors.Is.
var ErrChaos = errors.New("chaos: injected failure")

// Option configures a chaos decorator's injection probability and, for
// tests that need determinism, its source of randomness.
type Option func(*config)

type config struct {
	probability float32
	float32Fn   func() float32
}

// WithProbability sets the chance, in [0,1), that a decorated call
// fails instead of delegating. The default is 0 (never fails).
func WithProbability(p float32) Option {
	return func(c *config) { c.probability = p }
}

// WithRand overrides the random source used to decide whether to inject
// a failure, for deterministic tests.
func WithRand(fn func() float32) Option {
	return func(c *config) { c.float32Fn = fn }
}

func newConfig(opts []Option) *config {
	c := &config{float32Fn: rand.Float32}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// doChaos returns an ErrChaos-wrapping error with probability
// c.probability, and nil otherwise.
func (c *config) doChaos(msg string) error {
	if c.float32Fn() < c.probability {
		return errors.WithMessage(ErrChaos, msg)
	}
	return nil
}

// Source wraps a source.Source, injecting failures into FetchMetadata
// and into the Partition.Open call of every partition it returns.
type Source[TS comparable, P source.Parser] struct {
	inner source.Source[TS, P]
	cfg   *config
}

// WrapSource returns a chaos-injecting decorator around inner.
func WrapSource[TS comparable, P source.Parser](inner source.Source[TS, P], opts ...Option) *Source[TS, P] {
	return &Source[TS, P]{inner: inner, cfg: newConfig(opts)}
}

// DataOrders delegates without injecting a failure: negotiation itself
// isn't a driver round-trip worth modeling as flaky.
func (s *Source[TS, P]) DataOrders() []dataorder.Order { return s.inner.DataOrders() }

// SetDataOrder delegates.
func (s *Source[TS, P]) SetDataOrder(order dataorder.Order) error {
	return s.inner.SetDataOrder(order)
}

// SetQueries delegates.
func (s *Source[TS, P]) SetQueries(queries []string) { s.inner.SetQueries(queries) }

// SetOriginQuery delegates.
func (s *Source[TS, P]) SetOriginQuery(query string) { s.inner.SetOriginQuery(query) }

// FetchMetadata may fail before delegating, per the configured
// probability.
func (s *Source[TS, P]) FetchMetadata(ctx context.Context) (typesystem.Schema[TS], error) {
	if err := s.cfg.doChaos("FetchMetadata"); err != nil {
		var zero typesystem.Schema[TS]
		return zero, err
	}
	return s.inner.FetchMetadata(ctx)
}

// Partition delegates, then wraps each returned partition so its Open
// call is also subject to injection.
func (s *Source[TS, P]) Partition(ctx context.Context) ([]source.Partition[P], error) {
	parts, err := s.inner.Partition(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]source.Partition[P], len(parts))
	for i, p := range parts {
		out[i] = &partition[P]{inner: p, cfg: s.cfg}
	}
	return out, nil
}

type partition[P source.Parser] struct {
	inner source.Partition[P]
	cfg   *config
}

func (p *partition[P]) Open(ctx context.Context) (P, error) {
	if err := p.cfg.doChaos("Partition.Open"); err != nil {
		var zero P
		return zero, err
	}
	return p.inner.Open(ctx)
}

// Destination wraps a destination.Destination, injecting failures into
// SetMetadata and AllocatePartition.
type Destination[TS comparable, W destination.Writer] struct {
	inner destination.Destination[TS, W]
	cfg   *config
}

// WrapDestination returns a chaos-injecting decorator around inner.
func WrapDestination[TS comparable, W destination.Writer](inner destination.Destination[TS, W], opts ...Option) *Destination[TS, W] {
	return &Destination[TS, W]{inner: inner, cfg: newConfig(opts)}
}

// DataOrders delegates.
func (d *Destination[TS, W]) DataOrders() []dataorder.Order { return d.inner.DataOrders() }

// SetMetadata may fail before delegating.
func (d *Destination[TS, W]) SetMetadata(schema typesystem.Schema[TS], order dataorder.Order) error {
	if err := d.cfg.doChaos("SetMetadata"); err != nil {
		return err
	}
	return d.inner.SetMetadata(schema, order)
}

// AllocatePartition may fail before delegating.
func (d *Destination[TS, W]) AllocatePartition() (W, error) {
	if err := d.cfg.doChaos("AllocatePartition"); err != nil {
		var zero W
		return zero, err
	}
	return d.inner.AllocatePartition()
}

// Schema delegates.
func (d *Destination[TS, W]) Schema() typesystem.Schema[TS] { return d.inner.Schema() }
