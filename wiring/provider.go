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

// Package wiring assembles the reference collaborators (memsource as
// the Source, arrowdest as the Destination, pgarrow as the
// Transport) into a ready-to-run dispatcher.Dispatcher, the way the
// teacher's internal/source/logical package assembles a Conn's
// dependencies with google/wire. wiring.go holds the //go:build
// wireinject injector; wire_gen.go is its hand-authored "go
// generate"'d output, since the wire binary cannot be invoked in this
// environment.
package wiring

import (
	"context"

	"github.com/cockroachdb/dbxfer/arrowdest"
	"github.com/cockroachdb/dbxfer/dispatcher"
	"github.com/cockroachdb/dbxfer/memsource"
	"github.com/cockroachdb/dbxfer/pgarrow"
	"github.com/cockroachdb/dbxfer/pgtypes"
	"github.com/cockroachdb/dbxfer/pool"
)

// Config bundles the fields Dispatcher needs that aren't themselves
// provided by another provider in this set.
type Config struct {
	Queries     []string
	OriginQuery string
}

// ProvideMemorySource constructs the canned Source from its results
// table and options.
func ProvideMemorySource(results map[string]memsource.QueryResult, opts []memsource.Option) (*memsource.Source, error) {
	return memsource.New(results, opts...)
}

// ProvideArrowDestination constructs the Arrow-backed Destination.
func ProvideArrowDestination(opts []arrowdest.Option) (*arrowdest.Destination, error) {
	return arrowdest.New(opts...)
}

// ProvideRuleSet constructs the pgtypes -> arrowdest conversion table.
func ProvideRuleSet() *pgarrow.RuleSet {
	return pgarrow.New()
}

// ProvideConnPool constructs the per-run connection pool, sized to the
// partition count. The in-memory pipeline has no sockets to open, so
// the factory hands out placeholder connections; the pool still bounds
// worker admission exactly the way a real driver's pool would.
func ProvideConnPool(cfg Config) (*pool.Pool[pool.Conn], error) {
	size := len(cfg.Queries)
	if size == 0 {
		size = 1
	}
	return pool.New(size, func(ctx context.Context) (pool.Conn, error) {
		return struct{}{}, nil
	}, nil)
}

// ProvideDispatcher assembles a Dispatcher generic over the
// pgtypes/arrowdest type systems from its three collaborators plus the
// query configuration.
func ProvideDispatcher(
	src *memsource.Source,
	dst *arrowdest.Destination,
	rs *pgarrow.RuleSet,
	conns *pool.Pool[pool.Conn],
	cfg Config,
) *dispatcher.Dispatcher[pgtypes.Tag, arrowdest.Tag, pgtypes.Producer, arrowdest.Consumer] {
	return &dispatcher.Dispatcher[pgtypes.Tag, arrowdest.Tag, pgtypes.Producer, arrowdest.Consumer]{
		Source:      src,
		Destination: dst,
		Transport:   rs,
		Queries:     cfg.Queries,
		OriginQuery: cfg.OriginQuery,
		ConnPool:    conns,
	}
}
