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

// Package pool manages the one contended resource a Dispatcher run
// shares across partitions: a bounded set of driver connections. Each
// partition's worker calls Acquire once, at the top of its loop, and
// Release when it returns; a pool sized to the partition count (the
// default) never blocks a worker on another partition's connection.
package pool

import (
	"context"

	"github.com/pkg/errors"
)

// Option configures a Pool at construction time, mirroring the
// functional-options shape the teacher's connection pools use.
type Option func(*config) error

type config struct {
	size int
}

// WithSize overrides the pool's connection budget. The zero value (no
// WithSize option) defaults to the partition count passed to New.
func WithSize(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return errors.Errorf("pool: size must be positive, got %d", n)
		}
		c.size = n
		return nil
	}
}

// Conn is an opaque handle a Pool hands out; it's whatever the caller's
// factory function returns (a *sql.DB connection, a pgx.Conn, ...).
type Conn any

// Pool is a fixed-size semaphore bounding how many driver connections
// are checked out at once. It keeps no idle connections: each Acquire
// creates one with the factory function and each Release closes it with
// the close function. It exists so
// the dispatcher's one-goroutine-per-partition concurrency model has
// somewhere to bound the driver-side resource it actually contends on;
// the partitions themselves never block on each other.
type Pool[C Conn] struct {
	factory func(ctx context.Context) (C, error)
	closeFn func(C) error
	sem     chan struct{}
}

// New returns a Pool sized to n (typically the partition count), using
// factory to lazily create connections and closeFn to release them.
func New[C Conn](n int, factory func(ctx context.Context) (C, error), closeFn func(C) error, opts ...Option) (*Pool[C], error) {
	cfg := config{size: n}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	return &Pool[C]{
		factory: factory,
		closeFn: closeFn,
		sem:     make(chan struct{}, cfg.size),
	}, nil
}

// Acquire blocks until a connection slot is free, then returns a fresh
// connection from factory. The caller must call Release exactly once
// with the same connection.
func (p *Pool[C]) Acquire(ctx context.Context) (C, error) {
	var zero C
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return zero, errors.Wrap(ctx.Err(), "pool: acquire cancelled")
	}
	conn, err := p.factory(ctx)
	if err != nil {
		<-p.sem
		return zero, errors.Wrap(err, "pool: creating connection")
	}
	return conn, nil
}

// Release returns conn's slot to the pool and closes the connection via
// closeFn.
func (p *Pool[C]) Release(conn C) error {
	defer func() { <-p.sem }()
	if p.closeFn == nil {
		return nil
	}
	return errors.Wrap(p.closeFn(conn), "pool: closing connection")
}

// Len reports how many connections are currently checked out.
func (p *Pool[C]) Len() int {
	return len(p.sem)
}
