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

// Package workerpool is the data-parallel, fail-fast partition runner
// described in §5 of the design: one goroutine per partition, with no
// cap on how many run at once, run under golang.org/x/sync/errgroup,
// which already gives us the "return
// the first error seen, cancel the rest" semantics the teacher
// achieves by hand in internal/util/stopper.Context. It is a thin
// wrapper, deliberately, so the per-cell hot path inside each task
// stays simple.
package workerpool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Cancelled reports whether ctx was cancelled because a peer task in
// the same Run failed. Tasks are expected to check this once per
// batch boundary (e.g. once per Parser.FetchNext), never inside the
// per-cell loop, mirroring the cooperative-cancellation contract of
// §5 ("Cancellation & timeouts").
func Cancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// Run executes one task per element of tasks concurrently, each given
// a context that is cancelled as soon as any task returns a non-nil
// error. It blocks until every task has returned, then returns the
// first error seen (errgroup.Group.Wait's semantics), or nil if all
// tasks succeeded.
func Run(ctx context.Context, tasks []func(ctx context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		task := task
		g.Go(func() error { return task(gctx) })
	}
	return g.Wait()
}
