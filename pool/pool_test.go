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

package pool_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cockroachdb/dbxfer/pool"
)

func TestAcquireRespectsSize(t *testing.T) {
	var created int32
	p, err := pool.New(1, func(ctx context.Context) (int, error) {
		return int(atomic.AddInt32(&created, 1)), nil
	}, func(int) error { return nil })
	require.NoError(t, err)

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, conn)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Acquire(ctx)
	require.Error(t, err, "pool of size 1 should block until Release")

	require.NoError(t, p.Release(conn))
	conn2, err := p.Acquire(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, conn2)
}

func TestWithSizeOverridesDefault(t *testing.T) {
	p, err := pool.New(1, func(ctx context.Context) (int, error) { return 0, nil }, nil, pool.WithSize(2))
	require.NoError(t, err)

	_, err = p.Acquire(context.Background())
	require.NoError(t, err)
	_, err = p.Acquire(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, p.Len())
}

func TestWithSizeRejectsNonPositive(t *testing.T) {
	_, err := pool.New(1, func(ctx context.Context) (int, error) { return 0, nil }, nil, pool.WithSize(0))
	require.Error(t, err)
}
