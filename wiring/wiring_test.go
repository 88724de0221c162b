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

package wiring_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cockroachdb/dbxfer/memsource"
	"github.com/cockroachdb/dbxfer/pgtypes"
	"github.com/cockroachdb/dbxfer/wiring"
)

func TestBuildMemoryDispatcherRunsEndToEnd(t *testing.T) {
	results := map[string]memsource.QueryResult{
		"Q": {
			Columns: []memsource.Column{{Name: "a", Tag: pgtypes.Int32}},
			Rows:    [][]any{{int32(1)}, {int32(2)}},
		},
	}

	d, err := wiring.BuildMemoryDispatcher(results, nil, nil, wiring.Config{Queries: []string{"Q"}})
	require.NoError(t, err)

	ctx := context.Background()
	plan, err := d.Prepare(ctx)
	require.NoError(t, err)
	require.NoError(t, d.Run(ctx, plan))
}

func TestBuildMemoryDispatcherSurfacesSourceConstructionError(t *testing.T) {
	_, err := wiring.BuildMemoryDispatcher(
		nil, []memsource.Option{memsource.WithDBBufferSize(0)}, nil, wiring.Config{Queries: []string{"Q"}})
	require.Error(t, err)
}
