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

//go:build wireinject
// +build wireinject

package wiring

import (
	"github.com/google/wire"

	"github.com/cockroachdb/dbxfer/arrowdest"
	"github.com/cockroachdb/dbxfer/dispatcher"
	"github.com/cockroachdb/dbxfer/memsource"
	"github.com/cockroachdb/dbxfer/pgtypes"
)

// MemorySet provides the canned in-memory pipeline: a memsource.Source
// feeding an arrowdest.Destination through the pgarrow rule set.
var MemorySet = wire.NewSet(
	ProvideMemorySource,
	ProvideArrowDestination,
	ProvideRuleSet,
	ProvideConnPool,
	ProvideDispatcher,
)

// BuildMemoryDispatcher wires MemorySet. wire_gen.go holds the
// generated form of this injector.
func BuildMemoryDispatcher(
	results map[string]memsource.QueryResult,
	srcOpts []memsource.Option,
	dstOpts []arrowdest.Option,
	cfg Config,
) (*dispatcher.Dispatcher[pgtypes.Tag, arrowdest.Tag, pgtypes.Producer, arrowdest.Consumer], error) {
	wire.Build(MemorySet)
	return nil, nil
}
