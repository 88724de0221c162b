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

package transport_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cockroachdb/dbxfer/transport"
	"github.com/cockroachdb/dbxfer/xferr"
)

// fakeParser and fakeWriter are the minimal stand-ins used to exercise
// RuleSet without pulling in pgtypes/arrowdest.
type fakeParser struct{ n int }

func (p *fakeParser) FetchNext(_ context.Context) (int, bool, error) { return 0, true, nil }

type fakeWriter struct{ got []int }

func (w *fakeWriter) ReserveRows(int) error { return nil }
func (w *fakeWriter) NCols() int            { return 1 }
func (w *fakeWriter) Finish() error         { return nil }

func TestRuleSetConvertTagUsesFirstRegistration(t *testing.T) {
	rs := transport.NewRuleSet[int, string, *fakeParser, *fakeWriter]()
	rs.Register(1, "one", func(p *fakeParser, w *fakeWriter) error { return nil })
	rs.Register(1, "uno", func(p *fakeParser, w *fakeWriter) error { return nil })

	dst, err := rs.ConvertTag(1)
	require.NoError(t, err)
	require.Equal(t, "one", dst)
}

func TestRuleSetConvertTagUnregistered(t *testing.T) {
	rs := transport.NewRuleSet[int, string, *fakeParser, *fakeWriter]()
	_, err := rs.ConvertTag(42)
	var nce *xferr.NoConversionRuleError
	require.ErrorAs(t, err, &nce)
}

func TestRuleSetProcessorResolvesSecondRegistration(t *testing.T) {
	rs := transport.NewRuleSet[int, string, *fakeParser, *fakeWriter]()
	rs.Register(1, "one", func(p *fakeParser, w *fakeWriter) error { w.got = append(w.got, 1); return nil })
	rs.Register(1, "uno", func(p *fakeParser, w *fakeWriter) error { w.got = append(w.got, 2); return nil })

	fn, err := rs.Processor(1, "uno")
	require.NoError(t, err)

	w := &fakeWriter{}
	require.NoError(t, fn(&fakeParser{}, w))
	require.Equal(t, []int{2}, w.got)
}

func TestRuleSetRulesEnumeratesInRegistrationOrder(t *testing.T) {
	rs := transport.NewRuleSet[int, string, *fakeParser, *fakeWriter]()
	rs.Register(1, "one", func(p *fakeParser, w *fakeWriter) error { return nil })
	rs.Register(2, "two", func(p *fakeParser, w *fakeWriter) error { return nil })
	rs.Register(1, "uno", func(p *fakeParser, w *fakeWriter) error { return nil })

	got := rs.Rules()
	require.Equal(t, []transport.RuleTag[int, string]{
		{Src: 1, Dst: "one"},
		{Src: 2, Dst: "two"},
		{Src: 1, Dst: "uno"},
	}, got)
}
