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

// Package pgcsv decodes pre-fetched PostgreSQL `COPY ... WITH CSV`
// cell text per §6.3 of the design: no header row, bool as `t`/`f`,
// empty field is NULL, arrays as `{v,v,...}`, bytea as `\xHEX`, and
// timestamptz formatted `YYYY-MM-DD HH:MM:SS±HH` (a two-digit offset
// that must gain a trailing `:00` before it parses as a Go time
// layout). It does not open sockets; a real driver feeds it text
// already read off the wire, exactly the way github.com/lib/pq's
// text-format decoding conventions work, which this package mirrors.
//
// The same decoding rules serve PostgreSQL's "simple query" protocol,
// per the Open Question resolved in §9: both paths are string-typed
// wire formats and a malformed cell surfaces as a wrapped error here
// rather than a panic.
package pgcsv

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/cockroachdb/dbxfer/xferr"
)

// timestamptzLayout is the Go reference layout for `YYYY-MM-DD
// HH:MM:SS±HH:MM`, i.e. the wire format after DecodeTimestamptz has
// appended the missing `:00` minutes component to the raw two-digit
// offset.
const timestamptzLayout = "2006-01-02 15:04:05-07:00"

// DecodeBool implements the `t`/`f` convention.
func DecodeBool(raw string) (bool, error) {
	switch raw {
	case "t":
		return true, nil
	case "f":
		return false, nil
	default:
		return false, &xferr.CannotProduceError{TargetType: "bool", Raw: raw}
	}
}

// DecodeBytea decodes the `\xHEX` bytea text format.
func DecodeBytea(raw string) ([]byte, error) {
	hexPart, ok := strings.CutPrefix(raw, `\x`)
	if !ok {
		return nil, &xferr.CannotProduceError{TargetType: "bytes", Raw: raw}
	}
	b, err := hex.DecodeString(hexPart)
	if err != nil {
		return nil, &xferr.CannotProduceError{TargetType: "bytes", Raw: raw}
	}
	return b, nil
}

// DecodeArrayInt32 decodes a PostgreSQL `{v,v,...}` int4[] literal. An
// empty array is `{}`.
func DecodeArrayInt32(raw string) ([]int32, error) {
	inner, ok := strings.CutPrefix(raw, "{")
	if !ok {
		return nil, &xferr.CannotProduceError{TargetType: "list_of_int32", Raw: raw}
	}
	inner, ok = strings.CutSuffix(inner, "}")
	if !ok {
		return nil, &xferr.CannotProduceError{TargetType: "list_of_int32", Raw: raw}
	}
	if inner == "" {
		return []int32{}, nil
	}
	parts := strings.Split(inner, ",")
	out := make([]int32, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return nil, &xferr.CannotProduceError{TargetType: "list_of_int32", Raw: raw}
		}
		out[i] = int32(v)
	}
	return out, nil
}

// DecodeTimestamptz appends the missing `:00` minutes component to a
// two-digit-offset timestamptz cell and parses it, normalizing to UTC
// (§8 scenario S5).
func DecodeTimestamptz(raw string) (time.Time, error) {
	t, err := time.Parse(timestamptzLayout, raw+":00")
	if err != nil {
		return time.Time{}, errors.Wrapf(&xferr.CannotProduceError{TargetType: "timestamptz", Raw: raw}, "pgcsv")
	}
	return t.UTC(), nil
}
