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

// Package xferr collects the error taxonomy shared by the source,
// destination, transport, and dispatcher packages. Keeping them in one
// place avoids import cycles, since all four packages need to
// construct or recognize these values.
package xferr

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrCancelled is returned by a worker that observed a peer's failure
// and stopped cooperatively at its next batch boundary.
var ErrCancelled = errors.New("dbxfer: cancelled because a peer partition failed")

// ErrNoContext is returned by a Source that cannot establish the
// lightweight connection it needs to fetch metadata.
var ErrNoContext = errors.New("dbxfer: source has no context to fetch metadata with")

// NoConversionRuleError is returned by a Transport's ConvertTag when a
// source tag has no destination counterpart.
type NoConversionRuleError struct {
	SrcTag any
	DstTS  string
}

func (e *NoConversionRuleError) Error() string {
	return fmt.Sprintf("dbxfer: no conversion rule from %v to type system %s", e.SrcTag, e.DstTS)
}

// TypeCheckFailedError is returned when a Produce/Consume call is
// issued against a cell whose tag does not associate with the value
// type the caller requested.
type TypeCheckFailedError struct {
	ExpectedTag any
	ValueType   string
}

func (e *TypeCheckFailedError) Error() string {
	return fmt.Sprintf("dbxfer: type check failed: tag %v does not associate with %s", e.ExpectedTag, e.ValueType)
}

// CannotProduceError is returned by a Parser when a cell's raw
// representation cannot be decoded into the requested value type.
type CannotProduceError struct {
	TargetType string
	Raw        string
}

func (e *CannotProduceError) Error() string {
	return fmt.Sprintf("dbxfer: cannot produce %s from %q", e.TargetType, e.Raw)
}

// UnexpectedNullError is returned when a NULL is read into a
// non-optional value type.
type UnexpectedNullError struct {
	Column string
}

func (e *UnexpectedNullError) Error() string {
	return fmt.Sprintf("dbxfer: unexpected NULL in column %s", e.Column)
}

// ProduceNotSupportedError is returned for tag/value combinations that
// a driver has declared unreachable for a given wire protocol.
type ProduceNotSupportedError struct {
	Protocol string
	Tag      any
}

func (e *ProduceNotSupportedError) Error() string {
	return fmt.Sprintf("dbxfer: protocol %s does not support producing tag %v", e.Protocol, e.Tag)
}

// DriverError wraps an opaque error surfaced by a driver (or reference
// collaborator) so that callers can still recognize it via errors.As
// without the core depending on any particular driver's error types.
type DriverError struct {
	cause error
}

// NewDriverError wraps cause, preserving its stack via pkg/errors.
func NewDriverError(cause error) *DriverError {
	return &DriverError{cause: errors.WithStack(cause)}
}

func (e *DriverError) Error() string { return "dbxfer: driver error: " + e.cause.Error() }

// Unwrap allows errors.Is/errors.As to see through to the cause.
func (e *DriverError) Unwrap() error { return e.cause }
