// go-posdummy
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-posdummy.
//
// go-posdummy is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-posdummy is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-posdummy; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package posdummy

import (
	"time"

	"github.com/google/uuid"
)

// Kind names an operation type
type Kind string

// Request is what a caller hands to the dispatcher
type Request struct {
	Params any
	Kind   Kind
}

// Outcome is the result slot of an operation. A nil Err means success.
type Outcome struct {
	Value any
	Err   error
}

// Succeed returns a successful outcome carrying v
func Succeed(v any) *Outcome {
	return &Outcome{Value: v}
}

// Fail returns a failed outcome
func Fail(err error) *Outcome {
	return &Outcome{Err: err}
}

// Operation is one dispatched unit of work against a Device. All mutable
// fields are guarded by the owning device's lock.
type Operation struct {
	created   time.Time
	deadline  time.Time
	params    any
	signal    *Signal
	outcome   Outcome
	kind      Kind
	ID        uuid.UUID
	resolved  bool
	cancelled bool
	silent    bool
}

func newOperation(req Request, timeout time.Duration) *Operation {
	now := time.Now()
	op := &Operation{
		ID:      uuid.New(),
		kind:    req.Kind,
		params:  req.Params,
		created: now,
		signal:  NewSignal(),
	}
	if timeout >= 0 {
		op.deadline = now.Add(timeout)
	}
	return op
}

// Kind returns the operation kind
func (op *Operation) Kind() Kind {
	return op.kind
}

// Params returns the opaque request parameters
func (op *Operation) Params() any {
	return op.params
}

// Deadline returns when the caller stops waiting; zero means never
func (op *Operation) Deadline() time.Time {
	return op.deadline
}

// Age returns the time since the operation was created
func (op *Operation) Age() time.Duration {
	return time.Since(op.created)
}

// Resolved reports whether the outcome slot has been filled
func (op *Operation) Resolved() bool {
	return op.resolved
}

// Cancelled reports whether the caller gave up before resolution
func (op *Operation) Cancelled() bool {
	return op.cancelled
}

// resolve fills the outcome slot and signals the waiter. Only the first
// call has any effect.
func (op *Operation) resolve(out Outcome) bool {
	if op.resolved {
		return false
	}
	op.outcome = out
	op.resolved = true
	op.signal.Signal()
	return true
}
