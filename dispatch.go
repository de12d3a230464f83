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
	"context"
	"time"

	"go.uber.org/zap"
)

// Wait describes an ad-hoc wait for a device state, such as the end of a
// medium insertion
type Wait[S comparable] struct {
	// Kick optionally starts the transition being waited for. It runs under
	// the device lock; an error fails the wait without creating an operation.
	Kick func(state S) (Step[S], error)
	// Until reports whether the awaited state has been reached
	Until func(state S) bool
	Kind  Kind
}

// Dispatch runs one operation. It fails fast with ErrBusy if another
// operation is outstanding, otherwise it waits up to timeout (or Infinite)
// for the device to resolve it. Exactly one of success, a domain error,
// ErrTimeout or ErrAborted is returned, and the device is free for the next
// operation when Dispatch returns.
func (d *Device[S]) Dispatch(ctx context.Context, h Handle, req Request, timeout time.Duration) (any, error) {
	if timeout < 0 && timeout != Infinite {
		return nil, NewOperationError(req.Kind, d.name, ErrInvalidParameter, "negative timeout")
	}

	d.mu.Lock()
	if err := d.admitLocked(h, true); err != nil {
		d.mu.Unlock()
		return nil, NewOperationError(req.Kind, d.name, err, "")
	}
	op := newOperation(req, timeout)
	d.current = op
	step, interrupt := d.accept(op)
	d.applyExternalLocked(step, op)
	if interrupt {
		d.interruptLocked()
	}
	d.mu.Unlock()
	d.flush()

	return d.wait(ctx, op, timeout)
}

// Await blocks until w.Until holds for the device state, timeout elapses or
// the wait is aborted. It occupies the operation slot like Dispatch but
// emits no events. A wait whose condition already holds returns at once,
// so repeating a begin call never restarts the transition.
func (d *Device[S]) Await(ctx context.Context, h Handle, w Wait[S], timeout time.Duration) error {
	if timeout < 0 && timeout != Infinite {
		return NewOperationError(w.Kind, d.name, ErrInvalidParameter, "negative timeout")
	}
	if w.Until == nil {
		return NewOperationError(w.Kind, d.name, ErrInvalidParameter, "missing wait condition")
	}

	d.mu.Lock()
	if err := d.admitLocked(h, true); err != nil {
		d.mu.Unlock()
		return NewOperationError(w.Kind, d.name, err, "")
	}
	if w.Kick != nil {
		step, err := w.Kick(d.state)
		if err != nil {
			d.mu.Unlock()
			return bind(err, w.Kind, d.name)
		}
		d.applyExternalLocked(step, nil)
	}
	if w.Until(d.state) {
		d.mu.Unlock()
		d.flush()
		return nil
	}
	op := newOperation(Request{Kind: w.Kind}, timeout)
	op.silent = true
	d.current = op
	d.waitUntil = w.Until
	d.mu.Unlock()
	d.flush()

	_, err := d.wait(ctx, op, timeout)
	return err
}

// Abort resolves the outstanding operation with ErrAborted and frees the
// device at once. It reports whether there was anything to abort.
func (d *Device[S]) Abort() bool {
	d.mu.Lock()
	op := d.current
	aborted := op != nil && d.abortLocked(op)
	d.mu.Unlock()

	if aborted {
		d.log.Debug("operation aborted", zap.String("kind", string(op.kind)))
	}
	return aborted
}

// accept runs the category admission hook, turning a panic into a hardware
// failure of the new operation
func (d *Device[S]) accept(op *Operation) (step Step[S], interrupt bool) {
	defer func() {
		if r := recover(); r != nil {
			d.fault("operation admission panicked", r)
			step = Step[S]{Next: d.state, Outcome: Fail(Failure(ErrHardware, "internal fault"))}
			interrupt = false
		}
	}()
	return d.category.Accept(d.state, op)
}

// wait suspends on op's signal and turns what happened into the call result.
// A resolution that raced the timeout wins over the timeout.
func (d *Device[S]) wait(ctx context.Context, op *Operation, timeout time.Duration) (any, error) {
	signaled := op.signal.SuspendContext(ctx, timeout)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current == op {
		d.current = nil
		d.waitUntil = nil
	}
	if signaled || op.resolved {
		return op.outcome.Value, op.outcome.Err
	}

	op.cancelled = true
	if err := ctx.Err(); err != nil {
		d.metrics.aborted.Add(1)
		return nil, NewOperationError(op.kind, d.name, ErrAborted, err.Error())
	}
	d.metrics.timeouts.Add(1)
	d.log.Debug("operation timed out", zap.String("kind", string(op.kind)), zap.Duration("timeout", timeout))
	return nil, NewOperationError(op.kind, d.name, ErrTimeout, "")
}
