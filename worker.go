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
	"fmt"
	"time"

	"go.uber.org/zap"
)

// work is the device worker loop. It runs until ctx is cancelled, then
// aborts whatever operation is still outstanding unless the device has been
// claimed again in the meantime.
func (d *Device[S]) work(ctx context.Context) {
	d.log.Info("device worker started")

	for ctx.Err() == nil {
		if !d.cycle(ctx) {
			d.backoff(ctx)
		}
	}

	d.mu.Lock()
	d.interrupt = nil
	if d.current != nil && (d.closed || !d.claims.anyClaimed()) {
		d.abortLocked(d.current)
	}
	d.mu.Unlock()
	d.deliver()

	d.log.Info("device worker stopped")
}

// cycle presents one prompt and applies its stimulus. It returns false if
// the category or the provider faulted.
func (d *Device[S]) cycle(ctx context.Context) bool {
	d.mu.Lock()
	state := d.state
	epoch := d.epoch
	prompt, ok := d.prompt(state, d.request())
	if !ok {
		d.mu.Unlock()
		return false
	}
	promptCtx, cancel := context.WithCancel(ctx)
	d.interrupt = cancel
	d.mu.Unlock()

	stim, ok := d.present(promptCtx, prompt)
	withdrawn := promptCtx.Err() != nil
	cancel()
	d.metrics.cycles.Add(1)

	d.mu.Lock()
	d.interrupt = nil
	if !ok || stim == Aborted || withdrawn || epoch != d.epoch {
		d.mu.Unlock()
		d.deliver()
		return ok
	}

	pending := d.request()
	step, ok := d.step(state, stim, pending)
	if ok {
		d.applyLocked(step, pending)
	}
	d.mu.Unlock()

	d.deliver()
	return ok
}

// deliver flushes events from the worker goroutine. Listeners called here
// may release or close the device.
func (d *Device[S]) deliver() {
	d.delivering.Store(true)
	defer d.delivering.Store(false)
	d.flush()
}

func (d *Device[S]) prompt(state S, pending *Operation) (p Prompt, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.fault("building prompt panicked", r)
			ok = false
		}
	}()
	return d.category.Prompt(state, pending), true
}

func (d *Device[S]) step(state S, stim Stimulus, pending *Operation) (s Step[S], ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.fault("state transition panicked", r)
			ok = false
		}
	}()
	d.log.Debug("stimulus", zap.String("state", fmt.Sprint(state)), zap.Stringer("stimulus", stim))
	return d.category.Step(state, stim, pending), true
}

// present asks the provider for a stimulus. Display prompts are shown and
// then simply waited out.
func (d *Device[S]) present(ctx context.Context, p Prompt) (stim Stimulus, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.fault("stimulus provider panicked", r)
			stim, ok = Aborted, false
		}
	}()

	if !p.IsDisplay() {
		return d.provider.Present(ctx, p), true
	}
	if disp, isDisplayer := d.provider.(Displayer); isDisplayer {
		disp.Display(p)
	}
	return waitOut(ctx, p.Timeout), true
}

// waitOut blocks for timeout and reports TimedOut, or Aborted if ctx ends
// first
func waitOut(ctx context.Context, timeout time.Duration) Stimulus {
	if timeout == 0 {
		return TimedOut
	}
	if timeout < 0 {
		<-ctx.Done()
		return Aborted
	}

	timer := time.NewTimer(timeout)
	defer safeTimerStop(timer)
	select {
	case <-timer.C:
		return TimedOut
	case <-ctx.Done():
		return Aborted
	}
}

func (d *Device[S]) fault(msg string, recovered any) {
	d.metrics.faults.Add(1)
	d.log.Error(msg, zap.Any("panic", recovered), zap.Stack("stack"))
}

// backoff pauses after a fault so a persistently failing category cannot
// spin the worker
func (d *Device[S]) backoff(ctx context.Context) {
	if d.faultBackoff <= 0 {
		return
	}
	timer := time.NewTimer(d.faultBackoff)
	defer safeTimerStop(timer)
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
