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
	"sync"
)

// Runner owns one background goroutine. Start and Stop are idempotent and
// Stop returns only after the goroutine has exited. A goroutine started
// while its predecessor is still winding down waits for it, so fn never
// runs twice at once.
type Runner struct {
	fn     func(ctx context.Context)
	cancel context.CancelFunc
	done   chan struct{}
	last   chan struct{}
	mu     sync.Mutex
}

// NewRunner creates a runner for fn. fn must return once its context is
// cancelled.
func NewRunner(fn func(ctx context.Context)) *Runner {
	return &Runner{fn: fn}
}

// Start launches the goroutine unless it is already running. It reports
// whether a new goroutine was started.
func (r *Runner) Start() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done != nil {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	prev := r.last
	r.cancel = cancel
	r.done = done
	r.last = done

	go func() {
		defer close(done)
		if prev != nil {
			<-prev
		}
		if ctx.Err() == nil {
			r.fn(ctx)
		}
	}()
	return true
}

// Cancel asks the goroutine to exit without waiting for it. It returns a
// channel closed on exit, or nil if nothing was running. fn itself may call
// Cancel; it must not call Stop.
func (r *Runner) Cancel() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done == nil {
		return nil
	}
	done := r.done
	r.cancel()
	r.cancel = nil
	r.done = nil
	return done
}

// Stop cancels the goroutine and waits for it to exit, including one that
// an earlier Cancel left winding down
func (r *Runner) Stop() {
	r.Cancel()

	r.mu.Lock()
	last := r.last
	r.mu.Unlock()
	if last != nil {
		<-last
	}
}

// Running reports whether the goroutine has been started and not stopped
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done != nil
}
