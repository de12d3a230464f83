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
)

// Infinite disables the deadline of a wait
const Infinite time.Duration = -1

// Signal is a single-slot wait/signal handle. A signal raised while nobody
// waits is remembered until the next Suspend consumes it; repeated signals
// before that collapse into one.
type Signal struct {
	ch chan struct{}
}

// NewSignal creates an unsignaled Signal
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

// Signal marks the slot signaled and wakes at most one waiter
func (s *Signal) Signal() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Suspend blocks until the slot is signaled (true) or timeout elapses (false).
// A zero timeout polls without blocking; Infinite waits for a signal only.
func (s *Signal) Suspend(timeout time.Duration) bool {
	return s.SuspendContext(context.Background(), timeout)
}

// SuspendContext is Suspend that also gives up when ctx is done
func (s *Signal) SuspendContext(ctx context.Context, timeout time.Duration) bool {
	if timeout == 0 {
		return s.DrainPending()
	}

	if timeout < 0 {
		select {
		case <-s.ch:
			return true
		case <-ctx.Done():
			return false
		}
	}

	timer := time.NewTimer(timeout)
	defer safeTimerStop(timer)

	select {
	case <-s.ch:
		return true
	case <-timer.C:
		// a signal racing the timer still counts
		return s.DrainPending()
	case <-ctx.Done():
		return false
	}
}

// DrainPending consumes a pending signal without blocking and reports
// whether there was one
func (s *Signal) DrainPending() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// safeTimerStop stops a timer and drains its channel if it already fired
func safeTimerStop(timer *time.Timer) {
	if timer == nil {
		return
	}
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}
