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

package stimulus

import (
	"context"

	posdummy "github.com/ZaparooProject/go-posdummy"
)

// Queue answers prompts with pushed stimuli in order. A prompt with nothing
// queued waits for a push, its timeout or withdrawal.
type Queue struct {
	items chan posdummy.Stimulus
}

// NewQueue creates a queue buffering up to size stimuli
func NewQueue(size int) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{items: make(chan posdummy.Stimulus, size)}
}

// Push queues s, blocking while the queue is full
func (q *Queue) Push(ctx context.Context, s posdummy.Stimulus) error {
	select {
	case q.items <- s:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPush queues s unless the queue is full
func (q *Queue) TryPush(s posdummy.Stimulus) bool {
	select {
	case q.items <- s:
		return true
	default:
		return false
	}
}

// Len returns the number of queued stimuli
func (q *Queue) Len() int {
	return len(q.items)
}

// Present returns the next queued stimulus
func (q *Queue) Present(ctx context.Context, p posdummy.Prompt) posdummy.Stimulus {
	expired, stop := deadline(p.Timeout)
	defer stop()

	select {
	case s := <-q.items:
		return s
	case <-expired:
		return posdummy.TimedOut
	case <-ctx.Done():
		return posdummy.Aborted
	}
}
