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

package testing

import (
	"sync"
	"time"

	posdummy "github.com/ZaparooProject/go-posdummy"
)

// Recorder is a posdummy.Listener that keeps every event it receives
type Recorder struct {
	events []posdummy.Event
	mu     sync.Mutex
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// OnEvent implements posdummy.Listener
func (r *Recorder) OnEvent(ev posdummy.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of everything recorded so far
func (r *Recorder) Events() []posdummy.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]posdummy.Event(nil), r.events...)
}

// OfKind returns the recorded events of one kind
func (r *Recorder) OfKind(kind posdummy.EventKind) []posdummy.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []posdummy.Event
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// Payloads returns the payloads of the recorded events of one kind
func (r *Recorder) Payloads(kind posdummy.EventKind) []any {
	events := r.OfKind(kind)
	out := make([]any, len(events))
	for i, ev := range events {
		out[i] = ev.Payload
	}
	return out
}

// Len returns the number of recorded events
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Reset forgets all recorded events
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// WaitFor polls until at least n events of kind were recorded or wait
// elapses
func (r *Recorder) WaitFor(kind posdummy.EventKind, n int, wait time.Duration) bool {
	deadline := time.Now().Add(wait)
	for {
		if len(r.OfKind(kind)) >= n {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}
