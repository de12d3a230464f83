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
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventKind tags an Event
type EventKind int

const (
	EventData EventKind = iota
	EventError
	EventStatusUpdate
)

func (k EventKind) String() string {
	switch k {
	case EventData:
		return "data"
	case EventError:
		return "error"
	case EventStatusUpdate:
		return "status"
	default:
		return "unknown"
	}
}

// Event is a notification produced by a device. Operation is the zero UUID
// for unsolicited events.
type Event struct {
	Time      time.Time
	Payload   any
	Err       error
	Device    string
	Category  string
	Kind      EventKind
	Operation uuid.UUID
	Dropped   bool
}

// Listener receives events. OnEvent runs on the device worker or on the
// dispatching goroutine; a slow listener stalls only its own device.
type Listener interface {
	OnEvent(ev Event)
}

// ListenerFunc adapts a function to Listener
type ListenerFunc func(ev Event)

// OnEvent calls f
func (f ListenerFunc) OnEvent(ev Event) {
	f(ev)
}

// MultiListener fans an event out to several listeners in order
type MultiListener []Listener

// OnEvent delivers ev to every non-nil listener
func (m MultiListener) OnEvent(ev Event) {
	for _, l := range m {
		if l != nil {
			l.OnEvent(ev)
		}
	}
}

type delivery struct {
	recipients []Listener
	event      Event
}

// emitter keeps queued events in production order and delivers them outside
// the device lock. Only one goroutine delivers at a time; a flush that finds
// delivery in progress leaves its events to the active deliverer.
type emitter struct {
	onPanic   func(recovered any)
	observers []Listener
	outbox    []delivery
	mu        sync.Mutex
	deliverMu sync.Mutex
}

func (e *emitter) queue(ev Event, recipients []Listener) {
	if len(recipients) == 0 {
		ev.Dropped = true
	}
	e.mu.Lock()
	e.outbox = append(e.outbox, delivery{event: ev, recipients: recipients})
	e.mu.Unlock()
}

func (e *emitter) take() []delivery {
	e.mu.Lock()
	defer e.mu.Unlock()
	batch := e.outbox
	e.outbox = nil
	return batch
}

func (e *emitter) empty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.outbox) == 0
}

// flush delivers queued events. It returns the number delivered and dropped
// by this call.
func (e *emitter) flush() (delivered, dropped int) {
	for {
		if !e.deliverMu.TryLock() {
			return delivered, dropped
		}
		batch := e.take()
		for _, d := range batch {
			for _, l := range d.recipients {
				e.deliver(l, d.event)
			}
			for _, o := range e.observers {
				e.deliver(o, d.event)
			}
			if d.event.Dropped {
				dropped++
			} else {
				delivered++
			}
		}
		e.deliverMu.Unlock()
		if e.empty() {
			return delivered, dropped
		}
	}
}

// deliver isolates listener panics so delivery continues and deliverMu is
// always released
func (e *emitter) deliver(l Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil && e.onPanic != nil {
			e.onPanic(r)
		}
	}()
	l.OnEvent(ev)
}
