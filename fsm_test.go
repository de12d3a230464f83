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
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scanState is the three-state cycle used by the core tests
type scanState string

const (
	scanIdle    scanState = "idle"
	scanReady   scanState = "ready"
	scanFaulted scanState = "faulted"
)

const (
	kindRead  Kind = "read"
	kindPeek  Kind = "peek"
	kindPanic Kind = "panic"
	kindWait  Kind = "await:ready"
)

const (
	msgIdle    = "present a label"
	msgReady   = "label present"
	msgFaulted = "label faulted"
)

// scanCategory is a small scanner: Idle -> Ready on "Present", Ready serves
// reads on "Done" and returns to Idle, "Fail" faults.
type scanCategory struct {
	payload string
}

func (*scanCategory) Name() string       { return "scanner" }
func (*scanCategory) Initial() scanState { return scanIdle }

func (*scanCategory) Prompt(state scanState, _ *Operation) Prompt {
	switch state {
	case scanReady:
		return Prompt{Message: msgReady, Options: []string{"Done", "Fail"}, Timeout: Infinite}
	case scanFaulted:
		return Prompt{Message: msgFaulted, Options: []string{"Recover"}, Timeout: Infinite}
	default:
		return Prompt{Message: msgIdle, Options: []string{"Fault", "Present"}, Default: 1, Timeout: Infinite}
	}
}

func (c *scanCategory) Step(state scanState, stim Stimulus, pending *Operation) Step[scanState] {
	switch state {
	case scanIdle:
		switch stim {
		case 1:
			return Move(scanReady, StatusEvent("present"))
		case 0:
			step := Move(scanFaulted, StatusEvent("faulted"))
			if pending != nil {
				step.Outcome = Fail(Failure(ErrHardware, "label failed"))
			}
			return step
		}
	case scanReady:
		switch stim {
		case 0:
			step := Move(scanIdle, StatusEvent("gone"))
			if pending != nil && pending.Kind() == kindRead {
				step.Outcome = Succeed(c.payload)
			}
			return step
		case 1:
			step := Move(scanFaulted, StatusEvent("faulted"))
			if pending != nil {
				step.Outcome = Fail(Failure(ErrHardware, "read failed"))
			}
			return step
		}
	case scanFaulted:
		if stim == 0 {
			return Move(scanIdle, StatusEvent("recovered"))
		}
	}
	return Stay(state)
}

func (c *scanCategory) Accept(state scanState, op *Operation) (Step[scanState], bool) {
	switch op.Kind() {
	case kindPeek:
		if state != scanReady {
			return Step[scanState]{Next: state, Outcome: Fail(Failure(ErrNotFound, "no label"))}, false
		}
		return Step[scanState]{Next: state, Outcome: Succeed(c.payload)}, false
	case kindPanic:
		panic("accept fault")
	}
	return Stay(state), false
}

// eventLog is a thread-safe Listener collecting events
type eventLog struct {
	events []Event
	mu     sync.Mutex
}

func (l *eventLog) OnEvent(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) all() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

func (l *eventLog) ofKind(kind EventKind) []Event {
	var out []Event
	for _, ev := range l.all() {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// newScanner builds a claimed and enabled test device
func newScanner(t *testing.T, opts ...Option) (*Device[scanState], *BlockingProvider, Handle, *eventLog) {
	t.Helper()
	provider := NewBlockingProvider()
	dev, err := New[scanState]("scanner-1", &scanCategory{payload: "tag-1"}, provider, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = dev.Close() })

	log := &eventLog{}
	h, err := dev.Claim(0, log)
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if err := dev.SetEnabled(h, true); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}
	return dev, provider, h, log
}

// presentLabel moves a fresh scanner into the Ready state
func presentLabel(t *testing.T, provider *BlockingProvider) {
	t.Helper()
	if !provider.AwaitPrompt(msgIdle, time.Second) {
		t.Fatal("idle prompt not presented")
	}
	if !provider.Answer(1, time.Second) {
		t.Fatal("idle prompt not answered")
	}
	if !provider.AwaitPrompt(msgReady, time.Second) {
		t.Fatal("ready prompt not presented")
	}
}
