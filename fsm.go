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
	"strconv"
	"time"
)

// Stimulus is the answer of a Provider: an index into Prompt.Options or one
// of the negative sentinels below.
type Stimulus int

const (
	// TimedOut means the prompt timeout elapsed without an answer
	TimedOut Stimulus = -1
	// Aborted means the prompt was withdrawn before it was answered
	Aborted Stimulus = -2
)

func (s Stimulus) String() string {
	switch s {
	case TimedOut:
		return "timed-out"
	case Aborted:
		return "aborted"
	default:
		return "option-" + strconv.Itoa(int(s))
	}
}

// Prompt describes what the simulated hardware is waiting for. A prompt
// without options is a display: nobody is asked, the worker just waits
// for the timeout or an interruption.
type Prompt struct {
	Title   string
	Message string
	Options []string
	Default int
	Timeout time.Duration
}

// IsDisplay reports whether the prompt has nothing to answer
func (p Prompt) IsDisplay() bool {
	return len(p.Options) == 0
}

// Provider is the external source of what the simulated hardware does next.
// Present blocks until an option is chosen, p.Timeout elapses (TimedOut) or
// ctx is cancelled (Aborted).
type Provider interface {
	Present(ctx context.Context, p Prompt) Stimulus
}

// ProviderFunc adapts a function to Provider
type ProviderFunc func(ctx context.Context, p Prompt) Stimulus

// Present calls f
func (f ProviderFunc) Present(ctx context.Context, p Prompt) Stimulus {
	return f(ctx, p)
}

// Displayer is implemented by providers that want to show display prompts
type Displayer interface {
	Display(p Prompt)
}

// Step is the result of a transition: the next state, an optional outcome
// for the pending operation and unsolicited events to emit.
type Step[S comparable] struct {
	Next    S
	Outcome *Outcome
	Events  []Event
}

// Stay returns a step that keeps state s and does nothing else
func Stay[S comparable](s S) Step[S] {
	return Step[S]{Next: s}
}

// Move returns a step to state next
func Move[S comparable](next S, events ...Event) Step[S] {
	return Step[S]{Next: next, Events: events}
}

// Category supplies the device-specific part of a Device: its prompts and
// its transition table. All methods are called with the device lock held
// and must not block.
type Category[S comparable] interface {
	// Name identifies the category, e.g. "rfid"
	Name() string
	// Initial is the state a new device starts in
	Initial() S
	// Prompt builds the stimulus request for state
	Prompt(state S, pending *Operation) Prompt
	// Step computes the transition for a stimulus. pending is nil if no
	// operation is outstanding.
	Step(state S, stim Stimulus, pending *Operation) Step[S]
	// Accept is called when op is dispatched. The returned step may resolve
	// op at once or move the state; interrupt asks the worker to withdraw
	// its current prompt and build a new one.
	Accept(state S, op *Operation) (step Step[S], interrupt bool)
}

// StatusEvent builds an unsolicited status update
func StatusEvent(payload any) Event {
	return Event{Kind: EventStatusUpdate, Payload: payload}
}

// DataEvent builds an unsolicited data event
func DataEvent(payload any) Event {
	return Event{Kind: EventData, Payload: payload}
}

// ErrorEvent builds an unsolicited error event
func ErrorEvent(err error, payload any) Event {
	return Event{Kind: EventError, Err: err, Payload: payload}
}
