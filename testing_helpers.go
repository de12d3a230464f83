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
	"time"
)

// BlockingProvider is a Provider whose answers are supplied by a test. Each
// Present blocks until Answer is called, the prompt times out, or the prompt
// is withdrawn.
type BlockingProvider struct {
	answers  chan Stimulus
	prompts  chan Prompt
	panicFn  func(p Prompt) bool
	mu       sync.Mutex
	shown    []Prompt
	presents int
}

// NewBlockingProvider creates a blocking provider
func NewBlockingProvider() *BlockingProvider {
	return &BlockingProvider{
		answers: make(chan Stimulus),
		prompts: make(chan Prompt, 64),
	}
}

// Present records p and waits for an answer
func (b *BlockingProvider) Present(ctx context.Context, p Prompt) Stimulus {
	b.mu.Lock()
	b.presents++
	panicFn := b.panicFn
	b.mu.Unlock()

	if panicFn != nil && panicFn(p) {
		panic("blocking provider: injected fault")
	}

	select {
	case b.prompts <- p:
	default:
	}

	var timeout <-chan time.Time
	if p.Timeout >= 0 {
		timer := time.NewTimer(p.Timeout)
		defer safeTimerStop(timer)
		timeout = timer.C
	}

	select {
	case s := <-b.answers:
		return s
	case <-timeout:
		return TimedOut
	case <-ctx.Done():
		return Aborted
	}
}

// Display records a display prompt
func (b *BlockingProvider) Display(p Prompt) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shown = append(b.shown, p)
}

// Answer hands s to a blocked Present. It reports false if nobody took the
// answer within wait.
func (b *BlockingProvider) Answer(s Stimulus, wait time.Duration) bool {
	timer := time.NewTimer(wait)
	defer safeTimerStop(timer)
	select {
	case b.answers <- s:
		return true
	case <-timer.C:
		return false
	}
}

// NextPrompt returns the next presented prompt, waiting up to wait
func (b *BlockingProvider) NextPrompt(wait time.Duration) (Prompt, bool) {
	timer := time.NewTimer(wait)
	defer safeTimerStop(timer)
	select {
	case p := <-b.prompts:
		return p, true
	case <-timer.C:
		return Prompt{}, false
	}
}

// AwaitPrompt skips presented prompts until one with the given message
// arrives
func (b *BlockingProvider) AwaitPrompt(message string, wait time.Duration) bool {
	deadline := time.Now().Add(wait)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		p, ok := b.NextPrompt(remaining)
		if !ok {
			return false
		}
		if p.Message == message {
			return true
		}
	}
}

// SetPanic makes Present panic whenever fn returns true
func (b *BlockingProvider) SetPanic(fn func(p Prompt) bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.panicFn = fn
}

// Presents returns how many times Present was called
func (b *BlockingProvider) Presents() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.presents
}

// Displayed returns the display prompts seen so far
func (b *BlockingProvider) Displayed() []Prompt {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Prompt(nil), b.shown...)
}
