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
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// enablingScanner reports its state when a session enables it
type enablingScanner struct {
	scanCategory
}

func (*enablingScanner) Enabled(state scanState) []Event {
	return []Event{StatusEvent("enabled:" + string(state))}
}

// tickCategory counts display prompts that ran out
type tickCategory struct{}

func (tickCategory) Name() string { return "ticker" }
func (tickCategory) Initial() int { return 0 }

func (tickCategory) Prompt(int, *Operation) Prompt {
	return Prompt{Title: "tick", Message: "waiting", Timeout: 5 * time.Millisecond}
}

func (tickCategory) Step(state int, stim Stimulus, _ *Operation) Step[int] {
	if stim == TimedOut {
		return Move(state + 1)
	}
	return Stay(state)
}

func (tickCategory) Accept(state int, _ *Operation) (Step[int], bool) {
	return Stay(state), false
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	provider := NewBlockingProvider()

	_, err := New[scanState]("", &scanCategory{}, provider)
	require.Error(t, err)
	_, err = New[scanState]("x", nil, provider)
	require.Error(t, err)
	_, err = New[scanState]("x", &scanCategory{}, nil)
	require.Error(t, err)
	_, err = New[scanState]("x", &scanCategory{}, provider, WithSlots(0))
	require.Error(t, err)
	_, err = New[scanState]("x", &scanCategory{}, provider, WithLogger(nil))
	require.Error(t, err)
	_, err = New[scanState]("x", &scanCategory{}, provider, WithFaultBackoff(-time.Second))
	require.Error(t, err)

	dev, err := New[scanState]("x", &scanCategory{}, provider)
	require.NoError(t, err)
	assert.Equal(t, "x", dev.Name())
	assert.Equal(t, "scanner", dev.Category())
	assert.Equal(t, scanIdle, dev.State())
	assert.False(t, dev.Snapshot().Running, "worker starts with the first claim")
	require.NoError(t, dev.Close())
}

func TestDevice_WorkerFollowsClaims(t *testing.T) {
	t.Parallel()
	dev, err := New[scanState]("scanner-3", &scanCategory{}, NewBlockingProvider(), WithSlots(2))
	require.NoError(t, err)
	t.Cleanup(func() { _ = dev.Close() })

	first, err := dev.Claim(0, nil)
	require.NoError(t, err)
	second, err := dev.Claim(1, nil)
	require.NoError(t, err)
	assert.True(t, dev.Snapshot().Running)
	assert.Equal(t, 2, dev.Snapshot().Claimed)

	_, err = dev.Claim(2, nil)
	require.ErrorIs(t, err, ErrInvalidParameter)

	require.NoError(t, dev.Release(first))
	assert.True(t, dev.Snapshot().Running, "one claim remains")
	require.ErrorIs(t, dev.Release(first), ErrNotClaimed)

	require.NoError(t, dev.Release(second))
	assert.False(t, dev.Snapshot().Running)
	assert.False(t, dev.Claimed())
}

func TestDevice_EventsDroppedWhileDisabled(t *testing.T) {
	t.Parallel()
	observed := &eventLog{}
	provider := NewBlockingProvider()
	dev, err := New[scanState]("scanner-4", &scanCategory{}, provider, WithObserver(observed))
	require.NoError(t, err)
	t.Cleanup(func() { _ = dev.Close() })

	listener := &eventLog{}
	_, err = dev.Claim(0, listener)
	require.NoError(t, err)
	presentLabel(t, provider)

	require.Eventually(t, func() bool { return len(observed.all()) == 1 }, time.Second, time.Millisecond)
	ev := observed.all()[0]
	assert.True(t, ev.Dropped)
	assert.Equal(t, EventStatusUpdate, ev.Kind)
	assert.Equal(t, "present", ev.Payload)
	assert.Empty(t, listener.all())
	assert.Equal(t, int64(1), dev.Metrics().EventsDropped)
}

func TestDevice_EnablerReportsState(t *testing.T) {
	t.Parallel()
	dev, err := New[scanState]("scanner-5", &enablingScanner{}, NewBlockingProvider())
	require.NoError(t, err)
	t.Cleanup(func() { _ = dev.Close() })

	log := &eventLog{}
	h, err := dev.Claim(0, log)
	require.NoError(t, err)
	require.NoError(t, dev.SetEnabled(h, true))
	require.NoError(t, dev.SetEnabled(h, true))

	events := log.all()
	require.Len(t, events, 1, "enabling twice reports once")
	assert.Equal(t, "enabled:idle", events[0].Payload)
	assert.Equal(t, "scanner-5", events[0].Device)
	assert.Equal(t, "scanner", events[0].Category)
}

func TestDevice_ProviderPanicRecovered(t *testing.T) {
	t.Parallel()
	dev, provider, h, _ := newScanner(t, WithFaultBackoff(time.Millisecond))

	var fired atomic.Bool
	provider.SetPanic(func(p Prompt) bool {
		return p.Message == msgReady && fired.CompareAndSwap(false, true)
	})
	presentLabel(t, provider)
	assert.Equal(t, int64(1), dev.Metrics().Faults)

	res := dispatchAsync(dev, h, kindRead, 5*time.Second)
	waitPending(t, dev, kindRead)
	require.True(t, provider.Answer(0, time.Second))
	r := <-res
	require.NoError(t, r.err)
	assert.Equal(t, "tag-1", r.value)
}

func TestDevice_ListenerPanicDoesNotStopDelivery(t *testing.T) {
	t.Parallel()
	observed := &eventLog{}
	dev, provider, h, _ := newScanner(t, WithObserver(observed))
	require.NoError(t, dev.SetListener(h, ListenerFunc(func(Event) {
		panic("listener fault")
	})))

	presentLabel(t, provider)
	require.Eventually(t, func() bool { return len(observed.all()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, int64(1), dev.Metrics().Faults)
	assert.True(t, dev.Snapshot().Running)
}

func TestDevice_DisplayPromptsAreWaitedOut(t *testing.T) {
	t.Parallel()
	provider := NewBlockingProvider()
	dev, err := New[int]("ticker-1", tickCategory{}, provider)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dev.Close() })

	_, err = dev.Claim(0, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return dev.State() >= 3 }, time.Second, time.Millisecond)

	assert.Zero(t, provider.Presents(), "display prompts never ask for a stimulus")
	shown := provider.Displayed()
	require.NotEmpty(t, shown)
	assert.Equal(t, "tick", shown[0].Title)
}

func TestDevice_Await(t *testing.T) {
	t.Parallel()
	dev, provider, h, log := newScanner(t)
	require.True(t, provider.AwaitPrompt(msgIdle, time.Second))

	ready := Wait[scanState]{Kind: kindWait, Until: func(s scanState) bool { return s == scanReady }}
	done := make(chan error, 1)
	go func() { done <- dev.Await(context.Background(), h, ready, 5*time.Second) }()
	waitPending(t, dev, kindWait)

	_, err := dev.Dispatch(context.Background(), h, Request{Kind: kindPeek}, time.Second)
	require.ErrorIs(t, err, ErrBusy, "a state wait occupies the device")

	require.True(t, provider.Answer(1, time.Second))
	require.NoError(t, <-done)
	assert.Equal(t, scanReady, dev.State())

	// already in the awaited state
	require.NoError(t, dev.Await(context.Background(), h, ready, 0))
	assert.Empty(t, log.ofKind(EventData))
	assert.Empty(t, log.ofKind(EventError))
}

func TestDevice_AwaitKick(t *testing.T) {
	t.Parallel()
	dev, provider, h, log := newScanner(t)
	require.True(t, provider.AwaitPrompt(msgIdle, time.Second))

	w := Wait[scanState]{
		Kind: kindWait,
		Kick: func(s scanState) (Step[scanState], error) {
			if s != scanIdle {
				return Step[scanState]{}, Failure(ErrIllegalState, "not idle")
			}
			return Move(scanReady, StatusEvent("kicked")), nil
		},
		Until: func(s scanState) bool { return s == scanReady },
	}
	require.NoError(t, dev.Await(context.Background(), h, w, time.Second))
	require.True(t, provider.AwaitPrompt(msgReady, time.Second), "the withdrawn idle prompt is replaced")

	err := dev.Await(context.Background(), h, w, time.Second)
	require.ErrorIs(t, err, ErrIllegalState)
	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, kindWait, opErr.Op)

	status := log.ofKind(EventStatusUpdate)
	require.Len(t, status, 1)
	assert.Equal(t, "kicked", status[0].Payload)
}

func TestDevice_AwaitTimeoutAndAbort(t *testing.T) {
	t.Parallel()
	dev, provider, h, _ := newScanner(t)
	require.True(t, provider.AwaitPrompt(msgIdle, time.Second))

	never := Wait[scanState]{Kind: kindWait, Until: func(s scanState) bool { return s == scanFaulted }}
	err := dev.Await(context.Background(), h, never, 20*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)

	done := make(chan error, 1)
	go func() { done <- dev.Await(context.Background(), h, never, Infinite) }()
	waitPending(t, dev, kindWait)
	require.True(t, dev.Abort())
	require.ErrorIs(t, <-done, ErrAborted)

	err = dev.Await(context.Background(), h, Wait[scanState]{Kind: kindWait}, time.Second)
	require.ErrorIs(t, err, ErrInvalidParameter)
}

func TestDevice_Transition(t *testing.T) {
	t.Parallel()
	dev, provider, h, log := newScanner(t)
	require.True(t, provider.AwaitPrompt(msgIdle, time.Second))

	toReady := func(s scanState) (Step[scanState], error) {
		if s != scanIdle {
			return Step[scanState]{}, fmt.Errorf("%w: %s", ErrIllegalState, s)
		}
		return Move(scanReady, StatusEvent("forced")), nil
	}
	require.NoError(t, dev.Transition(h, toReady))
	assert.Equal(t, scanReady, dev.State())
	require.True(t, provider.AwaitPrompt(msgReady, time.Second))

	err := dev.Transition(h, toReady)
	require.ErrorIs(t, err, ErrIllegalState)
	assert.Equal(t, scanReady, dev.State())
	assert.Len(t, log.ofKind(EventStatusUpdate), 1)

	require.ErrorIs(t, dev.Transition(Handle{}, toReady), ErrNotClaimed)
}

func TestDevice_TransitionResolvesPending(t *testing.T) {
	t.Parallel()
	dev, provider, h, log := newScanner(t)
	presentLabel(t, provider)

	res := dispatchAsync(dev, h, kindRead, 5*time.Second)
	waitPending(t, dev, kindRead)

	require.NoError(t, dev.Transition(h, func(scanState) (Step[scanState], error) {
		step := Move(scanIdle)
		step.Outcome = Succeed("forced-read")
		return step, nil
	}))
	r := <-res
	require.NoError(t, r.err)
	assert.Equal(t, "forced-read", r.value)
	assert.Len(t, log.ofKind(EventData), 1)
}

func TestDevice_Close(t *testing.T) {
	t.Parallel()
	dev, provider, h, _ := newScanner(t)
	presentLabel(t, provider)

	res := dispatchAsync(dev, h, kindRead, Infinite)
	waitPending(t, dev, kindRead)

	require.NoError(t, dev.Close())
	r := <-res
	require.ErrorIs(t, r.err, ErrAborted)

	st := dev.Snapshot()
	assert.True(t, st.Closed)
	assert.False(t, st.Running)

	_, err := dev.Claim(0, nil)
	require.ErrorIs(t, err, ErrClosed)
	_, err = dev.Dispatch(context.Background(), h, Request{Kind: kindRead}, time.Second)
	require.ErrorIs(t, err, ErrClosed)
	require.NoError(t, dev.Close())
}

func TestDevice_StaleStimulusIgnored(t *testing.T) {
	t.Parallel()
	dev, provider, h, log := newScanner(t)
	require.True(t, provider.AwaitPrompt(msgIdle, time.Second))

	// an external move withdraws the idle prompt before it is answered
	require.NoError(t, dev.Transition(h, func(scanState) (Step[scanState], error) {
		return Move(scanFaulted), nil
	}))
	require.True(t, provider.AwaitPrompt(msgFaulted, time.Second))
	require.True(t, provider.Answer(0, time.Second))
	require.True(t, provider.AwaitPrompt(msgIdle, time.Second))

	status := log.ofKind(EventStatusUpdate)
	require.Len(t, status, 1)
	assert.Equal(t, "recovered", status[0].Payload)
}
