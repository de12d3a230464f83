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
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Enabler is implemented by categories that report their state when a
// session enables the device
type Enabler[S comparable] interface {
	Enabled(state S) []Event
}

// Metrics is a snapshot of a device's operational counters
type Metrics struct {
	Cycles          int64 `json:"cycles"`
	Faults          int64 `json:"faults"`
	Resolved        int64 `json:"resolved"`
	Timeouts        int64 `json:"timeouts"`
	Aborted         int64 `json:"aborted"`
	BusyRejections  int64 `json:"busy_rejections"`
	EventsDelivered int64 `json:"events_delivered"`
	EventsDropped   int64 `json:"events_dropped"`
}

type counters struct {
	cycles          atomic.Int64
	faults          atomic.Int64
	resolved        atomic.Int64
	timeouts        atomic.Int64
	aborted         atomic.Int64
	busy            atomic.Int64
	eventsDelivered atomic.Int64
	eventsDropped   atomic.Int64
}

func (c *counters) snapshot() Metrics {
	return Metrics{
		Cycles:          c.cycles.Load(),
		Faults:          c.faults.Load(),
		Resolved:        c.resolved.Load(),
		Timeouts:        c.timeouts.Load(),
		Aborted:         c.aborted.Load(),
		BusyRejections:  c.busy.Load(),
		EventsDelivered: c.eventsDelivered.Load(),
		EventsDropped:   c.eventsDropped.Load(),
	}
}

// Status is a read-only view of a device
type Status struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	State    string `json:"state"`
	Pending  Kind   `json:"pending,omitempty"`
	// PendingFor is the age of the outstanding operation and
	// PendingDeadline when its caller gives up, nil if it waits forever
	PendingFor      time.Duration `json:"pending_for,omitempty"`
	PendingDeadline *time.Time    `json:"pending_deadline,omitempty"`
	Metrics         Metrics       `json:"metrics"`
	Claimed         int           `json:"claimed"`
	Enabled         int           `json:"enabled"`
	Running         bool          `json:"running"`
	Closed          bool          `json:"closed"`
}

// Controller is the type-independent view of a Device
type Controller interface {
	Name() string
	Category() string
	Snapshot() Status
	Claimed() bool
	Abort() bool
	Close() error
}

// Device is a simulated peripheral: one state machine driven by a
// background worker, plus the one-operation-at-a-time dispatcher used by
// application code.
//
// All mutable fields are guarded by mu. mu is never held while waiting on a
// provider or an operation signal.
type Device[S comparable] struct {
	category     Category[S]
	provider     Provider
	log          *zap.Logger
	claims       *ClaimTable
	runner       *Runner
	current      *Operation
	waitUntil    func(S) bool
	interrupt    context.CancelFunc
	name         string
	events       emitter
	metrics      counters
	faultBackoff time.Duration
	epoch        uint64
	delivering   atomic.Bool // worker goroutine is delivering events
	mu           sync.Mutex
	lifecycle    sync.Mutex
	state        S
	closed       bool
}

// New creates a device of the given category. The worker starts with the
// first claim.
func New[S comparable](name string, category Category[S], provider Provider, opts ...Option) (*Device[S], error) {
	if name == "" {
		return nil, errors.New("device name cannot be empty")
	}
	if category == nil {
		return nil, errors.New("category cannot be nil")
	}
	if provider == nil {
		return nil, errors.New("stimulus provider cannot be nil")
	}

	s := defaultSettings()
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	d := &Device[S]{
		name:         name,
		category:     category,
		provider:     provider,
		claims:       newClaimTable(s.slots),
		state:        category.Initial(),
		faultBackoff: s.faultBackoff,
		log: s.log.With(
			zap.String("device", name),
			zap.String("category", category.Name()),
		),
	}
	d.events.observers = s.observers
	d.events.onPanic = func(r any) {
		d.metrics.faults.Add(1)
		d.log.Error("event listener panicked", zap.Any("panic", r), zap.Stack("stack"))
	}
	d.runner = NewRunner(d.work)

	if s.registry != nil {
		if err := s.registry.Register(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Name returns the device name
func (d *Device[S]) Name() string {
	return d.name
}

// Category returns the category name
func (d *Device[S]) Category() string {
	return d.category.Name()
}

// State returns the current device state
func (d *Device[S]) State() S {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Metrics returns the current counters
func (d *Device[S]) Metrics() Metrics {
	return d.metrics.snapshot()
}

// Snapshot returns a consistent read-only view of the device
func (d *Device[S]) Snapshot() Status {
	d.mu.Lock()
	st := Status{
		Name:     d.name,
		Category: d.category.Name(),
		State:    fmt.Sprint(d.state),
		Claimed:  d.claims.claimedCount(),
		Enabled:  len(d.claims.recipients()),
		Closed:   d.closed,
	}
	if d.current != nil {
		st.Pending = d.current.kind
		st.PendingFor = d.current.Age()
		if deadline := d.current.Deadline(); !deadline.IsZero() {
			st.PendingDeadline = &deadline
		}
	}
	d.mu.Unlock()

	st.Running = d.runner.Running()
	st.Metrics = d.metrics.snapshot()
	return st
}

// Inspect runs fn with the device lock held. fn must not block or call
// back into the device.
func (d *Device[S]) Inspect(fn func(state S)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.state)
}

// Claim takes the exclusive claim of slot index and starts the worker if
// needed. Events are delivered to l once the slot is enabled.
func (d *Device[S]) Claim(index int, l Listener) (Handle, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return Handle{}, ErrClosed
	}
	h, err := d.claims.claim(index, l)
	d.mu.Unlock()
	if err != nil {
		return Handle{}, err
	}

	d.log.Info("device claimed", zap.Int("slot", index), zap.String("session", h.Session.String()))
	d.syncWorker()
	return h, nil
}

// Claimed reports whether any slot is claimed
func (d *Device[S]) Claimed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.claims.anyClaimed()
}

// Release gives up the claim held by h. The worker stops after the last
// claim is released; a listener may call Release, in which case the
// worker exits once the listener returns.
func (d *Device[S]) Release(h Handle) error {
	d.mu.Lock()
	err := d.claims.release(h)
	d.mu.Unlock()
	if err != nil {
		return err
	}

	d.log.Info("device released", zap.Int("slot", h.Index))
	d.syncWorker()
	return nil
}

// SetEnabled switches event delivery and operation acceptance for h
func (d *Device[S]) SetEnabled(h Handle, enabled bool) error {
	d.mu.Lock()
	slot, err := d.claims.slot(h)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	was := slot.enabled
	slot.enabled = enabled
	if enabled && !was {
		if en, ok := d.category.(Enabler[S]); ok {
			for _, ev := range en.Enabled(d.state) {
				d.queueLocked(ev, uuid.Nil)
			}
		}
	}
	d.mu.Unlock()

	d.flush()
	return nil
}

// SetListener replaces the listener of h
func (d *Device[S]) SetListener(h Handle, l Listener) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	slot, err := d.claims.slot(h)
	if err != nil {
		return err
	}
	slot.listener = l
	return nil
}

// Close releases every claim, stops the worker and aborts any outstanding
// operation. Further claims fail with ErrClosed.
func (d *Device[S]) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.claims.releaseAll()
	d.mu.Unlock()

	d.syncWorker()

	d.mu.Lock()
	if d.current != nil {
		d.abortLocked(d.current)
	}
	d.mu.Unlock()
	d.flush()

	d.log.Info("device closed")
	return nil
}

// syncWorker makes the worker state follow the claim state. The lifecycle
// mutex serializes concurrent claim and release calls so the last one wins;
// it is never held while waiting for the worker to exit. A listener running
// on the worker goroutine only cancels the worker, which then exits once
// delivery returns.
func (d *Device[S]) syncWorker() {
	d.lifecycle.Lock()
	d.mu.Lock()
	want := !d.closed && d.claims.anyClaimed()
	d.mu.Unlock()

	if want {
		d.runner.Start()
		d.lifecycle.Unlock()
		return
	}
	done := d.runner.Cancel()
	d.lifecycle.Unlock()

	if done != nil && !d.delivering.Load() {
		<-done
	}
}

// Transition applies an externally triggered transition under the device
// lock. The step may move the state, emit events and resolve the pending
// operation. A state change withdraws the worker's current prompt.
func (d *Device[S]) Transition(h Handle, fn func(state S) (Step[S], error)) error {
	d.mu.Lock()
	if err := d.admitLocked(h, false); err != nil {
		d.mu.Unlock()
		return err
	}
	step, err := fn(d.state)
	if err == nil {
		d.applyExternalLocked(step, d.request())
	}
	d.mu.Unlock()

	d.flush()
	return err
}

// admitLocked checks the session preconditions of an operation
func (d *Device[S]) admitLocked(h Handle, exclusive bool) error {
	if d.closed {
		return ErrClosed
	}
	slot, err := d.claims.slot(h)
	if err != nil {
		return err
	}
	if !slot.enabled {
		return ErrNotEnabled
	}
	if exclusive && d.current != nil {
		d.metrics.busy.Add(1)
		d.log.Debug("operation rejected, device busy", zap.String("pending", string(d.current.kind)))
		return ErrBusy
	}
	return nil
}

// request returns the pending operation visible to the category. Silent
// state waits are not.
func (d *Device[S]) request() *Operation {
	if d.current == nil || d.current.silent {
		return nil
	}
	return d.current
}

func (d *Device[S]) setStateLocked(next S) bool {
	if next == d.state {
		return false
	}
	d.log.Debug("state transition",
		zap.String("from", fmt.Sprint(d.state)),
		zap.String("to", fmt.Sprint(next)))
	d.state = next
	return true
}

// applyLocked applies a worker step
func (d *Device[S]) applyLocked(step Step[S], pending *Operation) {
	d.setStateLocked(step.Next)
	d.finishStepLocked(step, pending)
}

// applyExternalLocked applies a step that did not come from the worker.
// Changing state invalidates the stimulus the worker is waiting for.
func (d *Device[S]) applyExternalLocked(step Step[S], pending *Operation) {
	if d.setStateLocked(step.Next) {
		d.epoch++
		d.interruptLocked()
	}
	d.finishStepLocked(step, pending)
}

func (d *Device[S]) finishStepLocked(step Step[S], pending *Operation) {
	for _, ev := range step.Events {
		d.queueLocked(ev, uuid.Nil)
	}
	if step.Outcome != nil && pending != nil {
		d.resolveLocked(pending, *step.Outcome, true)
	}
	d.checkAwaitLocked()
}

// checkAwaitLocked completes a state wait whose condition now holds
func (d *Device[S]) checkAwaitLocked() {
	if d.current == nil || d.waitUntil == nil {
		return
	}
	if d.waitUntil(d.state) {
		d.resolveLocked(d.current, Outcome{}, false)
	}
}

// resolveLocked fills op's outcome, frees the operation slot and queues the
// single Data or Error event for it
func (d *Device[S]) resolveLocked(op *Operation, out Outcome, emit bool) bool {
	if out.Err != nil {
		out.Err = bind(out.Err, op.kind, d.name)
	}
	if !op.resolve(out) {
		return false
	}
	if d.current == op {
		d.current = nil
		d.waitUntil = nil
	}
	d.metrics.resolved.Add(1)

	if !emit || op.silent {
		return true
	}
	if out.Err != nil {
		d.queueLocked(Event{Kind: EventError, Err: out.Err}, op.ID)
	} else {
		d.queueLocked(Event{Kind: EventData, Payload: out.Value}, op.ID)
	}
	return true
}

func (d *Device[S]) abortLocked(op *Operation) bool {
	if !d.resolveLocked(op, Outcome{Err: ErrAborted}, false) {
		return false
	}
	d.metrics.aborted.Add(1)
	return true
}

// interruptLocked withdraws the prompt the worker is currently presenting
func (d *Device[S]) interruptLocked() {
	if d.interrupt != nil {
		d.interrupt()
		d.interrupt = nil
	}
}

func (d *Device[S]) queueLocked(ev Event, op uuid.UUID) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	ev.Device = d.name
	ev.Category = d.category.Name()
	ev.Operation = op
	d.events.queue(ev, d.claims.recipients())
}

// flush delivers queued events; must be called without the lock
func (d *Device[S]) flush() {
	delivered, dropped := d.events.flush()
	if delivered > 0 {
		d.metrics.eventsDelivered.Add(int64(delivered))
	}
	if dropped > 0 {
		d.metrics.eventsDropped.Add(int64(dropped))
		d.log.Debug("events dropped, device not enabled", zap.Int("count", dropped))
	}
}
