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

package smartcard

import (
	"bytes"
	"time"

	posdummy "github.com/ZaparooProject/go-posdummy"
)

const title = "Smart Card Reader/Writer"

const (
	gotReady      posdummy.Stimulus = 0
	gotUnreadable posdummy.Stimulus = 1

	readableFinish posdummy.Stimulus = 0
	readableAbort  posdummy.Stimulus = 1
)

type category struct {
	now        func() time.Time
	lastAction time.Time
	data       []byte
	delay      time.Duration
	inserted   bool
}

func newCategory(cfg *Config) *category {
	return &category{
		now:   time.Now,
		data:  bytes.Clone(cfg.Data),
		delay: cfg.CardReadyDelay,
	}
}

func (*category) Name() string   { return CategoryName }
func (*category) Initial() State { return Idle }

func (c *category) Prompt(state State, _ *posdummy.Operation) posdummy.Prompt {
	switch state {
	case GotCard:
		return posdummy.Prompt{
			Title: title,
			Message: "The card you inserted must become readable. This will happen in " +
				c.delay.String() + ", unless you select otherwise",
			Options: []string{"Ready for reading", "Card not readable"},
			Timeout: c.delay,
		}
	case Readable:
		remaining := c.delay - c.now().Sub(c.lastAction)
		if remaining <= 0 {
			remaining = time.Millisecond
		}
		return posdummy.Prompt{
			Title:   title,
			Message: "The card is now readable and writable",
			Options: []string{"Finish Operation", "Abort Operation"},
			Timeout: remaining,
		}
	case Removable:
		return posdummy.Prompt{
			Title:   title,
			Message: "Operation has been finished or aborted. Select 'Card Removed' to continue",
			Options: []string{"Card Removed"},
			Timeout: posdummy.Infinite,
		}
	default:
		return posdummy.Prompt{
			Title:   title,
			Message: "A card must be inserted. Select 'Card Inserted' when ready",
			Options: []string{"Card Inserted"},
			Timeout: posdummy.Infinite,
		}
	}
}

func (c *category) Step(state State, stim posdummy.Stimulus, _ *posdummy.Operation) posdummy.Step[State] {
	switch state {
	case Idle:
		return posdummy.Move(GotCard, posdummy.StatusEvent(CardPresent))
	case GotCard:
		if stim == gotUnreadable {
			return posdummy.Move(Removable,
				posdummy.ErrorEvent(posdummy.Failure(posdummy.ErrHardware, "card not readable"), nil))
		}
		c.lastAction = c.now()
		return posdummy.Move(Readable, posdummy.DataEvent(bytes.Clone(c.data)))
	case Readable:
		switch stim {
		case readableAbort:
			return posdummy.Move(Idle, posdummy.StatusEvent(NoCard))
		case posdummy.TimedOut:
			if c.now().Sub(c.lastAction) < c.delay {
				return posdummy.Stay(state)
			}
		}
		return posdummy.Move(Removable)
	case Removable:
		return posdummy.Move(Idle, posdummy.StatusEvent(NoCard))
	}
	return posdummy.Stay(state)
}

// Accept serves reads and writes at once; nothing waits on the operator
func (c *category) Accept(state State, op *posdummy.Operation) (posdummy.Step[State], bool) {
	step := posdummy.Stay(state)
	switch {
	case op.Kind() != KindReadData && op.Kind() != KindWriteData:
		step.Outcome = failure(posdummy.ErrInvalidParameter, "unsupported operation")
		return step, false
	case !c.inserted:
		step.Outcome = failure(posdummy.ErrIllegalState, "card not inserted")
		return step, false
	case state != Readable:
		step.Outcome = failure(posdummy.ErrIllegalState, "card not processable")
		return step, false
	}

	if op.Kind() == KindWriteData {
		data, ok := op.Params().([]byte)
		if !ok || len(data) == 0 {
			step.Outcome = failure(posdummy.ErrInvalidParameter, "no data to write")
			return step, false
		}
		c.data = bytes.Clone(data)
		c.lastAction = c.now()
		step.Outcome = posdummy.Succeed(len(data))
		return step, false
	}
	c.lastAction = c.now()
	step.Outcome = posdummy.Succeed(bytes.Clone(c.data))
	return step, false
}

func failure(err error, detail string) *posdummy.Outcome {
	return posdummy.Fail(posdummy.Failure(err, detail))
}

// Enabled reports whether a card is in the reader
func (*category) Enabled(state State) []posdummy.Event {
	if state == Idle {
		return []posdummy.Event{posdummy.StatusEvent(NoCard)}
	}
	return []posdummy.Event{posdummy.StatusEvent(CardPresent)}
}

func (c *category) endInsertion(state State) (posdummy.Step[State], error) {
	step := posdummy.Stay(state)
	switch state {
	case Readable:
		step.Events = []posdummy.Event{posdummy.DataEvent(bytes.Clone(c.data))}
	case GotCard:
	default:
		return step, posdummy.Failure(posdummy.ErrNotFound, "card not present")
	}
	c.inserted = true
	return step, nil
}

func (c *category) endRemoval(state State) (posdummy.Step[State], error) {
	if state != Idle {
		return posdummy.Stay(state), posdummy.Failure(posdummy.ErrIllegalState, "card still present")
	}
	c.inserted = false
	return posdummy.Stay(state), nil
}
