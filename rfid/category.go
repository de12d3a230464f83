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

package rfid

import (
	"bytes"
	"time"

	posdummy "github.com/ZaparooProject/go-posdummy"
)

const title = "RFID Scanner"

// Options of the operator prompts, by state
const (
	idleFailed  posdummy.Stimulus = 0
	idlePresent posdummy.Stimulus = 1

	gotFinish   posdummy.Stimulus = 0
	gotContinue posdummy.Stimulus = 1
	gotRetry    posdummy.Stimulus = 2
	gotGiveUp   posdummy.Stimulus = 3

	errFinish  posdummy.Stimulus = 0
	errRetryOK posdummy.Stimulus = 1
	errFailed  posdummy.Stimulus = 2
)

// category holds the label catalogue. Every method runs under the device
// lock.
type category struct {
	now        func() time.Time
	continuous *ReadRequest
	lastRead   time.Time
	labels     []Label
	index      int
	protocols  uint32
	interval   time.Duration
}

func newCategory(cfg *Config) *category {
	labels := make([]Label, len(cfg.Labels))
	for i, l := range cfg.Labels {
		labels[i] = l.Clone()
	}
	return &category{
		now:       time.Now,
		labels:    labels,
		protocols: cfg.Protocols,
		interval:  cfg.ReadTimerInterval,
	}
}

func (*category) Name() string   { return CategoryName }
func (*category) Initial() State { return Idle }

func (c *category) Prompt(state State, _ *posdummy.Operation) posdummy.Prompt {
	switch state {
	case GotTags:
		return posdummy.Prompt{
			Title:   title,
			Message: "Got label:\n" + Describe(c.labels[c.index]) + "Select option for the label",
			Options: []string{"OK, Finish", "OK, Continue", "Error, Retry", "Error, Give Up"},
			Timeout: posdummy.Infinite,
		}
	case ErrorTags:
		return posdummy.Prompt{
			Title:   title,
			Message: "Label present but not readable. Select option",
			Options: []string{"Finish", "Retry OK", "Retry Failed"},
			Timeout: posdummy.Infinite,
		}
	default:
		return posdummy.Prompt{
			Title:   title,
			Message: "Present an RFID label for operation. Select an option when ready",
			Options: []string{"Label Failed", "Label Present"},
			Default: int(idlePresent),
			Timeout: posdummy.Infinite,
		}
	}
}

func (c *category) Step(state State, stim posdummy.Stimulus, pending *posdummy.Operation) posdummy.Step[State] {
	switch state {
	case Idle:
		switch stim {
		case idlePresent:
			return c.finishRead(GotTags, true, pending)
		case idleFailed:
			return c.finishRead(ErrorTags, false, pending)
		}
	case GotTags:
		var next State
		switch stim {
		case gotFinish, gotGiveUp:
			next = Idle
		case gotContinue:
			next = GotTags
		case gotRetry:
			next = ErrorTags
		default:
			return posdummy.Stay(state)
		}
		step := posdummy.Move(next)
		if pending != nil && pending.Kind() != KindReadTags {
			step.Outcome = c.finishTagOp(pending, stim < gotRetry)
		}
		if next == Idle {
			c.index = (c.index + 1) % len(c.labels)
		}
		return step
	case ErrorTags:
		switch stim {
		case errFinish:
			return c.finishRead(Idle, false, pending)
		case errRetryOK:
			return c.finishRead(GotTags, true, pending)
		case errFailed:
			return c.finishRead(ErrorTags, false, pending)
		}
	}
	return posdummy.Stay(state)
}

func (c *category) Accept(state State, op *posdummy.Operation) (posdummy.Step[State], bool) {
	switch op.Kind() {
	case KindReadTags:
		req, ok := op.Params().(ReadRequest)
		if !ok {
			return fail(state, posdummy.ErrInvalidParameter, "read request expected"), false
		}
		if err := req.validate(); err != nil {
			return posdummy.Step[State]{Next: state, Outcome: posdummy.Fail(err)}, false
		}
		if c.continuous != nil {
			return fail(state, posdummy.ErrBusy, "continuous read active"), false
		}
		if state == GotTags {
			tags := c.match(req)
			step := posdummy.Stay(state)
			step.Outcome = readOutcome(tags)
			return step, false
		}
	case KindLockTag, KindDisableTag:
		if id, ok := op.Params().([]byte); !ok || len(id) == 0 {
			return fail(state, posdummy.ErrInvalidParameter, "tag ID required"), false
		}
	case KindWriteTagData:
		req, ok := op.Params().(WriteDataRequest)
		if !ok || len(req.ID) == 0 || req.Start < 0 {
			return fail(state, posdummy.ErrInvalidParameter, "tag ID and start offset required"), false
		}
	case KindWriteTagID:
		req, ok := op.Params().(WriteIDRequest)
		if !ok || len(req.Source) == 0 || len(req.Dest) == 0 {
			return fail(state, posdummy.ErrInvalidParameter, "source and destination ID required"), false
		}
	default:
		return fail(state, posdummy.ErrInvalidParameter, "unsupported operation"), false
	}
	return posdummy.Stay(state), false
}

func fail(state State, err error, detail string) posdummy.Step[State] {
	return posdummy.Step[State]{Next: state, Outcome: posdummy.Fail(posdummy.Failure(err, detail))}
}

func readOutcome(tags []TagData) *posdummy.Outcome {
	if len(tags) == 0 {
		return posdummy.Fail(posdummy.Failure(posdummy.ErrNotFound, "no tags matching the filter found"))
	}
	return posdummy.Succeed(tags)
}

// finishRead moves to next after a label was presented or retried. A
// pending read resolves; in continuous mode the result is reported as an
// unsolicited event, no more often than the read timer interval.
func (c *category) finishRead(next State, ok bool, pending *posdummy.Operation) posdummy.Step[State] {
	step := posdummy.Move(next)

	if pending != nil && pending.Kind() == KindReadTags {
		if !ok {
			step.Outcome = posdummy.Fail(posdummy.Failure(posdummy.ErrHardware, "could not read RFID tags"))
			return step
		}
		req, _ := pending.Params().(ReadRequest)
		step.Outcome = readOutcome(c.match(req))
		return step
	}

	if c.continuous != nil {
		step.Events = c.continuousEvents(ok)
	}
	return step
}

func (c *category) continuousEvents(ok bool) []posdummy.Event {
	now := c.now()
	if now.Sub(c.lastRead) < c.interval {
		return nil
	}
	c.lastRead = now

	if !ok {
		return []posdummy.Event{posdummy.ErrorEvent(posdummy.Failure(posdummy.ErrHardware, "RFID read error"), nil)}
	}
	tags := c.match(*c.continuous)
	if len(tags) == 0 {
		return []posdummy.Event{posdummy.ErrorEvent(posdummy.Failure(posdummy.ErrNotFound, "no ID match"), nil)}
	}
	return []posdummy.Event{posdummy.DataEvent(tags)}
}

// startContinuous enables continuous reading. With a label already in the
// field the first result is reported at once.
func (c *category) startContinuous(state State, req ReadRequest) (posdummy.Step[State], error) {
	if err := req.validate(); err != nil {
		return posdummy.Step[State]{}, err
	}
	c.continuous = &req
	c.lastRead = c.now().Add(-c.interval)
	step := posdummy.Stay(state)
	if state == GotTags {
		step.Events = c.continuousEvents(true)
	}
	return step, nil
}

func (c *category) stopContinuous(state State) (posdummy.Step[State], error) {
	c.continuous = nil
	return posdummy.Stay(state), nil
}

// match returns the readable tags of the current label that pass req
func (c *category) match(req ReadRequest) []TagData {
	protocols := req.Protocols
	if protocols == 0 {
		protocols = c.protocols
	}
	filter := req.masked()

	var out []TagData
	for _, tag := range c.labels[c.index] {
		if tag.Disabled() {
			continue
		}
		bit := uint32(1) << tag.Protocol
		if bit&protocols == 0 && protocols&ProtocolAll == 0 {
			continue
		}
		id := []byte{}
		if len(tag.ID) == len(filter) {
			id = mask(tag.ID, req.FilterMask)
		}
		if !bytes.Equal(id, filter) {
			continue
		}

		td := TagData{Protocol: bit}
		if req.Cmd&ReadID != 0 {
			td.ID = bytes.Clone(tag.ID)
		}
		switch {
		case req.Cmd&ReadFullUserData != 0:
			td.Data = bytes.Clone(tag.Data)
		case req.Cmd&ReadPartialUserData != 0:
			td.Data = partial(tag.Data, req.Start, req.Length)
		}
		out = append(out, td)
	}
	return out
}

func partial(data []byte, start, length int) []byte {
	if start >= len(data) {
		return []byte{}
	}
	end := start + length
	if end > len(data) {
		end = len(data)
	}
	return bytes.Clone(data[start:end])
}

// finishTagOp applies a lock, disable or write to the current label. ok is
// the operator's verdict on the label.
func (c *category) finishTagOp(op *posdummy.Operation, ok bool) *posdummy.Outcome {
	if !ok {
		detail := "tag access error"
		switch op.Kind() {
		case KindWriteTagData:
			detail = "tag data write error"
		case KindWriteTagID:
			detail = "source ID change error"
		}
		return posdummy.Fail(posdummy.Failure(posdummy.ErrHardware, detail))
	}

	label := c.labels[c.index]
	var id []byte
	switch p := op.Params().(type) {
	case []byte:
		id = p
	case WriteDataRequest:
		id = p.ID
	case WriteIDRequest:
		id = p.Source
	}

	tag := findTag(label, id)
	if tag == nil {
		detail := "no matching tag ID"
		if op.Kind() == KindWriteTagID {
			detail = "no matching source ID"
		}
		return posdummy.Fail(posdummy.Failure(posdummy.ErrNotFound, detail))
	}
	if tag.Locked() {
		return posdummy.Fail(posdummy.Failure(posdummy.ErrIllegalState, "tag locked"))
	}
	if tag.Disabled() {
		return posdummy.Fail(posdummy.Failure(posdummy.ErrIllegalState, "tag disabled"))
	}

	switch p := op.Params().(type) {
	case WriteDataRequest:
		if end := p.Start + len(p.Data); end > len(tag.Data) {
			grown := make([]byte, end)
			copy(grown, tag.Data)
			tag.Data = grown
		}
		copy(tag.Data[p.Start:], p.Data)
	case WriteIDRequest:
		tag.ID = bytes.Clone(p.Dest)
	default:
		if op.Kind() == KindLockTag {
			tag.Flags |= FlagLocked
		} else {
			tag.Flags |= FlagDisabled
		}
	}
	return posdummy.Succeed(nil)
}

func (c *category) snapshot() []Label {
	out := make([]Label, len(c.labels))
	for i, l := range c.labels {
		out[i] = l.Clone()
	}
	return out
}
