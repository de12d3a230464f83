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

package pinpad

import (
	"strings"

	posdummy "github.com/ZaparooProject/go-posdummy"
)

const title = "PIN Pad"

// keypad options; 0 to 9 are the digits
const (
	keyOK posdummy.Stimulus = iota + 10
	keyClear
	keyCancel
	keyError
	keyTimeout
)

var keypad = []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9", "OK", "Clear", "Cancel", "Error", "Timeout"}

type category struct {
	message string
	pin     []byte
	shift   int
	min     int
	max     int
}

func newCategory(cfg *Config) *category {
	return &category{
		message: cfg.Message,
		shift:   firstShift,
		min:     cfg.MinPINLength,
		max:     cfg.MaxPINLength,
	}
}

func (*category) Name() string   { return CategoryName }
func (*category) Initial() State { return Idle }

func (c *category) Prompt(state State, _ *posdummy.Operation) posdummy.Prompt {
	if state != Entry {
		return posdummy.Prompt{Title: title, Message: c.message, Timeout: posdummy.Infinite}
	}
	return posdummy.Prompt{
		Title:   title,
		Message: "Enter PIN\n" + strings.Repeat("*", len(c.pin)) + strings.Repeat("_", c.max-len(c.pin)),
		Options: keypad,
		Default: int(keyOK),
		Timeout: posdummy.Infinite,
	}
}

func (c *category) Step(state State, stim posdummy.Stimulus, _ *posdummy.Operation) posdummy.Step[State] {
	if state != Entry || stim < 0 || int(stim) >= len(keypad) {
		return posdummy.Stay(state)
	}
	if stim <= 9 {
		c.pin = append(c.pin, byte('0'+stim))
	}
	if len(c.pin) == c.max || (stim == keyOK && len(c.pin) >= c.min) {
		enc := Encrypt(string(c.pin), c.shift)
		return c.complete(posdummy.Succeed(PINResult{Status: Success, KeyID: enc[:2], EncryptedPIN: enc[2:]}))
	}

	switch stim {
	case keyClear:
		c.pin = c.pin[:0]
		return posdummy.Stay(state)
	case keyOK:
		return c.complete(posdummy.Fail(posdummy.Failure(posdummy.ErrIllegalState, "invalid PIN")))
	case keyError:
		return c.complete(posdummy.Fail(posdummy.Failure(posdummy.ErrHardware, "an error occurred")))
	case keyCancel:
		return c.complete(posdummy.Succeed(PINResult{Status: Cancelled}))
	case keyTimeout:
		return c.complete(posdummy.Succeed(PINResult{Status: TimedOut}))
	}
	return posdummy.Stay(state)
}

// complete ends the entry with out and moves the shift key on
func (c *category) complete(out *posdummy.Outcome) posdummy.Step[State] {
	c.pin = c.pin[:0]
	if c.shift++; c.shift > lastShift {
		c.shift = firstShift
	}
	step := posdummy.Move(Idle)
	step.Outcome = out
	return step
}

// Accept starts a new entry
func (c *category) Accept(state State, op *posdummy.Operation) (posdummy.Step[State], bool) {
	if op.Kind() != KindEnterPIN {
		step := posdummy.Stay(state)
		step.Outcome = posdummy.Fail(posdummy.Failure(posdummy.ErrInvalidParameter, "unsupported operation"))
		return step, false
	}
	c.pin = c.pin[:0]
	// an entry left over from a timed out call restarts with an empty PIN
	return posdummy.Move(Entry), state == Entry
}
