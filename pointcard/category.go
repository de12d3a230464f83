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

package pointcard

import (
	"fmt"
	"strings"
	"time"

	posdummy "github.com/ZaparooProject/go-posdummy"
)

const title = "Point Card Reader/Writer"

// confirmOK is the only option of the verify and removal prompts
const confirmOK posdummy.Stimulus = 0

// category holds the card catalogue and the insertion/removal session
// flags. Every method runs under the device lock.
type category struct {
	cards      []Card
	current    int
	tracks     TrackMask
	inserting  bool
	removing   bool
	sensor     bool
	readyDelay time.Duration
	removal    time.Duration
	write      time.Duration
	lines      int
	length     int
}

func newCategory(cfg *Config) *category {
	cards := make([]Card, len(cfg.Cards))
	for i, card := range cfg.Cards {
		cards[i] = card.Clone()
		if len(cards[i].Print) != cfg.LineCount {
			cards[i].Print = blankArea(cfg.LineCount, cfg.LineLength)
		}
		for n, line := range cards[i].Print {
			cards[i].Print[n] = fitLine(line, cfg.LineLength)
		}
	}
	return &category{
		cards:      cards,
		current:    -1,
		sensor:     cfg.EntranceSensor,
		readyDelay: cfg.StatusToReadReady,
		removal:    cfg.RemovalTimeout,
		write:      cfg.WriteDuration,
		lines:      cfg.LineCount,
		length:     cfg.LineLength,
	}
}

func (*category) Name() string   { return CategoryName }
func (*category) Initial() State { return NoMedium }

func (c *category) card() *Card {
	if c.current < 0 {
		return nil
	}
	return &c.cards[c.current]
}

func (c *category) Prompt(state State, pending *posdummy.Operation) posdummy.Prompt {
	switch state {
	case Presenting:
		var msg strings.Builder
		msg.WriteString("Select card for insertion:")
		options := make([]string, len(c.cards))
		for i, card := range c.cards {
			fmt.Fprintf(&msg, "\nCard %d: %s", i+1, card.Label)
			options[i] = fmt.Sprintf("Card %d", i+1)
		}
		return posdummy.Prompt{Title: title, Message: msg.String(), Options: options, Timeout: posdummy.Infinite}
	case Verifying:
		return posdummy.Prompt{
			Title:   title,
			Message: "Press OK when insertion is ready for " + c.card().Label,
			Options: []string{"OK"},
			Timeout: c.readyDelay,
		}
	case Reading:
		return posdummy.Prompt{Title: title, Message: "Reading tracks of " + c.card().Label}
	case Ready:
		if pending != nil && pending.Kind() == KindPrintWrite {
			return posdummy.Prompt{Title: title, Message: "Writing to " + c.card().Label, Timeout: c.write}
		}
		return posdummy.Prompt{Title: title, Message: c.describe(), Timeout: posdummy.Infinite}
	case Finishing:
		return posdummy.Prompt{
			Title:   title,
			Message: "Card removal, press OK when finished",
			Options: []string{"OK"},
			Timeout: c.removal,
		}
	default:
		return posdummy.Prompt{Title: title, Message: "Reader / Writer Idle", Timeout: posdummy.Infinite}
	}
}

// describe lists the tracks and the print area of the card in the reader
func (c *category) describe() string {
	card := c.card()
	var msg strings.Builder
	msg.WriteString(card.Label)
	for n := 1; n <= MaxTracks; n++ {
		if data, ok := card.Tracks[n]; ok {
			fmt.Fprintf(&msg, "\nTrack %d: »%s«", n, data)
		}
	}
	msg.WriteString("\n\nPrint Area:")
	for _, line := range card.Print {
		msg.WriteString("\n" + line)
	}
	return msg.String()
}

func (c *category) Step(state State, stim posdummy.Stimulus, pending *posdummy.Operation) posdummy.Step[State] {
	switch state {
	case Presenting:
		if stim < 0 || int(stim) >= len(c.cards) {
			return posdummy.Stay(state)
		}
		c.current = int(stim)
		if c.sensor {
			return posdummy.Move(Verifying, posdummy.StatusEvent(Remaining))
		}
		return posdummy.Move(Ready)
	case Verifying:
		if stim == confirmOK || stim == posdummy.TimedOut {
			return posdummy.Move(Ready)
		}
	case Reading:
		return posdummy.Move(Ready, c.readEvents()...)
	case Ready:
		if pending != nil && pending.Kind() == KindPrintWrite && stim == posdummy.TimedOut {
			step := posdummy.Stay(state)
			req, _ := pending.Params().(PrintRequest)
			step.Outcome = c.printWrite(req)
			return step
		}
	case Finishing:
		c.current = -1
		step := posdummy.Move(NoMedium)
		if c.sensor {
			step.Events = append(step.Events, posdummy.StatusEvent(NoCard))
		}
		return step
	}
	return posdummy.Stay(state)
}

// readEvents reports the selected tracks of a freshly inserted card
func (c *category) readEvents() []posdummy.Event {
	var events []posdummy.Event
	if c.sensor {
		events = append(events, posdummy.StatusEvent(InRW))
	}
	if c.tracks == 0 {
		return events
	}

	card := c.card()
	data := TrackData{Label: card.Label, Mask: c.tracks, Tracks: make(map[int]string)}
	for _, n := range c.tracks.Tracks() {
		if v, ok := card.Tracks[n]; ok {
			data.Tracks[n] = v
		}
	}
	if card.readable(c.tracks) {
		return append(events, posdummy.DataEvent(data))
	}
	return append(events, posdummy.ErrorEvent(posdummy.Failure(posdummy.ErrHardware, "track read error"), data))
}

func (c *category) Accept(state State, op *posdummy.Operation) (posdummy.Step[State], bool) {
	if op.Kind() != KindPrintWrite {
		return fail(state, posdummy.ErrInvalidParameter, "unsupported operation"), false
	}
	req, ok := op.Params().(PrintRequest)
	if !ok {
		return fail(state, posdummy.ErrInvalidParameter, "print request expected"), false
	}
	if c.inserting {
		return fail(state, posdummy.ErrIllegalState, "insertion not completed"), false
	}
	if state != Ready && state != Reading {
		return fail(state, posdummy.ErrNotFound, "no card present"), false
	}
	if err := c.checkPrint(req); err != nil {
		return posdummy.Step[State]{Next: state, Outcome: posdummy.Fail(err)}, false
	}
	// In Ready the worker is showing the idle card; make it start writing.
	// A card still being read is written once it reaches Ready.
	return posdummy.Stay(state), state == Ready
}

func fail(state State, err error, detail string) posdummy.Step[State] {
	return posdummy.Step[State]{Next: state, Outcome: posdummy.Fail(posdummy.Failure(err, detail))}
}

func (c *category) checkPrint(req PrintRequest) error {
	if req.Text == "" && len(req.Tracks) == 0 {
		return posdummy.Failure(posdummy.ErrInvalidParameter, "nothing to write")
	}
	if req.Text != "" {
		if req.Line < 0 || req.Line >= c.lines || req.Column < 0 || req.Column+len(req.Text) > c.length {
			return posdummy.Failure(posdummy.ErrInvalidParameter, "print out of print area")
		}
		for _, r := range req.Text {
			if r < 0x20 || r > 0x7e {
				return posdummy.Failure(posdummy.ErrInvalidParameter, fmt.Sprintf("unsupported character %q", r))
			}
		}
	}
	card := c.card()
	for n, data := range req.Tracks {
		bit := TrackBit(n)
		if bit == 0 || card.Writable&bit == 0 {
			return posdummy.Failure(posdummy.ErrInvalidParameter, "bad tracks selected for writing")
		}
		if data == "" {
			return posdummy.Failure(posdummy.ErrInvalidParameter, fmt.Sprintf("no data for track %d", n))
		}
	}
	return nil
}

// printWrite applies a checked request to the card in the reader. Writes
// to defective tracks fail after the other tracks were written.
func (c *category) printWrite(req PrintRequest) *posdummy.Outcome {
	card := c.card()
	if req.Text != "" {
		line := []byte(card.Print[req.Line])
		copy(line[req.Column:], req.Text)
		card.Print[req.Line] = string(line)
	}

	var failed []int
	for _, n := range AllTracks.Tracks() {
		data, ok := req.Tracks[n]
		if !ok {
			continue
		}
		if card.Defective.Has(n) {
			failed = append(failed, n)
			continue
		}
		card.Tracks[n] = data
	}
	if len(failed) > 0 {
		return posdummy.Fail(posdummy.Failure(posdummy.ErrHardware, fmt.Sprintf("track %v could not be written", failed)))
	}
	return posdummy.Succeed(nil)
}

// Enabled resets the session flags and reports where the card is
func (c *category) Enabled(state State) []posdummy.Event {
	c.inserting, c.removing = false, false
	if !c.sensor {
		return nil
	}
	switch state {
	case NoMedium, Presenting:
		return []posdummy.Event{posdummy.StatusEvent(NoCard)}
	case Reading, Ready:
		return []posdummy.Event{posdummy.StatusEvent(InRW)}
	default:
		return []posdummy.Event{posdummy.StatusEvent(Remaining)}
	}
}

// finishing moves the card towards the slot
func (c *category) finishing() posdummy.Step[State] {
	step := posdummy.Move(Finishing)
	if c.sensor {
		step.Events = []posdummy.Event{posdummy.StatusEvent(Remaining)}
	}
	return step
}

func (c *category) beginInsertion(state State) (posdummy.Step[State], error) {
	if c.removing || state == Finishing {
		return posdummy.Stay(state), posdummy.Failure(posdummy.ErrIllegalState, "card removal active")
	}
	c.inserting = true
	if state == NoMedium {
		return posdummy.Move(Presenting), nil
	}
	return posdummy.Stay(state), nil
}

func (c *category) endInsertion(state State) (posdummy.Step[State], error) {
	if !c.inserting {
		return posdummy.Stay(state), posdummy.Failure(posdummy.ErrIllegalState, "not inserting")
	}
	c.inserting = false
	if state != Ready {
		if state == Finishing {
			return posdummy.Stay(state), posdummy.Failure(posdummy.ErrNotFound, "card not present")
		}
		return c.finishing(), posdummy.Failure(posdummy.ErrNotFound, "card not present")
	}
	return posdummy.Move(Reading), nil
}

func (c *category) beginRemoval(state State) (posdummy.Step[State], error) {
	if c.inserting {
		return posdummy.Stay(state), posdummy.Failure(posdummy.ErrIllegalState, "insertion active")
	}
	switch state {
	case Ready, Reading:
		c.removing = true
		return c.finishing(), nil
	case Finishing, NoMedium:
		c.removing = true
		return posdummy.Stay(state), nil
	default:
		return posdummy.Stay(state), posdummy.Failure(posdummy.ErrIllegalState, "not in removal")
	}
}

func (c *category) endRemoval(state State) (posdummy.Step[State], error) {
	if !c.removing {
		return posdummy.Stay(state), posdummy.Failure(posdummy.ErrIllegalState, "not removing")
	}
	if state.hasCard() {
		return posdummy.Stay(state), posdummy.Failure(posdummy.ErrIllegalState, "card still present")
	}
	c.removing = false
	return posdummy.Stay(state), nil
}

func (c *category) setTracks(mask TrackMask) func(State) (posdummy.Step[State], error) {
	return func(state State) (posdummy.Step[State], error) {
		if mask&^AllTracks != 0 {
			return posdummy.Stay(state), posdummy.Failure(posdummy.ErrInvalidParameter, "unknown tracks selected")
		}
		c.tracks = mask
		return posdummy.Stay(state), nil
	}
}

func (c *category) cleanCard(state State) (posdummy.Step[State], error) {
	switch {
	case c.inserting:
		return posdummy.Stay(state), posdummy.Failure(posdummy.ErrIllegalState, "insertion not completed")
	case c.removing:
		return posdummy.Stay(state), posdummy.Failure(posdummy.ErrIllegalState, "removal not completed")
	case (state != Ready && state != Reading) || !c.card().Cleaning():
		return posdummy.Stay(state), posdummy.Failure(posdummy.ErrNotFound, "no cleaning card present")
	}
	return posdummy.Stay(state), nil
}

func (c *category) snapshot() *Card {
	card := c.card()
	if card == nil {
		return nil
	}
	out := card.Clone()
	return &out
}
