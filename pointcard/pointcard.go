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

// Package pointcard simulates a point card reader/writer.
//
// A card passes through insertion, an optional entrance sensor check,
// track reading and removal. While it sits in the reader its tracks can be
// read and its print area written. The operator picks which card of the
// catalogue goes in.
package pointcard

import (
	"errors"
	"fmt"
	"strings"
	"time"

	posdummy "github.com/ZaparooProject/go-posdummy"
)

// CategoryName is the category of point card readers/writers
const CategoryName = "PointCardRW"

// State of the reader
type State int

const (
	// NoMedium has no card in the reader
	NoMedium State = iota
	// Presenting waits for the operator to pick a card for insertion
	Presenting
	// Verifying waits for the entrance sensor to report the card ready
	Verifying
	// Reading reports the selected tracks of a freshly inserted card
	Reading
	// Ready holds a card that can be read and written
	Ready
	// Finishing waits for the card to be taken out
	Finishing
)

func (s State) String() string {
	switch s {
	case NoMedium:
		return "NoMedium"
	case Presenting:
		return "Presenting"
	case Verifying:
		return "Verifying"
	case Reading:
		return "Reading"
	case Ready:
		return "Ready"
	case Finishing:
		return "Finishing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// hasCard reports whether a card is inside the reader
func (s State) hasCard() bool {
	return s == Verifying || s == Reading || s == Ready || s == Finishing
}

// Operation kinds
const (
	KindBeginInsertion posdummy.Kind = "BeginInsertion"
	KindEndInsertion   posdummy.Kind = "EndInsertion"
	KindBeginRemoval   posdummy.Kind = "BeginRemoval"
	KindEndRemoval     posdummy.Kind = "EndRemoval"
	KindPrintWrite     posdummy.Kind = "PrintWrite"
	KindCleanCard      posdummy.Kind = "CleanCard"
	KindTracksToRead   posdummy.Kind = "SetTracksToRead"
)

// CardState is the payload of status update events. Status updates are
// only reported by readers with an entrance sensor.
type CardState string

const (
	NoCard    CardState = "NoCard"
	Remaining CardState = "Remaining"
	InRW      CardState = "InRW"
)

// TrackMask selects tracks 1 to 6
type TrackMask uint8

const (
	Track1 TrackMask = 1 << iota
	Track2
	Track3
	Track4
	Track5
	Track6

	AllTracks = Track1 | Track2 | Track3 | Track4 | Track5 | Track6
)

// MaxTracks is the highest track number
const MaxTracks = 6

// TrackBit returns the mask bit of track n
func TrackBit(n int) TrackMask {
	if n < 1 || n > MaxTracks {
		return 0
	}
	return 1 << (n - 1)
}

// Has reports whether track n is selected
func (m TrackMask) Has(n int) bool {
	bit := TrackBit(n)
	return bit != 0 && m&bit != 0
}

// Tracks returns the selected track numbers in ascending order
func (m TrackMask) Tracks() []int {
	var out []int
	for n := 1; n <= MaxTracks; n++ {
		if m.Has(n) {
			out = append(out, n)
		}
	}
	return out
}

// Card is one point card of the catalogue
type Card struct {
	// Tracks holds the data of every track the card carries, keyed by
	// track number. Defective tracks carry no data.
	Tracks    map[int]string
	Label     string
	Print     []string
	Writable  TrackMask
	Defective TrackMask
}

// NewCard creates a card carrying the given tracks. A negative track
// number adds a defective track. Each readable track holds "Track n".
func NewCard(label string, tracks ...int) Card {
	c := Card{Label: label, Tracks: make(map[int]string, len(tracks))}
	for _, n := range tracks {
		abs := n
		if n < 0 {
			abs = -n
		}
		bit := TrackBit(abs)
		if bit == 0 {
			continue
		}
		c.Writable |= bit
		if n < 0 {
			c.Defective |= bit
			c.Tracks[abs] = ""
			continue
		}
		c.Tracks[abs] = fmt.Sprintf("Track %d", abs)
	}
	return c
}

// Clone returns a deep copy of c
func (c Card) Clone() Card {
	out := c
	out.Tracks = make(map[int]string, len(c.Tracks))
	for k, v := range c.Tracks {
		out.Tracks[k] = v
	}
	out.Print = append([]string(nil), c.Print...)
	return out
}

// Cleaning reports whether c is a cleaning card
func (c Card) Cleaning() bool {
	return c.Writable == 0
}

// readable reports whether every track of mask can be read from c
func (c Card) readable(mask TrackMask) bool {
	return mask&c.Writable == mask && mask&c.Defective == 0
}

// TrackData is the payload of the Data and Error events reported when a
// card has been inserted
type TrackData struct {
	Tracks map[int]string `json:"tracks"`
	Label  string         `json:"label"`
	Mask   TrackMask      `json:"mask"`
}

// PrintRequest writes text into the print area and data onto tracks of
// the card in the reader
type PrintRequest struct {
	// Tracks holds the data to encode, keyed by track number
	Tracks map[int]string
	Text   string
	Line   int
	Column int
}

// Config configures a reader
type Config struct {
	Cards []Card
	// EntranceSensor enables the Verifying state and card state updates
	EntranceSensor bool
	// StatusToReadReady is how long a card takes to become ready after the
	// entrance sensor saw it
	StatusToReadReady time.Duration
	// RemovalTimeout is how long the reader waits for a card to be taken
	// out, or posdummy.Infinite
	RemovalTimeout time.Duration
	// WriteDuration is the time a print/write takes
	WriteDuration time.Duration
	LineCount     int
	LineLength    int
}

// DefaultConfig returns the reader configuration with the built-in card
// catalogue
func DefaultConfig() *Config {
	return &Config{
		Cards: []Card{
			NewCard("Card w. Track 1, 2, 3", 1, 2, 3),
			NewCard("Card w. Track 1, 3, 5", 1, 3, 5),
			NewCard("Card w. Track 1, 2, 4, 6", 1, 2, 4, 6),
			NewCard("Card w. Track 1, 2, 3; 2 Def.", 1, -2, 3),
			NewCard("Card w. Track 2, 3, 6; Track Def.", -2, -3, -6),
			NewCard("Cleaning Card"),
		},
		EntranceSensor:    true,
		StatusToReadReady: 500 * time.Millisecond,
		RemovalTimeout:    5 * time.Second,
		WriteDuration:     500 * time.Millisecond,
		LineCount:         4,
		LineLength:        16,
	}
}

func (c *Config) validate() error {
	if len(c.Cards) == 0 {
		return errors.New("card catalogue cannot be empty")
	}
	if c.LineCount <= 0 || c.LineLength <= 0 {
		return fmt.Errorf("invalid print area %dx%d", c.LineCount, c.LineLength)
	}
	if c.StatusToReadReady < 0 || c.WriteDuration < 0 {
		return errors.New("durations cannot be negative")
	}
	if c.RemovalTimeout < 0 && c.RemovalTimeout != posdummy.Infinite {
		return errors.New("removal timeout cannot be negative")
	}
	for i, card := range c.Cards {
		if card.Label == "" {
			return fmt.Errorf("card %d has no label", i+1)
		}
		if card.Writable&^AllTracks != 0 {
			return fmt.Errorf("card %q carries unknown tracks", card.Label)
		}
	}
	return nil
}

// blankArea returns an empty print area
func blankArea(lines, length int) []string {
	out := make([]string, lines)
	for i := range out {
		out[i] = strings.Repeat(" ", length)
	}
	return out
}

// fitLine pads or cuts a print line to length
func fitLine(line string, length int) string {
	if len(line) >= length {
		return line[:length]
	}
	return line + strings.Repeat(" ", length-len(line))
}
