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

// Package smartcard simulates a smart card reader/writer.
//
// The operator inserts a card, decides whether it becomes readable and
// takes it out again. Reads and writes are only served while the card is
// readable; the card stays readable for CardReadyDelay after the last
// access.
package smartcard

import (
	"errors"
	"fmt"
	"time"

	posdummy "github.com/ZaparooProject/go-posdummy"
)

// CategoryName is the category of smart card readers/writers
const CategoryName = "SmartCardRW"

// State of the reader
type State int

const (
	// Idle has no card inserted
	Idle State = iota
	// GotCard has a card inserted that is not yet readable
	GotCard
	// Readable has a card that can be read and written
	Readable
	// Removable has a card that waits to be taken out
	Removable
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case GotCard:
		return "GotCard"
	case Readable:
		return "Readable"
	case Removable:
		return "Removable"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Operation kinds
const (
	KindBeginInsertion posdummy.Kind = "BeginInsertion"
	KindEndInsertion   posdummy.Kind = "EndInsertion"
	KindBeginRemoval   posdummy.Kind = "BeginRemoval"
	KindEndRemoval     posdummy.Kind = "EndRemoval"
	KindReadData       posdummy.Kind = "ReadData"
	KindWriteData      posdummy.Kind = "WriteData"
)

// CardStatus is the payload of status update events
type CardStatus string

const (
	CardPresent CardStatus = "CardPresent"
	NoCard      CardStatus = "NoCard"
)

// Config configures a reader
type Config struct {
	// Data is the initial content of the card
	Data []byte
	// CardReadyDelay is how long an inserted card takes to become
	// readable, and how long it stays readable without access
	CardReadyDelay time.Duration
}

// DefaultConfig returns the default reader configuration
func DefaultConfig() *Config {
	return &Config{
		Data:           []byte("3B 8F 80 01 80 4F 0C A0 00 00 03 06"),
		CardReadyDelay: time.Second,
	}
}

func (c *Config) validate() error {
	if c.CardReadyDelay <= 0 {
		return errors.New("card ready delay must be positive")
	}
	return nil
}
