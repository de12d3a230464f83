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

// Package rfid simulates an RFID scanner.
//
// The operator presents labels, each holding one or more tags, and decides
// for every label whether it was read correctly. Reads, locks, disables and
// writes are served from the label currently in the field; the next label
// comes up once the current one has been taken away.
package rfid

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	posdummy "github.com/ZaparooProject/go-posdummy"
)

// CategoryName is the category of RFID scanners
const CategoryName = "RFIDScanner"

// State of the scanner
type State int

const (
	// Idle waits for a label
	Idle State = iota
	// GotTags has a readable label in the field
	GotTags
	// ErrorTags has a label in the field that failed to read
	ErrorTags
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case GotTags:
		return "GotTags"
	case ErrorTags:
		return "ErrorTags"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Operation kinds
const (
	KindReadTags     posdummy.Kind = "ReadTags"
	KindLockTag      posdummy.Kind = "LockTag"
	KindDisableTag   posdummy.Kind = "DisableTag"
	KindWriteTagData posdummy.Kind = "WriteTagData"
	KindWriteTagID   posdummy.Kind = "WriteTagID"
	KindStartRead    posdummy.Kind = "StartReadTags"
	KindStopRead     posdummy.Kind = "StopReadTags"
)

// Protocol bits
const (
	ProtocolEPC0 uint32 = 1 << iota
	ProtocolEPC0Plus
	ProtocolEPC1
	ProtocolEPC1G2
	ProtocolEPC2
	ProtocolISO14443A
	ProtocolISO14443B
	ProtocolISO15693
	ProtocolISO180006B

	ProtocolOther uint32 = 0x01000000
	ProtocolAll   uint32 = 0x40000000
)

// ReadCmd selects what a read returns
type ReadCmd int

const (
	// ReadID returns tag IDs
	ReadID ReadCmd = 1 << iota
	// ReadFullUserData returns all user data
	ReadFullUserData
	// ReadPartialUserData returns Length bytes of user data from Start
	ReadPartialUserData
)

// ReadRequest filters and shapes a tag read. A tag matches when its ID,
// masked with FilterMask, equals FilterID masked the same way. An empty
// filter matches every tag.
type ReadRequest struct {
	FilterID   []byte
	FilterMask []byte
	Cmd        ReadCmd
	Start      int
	Length     int
	// Protocols limits matches to tags of these protocols; zero means
	// the scanner's configured mask
	Protocols uint32
}

func (r ReadRequest) validate() error {
	if len(r.FilterMask) < len(r.FilterID) {
		return posdummy.Failure(posdummy.ErrInvalidParameter, "filter mask shorter than filter ID")
	}
	if r.Start < 0 || r.Length < 0 {
		return posdummy.Failure(posdummy.ErrInvalidParameter, "negative user data range")
	}
	if r.Cmd&(ReadID|ReadFullUserData|ReadPartialUserData) == 0 {
		return posdummy.Failure(posdummy.ErrInvalidParameter, "read command selects nothing")
	}
	return nil
}

// masked returns the masked filter ID
func (r ReadRequest) masked() []byte {
	return mask(r.FilterID, r.FilterMask)
}

func mask(id, m []byte) []byte {
	out := make([]byte, len(id))
	for i := range id {
		out[i] = id[i] & m[i]
	}
	return out
}

// TagData is one tag reported by a read
type TagData struct {
	ID       []byte `json:"id"`
	Data     []byte `json:"data"`
	Protocol uint32 `json:"protocol"`
}

func (t TagData) String() string {
	return fmt.Sprintf("%X:%X", t.ID, t.Data)
}

// WriteDataRequest writes Data into the user data of tag ID at Start
type WriteDataRequest struct {
	ID    []byte
	Data  []byte
	Start int
}

// WriteIDRequest changes the ID of tag Source to Dest
type WriteIDRequest struct {
	Source []byte
	Dest   []byte
}

// Config configures a scanner
type Config struct {
	Labels []Label
	// Protocols is the set of protocols the scanner supports. Labels read
	// from a file are assigned these round-robin.
	Protocols uint32
	// ReadTimerInterval is the minimum spacing of continuous read events
	ReadTimerInterval time.Duration
}

// defaultLabels is a small catalogue used when no label file is given
const defaultLabels = `04A1B2C3D4E5F6 text:posdummy
04112233445566 48656C6C6F 04AABBCCDDEEFF text:second
E0040150ABCDEF01 0102030405060708
`

// DefaultConfig returns a scanner configuration with a built-in label
// catalogue
func DefaultConfig() *Config {
	protocols := ProtocolISO14443A | ProtocolISO15693
	labels, err := ParseLabels(strings.NewReader(defaultLabels), protocols)
	if err != nil {
		panic(err)
	}
	return &Config{
		Labels:            labels,
		Protocols:         protocols,
		ReadTimerInterval: time.Second,
	}
}

func (c *Config) validate() error {
	if len(c.Labels) == 0 {
		return ErrNoLabels
	}
	for i, label := range c.Labels {
		if len(label) == 0 {
			return fmt.Errorf("%w: label %d holds no tag", ErrInvalidLabel, i)
		}
	}
	if c.Protocols&^ProtocolAll == 0 {
		return errors.New("protocol mask names no protocol")
	}
	if c.ReadTimerInterval < 0 {
		return errors.New("read timer interval cannot be negative")
	}
	return nil
}

func findTag(label Label, id []byte) *Tag {
	for i := range label {
		if bytes.Equal(label[i].ID, id) {
			return &label[i]
		}
	}
	return nil
}
