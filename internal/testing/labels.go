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

package testing

import (
	"encoding/hex"
	"strings"
)

// Sample tag IDs
var (
	// TestNTAG213UID is a 7 byte ISO14443A UID
	TestNTAG213UID = []byte{0x04, 0xAB, 0xCD, 0xEF, 0x12, 0x34, 0x56}
	// TestMIFARE1KUID is a 4 byte ISO14443A UID
	TestMIFARE1KUID = []byte{0x12, 0x34, 0x56, 0x78}
	// TestISO15693UID is an 8 byte vicinity card UID
	TestISO15693UID = []byte{0xE0, 0x04, 0x01, 0x50, 0xAB, 0xCD, 0xEF, 0x01}
)

// VirtualTag is one tag of a label fixture. Text, when set, takes the
// place of Data; it must not contain whitespace and Data must not be empty.
type VirtualTag struct {
	ID   []byte
	Data []byte
	Text string
}

// NewVirtualTag creates a tag holding raw data
func NewVirtualTag(id []byte, data ...byte) VirtualTag {
	return VirtualTag{ID: id, Data: data}
}

// NewTextTag creates a tag holding an NDEF text record
func NewTextTag(id []byte, text string) VirtualTag {
	return VirtualTag{ID: id, Text: text}
}

func (t VirtualTag) field() string {
	id := strings.ToUpper(hex.EncodeToString(t.ID))
	if t.Text != "" {
		return id + " text:" + t.Text
	}
	return id + " " + strings.ToUpper(hex.EncodeToString(t.Data))
}

// LabelFile renders labels in label file syntax, one label per line
func LabelFile(labels ...[]VirtualTag) string {
	var b strings.Builder
	for _, label := range labels {
		fields := make([]string, len(label))
		for i, tag := range label {
			fields[i] = tag.field()
		}
		b.WriteString(strings.Join(fields, " "))
		b.WriteByte('\n')
	}
	return b.String()
}

// DefaultLabelFile holds three labels: an NTAG with a text record, a
// MIFARE card paired with a second tag, and a vicinity card
func DefaultLabelFile() string {
	return LabelFile(
		[]VirtualTag{NewTextTag(TestNTAG213UID, "posdummy")},
		[]VirtualTag{
			NewVirtualTag(TestMIFARE1KUID, 0xDE, 0xAD, 0xBE, 0xEF),
			NewVirtualTag([]byte{0x04, 0x11, 0x22}, 0x01),
		},
		[]VirtualTag{NewVirtualTag(TestISO15693UID, 0x01, 0x02, 0x03, 0x04)},
	)
}
