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
	"bufio"
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hsanjuan/go-ndef"
	"github.com/hsanjuan/go-ndef/types/wkt/text"
)

// TextPrefix marks label data given as UTF-8 text. Such data is stored as an
// NDEF message holding one text record.
const TextPrefix = "text:"

// Tag flags
const (
	FlagLocked   byte = 0x40
	FlagDisabled byte = 0x80
)

// ErrNoLabels is returned when a label source holds no label
var ErrNoLabels = errors.New("no label defined")

// Tag is one transponder of a label
type Tag struct {
	ID       []byte
	Data     []byte
	Protocol int
	Flags    byte
}

// Locked reports whether the tag rejects writes
func (t Tag) Locked() bool { return t.Flags&FlagLocked != 0 }

// Disabled reports whether the tag is unreadable
func (t Tag) Disabled() bool { return t.Flags&FlagDisabled != 0 }

func (t Tag) clone() Tag {
	t.ID = bytes.Clone(t.ID)
	t.Data = bytes.Clone(t.Data)
	return t
}

// Label is the set of tags presented to the scanner at once
type Label []Tag

// Clone returns a deep copy of l
func (l Label) Clone() Label {
	out := make(Label, len(l))
	for i, t := range l {
		out[i] = t.clone()
	}
	return out
}

// LoadLabels reads a label file
func LoadLabels(path string, protocols uint32) ([]Label, error) {
	f, err := os.Open(path) //nolint:gosec // operator supplied file
	if err != nil {
		return nil, fmt.Errorf("open label file: %w", err)
	}
	defer func() { _ = f.Close() }()
	labels, err := ParseLabels(f, protocols)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return labels, nil
}

// ParseLabels reads labels, one per line, each a whitespace separated list
// of "ID DATA" pairs. IDs are hex. DATA is hex or text:<utf8>. Protocols
// are assigned round-robin over the bits of protocols.
func ParseLabels(r io.Reader, protocols uint32) ([]Label, error) {
	if protocols&^ProtocolAll == 0 {
		return nil, fmt.Errorf("%w: protocol mask %#x names no protocol", ErrInvalidLabel, protocols)
	}
	assign := protocolCycle(protocols)

	var labels []Label
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields)%2 != 0 {
			return nil, fmt.Errorf("%w: line %d: odd number of values", ErrInvalidLabel, line)
		}
		label := make(Label, 0, len(fields)/2)
		for i := 0; i < len(fields); i += 2 {
			id, err := hex.DecodeString(fields[i])
			if err != nil || len(id) == 0 {
				return nil, fmt.Errorf("%w: line %d: bad tag ID %q", ErrInvalidLabel, line, fields[i])
			}
			data, err := decodeData(fields[i+1])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %w", ErrInvalidLabel, line, err)
			}
			label = append(label, Tag{ID: id, Data: data, Protocol: assign()})
		}
		labels = append(labels, label)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	if len(labels) == 0 {
		return nil, ErrNoLabels
	}
	return labels, nil
}

// ErrInvalidLabel is returned for malformed label definitions
var ErrInvalidLabel = errors.New("invalid label")

func decodeData(field string) ([]byte, error) {
	if value, ok := strings.CutPrefix(field, TextPrefix); ok {
		return EncodeText(value)
	}
	data, err := hex.DecodeString(field)
	if err != nil {
		return nil, fmt.Errorf("bad tag data %q", field)
	}
	return data, nil
}

// EncodeText returns value as an NDEF message with one English text record
func EncodeText(value string) ([]byte, error) {
	msg := ndef.NewTextMessage(value, "en")
	data, err := msg.Marshal()
	if err != nil {
		return nil, fmt.Errorf("encode NDEF text: %w", err)
	}
	return data, nil
}

// DecodeText returns the text of the first record if data is an NDEF
// message whose first record is a text record
func DecodeText(data []byte) (string, bool) {
	if len(data) == 0 {
		return "", false
	}
	msg := &ndef.Message{}
	if _, err := msg.Unmarshal(data); err != nil || len(msg.Records) == 0 {
		return "", false
	}
	payload, err := msg.Records[0].Payload()
	if err != nil {
		return "", false
	}
	t, ok := payload.(*text.Payload)
	if !ok {
		return "", false
	}
	return t.Text, true
}

// protocolCycle returns a generator of the bit indexes set in mask, in
// ascending order, wrapping around
func protocolCycle(mask uint32) func() int {
	mask &^= ProtocolAll
	next := 0
	return func() int {
		for {
			idx := next % 32
			next = idx + 1
			if mask&(1<<idx) != 0 {
				return idx
			}
		}
	}
}

// FormatLabels renders labels in the label file format. Data that decodes
// as NDEF text is written as text:, which round-trips when the text holds
// no whitespace.
func FormatLabels(labels []Label) string {
	var b strings.Builder
	for _, label := range labels {
		for i, tag := range label {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strings.ToUpper(hex.EncodeToString(tag.ID)))
			b.WriteByte(' ')
			if txt, ok := DecodeText(tag.Data); ok && txt != "" && !strings.ContainsAny(txt, " \t\r\n") {
				b.WriteString(TextPrefix + txt)
			} else {
				b.WriteString(strings.ToUpper(hex.EncodeToString(tag.Data)))
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Describe renders the readable tags of a label for an operator prompt
func Describe(label Label) string {
	var b strings.Builder
	for _, tag := range label {
		if tag.Disabled() {
			continue
		}
		line := fmt.Sprintf("ID: %X, Data: ", tag.ID)
		if txt, ok := DecodeText(tag.Data); ok {
			line += fmt.Sprintf("%q", txt)
		} else {
			line += fmt.Sprintf("%X", tag.Data)
		}
		if len(line) > 200 {
			line = line[:200] + "..."
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
