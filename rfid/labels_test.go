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
	"strings"
	"testing"

	testutil "github.com/ZaparooProject/go-posdummy/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLabels(t *testing.T) {
	t.Parallel()
	src := "0102 A0A1\r\n\n0A0B text:hello 0C0D FF\n"
	labels, err := ParseLabels(strings.NewReader(src), ProtocolISO14443A|ProtocolISO15693)
	require.NoError(t, err)
	require.Len(t, labels, 2)

	require.Len(t, labels[0], 1)
	assert.Equal(t, []byte{0x01, 0x02}, labels[0][0].ID)
	assert.Equal(t, []byte{0xA0, 0xA1}, labels[0][0].Data)

	require.Len(t, labels[1], 2)
	txt, ok := DecodeText(labels[1][0].Data)
	require.True(t, ok)
	assert.Equal(t, "hello", txt)

	// protocols are handed out round-robin
	assert.Equal(t, 5, labels[0][0].Protocol)
	assert.Equal(t, 7, labels[1][0].Protocol)
	assert.Equal(t, 5, labels[1][1].Protocol)
}

func TestParseLabels_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		want      error
		name      string
		src       string
		protocols uint32
	}{
		{name: "empty", src: "\n\n", protocols: ProtocolEPC0, want: ErrNoLabels},
		{name: "odd values", src: "0102 A0 0304\n", protocols: ProtocolEPC0, want: ErrInvalidLabel},
		{name: "bad id", src: "XY A0\n", protocols: ProtocolEPC0, want: ErrInvalidLabel},
		{name: "bad data", src: "01 A\n", protocols: ProtocolEPC0, want: ErrInvalidLabel},
		{name: "no protocol", src: "01 A0\n", protocols: ProtocolAll, want: ErrInvalidLabel},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseLabels(strings.NewReader(tt.src), tt.protocols)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFormatLabels(t *testing.T) {
	t.Parallel()
	src := "0102 A0A1\n0A0B text:hello 0C0D FF\n"
	labels, err := ParseLabels(strings.NewReader(src), ProtocolEPC0)
	require.NoError(t, err)
	assert.Equal(t, "0102 A0A1\n0A0B text:hello 0C0D FF\n", FormatLabels(labels))
}

func TestDescribe_SkipsDisabledTags(t *testing.T) {
	t.Parallel()
	greeting, err := EncodeText("hi there")
	require.NoError(t, err)
	label := Label{
		{ID: []byte{0x01}, Data: greeting},
		{ID: []byte{0x02}, Data: []byte{0xFF}, Flags: FlagDisabled},
		{ID: []byte{0x03}, Data: []byte{0xAB}},
	}
	got := Describe(label)
	assert.Contains(t, got, `ID: 01, Data: "hi there"`)
	assert.NotContains(t, got, "ID: 02")
	assert.Contains(t, got, "ID: 03, Data: AB")
}

func TestLabel_CloneIsDeep(t *testing.T) {
	t.Parallel()
	orig := Label{{ID: []byte{1}, Data: []byte{2}}}
	cp := orig.Clone()
	cp[0].ID[0] = 9
	cp[0].Data[0] = 9
	assert.Equal(t, byte(1), orig[0].ID[0])
	assert.Equal(t, byte(2), orig[0].Data[0])
}

func TestParseLabels_DefaultFixture(t *testing.T) {
	t.Parallel()
	labels, err := ParseLabels(strings.NewReader(testutil.DefaultLabelFile()), ProtocolISO14443A)
	require.NoError(t, err)
	require.Len(t, labels, 3)

	assert.Equal(t, testutil.TestNTAG213UID, labels[0][0].ID)
	txt, ok := DecodeText(labels[0][0].Data)
	require.True(t, ok)
	assert.Equal(t, "posdummy", txt)

	require.Len(t, labels[1], 2)
	assert.Equal(t, testutil.TestMIFARE1KUID, labels[1][0].ID)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, labels[1][0].Data)
	assert.Equal(t, testutil.TestISO15693UID, labels[2][0].ID)

	assert.Equal(t, testutil.DefaultLabelFile(), FormatLabels(labels))
}
