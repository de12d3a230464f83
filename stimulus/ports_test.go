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

package stimulus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPathIgnored(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		path   string
		ignore []string
		want   bool
	}{
		{name: "empty ignore list", path: "/dev/ttyUSB0", ignore: nil, want: false},
		{name: "empty path", path: "", ignore: []string{"/dev/ttyUSB0"}, want: false},
		{name: "exact unix path", path: "/dev/ttyUSB0", ignore: []string{"/dev/ttyUSB0"}, want: true},
		{name: "exact windows port", path: "COM2", ignore: []string{"COM2"}, want: true},
		{name: "case insensitive", path: "com2", ignore: []string{"COM2"}, want: true},
		{name: "no match", path: "/dev/ttyUSB1", ignore: []string{"/dev/ttyUSB0"}, want: false},
		{name: "one of several", path: "/dev/ttyACM0", ignore: []string{"COM2", "/dev/ttyACM0"}, want: true},
		{name: "empty entries skipped", path: "/dev/ttyS0", ignore: []string{"", "/dev/ttyS0"}, want: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsPathIgnored(tt.path, tt.ignore))
		})
	}
}

func TestIsBlocked(t *testing.T) {
	t.Parallel()
	blocklist := []string{" 10c4:ea60 ", "1A86:7523"}

	assert.True(t, IsBlocked("10C4:EA60", blocklist))
	assert.True(t, IsBlocked("1a86:7523", blocklist))
	assert.False(t, IsBlocked("0403:6001", blocklist))
	assert.False(t, IsBlocked("", nil))
}

func TestIsBluetooth(t *testing.T) {
	t.Parallel()
	assert.True(t, isBluetooth("/dev/cu.Bluetooth-Incoming-Port"))
	assert.True(t, isBluetooth("/dev/rfcomm0"))
	assert.False(t, isBluetooth("/dev/ttyUSB0"))
	assert.False(t, isBluetooth("COM3"))
}

func TestPortInfo_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "COM1", PortInfo{Name: "COM1"}.String())
	usb := PortInfo{Name: "/dev/ttyUSB0", USB: true, VIDPID: "0403:6001", Product: "FT232R"}
	assert.Equal(t, "/dev/ttyUSB0 [0403:6001] FT232R", usb.String())
}
