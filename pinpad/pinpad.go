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

// Package pinpad simulates a PIN pad.
//
// EnterPIN switches the pad to PIN entry; the operator then types digits
// on a simulated keypad and confirms, clears, cancels or fails the entry.
// Entered PINs are returned encrypted with a rotating shift key.
package pinpad

import (
	"fmt"
	"strconv"
	"strings"

	posdummy "github.com/ZaparooProject/go-posdummy"
)

// CategoryName is the category of PIN pads
const CategoryName = "PINPad"

// State of the pad
type State int

const (
	// Idle shows the idle message
	Idle State = iota
	// Entry accepts keypad input
	Entry
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Entry:
		return "Entry"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// KindEnterPIN is the kind of PIN entry operations
const KindEnterPIN posdummy.Kind = "EnterPIN"

// PINStatus is how a PIN entry ended without an error
type PINStatus string

const (
	Success   PINStatus = "Success"
	Cancelled PINStatus = "Cancelled"
	TimedOut  PINStatus = "TimedOut"
)

// PINResult is the outcome of a PIN entry
type PINResult struct {
	Status       PINStatus `json:"status"`
	KeyID        string    `json:"key_id,omitempty"`
	EncryptedPIN string    `json:"encrypted_pin,omitempty"`
}

// MaxPINLength is the longest PIN the pad accepts
const MaxPINLength = 9

// Config configures a pad
type Config struct {
	// Message is shown while no PIN is being entered
	Message      string
	MinPINLength int
	MaxPINLength int
}

// DefaultConfig returns the default pad configuration
func DefaultConfig() *Config {
	return &Config{Message: "Ready", MinPINLength: 4, MaxPINLength: 4}
}

func (c *Config) validate() error {
	if c.MaxPINLength < 1 || c.MaxPINLength > MaxPINLength {
		return fmt.Errorf("maximum PIN length must be between 1 and %d", MaxPINLength)
	}
	if c.MinPINLength < 0 || c.MinPINLength > c.MaxPINLength {
		return fmt.Errorf("bad PIN length: %d > %d", c.MinPINLength, c.MaxPINLength)
	}
	return nil
}

// Shift keys rotate through this range, one step per completed entry
const (
	firstShift = 'A' - '0'
	lastShift  = 'Z' - '9'
)

// Encrypt encodes pin with the shift key: the key and every digit offset by
// the key, each as lower-case hex
func Encrypt(pin string, shift int) string {
	var out strings.Builder
	out.WriteString(strconv.FormatInt(int64(shift), 16))
	for i := 0; i < len(pin); i++ {
		out.WriteString(strconv.FormatInt(int64(pin[i])+int64(shift), 16))
	}
	return out.String()
}

// Decrypt reverses Encrypt
func Decrypt(keyID, encrypted string) (string, error) {
	shift, err := strconv.ParseInt(keyID, 16, 32)
	if err != nil {
		return "", fmt.Errorf("invalid key ID %q: %w", keyID, err)
	}
	if len(encrypted)%2 != 0 {
		return "", fmt.Errorf("invalid encrypted PIN length %d", len(encrypted))
	}
	pin := make([]byte, 0, len(encrypted)/2)
	for i := 0; i < len(encrypted); i += 2 {
		v, err := strconv.ParseInt(encrypted[i:i+2], 16, 32)
		if err != nil {
			return "", fmt.Errorf("invalid encrypted PIN: %w", err)
		}
		pin = append(pin, byte(v-shift))
	}
	return string(pin), nil
}
