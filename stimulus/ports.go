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
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.bug.st/serial/enumerator"
)

// PortInfo describes a serial port found on the system
type PortInfo struct {
	Name    string `json:"name"`
	VIDPID  string `json:"vid_pid,omitempty"`
	Product string `json:"product,omitempty"`
	Serial  string `json:"serial,omitempty"`
	USB     bool   `json:"usb"`
}

func (p PortInfo) String() string {
	if !p.USB {
		return p.Name
	}
	s := p.Name + " [" + p.VIDPID + "]"
	if p.Product != "" {
		s += " " + p.Product
	}
	return s
}

// PortFilter drops ports from listings
type PortFilter struct {
	// Ignore holds port paths to skip
	Ignore []string
	// Blocklist holds USB VID:PID pairs to skip
	Blocklist []string
}

// DefaultBlocklist returns the USB devices never offered as an operator
// console
func DefaultBlocklist() []string {
	return []string{}
}

// DetectPorts returns the serial ports that pass f, USB adapters first
func DetectPorts(f PortFilter) ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}

	blocklist := append(DefaultBlocklist(), f.Blocklist...)
	var out []PortInfo
	for _, d := range details {
		p := PortInfo{Name: d.Name, USB: d.IsUSB, Product: d.Product, Serial: d.SerialNumber}
		if d.IsUSB {
			p.VIDPID = strings.ToUpper(d.VID + ":" + d.PID)
		}
		if isBluetooth(p.Name) || IsPathIgnored(p.Name, f.Ignore) || (p.USB && IsBlocked(p.VIDPID, blocklist)) {
			continue
		}
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].USB != out[j].USB {
			return out[i].USB
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// IsBlocked reports whether the USB device vidpid is in blocklist
func IsBlocked(vidpid string, blocklist []string) bool {
	vidpid = strings.ToUpper(strings.TrimSpace(vidpid))
	for _, blocked := range blocklist {
		if vidpid == strings.ToUpper(strings.TrimSpace(blocked)) {
			return true
		}
	}
	return false
}

// IsPathIgnored reports whether path is one of ignore. Paths are compared
// cleaned and case-insensitively.
func IsPathIgnored(path string, ignore []string) bool {
	if path == "" {
		return false
	}
	normalized := normalizePath(path)
	for _, p := range ignore {
		if p != "" && (p == path || normalizePath(p) == normalized) {
			return true
		}
	}
	return false
}

func normalizePath(path string) string {
	return strings.ToLower(filepath.Clean(path))
}

func isBluetooth(name string) bool {
	base := strings.ToLower(filepath.Base(name))
	return strings.Contains(base, "bluetooth") || strings.HasPrefix(base, "rfcomm")
}
