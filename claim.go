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

package posdummy

import (
	"fmt"

	"github.com/google/uuid"
)

// Handle is what a session keeps after claiming a device slot
type Handle struct {
	Index   int
	Session uuid.UUID
}

// Valid reports whether h came from a successful Claim
func (h Handle) Valid() bool {
	return h.Session != uuid.Nil
}

type claimSlot struct {
	listener Listener
	session  uuid.UUID
	enabled  bool
}

// ClaimTable tracks the exclusive claim of every category index of a device.
// It is guarded by the owning device's lock.
type ClaimTable struct {
	slots []claimSlot
}

func newClaimTable(n int) *ClaimTable {
	if n < 1 {
		n = 1
	}
	return &ClaimTable{slots: make([]claimSlot, n)}
}

// Len returns the number of slots
func (t *ClaimTable) Len() int {
	return len(t.slots)
}

func (t *ClaimTable) claim(index int, l Listener) (Handle, error) {
	if index < 0 || index >= len(t.slots) {
		return Handle{}, fmt.Errorf("%w: slot %d", ErrInvalidParameter, index)
	}
	if t.slots[index].session != uuid.Nil {
		return Handle{}, ErrClaimed
	}
	h := Handle{Index: index, Session: uuid.New()}
	t.slots[index] = claimSlot{session: h.Session, listener: l}
	return h, nil
}

func (t *ClaimTable) slot(h Handle) (*claimSlot, error) {
	if h.Index < 0 || h.Index >= len(t.slots) || !h.Valid() || t.slots[h.Index].session != h.Session {
		return nil, ErrNotClaimed
	}
	return &t.slots[h.Index], nil
}

func (t *ClaimTable) release(h Handle) error {
	s, err := t.slot(h)
	if err != nil {
		return err
	}
	*s = claimSlot{}
	return nil
}

func (t *ClaimTable) releaseAll() {
	for i := range t.slots {
		t.slots[i] = claimSlot{}
	}
}

func (t *ClaimTable) anyClaimed() bool {
	for _, s := range t.slots {
		if s.session != uuid.Nil {
			return true
		}
	}
	return false
}

func (t *ClaimTable) claimedCount() int {
	n := 0
	for _, s := range t.slots {
		if s.session != uuid.Nil {
			n++
		}
	}
	return n
}

// recipients returns the listeners of enabled slots
func (t *ClaimTable) recipients() []Listener {
	var out []Listener
	for _, s := range t.slots {
		if s.enabled && s.listener != nil {
			out = append(out, s.listener)
		}
	}
	return out
}
