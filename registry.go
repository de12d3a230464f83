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
	"sort"
	"sync"
)

// Registry indexes devices by name and category. Its lock only guards the
// index; device state is always queried after the lock is released.
type Registry struct {
	devices map[string]Controller
	mu      sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{devices: make(map[string]Controller)}
}

// Register adds c. Names are unique across categories.
func (r *Registry) Register(c Controller) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.devices[c.Name()]; exists {
		return fmt.Errorf("device %q already registered", c.Name())
	}
	r.devices[c.Name()] = c
	return nil
}

// Unregister removes the device called name
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.devices, name)
}

// Lookup returns the device called name
func (r *Registry) Lookup(name string) (Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.devices[name]
	return c, ok
}

// Devices returns all registered devices sorted by name
func (r *Registry) Devices() []Controller {
	r.mu.RLock()
	out := make([]Controller, 0, len(r.devices))
	for _, c := range r.devices {
		out = append(out, c)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// ByCategory returns the devices of one category sorted by name
func (r *Registry) ByCategory(category string) []Controller {
	var out []Controller
	for _, c := range r.Devices() {
		if c.Category() == category {
			out = append(out, c)
		}
	}
	return out
}

// AnyClaimed reports whether any device of category is claimed
func (r *Registry) AnyClaimed(category string) bool {
	for _, c := range r.ByCategory(category) {
		if c.Claimed() {
			return true
		}
	}
	return false
}

// Close closes every registered device
func (r *Registry) Close() error {
	var firstErr error
	for _, c := range r.Devices() {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
