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
	"errors"
	"time"

	"go.uber.org/zap"
)

// Option is a functional option for configuring a Device
type Option func(*settings) error

type settings struct {
	log          *zap.Logger
	registry     *Registry
	observers    []Listener
	slots        int
	faultBackoff time.Duration
}

func defaultSettings() *settings {
	return &settings{
		log:          zap.NewNop(),
		slots:        1,
		faultBackoff: 100 * time.Millisecond,
	}
}

// WithLogger sets the logger used by the device and its worker
func WithLogger(log *zap.Logger) Option {
	return func(s *settings) error {
		if log == nil {
			return errors.New("logger cannot be nil")
		}
		s.log = log
		return nil
	}
}

// WithSlots sets the number of independently claimable category indexes
func WithSlots(n int) Option {
	return func(s *settings) error {
		if n < 1 {
			return errors.New("slot count must be positive")
		}
		s.slots = n
		return nil
	}
}

// WithObserver adds an observer that sees every event, delivered or dropped
func WithObserver(l Listener) Option {
	return func(s *settings) error {
		if l == nil {
			return errors.New("observer cannot be nil")
		}
		s.observers = append(s.observers, l)
		return nil
	}
}

// WithRegistry registers the device in r on creation
func WithRegistry(r *Registry) Option {
	return func(s *settings) error {
		s.registry = r
		return nil
	}
}

// WithFaultBackoff sets the pause after a recovered worker fault
func WithFaultBackoff(d time.Duration) Option {
	return func(s *settings) error {
		if d < 0 {
			return errors.New("fault backoff cannot be negative")
		}
		s.faultBackoff = d
		return nil
	}
}
