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
	"errors"
	"time"

	posdummy "github.com/ZaparooProject/go-posdummy"
	"go.uber.org/zap"
)

// Chooser picks the answer to a prompt
type Chooser func(p posdummy.Prompt) posdummy.Stimulus

// DefaultChooser picks the prompt's default option
func DefaultChooser(p posdummy.Prompt) posdummy.Stimulus {
	return posdummy.Stimulus(p.Default)
}

// Option configures a provider
type Option func(*config) error

type config struct {
	log        *zap.Logger
	chooser    Chooser
	newline    string
	retries    int
	retryDelay time.Duration
}

func defaultConfig() *config {
	return &config{
		log:        zap.NewNop(),
		chooser:    DefaultChooser,
		newline:    "\n",
		retries:    3,
		retryDelay: 500 * time.Millisecond,
	}
}

func applyOptions(opts []Option) (*config, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// WithLogger sets the provider logger
func WithLogger(log *zap.Logger) Option {
	return func(c *config) error {
		if log == nil {
			return errors.New("logger cannot be nil")
		}
		c.log = log
		return nil
	}
}

// WithChooser sets how Auto picks its answers
func WithChooser(fn Chooser) Option {
	return func(c *config) error {
		if fn == nil {
			return errors.New("chooser cannot be nil")
		}
		c.chooser = fn
		return nil
	}
}

// WithNewline sets the line terminator a console writes
func WithNewline(nl string) Option {
	return func(c *config) error {
		c.newline = nl
		return nil
	}
}

// WithOpenRetries sets how often opening a serial port is retried
func WithOpenRetries(retries int, delay time.Duration) Option {
	return func(c *config) error {
		if retries < 0 || delay < 0 {
			return errors.New("retry settings cannot be negative")
		}
		c.retries = retries
		c.retryDelay = delay
		return nil
	}
}
