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
	"context"
	"time"

	posdummy "github.com/ZaparooProject/go-posdummy"
)

// Scanner is a simulated RFID scanner
type Scanner struct {
	*posdummy.Device[State]
	cat *category
}

// New creates a scanner. A nil cfg uses DefaultConfig.
func New(name string, cfg *Config, provider posdummy.Provider, opts ...posdummy.Option) (*Scanner, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cat := newCategory(cfg)
	dev, err := posdummy.New[State](name, cat, provider, opts...)
	if err != nil {
		return nil, err
	}
	return &Scanner{Device: dev, cat: cat}, nil
}

// ReadTags waits for a label and returns its tags that pass req. With a
// readable label already in the field it returns at once.
func (s *Scanner) ReadTags(ctx context.Context, h posdummy.Handle, req ReadRequest, timeout time.Duration) ([]TagData, error) {
	v, err := s.Dispatch(ctx, h, posdummy.Request{Kind: KindReadTags, Params: req}, timeout)
	if err != nil {
		return nil, err
	}
	tags, _ := v.([]TagData)
	return tags, nil
}

// StartReadTags switches to continuous reading. Every label presented from
// now on is reported as a Data event, or an Error event if nothing matches.
func (s *Scanner) StartReadTags(h posdummy.Handle, req ReadRequest) error {
	return s.Transition(h, func(state State) (posdummy.Step[State], error) {
		return s.cat.startContinuous(state, req)
	})
}

// StopReadTags ends continuous reading
func (s *Scanner) StopReadTags(h posdummy.Handle) error {
	return s.Transition(h, s.cat.stopContinuous)
}

// Continuous reports whether continuous reading is active
func (s *Scanner) Continuous() bool {
	var active bool
	s.Inspect(func(State) { active = s.cat.continuous != nil })
	return active
}

// LockTag write-protects tag id of the next label the operator accepts
func (s *Scanner) LockTag(ctx context.Context, h posdummy.Handle, id []byte, timeout time.Duration) error {
	_, err := s.Dispatch(ctx, h, posdummy.Request{Kind: KindLockTag, Params: id}, timeout)
	return err
}

// DisableTag makes tag id of the next accepted label unreadable
func (s *Scanner) DisableTag(ctx context.Context, h posdummy.Handle, id []byte, timeout time.Duration) error {
	_, err := s.Dispatch(ctx, h, posdummy.Request{Kind: KindDisableTag, Params: id}, timeout)
	return err
}

// WriteTagData writes user data into a tag of the next accepted label
func (s *Scanner) WriteTagData(ctx context.Context, h posdummy.Handle, req WriteDataRequest, timeout time.Duration) error {
	_, err := s.Dispatch(ctx, h, posdummy.Request{Kind: KindWriteTagData, Params: req}, timeout)
	return err
}

// WriteTagID changes the ID of a tag of the next accepted label
func (s *Scanner) WriteTagID(ctx context.Context, h posdummy.Handle, req WriteIDRequest, timeout time.Duration) error {
	_, err := s.Dispatch(ctx, h, posdummy.Request{Kind: KindWriteTagID, Params: req}, timeout)
	return err
}

// Labels returns a copy of the label catalogue including all writes so far
func (s *Scanner) Labels() []Label {
	var out []Label
	s.Inspect(func(State) { out = s.cat.snapshot() })
	return out
}

// Current returns the index of the label in the field or next to come
func (s *Scanner) Current() int {
	var idx int
	s.Inspect(func(State) { idx = s.cat.index })
	return idx
}
