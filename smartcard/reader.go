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

package smartcard

import (
	"context"
	"errors"
	"time"

	posdummy "github.com/ZaparooProject/go-posdummy"
)

// Reader is a simulated smart card reader/writer
type Reader struct {
	*posdummy.Device[State]
	cat *category
}

// New creates a reader. A nil cfg uses DefaultConfig.
func New(name string, cfg *Config, provider posdummy.Provider, opts ...posdummy.Option) (*Reader, error) {
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
	return &Reader{Device: dev, cat: cat}, nil
}

// BeginInsertion waits until the operator has inserted a card
func (r *Reader) BeginInsertion(ctx context.Context, h posdummy.Handle, timeout time.Duration) error {
	return r.Await(ctx, h, posdummy.Wait[State]{
		Kind:  KindBeginInsertion,
		Until: func(s State) bool { return s != Idle },
	}, timeout)
}

// EndInsertion accepts the inserted card for reading and writing. A card
// that is already readable is reported once more as a Data event.
func (r *Reader) EndInsertion(h posdummy.Handle) error {
	return r.transition(h, KindEndInsertion, r.cat.endInsertion)
}

// BeginRemoval waits until the operator has taken the card out
func (r *Reader) BeginRemoval(ctx context.Context, h posdummy.Handle, timeout time.Duration) error {
	return r.Await(ctx, h, posdummy.Wait[State]{
		Kind:  KindBeginRemoval,
		Until: func(s State) bool { return s == Idle },
	}, timeout)
}

// EndRemoval completes a removal
func (r *Reader) EndRemoval(h posdummy.Handle) error {
	return r.transition(h, KindEndRemoval, r.cat.endRemoval)
}

// ReadData returns the content of the readable card
func (r *Reader) ReadData(ctx context.Context, h posdummy.Handle, timeout time.Duration) ([]byte, error) {
	v, err := r.Dispatch(ctx, h, posdummy.Request{Kind: KindReadData}, timeout)
	if err != nil {
		return nil, err
	}
	data, _ := v.([]byte)
	return data, nil
}

// WriteData replaces the content of the readable card and returns the
// number of bytes written
func (r *Reader) WriteData(ctx context.Context, h posdummy.Handle, data []byte, timeout time.Duration) (int, error) {
	v, err := r.Dispatch(ctx, h, posdummy.Request{Kind: KindWriteData, Params: data}, timeout)
	if err != nil {
		return 0, err
	}
	n, _ := v.(int)
	return n, nil
}

// Inserted reports whether an insertion has been completed and not yet
// followed by a removal
func (r *Reader) Inserted() bool {
	var inserted bool
	r.Inspect(func(State) { inserted = r.cat.inserted })
	return inserted
}

func (r *Reader) transition(h posdummy.Handle, kind posdummy.Kind, fn func(State) (posdummy.Step[State], error)) error {
	err := r.Transition(h, fn)
	if err == nil {
		return nil
	}
	var opErr *posdummy.OperationError
	if errors.As(err, &opErr) {
		opErr.Op, opErr.Device = kind, r.Name()
		return err
	}
	return posdummy.NewOperationError(kind, r.Name(), err, "")
}
