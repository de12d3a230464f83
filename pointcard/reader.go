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

package pointcard

import (
	"context"
	"errors"
	"time"

	posdummy "github.com/ZaparooProject/go-posdummy"
)

// Reader is a simulated point card reader/writer
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

// inserted is reached once a card is in the reader or the insertion was
// given up
func inserted(s State) bool {
	return s != NoMedium && s != Presenting && s != Verifying
}

// BeginInsertion opens the slot and waits until the operator has inserted
// a card
func (r *Reader) BeginInsertion(ctx context.Context, h posdummy.Handle, timeout time.Duration) error {
	return r.Await(ctx, h, posdummy.Wait[State]{
		Kind:  KindBeginInsertion,
		Kick:  r.cat.beginInsertion,
		Until: inserted,
	}, timeout)
}

// EndInsertion closes the slot. The tracks selected with SetTracksToRead
// are then reported as a Data event, or an Error event if any of them
// cannot be read. Without a card in the reader the slot is cleared and
// ErrNotFound returned.
func (r *Reader) EndInsertion(h posdummy.Handle) error {
	return r.transition(h, KindEndInsertion, r.cat.endInsertion)
}

// BeginRemoval ejects the card and waits until it has been taken out
func (r *Reader) BeginRemoval(ctx context.Context, h posdummy.Handle, timeout time.Duration) error {
	return r.Await(ctx, h, posdummy.Wait[State]{
		Kind:  KindBeginRemoval,
		Kick:  r.cat.beginRemoval,
		Until: func(s State) bool { return s == NoMedium },
	}, timeout)
}

// EndRemoval completes a removal
func (r *Reader) EndRemoval(h posdummy.Handle) error {
	return r.transition(h, KindEndRemoval, r.cat.endRemoval)
}

// SetTracksToRead selects the tracks reported after an insertion
func (r *Reader) SetTracksToRead(h posdummy.Handle, mask TrackMask) error {
	return r.transition(h, KindTracksToRead, r.cat.setTracks(mask))
}

// TracksToRead returns the tracks reported after an insertion
func (r *Reader) TracksToRead() TrackMask {
	var mask TrackMask
	r.Inspect(func(State) { mask = r.cat.tracks })
	return mask
}

// PrintWrite prints text and encodes tracks on the card in the reader.
// It takes the configured write duration.
func (r *Reader) PrintWrite(ctx context.Context, h posdummy.Handle, req PrintRequest, timeout time.Duration) error {
	_, err := r.Dispatch(ctx, h, posdummy.Request{Kind: KindPrintWrite, Params: req}, timeout)
	return err
}

// CleanCard runs a cleaning cycle with the cleaning card
func (r *Reader) CleanCard(h posdummy.Handle) error {
	return r.transition(h, KindCleanCard, r.cat.cleanCard)
}

// Card returns a copy of the card in the reader, or nil
func (r *Reader) Card() *Card {
	var card *Card
	r.Inspect(func(State) { card = r.cat.snapshot() })
	return card
}

// Cards returns a copy of the catalogue including all writes so far
func (r *Reader) Cards() []Card {
	var out []Card
	r.Inspect(func(State) {
		out = make([]Card, len(r.cat.cards))
		for i, c := range r.cat.cards {
			out[i] = c.Clone()
		}
	})
	return out
}

// transition applies fn even when it reports a failure, so a failing call
// can still move the reader
func (r *Reader) transition(h posdummy.Handle, kind posdummy.Kind, fn func(State) (posdummy.Step[State], error)) error {
	var failed error
	if err := r.Transition(h, func(state State) (posdummy.Step[State], error) {
		step, err := fn(state)
		failed = err
		return step, nil
	}); err != nil {
		return posdummy.NewOperationError(kind, r.Name(), err, "")
	}
	if failed == nil {
		return nil
	}
	var opErr *posdummy.OperationError
	if errors.As(failed, &opErr) {
		opErr.Op, opErr.Device = kind, r.Name()
	}
	return failed
}
