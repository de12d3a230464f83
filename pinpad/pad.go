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

package pinpad

import (
	"context"
	"time"

	posdummy "github.com/ZaparooProject/go-posdummy"
)

// Pad is a simulated PIN pad
type Pad struct {
	*posdummy.Device[State]
	cat *category
}

// New creates a pad. A nil cfg uses DefaultConfig.
func New(name string, cfg *Config, provider posdummy.Provider, opts ...posdummy.Option) (*Pad, error) {
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
	return &Pad{Device: dev, cat: cat}, nil
}

// EnterPIN waits for the operator to enter a PIN. Cancelled and timed out
// entries are not errors; they are reported in the result status.
func (p *Pad) EnterPIN(ctx context.Context, h posdummy.Handle, timeout time.Duration) (PINResult, error) {
	v, err := p.Dispatch(ctx, h, posdummy.Request{Kind: KindEnterPIN}, timeout)
	if err != nil {
		return PINResult{}, err
	}
	res, _ := v.(PINResult)
	return res, nil
}

// PIN decrypts the PIN of a successful result
func (r PINResult) PIN() (string, error) {
	return Decrypt(r.KeyID, r.EncryptedPIN)
}
