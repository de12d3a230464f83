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
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	posdummy "github.com/ZaparooProject/go-posdummy"
	"go.uber.org/zap"
)

// Auto answers every prompt after a delay, with the default option unless a
// Chooser says otherwise. Prompts that time out before the delay elapses
// time out.
type Auto struct {
	chooser Chooser
	log     *zap.Logger
	delay   atomic.Int64
}

// NewAuto creates an automatic provider
func NewAuto(delay time.Duration, opts ...Option) (*Auto, error) {
	cfg, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	a := &Auto{chooser: cfg.chooser, log: cfg.log}
	a.SetDelay(delay)
	return a, nil
}

// SetDelay changes the answer delay. Prompts already waiting keep theirs.
func (a *Auto) SetDelay(d time.Duration) {
	if d < 0 {
		d = 0
	}
	a.delay.Store(int64(d))
}

// Delay returns the answer delay
func (a *Auto) Delay() time.Duration {
	return time.Duration(a.delay.Load())
}

// Present waits the delay and answers p
func (a *Auto) Present(ctx context.Context, p posdummy.Prompt) posdummy.Stimulus {
	wait := a.Delay()
	timesOut := p.Timeout >= 0 && p.Timeout <= wait
	if timesOut {
		wait = p.Timeout
	}

	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return posdummy.Aborted
		}
	} else if ctx.Err() != nil {
		return posdummy.Aborted
	}

	if timesOut {
		return posdummy.TimedOut
	}
	stim := a.chooser(p)
	a.log.Debug("auto answer", zap.String("prompt", p.Message), zap.Stringer("stimulus", stim))
	return stim
}

// Display logs display prompts
func (a *Auto) Display(p posdummy.Prompt) {
	a.log.Debug("display", zap.String("title", p.Title), zap.String("message", p.Message))
}

// RandomChooser picks the default option with probability bias and any
// option uniformly otherwise
func RandomChooser(seed int64, bias float64) Chooser {
	var mu sync.Mutex
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // simulation only
	return func(p posdummy.Prompt) posdummy.Stimulus {
		mu.Lock()
		defer mu.Unlock()
		if len(p.Options) == 0 || rng.Float64() < bias {
			return posdummy.Stimulus(p.Default)
		}
		return posdummy.Stimulus(rng.Intn(len(p.Options)))
	}
}
