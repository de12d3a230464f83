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
	"strconv"
	"strings"
	"time"

	posdummy "github.com/ZaparooProject/go-posdummy"
)

// Match resolves an operator answer against the options of p. The answer
// may be an option index or a label, compared case-insensitively.
func Match(p posdummy.Prompt, answer string) (posdummy.Stimulus, bool) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(answer); err == nil {
		if n >= 0 && n < len(p.Options) {
			return posdummy.Stimulus(n), true
		}
		return 0, false
	}
	for i, opt := range p.Options {
		if strings.EqualFold(opt, answer) {
			return posdummy.Stimulus(i), true
		}
	}
	return 0, false
}

// deadline returns the channel that fires when a prompt runs out, or nil for
// prompts that never time out
func deadline(timeout time.Duration) (<-chan time.Time, func()) {
	if timeout < 0 {
		return nil, func() {}
	}
	timer := time.NewTimer(timeout)
	return timer.C, func() { timer.Stop() }
}

// hold waits out a prompt nobody answers
func hold(ctx context.Context, p posdummy.Prompt, done <-chan struct{}) posdummy.Stimulus {
	expired, stop := deadline(p.Timeout)
	defer stop()
	select {
	case <-expired:
		return posdummy.TimedOut
	case <-ctx.Done():
		return posdummy.Aborted
	case <-done:
		return posdummy.Aborted
	}
}
