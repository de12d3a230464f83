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
	"strings"
	"sync"

	posdummy "github.com/ZaparooProject/go-posdummy"
)

// ScriptTimeout is the script answer that lets a prompt time out
const ScriptTimeout = "!timeout"

// Script answers prompts with a fixed list of option labels or indexes.
// Once the list is used up, prompts are held until they time out.
type Script struct {
	answers []string
	missed  []string
	mu      sync.Mutex
}

// NewScript creates a script of answers
func NewScript(answers ...string) *Script {
	return &Script{answers: answers}
}

// Present answers p with the next scripted answer. An answer that matches
// no option of p is recorded as missed and times the prompt out.
func (s *Script) Present(ctx context.Context, p posdummy.Prompt) posdummy.Stimulus {
	s.mu.Lock()
	if len(s.answers) == 0 {
		s.mu.Unlock()
		return hold(ctx, p, nil)
	}
	answer := s.answers[0]
	s.answers = s.answers[1:]
	s.mu.Unlock()

	if strings.EqualFold(answer, ScriptTimeout) {
		return posdummy.TimedOut
	}
	if stim, ok := Match(p, answer); ok {
		return stim
	}

	s.mu.Lock()
	s.missed = append(s.missed, answer)
	s.mu.Unlock()
	return posdummy.TimedOut
}

// Remaining returns how many answers are left
func (s *Script) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.answers)
}

// Missed returns the answers that matched no option
func (s *Script) Missed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.missed...)
}
