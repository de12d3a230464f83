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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	posdummy "github.com/ZaparooProject/go-posdummy"
	"go.uber.org/zap"
)

// Console asks an operator. Prompts from several devices take turns: only
// one prompt is on screen and waiting for input at a time. An empty line
// picks the default option.
type Console struct {
	out       io.Writer
	closer    io.Closer
	log       *zap.Logger
	lines     chan string
	turn      chan struct{}
	done      chan struct{}
	readerErr error
	newline   string
	outMu     sync.Mutex
	errMu     sync.Mutex
	closeOnce sync.Once
}

// NewConsole starts reading operator input from in and writes prompts to
// out. If in is an io.Closer it is closed by Close.
func NewConsole(in io.Reader, out io.Writer, opts ...Option) (*Console, error) {
	if in == nil || out == nil {
		return nil, errors.New("console needs both input and output")
	}
	cfg, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}

	c := &Console{
		out:     out,
		log:     cfg.log,
		newline: cfg.newline,
		lines:   make(chan string),
		turn:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	if closer, ok := in.(io.Closer); ok {
		c.closer = closer
	}
	go c.readLoop(in)
	return c, nil
}

// readLoop turns input into lines. CR, LF and CRLF all end a line so serial
// terminals work unchanged.
func (c *Console) readLoop(in io.Reader) {
	r := bufio.NewReader(in)
	var line strings.Builder
	lastCR := false
	for {
		b, err := r.ReadByte()
		if err != nil {
			if !errors.Is(err, io.EOF) && !c.closed() {
				c.setErr(err)
			}
			return
		}
		switch {
		case b == '\n' && lastCR:
			lastCR = false
			continue
		case b == '\r' || b == '\n':
			lastCR = b == '\r'
			if !c.send(line.String()) {
				return
			}
			line.Reset()
		default:
			lastCR = false
			line.WriteByte(b)
		}
	}
}

func (c *Console) send(line string) bool {
	select {
	case c.lines <- line:
		return true
	case <-c.done:
		return false
	}
}

func (c *Console) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Console) setErr(err error) {
	c.errMu.Lock()
	c.readerErr = err
	c.errMu.Unlock()
	c.log.Warn("console input failed", zap.Error(err))
}

// Err returns the error that stopped input, if any
func (c *Console) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.readerErr
}

// Present shows p and waits for an answer
func (c *Console) Present(ctx context.Context, p posdummy.Prompt) posdummy.Stimulus {
	select {
	case c.turn <- struct{}{}:
	case <-ctx.Done():
		return posdummy.Aborted
	case <-c.done:
		return posdummy.Aborted
	}
	defer func() { <-c.turn }()

	expired, stop := deadline(p.Timeout)
	defer stop()

	c.render(p)
	for {
		select {
		case line := <-c.lines:
			if strings.TrimSpace(line) == "" {
				return posdummy.Stimulus(p.Default)
			}
			if stim, ok := Match(p, line); ok {
				return stim
			}
			c.println(fmt.Sprintf("unknown option %q", strings.TrimSpace(line)))
		case <-expired:
			c.println("timed out")
			return posdummy.TimedOut
		case <-ctx.Done():
			c.println("withdrawn")
			return posdummy.Aborted
		case <-c.done:
			return posdummy.Aborted
		}
	}
}

// Display shows a display prompt without waiting for input
func (c *Console) Display(p posdummy.Prompt) {
	c.println(heading(p))
}

// Close stops the console. Pending prompts are withdrawn.
func (c *Console) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		if c.closer != nil {
			err = c.closer.Close()
		}
	})
	return err
}

func (c *Console) render(p posdummy.Prompt) {
	var b strings.Builder
	b.WriteString(heading(p))
	b.WriteString(c.newline)
	for i, opt := range p.Options {
		fmt.Fprintf(&b, "  %d) %s", i, opt)
		if i == p.Default {
			b.WriteString(" (default)")
		}
		b.WriteString(c.newline)
	}
	b.WriteString("> ")

	c.outMu.Lock()
	defer c.outMu.Unlock()
	if _, err := io.WriteString(c.out, b.String()); err != nil {
		c.log.Debug("console write failed", zap.Error(err))
	}
}

func (c *Console) println(msg string) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	if _, err := io.WriteString(c.out, msg+c.newline); err != nil {
		c.log.Debug("console write failed", zap.Error(err))
	}
}

func heading(p posdummy.Prompt) string {
	if p.Title == "" {
		return p.Message
	}
	return "[" + p.Title + "] " + p.Message
}
