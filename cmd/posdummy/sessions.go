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

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	posdummy "github.com/ZaparooProject/go-posdummy"
	"github.com/ZaparooProject/go-posdummy/pinpad"
	"github.com/ZaparooProject/go-posdummy/pointcard"
	"github.com/ZaparooProject/go-posdummy/rfid"
	"github.com/ZaparooProject/go-posdummy/smartcard"
	"go.uber.org/zap"
)

const (
	operationTimeout = 30 * time.Second
	retryPause       = time.Second
)

// session is an application loop driving one device
type session struct {
	run  func(ctx context.Context)
	name string
}

type claimer interface {
	Claim(index int, l posdummy.Listener) (posdummy.Handle, error)
	SetEnabled(h posdummy.Handle, enabled bool) error
	Release(h posdummy.Handle) error
}

// open claims and enables slot 0 of d with a listener that logs every event
func (a *app) open(name string, d claimer) (posdummy.Handle, *zap.Logger, error) {
	log := a.logs.Module(name + ".session")
	listener := posdummy.ListenerFunc(func(ev posdummy.Event) {
		fields := []zap.Field{zap.String("kind", ev.Kind.String())}
		if ev.Payload != nil {
			fields = append(fields, zap.Any("payload", ev.Payload))
		}
		if ev.Err != nil {
			fields = append(fields, zap.Error(ev.Err))
		}
		log.Info("event", fields...)
	})

	h, err := d.Claim(0, listener)
	if err != nil {
		return posdummy.Handle{}, nil, fmt.Errorf("failed to claim %s: %w", name, err)
	}
	if err := d.SetEnabled(h, true); err != nil {
		_ = d.Release(h)
		return posdummy.Handle{}, nil, fmt.Errorf("failed to enable %s: %w", name, err)
	}
	return h, log, nil
}

// pause waits before the next attempt and reports whether to go on
func pause(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(retryPause):
		return true
	}
}

// failed logs err unless the session is ending
func failed(ctx context.Context, log *zap.Logger, msg string, err error) bool {
	if err == nil {
		return false
	}
	if ctx.Err() != nil || errors.Is(err, posdummy.ErrClosed) {
		return true
	}
	log.Warn(msg, zap.Error(err))
	return true
}

func (a *app) rfidSession(s *rfid.Scanner) func(context.Context) {
	return func(ctx context.Context) {
		h, log, err := a.open(s.Name(), s)
		if err != nil {
			a.log.Error("session not started", zap.Error(err))
			return
		}

		req := rfid.ReadRequest{Cmd: rfid.ReadID | rfid.ReadFullUserData}
		if err := s.StartReadTags(h, req); err != nil {
			log.Error("continuous read not started", zap.Error(err))
			return
		}
		log.Info("continuous read started", zap.Int("labels", len(s.Labels())))

		<-ctx.Done()
		if err := s.StopReadTags(h); err != nil && !errors.Is(err, posdummy.ErrClosed) {
			log.Debug("continuous read not stopped", zap.Error(err))
		}
	}
}

func (a *app) pinPadSession(p *pinpad.Pad) func(context.Context) {
	return func(ctx context.Context) {
		h, log, err := a.open(p.Name(), p)
		if err != nil {
			a.log.Error("session not started", zap.Error(err))
			return
		}

		for ctx.Err() == nil {
			res, err := p.EnterPIN(ctx, h, operationTimeout)
			if failed(ctx, log, "PIN entry failed", err) {
				if !pause(ctx) {
					return
				}
				continue
			}
			if res.Status != pinpad.Success {
				log.Info("PIN entry ended", zap.String("status", string(res.Status)))
				continue
			}
			pin, err := res.PIN()
			if err != nil {
				log.Warn("PIN not decryptable", zap.Error(err))
				continue
			}
			log.Info("PIN entered", zap.String("key_id", res.KeyID), zap.Int("digits", len(pin)))
		}
	}
}

func (a *app) smartCardSession(r *smartcard.Reader) func(context.Context) {
	return func(ctx context.Context) {
		h, log, err := a.open(r.Name(), r)
		if err != nil {
			a.log.Error("session not started", zap.Error(err))
			return
		}

		for ctx.Err() == nil {
			if err := r.BeginInsertion(ctx, h, posdummy.Infinite); failed(ctx, log, "insertion failed", err) {
				if !pause(ctx) {
					return
				}
				continue
			}
			if err := r.EndInsertion(h); !failed(ctx, log, "card not inserted", err) {
				a.exchange(ctx, log, r, h)
			}

			if err := r.BeginRemoval(ctx, h, posdummy.Infinite); failed(ctx, log, "removal failed", err) {
				if !pause(ctx) {
					return
				}
			}
			if err := r.EndRemoval(h); failed(ctx, log, "card not removed", err) && !pause(ctx) {
				return
			}
		}
	}
}

// exchange reads the card and writes it back
func (a *app) exchange(ctx context.Context, log *zap.Logger, r *smartcard.Reader, h posdummy.Handle) {
	data, err := r.ReadData(ctx, h, operationTimeout)
	if failed(ctx, log, "read failed", err) {
		return
	}
	n, err := r.WriteData(ctx, h, data, operationTimeout)
	if failed(ctx, log, "write failed", err) {
		return
	}
	log.Info("card exchanged", zap.Int("read", len(data)), zap.Int("written", n))
}

func (a *app) pointCardSession(r *pointcard.Reader) func(context.Context) {
	return func(ctx context.Context) {
		h, log, err := a.open(r.Name(), r)
		if err != nil {
			a.log.Error("session not started", zap.Error(err))
			return
		}

		lines := max(a.cfg.Devices.PointCard.LineCount, 1)
		visits := 0
		for ctx.Err() == nil {
			if err := r.BeginInsertion(ctx, h, posdummy.Infinite); failed(ctx, log, "insertion failed", err) {
				if !pause(ctx) {
					return
				}
				continue
			}
			if err := r.EndInsertion(h); !failed(ctx, log, "card not inserted", err) {
				visits++
				req := pointcard.PrintRequest{
					Text: fmt.Sprintf("Visit %d", visits),
					Line: visits % lines,
				}
				if err := r.PrintWrite(ctx, h, req, operationTimeout); !failed(ctx, log, "print failed", err) {
					log.Info("card printed", zap.String("text", req.Text))
				}
			}

			if err := r.BeginRemoval(ctx, h, posdummy.Infinite); failed(ctx, log, "removal failed", err) {
				if !pause(ctx) {
					return
				}
			}
			if err := r.EndRemoval(h); failed(ctx, log, "card not removed", err) && !pause(ctx) {
				return
			}
		}
	}
}
