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
	"errors"
	"fmt"
	"io/fs"

	posdummy "github.com/ZaparooProject/go-posdummy"
	"github.com/ZaparooProject/go-posdummy/internal/transport"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

// DefaultBaud is the line speed used when none is given
const DefaultBaud = 115200

// OpenSerial opens an operator console on a serial port. Opening is retried
// while the port does not exist yet, which covers USB adapters that are
// still enumerating.
func OpenSerial(ctx context.Context, port string, baud int, opts ...Option) (*Console, error) {
	if port == "" {
		return nil, posdummy.NewOperationError("open", port, posdummy.ErrInvalidParameter, "empty port name")
	}
	if baud <= 0 {
		baud = DefaultBaud
	}
	cfg, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	retry := transport.RetryConfig{
		Description: port,
		MaxRetries:  cfg.retries,
		RetryDelay:  cfg.retryDelay,
		OnRetry: func(attempt int) {
			cfg.log.Debug("retrying serial open", zap.String("port", port), zap.Int("attempt", attempt))
		},
	}
	p, err := transport.WithRetry(ctx, retry, func(int) (serial.Port, bool, error) {
		p, err := serial.Open(port, mode)
		if err == nil {
			return p, false, nil
		}
		if isPortMissing(err) {
			return nil, true, nil
		}
		return nil, false, posdummy.NewOperationError("open", port, posdummy.ErrHardware, err.Error())
	})
	if err != nil {
		return nil, fmt.Errorf("open serial console %s: %w", port, err)
	}

	cfg.log.Info("serial console opened", zap.String("port", port), zap.Int("baud", baud))
	return NewConsole(p, p, append(opts, WithNewline("\r\n"))...)
}

func isPortMissing(err error) bool {
	if errors.Is(err, fs.ErrNotExist) {
		return true
	}
	var portErr *serial.PortError
	return errors.As(err, &portErr) && portErr.Code() == serial.PortNotFound
}
