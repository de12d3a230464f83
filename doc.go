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

/*
Package posdummy provides the core of simulated point-of-sale peripherals.

A simulated device is a small state machine. Each state shows a prompt to a
Provider, which stands in for the person operating the hardware: it picks an
option, lets the prompt time out, or has it withdrawn. The answer moves the
machine to its next state and may produce events for the application.

Features:
  - Generic Device[S] driving any Category state machine on a background worker
  - One asynchronous operation at a time per device, with busy rejection
  - Waits for a target state (card inserted, card removed) with timeouts
  - Claim/enable sessions per device slot with event listeners
  - Observers that see every event, delivered or dropped
  - Providers for tests, scripted runs, automatic answers and operator consoles

Device categories live in sub-packages:

  - rfid: RFID scanner reading, writing, locking and disabling tags of labels
  - pointcard: point card reader/writer with tracks and a print area
  - smartcard: smart card reader/writer with a readiness window
  - pinpad: PIN pad with encrypted PIN results

Basic Usage:

	import (
	    "github.com/ZaparooProject/go-posdummy/pinpad"
	    "github.com/ZaparooProject/go-posdummy/stimulus"
	)

	provider, err := stimulus.NewConsole(os.Stdin, os.Stdout)
	if err != nil {
	    log.Fatal(err)
	}
	defer provider.Close()

	pad, err := pinpad.New("pinpad", nil, provider)
	if err != nil {
	    log.Fatal(err)
	}
	defer pad.Close()

	h, err := pad.Claim(0, posdummy.ListenerFunc(func(ev posdummy.Event) {
	    fmt.Printf("%s: %v\n", ev.Kind, ev.Payload)
	}))
	if err != nil {
	    log.Fatal(err)
	}
	_ = pad.SetEnabled(h, true)

	res, err := pad.EnterPIN(ctx, h, 30*time.Second)
	if err != nil {
	    log.Fatal(err)
	}
	fmt.Println(res.Status, res.KeyID)

Error Handling:

Failures are *OperationError values wrapping one of the sentinel errors:

	if errors.Is(err, posdummy.ErrBusy) {
	    // another operation is still pending
	}

Thread Safety:

Devices are safe for concurrent use. Listeners are called without any
device lock held and may call back into the device.
*/
package posdummy
