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

// Command posdummy runs the POS peripheral simulators as a daemon. Device
// events are logged, journaled and streamed over a websocket, and the
// devices are driven by demo sessions until the process is interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ZaparooProject/go-posdummy/stimulus"
	"go.uber.org/zap"
)

type flags struct {
	config    *string
	devices   *string
	stimulus  *string
	port      *string
	labels    *string
	baud      *int
	listPorts *bool
	debug     *bool
}

func parseFlags() *flags {
	f := &flags{
		config:   flag.String("config", "", "Configuration file (default: ./config/posdummy.yaml or ./posdummy.yaml)"),
		devices:  flag.String("devices", "", "Comma separated devices to run (rfid,pointcard,smartcard,pinpad)"),
		stimulus: flag.String("stimulus", "", "Stimulus source: auto, console or serial"),
		port:     flag.String("port", "", "Serial port for the serial stimulus (e.g., /dev/ttyUSB0 or COM3)"),
		labels:   flag.String("labels", "", "RFID label file"),
		baud:     flag.Int("baud", 0, "Serial line speed"),
		listPorts: flag.Bool("list-ports", false,
			"List serial ports and exit"),
		debug: flag.Bool("debug", false, "Enable debug logging"),
	}
	flag.Parse()
	return f
}

func main() {
	if run() != 0 {
		os.Exit(1)
	}
}

func run() int {
	f := parseFlags()

	if *f.listPorts {
		ports, err := stimulus.DetectPorts(stimulus.PortFilter{})
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		if len(ports) == 0 {
			_, _ = fmt.Println("No serial ports found")
		}
		for _, p := range ports {
			_, _ = fmt.Println(p.String())
		}
		return 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	app, err := newApp(ctx, f)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if err := app.start(ctx); err != nil {
		app.log.Error("startup failed", zap.Error(err))
		_ = app.shutdown()
		return 1
	}

	sig := <-sigChan
	app.log.Info("shutting down", zap.String("signal", sig.String()))
	cancel()
	if err := app.shutdown(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// selected reports whether name is in the comma separated list; an empty
// list selects everything
func selected(list, name string) bool {
	if strings.TrimSpace(list) == "" {
		return true
	}
	for _, item := range strings.Split(list, ",") {
		if strings.EqualFold(strings.TrimSpace(item), name) {
			return true
		}
	}
	return false
}
