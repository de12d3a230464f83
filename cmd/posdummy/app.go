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
	"os"
	"path/filepath"
	"sync"
	"time"

	posdummy "github.com/ZaparooProject/go-posdummy"
	"github.com/ZaparooProject/go-posdummy/internal/api"
	"github.com/ZaparooProject/go-posdummy/internal/config"
	"github.com/ZaparooProject/go-posdummy/internal/hub"
	"github.com/ZaparooProject/go-posdummy/internal/journal"
	"github.com/ZaparooProject/go-posdummy/internal/logger"
	"github.com/ZaparooProject/go-posdummy/pinpad"
	"github.com/ZaparooProject/go-posdummy/pointcard"
	"github.com/ZaparooProject/go-posdummy/rfid"
	"github.com/ZaparooProject/go-posdummy/smartcard"
	"github.com/ZaparooProject/go-posdummy/stimulus"
	"go.uber.org/zap"
)

// app owns every component of the daemon
type app struct {
	provider posdummy.Provider
	loader   *config.Loader
	cfg      *config.Config
	logs     *logger.Logger
	log      *zap.Logger
	journal  *journal.Journal
	hub      *hub.Hub
	server   *api.Server
	registry *posdummy.Registry
	auto     *stimulus.Auto
	console  *stimulus.Console
	sessions []session
	wg       sync.WaitGroup
}

func newApp(ctx context.Context, f *flags) (*app, error) {
	loader, err := config.Load(*f.config)
	if err != nil {
		return nil, err
	}
	cfg := *loader.Get()
	applyFlags(&cfg, f)

	logs, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a := &app{
		loader:   loader,
		cfg:      &cfg,
		logs:     logs,
		log:      logs.Module("posdummy"),
		registry: posdummy.NewRegistry(),
	}
	if file := loader.File(); file != "" {
		a.log.Info("configuration loaded", zap.String("file", file))
	}

	if err := a.openProvider(ctx); err != nil {
		_ = logs.Close()
		return nil, err
	}
	return a, nil
}

func applyFlags(cfg *config.Config, f *flags) {
	if *f.debug {
		cfg.Log.Level = "debug"
	}
	if *f.stimulus != "" {
		cfg.Stimulus.Mode = *f.stimulus
	}
	if *f.port != "" {
		cfg.Stimulus.Port = *f.port
		if *f.stimulus == "" {
			cfg.Stimulus.Mode = "serial"
		}
	}
	if *f.baud > 0 {
		cfg.Stimulus.Baud = *f.baud
	}
	if *f.labels != "" {
		cfg.Devices.RFID.Labels = *f.labels
	}
	if *f.devices != "" {
		d := &cfg.Devices
		d.RFID.Enabled = selected(*f.devices, "rfid")
		d.PointCard.Enabled = selected(*f.devices, "pointcard")
		d.SmartCard.Enabled = selected(*f.devices, "smartcard")
		d.PINPad.Enabled = selected(*f.devices, "pinpad")
	}
}

func (a *app) openProvider(ctx context.Context) error {
	s := a.cfg.Stimulus
	log := a.logs.Module("stimulus")

	switch s.Mode {
	case "auto", "":
		auto, err := stimulus.NewAuto(s.AutoDelay,
			stimulus.WithLogger(log),
			stimulus.WithChooser(stimulus.RandomChooser(s.Seed, s.Bias)))
		if err != nil {
			return err
		}
		a.auto = auto
		a.provider = auto
	case "console":
		console, err := stimulus.NewConsole(os.Stdin, os.Stdout, stimulus.WithLogger(log))
		if err != nil {
			return err
		}
		a.console = console
		a.provider = console
	case "serial":
		port := s.Port
		if port == "" {
			ports, err := stimulus.DetectPorts(stimulus.PortFilter{Ignore: s.IgnorePorts, Blocklist: s.Blocklist})
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				return errors.New("no serial port found for the serial stimulus")
			}
			port = ports[0].Name
			a.log.Info("serial port detected", zap.Stringer("port", ports[0]))
		}
		console, err := stimulus.OpenSerial(ctx, port, s.Baud, stimulus.WithLogger(log))
		if err != nil {
			return err
		}
		a.console = console
		a.provider = console
	default:
		return fmt.Errorf("unknown stimulus mode %q", s.Mode)
	}
	a.log.Info("stimulus ready", zap.String("mode", s.Mode))
	return nil
}

func (a *app) start(ctx context.Context) error {
	var observers []posdummy.Option
	if a.cfg.Journal.Enabled {
		j, err := a.openJournal()
		if err != nil {
			return err
		}
		a.journal = j
		observers = append(observers, posdummy.WithObserver(j))
	}
	a.hub = hub.New(a.logs.Module("hub"))
	observers = append(observers, posdummy.WithObserver(a.hub))

	if err := a.buildDevices(observers); err != nil {
		return err
	}
	if len(a.sessions) == 0 {
		return errors.New("no devices enabled")
	}

	if a.cfg.Server.Enabled {
		opts := []api.Option{api.WithLogger(a.logs.Module("api")), api.WithStream(a.hub)}
		if a.journal != nil {
			opts = append(opts, api.WithEvents(a.journal))
		}
		a.server = api.NewServer(a.cfg.Server, a.registry, opts...)
		if _, err := a.server.Start(); err != nil {
			return err
		}
	}

	a.loader.Watch(a.reload, func(err error) {
		a.log.Warn("configuration reload failed", zap.Error(err))
	})

	for _, s := range a.sessions {
		a.wg.Add(1)
		go func(s session) {
			defer a.wg.Done()
			s.run(ctx)
		}(s)
	}
	a.log.Info("simulators running", zap.Int("devices", len(a.sessions)))
	return nil
}

func (a *app) openJournal() (*journal.Journal, error) {
	dsn := a.cfg.Journal.DSN
	if dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}
	return journal.Open(dsn,
		journal.WithLogger(a.logs.Module("journal")),
		journal.WithRetain(a.cfg.Journal.Retain))
}

// reload applies the settings that can change while running
func (a *app) reload(cfg *config.Config) {
	if err := a.logs.SetLevel(cfg.Log.Level); err != nil {
		a.log.Warn("invalid log level", zap.String("level", cfg.Log.Level), zap.Error(err))
	}
	if a.auto != nil && cfg.Stimulus.AutoDelay != a.auto.Delay() {
		a.auto.SetDelay(cfg.Stimulus.AutoDelay)
		a.log.Info("auto stimulus delay changed", zap.Duration("delay", cfg.Stimulus.AutoDelay))
	}
}

func (a *app) buildDevices(observers []posdummy.Option) error {
	d := a.cfg.Devices
	opts := func(name string) []posdummy.Option {
		return append([]posdummy.Option{
			posdummy.WithLogger(a.logs.Module(name)),
			posdummy.WithRegistry(a.registry),
		}, observers...)
	}

	if d.RFID.Enabled {
		cfg := rfid.DefaultConfig()
		if d.RFID.Labels != "" {
			labels, err := rfid.LoadLabels(d.RFID.Labels, cfg.Protocols)
			if err != nil {
				return err
			}
			cfg.Labels = labels
		}
		if d.RFID.ReadTimerInterval > 0 {
			cfg.ReadTimerInterval = d.RFID.ReadTimerInterval
		}
		dev, err := rfid.New("rfid", cfg, a.provider, opts("rfid")...)
		if err != nil {
			return err
		}
		a.sessions = append(a.sessions, session{name: "rfid", run: a.rfidSession(dev)})
	}

	if d.PointCard.Enabled {
		cfg := pointcard.DefaultConfig()
		pc := d.PointCard
		cfg.EntranceSensor = pc.EntranceSensor
		cfg.StatusToReadReady = pc.StatusToReadReady
		cfg.RemovalTimeout = pc.RemovalTimeout
		cfg.WriteDuration = pc.WriteDuration
		cfg.LineCount = pc.LineCount
		cfg.LineLength = pc.LineLength
		dev, err := pointcard.New("pointcard", cfg, a.provider, opts("pointcard")...)
		if err != nil {
			return err
		}
		a.sessions = append(a.sessions, session{name: "pointcard", run: a.pointCardSession(dev)})
	}

	if d.SmartCard.Enabled {
		cfg := smartcard.DefaultConfig()
		if d.SmartCard.CardReadyDelay > 0 {
			cfg.CardReadyDelay = d.SmartCard.CardReadyDelay
		}
		dev, err := smartcard.New("smartcard", cfg, a.provider, opts("smartcard")...)
		if err != nil {
			return err
		}
		a.sessions = append(a.sessions, session{name: "smartcard", run: a.smartCardSession(dev)})
	}

	if d.PINPad.Enabled {
		cfg := &pinpad.Config{
			Message:      d.PINPad.Message,
			MinPINLength: d.PINPad.MinPINLength,
			MaxPINLength: d.PINPad.MaxPINLength,
		}
		dev, err := pinpad.New("pinpad", cfg, a.provider, opts("pinpad")...)
		if err != nil {
			return err
		}
		a.sessions = append(a.sessions, session{name: "pinpad", run: a.pinPadSession(dev)})
	}
	return nil
}

// shutdown stops the sessions, then the devices, then the outer services.
// The context given to start must be cancelled first.
func (a *app) shutdown() error {
	a.wg.Wait()

	var errs []error
	if err := a.registry.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close devices: %w", err))
	}
	if a.server != nil {
		timeout := a.cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		cancel()
	}
	if a.hub != nil {
		a.hub.Close()
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close journal: %w", err))
		}
		a.log.Info("journal closed", zap.Any("stats", a.journal.Stats()))
	}
	if a.console != nil {
		_ = a.console.Close()
	}

	a.log.Info("shutdown complete")
	if err := a.logs.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
