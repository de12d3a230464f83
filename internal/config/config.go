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

// Package config loads the simulator daemon configuration from a file,
// the environment and built-in defaults.
package config

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. POSDUMMY_LOG_LEVEL
const EnvPrefix = "POSDUMMY"

// Config is the daemon configuration
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Server   ServerConfig   `mapstructure:"server"`
	Journal  JournalConfig  `mapstructure:"journal"`
	Stimulus StimulusConfig `mapstructure:"stimulus"`
	Devices  DevicesConfig  `mapstructure:"devices"`
}

// LogConfig configures logging
type LogConfig struct {
	Level  string        `mapstructure:"level"`
	Format string        `mapstructure:"format"`
	Output string        `mapstructure:"output"`
	File   LogFileConfig `mapstructure:"file"`
}

// LogFileConfig configures rotated log files
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// ServerConfig configures the control API
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Enabled         bool          `mapstructure:"enabled"`
}

// JournalConfig configures the event journal
type JournalConfig struct {
	DSN     string `mapstructure:"dsn"`
	Retain  int    `mapstructure:"retain"`
	Enabled bool   `mapstructure:"enabled"`
}

// StimulusConfig selects where device stimuli come from
type StimulusConfig struct {
	// Mode is auto, console or serial
	Mode      string        `mapstructure:"mode"`
	Port      string        `mapstructure:"port"`
	AutoDelay time.Duration `mapstructure:"auto_delay"`
	Seed      int64         `mapstructure:"seed"`
	Bias      float64       `mapstructure:"bias"`
	Baud      int           `mapstructure:"baud"`
	// IgnorePorts and Blocklist (USB VID:PID) are skipped when the serial
	// port is picked automatically
	IgnorePorts []string `mapstructure:"ignore_ports"`
	Blocklist   []string `mapstructure:"blocklist"`
}

// DevicesConfig configures the simulated devices
type DevicesConfig struct {
	RFID      RFIDConfig      `mapstructure:"rfid"`
	PointCard PointCardConfig `mapstructure:"pointcard"`
	SmartCard SmartCardConfig `mapstructure:"smartcard"`
	PINPad    PINPadConfig    `mapstructure:"pinpad"`
}

// RFIDConfig configures the RFID scanner
type RFIDConfig struct {
	Labels            string        `mapstructure:"labels"`
	ReadTimerInterval time.Duration `mapstructure:"read_timer_interval"`
	Enabled           bool          `mapstructure:"enabled"`
}

// PointCardConfig configures the point card reader/writer
type PointCardConfig struct {
	StatusToReadReady time.Duration `mapstructure:"status_to_read_ready"`
	RemovalTimeout    time.Duration `mapstructure:"removal_timeout"`
	WriteDuration     time.Duration `mapstructure:"write_duration"`
	LineCount         int           `mapstructure:"line_count"`
	LineLength        int           `mapstructure:"line_length"`
	EntranceSensor    bool          `mapstructure:"entrance_sensor"`
	Enabled           bool          `mapstructure:"enabled"`
}

// SmartCardConfig configures the smart card reader/writer
type SmartCardConfig struct {
	CardReadyDelay time.Duration `mapstructure:"card_ready_delay"`
	Enabled        bool          `mapstructure:"enabled"`
}

// PINPadConfig configures the PIN pad
type PINPadConfig struct {
	Message      string `mapstructure:"message"`
	MinPINLength int    `mapstructure:"min_pin_length"`
	MaxPINLength int    `mapstructure:"max_pin_length"`
	Enabled      bool   `mapstructure:"enabled"`
}

// Loader holds the configuration and keeps it current while watching
type Loader struct {
	v   *viper.Viper
	cfg *Config
	mu  sync.RWMutex
}

// Load reads the configuration. An empty path searches for posdummy.yaml
// in ./config and the working directory; a missing file leaves the
// defaults in place.
func Load(path string) (*Loader, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("posdummy")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return &Loader{v: v, cfg: cfg}, nil
}

// Get returns the current configuration
func (l *Loader) Get() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// File returns the configuration file in use, if any
func (l *Loader) File() string {
	return l.v.ConfigFileUsed()
}

// Watch reloads the configuration whenever the file changes and hands
// the new configuration to callback. A file that fails to parse keeps
// the previous configuration and reports the error to onError.
func (l *Loader) Watch(callback func(*Config), onError func(error)) {
	l.v.OnConfigChange(func(fsnotify.Event) {
		next := &Config{}
		if err := l.v.Unmarshal(next); err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}

		l.mu.Lock()
		l.cfg = next
		l.mu.Unlock()

		if callback != nil {
			callback(next)
		}
	})
	l.v.WatchConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file.path", "./logs")
	v.SetDefault("log.file.filename", "posdummy.log")
	v.SetDefault("log.file.max_size", 100)
	v.SetDefault("log.file.max_age", 30)
	v.SetDefault("log.file.max_backups", 7)
	v.SetDefault("log.file.compress", true)

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.addr", "127.0.0.1:8089")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", "5s")

	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.dsn", "./data/posdummy.db")
	v.SetDefault("journal.retain", 10000)

	v.SetDefault("stimulus.mode", "auto")
	v.SetDefault("stimulus.auto_delay", "2s")
	v.SetDefault("stimulus.seed", 1)
	v.SetDefault("stimulus.bias", 0.9)
	v.SetDefault("stimulus.baud", 115200)

	v.SetDefault("devices.rfid.enabled", true)
	v.SetDefault("devices.rfid.read_timer_interval", "1s")
	v.SetDefault("devices.pointcard.enabled", true)
	v.SetDefault("devices.pointcard.entrance_sensor", true)
	v.SetDefault("devices.pointcard.status_to_read_ready", "500ms")
	v.SetDefault("devices.pointcard.removal_timeout", "5s")
	v.SetDefault("devices.pointcard.write_duration", "500ms")
	v.SetDefault("devices.pointcard.line_count", 4)
	v.SetDefault("devices.pointcard.line_length", 16)
	v.SetDefault("devices.smartcard.enabled", true)
	v.SetDefault("devices.smartcard.card_ready_delay", "1s")
	v.SetDefault("devices.pinpad.enabled", true)
	v.SetDefault("devices.pinpad.message", "Ready")
	v.SetDefault("devices.pinpad.min_pin_length", 4)
	v.SetDefault("devices.pinpad.max_pin_length", 4)
}
