// go-dps
// Copyright (c) 2025 The OpenDPS Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-dps.
//
// go-dps is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-dps is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-dps; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// deviceEnvVar names the environment variable checked when no --device flag
// is given, matching the behavior of the original python tooling.
const deviceEnvVar = "DPSIF"

// fileConfig is the persistent dpsctl configuration, read from a TOML file.
type fileConfig struct {
	// Device is the default device: a serial port path or an IP address
	Device string `toml:"device"`
	// BaudRate overrides the serial baud rate
	BaudRate int `toml:"baud_rate"`
	// Timeout is the exchange timeout
	Timeout duration `toml:"timeout"`
}

// duration wraps time.Duration for TOML decoding of values like "2s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

// defaultConfigPath returns the conventional config location, empty when the
// user config directory cannot be determined.
func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "dpsctl", "config.toml")
}

// loadFileConfig reads the config file at path. A missing file at the
// default location is not an error; a missing file named explicitly is.
func loadFileConfig(path string, explicit bool) (fileConfig, error) {
	var cfg fileConfig
	if path == "" {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return fileConfig{}, nil
		}
		return fileConfig{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return cfg, nil
}

// resolveDevice picks the device to talk to: the flag wins, then the
// environment, then the config file.
func resolveDevice(flagValue string, cfg fileConfig) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(deviceEnvVar); env != "" {
		return env
	}
	return cfg.Device
}
