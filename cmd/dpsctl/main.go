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

// dpsctl controls an OpenDPS power supply over a serial port or over the
// network via its wifi bridge.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	dps "github.com/opendps-project/go-dps"
	"github.com/opendps-project/go-dps/transport/uart"
	"github.com/opendps-project/go-dps/transport/udp"
)

type config struct {
	device     *string
	configPath *string
	voltage    *int
	current    *int
	power      *string
	ping       *bool
	status     *bool
	lock       *bool
	unlock     *bool
	upgrade    *string
	force      *bool
	list       *bool
	monitor    *time.Duration
	timeout    *time.Duration
	baudRate   *int
	jsonOut    *bool
	verbose    *bool
}

func parseFlags() *config {
	cfg := &config{
		device: flag.String("device", "",
			"Device to control: serial port path (e.g. /dev/ttyUSB0) or IP address. "+
				"Defaults to the DPSIF environment variable, then the config file."),
		configPath: flag.String("config", "", "Config file path (default: user config dir)"),
		voltage:    flag.Int("voltage", -1, "Set output voltage in millivolts"),
		current:    flag.Int("current", -1, "Set current limit in milliamperes"),
		power:      flag.String("power", "", "Switch the output on or off"),
		ping:       flag.Bool("ping", false, "Ping the device"),
		status:     flag.Bool("status", false, "Print device status"),
		lock:       flag.Bool("lock", false, "Lock the front panel controls"),
		unlock:     flag.Bool("unlock", false, "Unlock the front panel controls"),
		upgrade:    flag.String("upgrade", "", "Flash the given firmware image"),
		force:      flag.Bool("force", false, "Skip the firmware image sanity check"),
		list:       flag.Bool("list", false, "List serial ports and exit"),
		monitor:    flag.Duration("monitor", 0, "Poll and print status at the given interval"),
		timeout:    flag.Duration("timeout", 0, "Exchange timeout (default 1s)"),
		baudRate:   flag.Int("baudrate", 0, "Serial baud rate (default 115200)"),
		jsonOut:    flag.Bool("json", false, "Print machine readable JSON"),
		verbose:    flag.Bool("verbose", false, "Enable verbose logging"),
	}
	flag.StringVar(cfg.device, "d", *cfg.device, "Shorthand for -device")
	flag.Parse()
	return cfg
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.TraceLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()
}

// isNetworkDevice reports whether the device string names a network address
// rather than a serial port.
func isNetworkDevice(device string) bool {
	if host, _, err := net.SplitHostPort(device); err == nil {
		device = host
	}
	return net.ParseIP(device) != nil
}

// resolveTimeout picks the exchange timeout: the flag wins over the config
// file, the default is one second.
func resolveTimeout(cfg *config, fc fileConfig) time.Duration {
	if *cfg.timeout > 0 {
		return *cfg.timeout
	}
	if fc.Timeout.Duration > 0 {
		return fc.Timeout.Duration
	}
	return time.Second
}

func newTransport(device string, cfg *config, fc fileConfig, timeout time.Duration) (dps.Transport, error) {
	if isNetworkDevice(device) {
		transport, err := udp.New(device, udp.WithTimeout(timeout))
		if err != nil {
			return nil, fmt.Errorf("failed to create UDP transport: %w", err)
		}
		return transport, nil
	}

	var opts []uart.Option
	opts = append(opts, uart.WithTimeout(timeout))
	switch {
	case *cfg.baudRate > 0:
		opts = append(opts, uart.WithBaudRate(*cfg.baudRate))
	case fc.BaudRate > 0:
		opts = append(opts, uart.WithBaudRate(fc.BaudRate))
	}

	transport, err := uart.New(device, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create UART transport: %w", err)
	}
	return transport, nil
}

// statusOutput is the JSON shape of a status reading.
type statusOutput struct {
	VIn          uint16 `json:"v_in_mv"`
	VOutSetting  uint16 `json:"v_set_mv"`
	VOut         uint16 `json:"v_out_mv"`
	IOut         uint16 `json:"i_out_ma"`
	ILimit       uint16 `json:"i_limit_ma"`
	PowerEnabled bool   `json:"power_enabled"`
}

func printStatus(status dps.Status, jsonOut bool) error {
	if jsonOut {
		out, err := json.Marshal(statusOutput{
			VIn:          status.VIn,
			VOutSetting:  status.VOutSetting,
			VOut:         status.VOut,
			IOut:         status.IOut,
			ILimit:       status.ILimit,
			PowerEnabled: status.PowerEnabled,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	power := "off"
	if status.PowerEnabled {
		power = "on"
	}
	fmt.Printf("V_in   : %5.2f V\n", float64(status.VIn)/1000)
	fmt.Printf("V_set  : %5.2f V\n", float64(status.VOutSetting)/1000)
	fmt.Printf("V_out  : %5.2f V (%s)\n", float64(status.VOut)/1000, power)
	fmt.Printf("I_out  : %5.3f A\n", float64(status.IOut)/1000)
	fmt.Printf("I_limit: %5.3f A\n", float64(status.ILimit)/1000)
	return nil
}

func listPorts() error {
	ports, err := uart.ListPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("no serial ports found")
		return nil
	}
	for _, port := range ports {
		fmt.Println(port)
	}
	return nil
}

// runOperations executes the requested operations in a fixed order, the way
// a user composing flags expects: settings first, then power, then status.
func runOperations(ctx context.Context, device *dps.Device, cfg *config) error {
	if *cfg.ping {
		if err := device.PingContext(ctx); err != nil {
			return fmt.Errorf("ping: %w", err)
		}
		fmt.Println("pong")
	}

	if *cfg.voltage >= 0 {
		if *cfg.voltage > int(^uint16(0)) {
			return fmt.Errorf("voltage %d mV out of range: %w", *cfg.voltage, dps.ErrInvalidParameter)
		}
		if err := device.SetVoltageContext(ctx, uint16(*cfg.voltage)); err != nil {
			return fmt.Errorf("set voltage: %w", err)
		}
	}

	if *cfg.current >= 0 {
		if *cfg.current > int(^uint16(0)) {
			return fmt.Errorf("current %d mA out of range: %w", *cfg.current, dps.ErrInvalidParameter)
		}
		if err := device.SetCurrentContext(ctx, uint16(*cfg.current)); err != nil {
			return fmt.Errorf("set current: %w", err)
		}
	}

	if *cfg.power != "" {
		var enable bool
		switch strings.ToLower(*cfg.power) {
		case "on", "1":
			enable = true
		case "off", "0":
			enable = false
		default:
			return fmt.Errorf("power must be on or off, got %q: %w", *cfg.power, dps.ErrInvalidParameter)
		}
		if err := device.SetPowerEnableContext(ctx, enable); err != nil {
			return fmt.Errorf("set power: %w", err)
		}
	}

	if *cfg.lock {
		if err := device.SetLockedContext(ctx, true); err != nil {
			return fmt.Errorf("lock: %w", err)
		}
	}
	if *cfg.unlock {
		if err := device.SetLockedContext(ctx, false); err != nil {
			return fmt.Errorf("unlock: %w", err)
		}
	}

	if *cfg.status {
		status, err := device.StatusContext(ctx)
		if err != nil {
			return fmt.Errorf("status: %w", err)
		}
		if err := printStatus(status, *cfg.jsonOut); err != nil {
			return err
		}
	}

	if *cfg.upgrade != "" {
		if err := runUpgrade(ctx, device, cfg); err != nil {
			return err
		}
	}

	if *cfg.monitor > 0 {
		return runMonitor(ctx, device, cfg)
	}
	return nil
}

func runUpgrade(ctx context.Context, device *dps.Device, cfg *config) error {
	image, err := os.ReadFile(*cfg.upgrade)
	if err != nil {
		return fmt.Errorf("failed to read firmware image: %w", err)
	}

	fmt.Printf("upgrading with %s (%d bytes)\n", *cfg.upgrade, len(image))
	err = device.UpgradeContext(ctx, image,
		dps.WithUpgradeForce(*cfg.force),
		dps.WithUpgradeProgress(func(p dps.UpgradeProgress) {
			fmt.Printf("\r%d / %d bytes", p.BytesSent, p.TotalBytes)
		}))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("upgrade: %w", err)
	}
	fmt.Println("upgrade complete")
	return nil
}

func runMonitor(ctx context.Context, device *dps.Device, cfg *config) error {
	ticker := time.NewTicker(*cfg.monitor)
	defer ticker.Stop()

	for {
		status, err := device.StatusContext(ctx)
		if err != nil {
			return fmt.Errorf("status: %w", err)
		}
		if err := printStatus(status, *cfg.jsonOut); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func run() error {
	cfg := parseFlags()
	log := newLogger(*cfg.verbose)

	if *cfg.list {
		return listPorts()
	}

	configPath := *cfg.configPath
	explicit := configPath != ""
	if !explicit {
		configPath = defaultConfigPath()
	}
	fc, err := loadFileConfig(configPath, explicit)
	if err != nil {
		return err
	}

	device := resolveDevice(*cfg.device, fc)
	if device == "" {
		return fmt.Errorf("no device given (use -d, %s or the config file): %w",
			deviceEnvVar, dps.ErrDeviceNotFound)
	}

	timeout := resolveTimeout(cfg, fc)
	transport, err := newTransport(device, cfg, fc, timeout)
	if err != nil {
		return err
	}

	dev, err := dps.New(transport,
		dps.WithLogger(log),
		dps.WithTimeout(timeout),
		dps.WithOCPHandler(func(iCutMA uint16) {
			fmt.Fprintf(os.Stderr, "over-current protection tripped at %d mA\n", iCutMA)
		}))
	if err != nil {
		_ = transport.Close()
		return fmt.Errorf("failed to create device: %w", err)
	}
	defer func() {
		if err := dev.Close(); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runOperations(ctx, dev, cfg)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "dpsctl: %v\n", err)
		os.Exit(1)
	}
}
