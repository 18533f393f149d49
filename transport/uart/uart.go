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

// Package uart provides the serial transport for a directly attached DPS
// device. Frames are delimited and checksummed on the wire; the payload
// handed up and down is the raw command frame.
package uart

import (
	"errors"
	"fmt"
	"sync"
	"time"

	dps "github.com/opendps-project/go-dps"
	"github.com/opendps-project/go-dps/internal/frame"
	"go.bug.st/serial"
)

// DefaultBaudRate is the rate the DPS firmware configures its UART for.
const DefaultBaudRate = 115200

// DefaultTimeout is the initial read timeout.
const DefaultTimeout = time.Second

// Transport implements the dps.Transport interface for serial communication
type Transport struct {
	port     serial.Port
	reader   *frame.Reader
	portName string
	timeout  time.Duration
	mu       sync.Mutex
	closed   bool
}

// Option configures a Transport
type Option func(*config)

type config struct {
	baudRate int
	timeout  time.Duration
}

// WithBaudRate overrides the baud rate. Stock firmware talks at 115200; a
// different rate only makes sense with a matching firmware build.
func WithBaudRate(rate int) Option {
	return func(c *config) {
		if rate > 0 {
			c.baudRate = rate
		}
	}
}

// WithTimeout sets the initial read timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *config) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// New opens the named serial port and prepares it for DPS traffic
func New(portName string, opts ...Option) (*Transport, error) {
	cfg := config{
		baudRate: DefaultBaudRate,
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	mode := &serial.Mode{
		BaudRate: cfg.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, dps.NewTransportError("open", portName,
			fmt.Errorf("failed to open serial port: %w", err), dps.ErrorTypePermanent)
	}

	if err := port.SetReadTimeout(cfg.timeout); err != nil {
		_ = port.Close()
		return nil, dps.NewTransportError("open", portName,
			fmt.Errorf("failed to set read timeout: %w", err), dps.ErrorTypePermanent)
	}

	return &Transport{
		port:     port,
		reader:   frame.NewReader(port),
		portName: portName,
		timeout:  cfg.timeout,
	}, nil
}

// Send encodes one command frame and writes it to the port.
func (t *Transport) Send(payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return dps.NewTransportError("send", t.portName,
			dps.ErrTransportWrite, dps.ErrorTypePermanent)
	}

	wire := frame.Encode(payload)
	n, err := t.port.Write(wire)
	if err != nil {
		return dps.NewTransportError("send", t.portName,
			fmt.Errorf("serial write failed: %w", err), dps.ErrorTypeTransient)
	}
	if n != len(wire) {
		return dps.NewTransportError("send", t.portName,
			dps.ErrTransportWrite, dps.ErrorTypeTransient)
	}
	return nil
}

// Receive blocks until one complete frame arrives or the read timeout
// elapses, then returns the decoded payload.
func (t *Transport) Receive() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, dps.NewTransportError("receive", t.portName,
			dps.ErrTransportRead, dps.ErrorTypePermanent)
	}

	payload, err := t.reader.ReadFrame()
	if err != nil {
		return nil, t.mapReadError(err)
	}
	return payload, nil
}

func (t *Transport) mapReadError(err error) error {
	switch {
	case errors.Is(err, frame.ErrTimeout):
		return dps.NewTimeoutError("receive", t.portName)
	case errors.Is(err, frame.ErrChecksum):
		return dps.NewTransportError("receive", t.portName,
			dps.ErrChecksumMismatch, dps.ErrorTypeTransient)
	case errors.Is(err, frame.ErrBadEscape), errors.Is(err, frame.ErrTruncated):
		return dps.NewTransportError("receive", t.portName,
			dps.ErrFrameCorrupted, dps.ErrorTypeTransient)
	case errors.Is(err, frame.ErrTooLong):
		return dps.NewTransportError("receive", t.portName,
			dps.ErrFrameTooLarge, dps.ErrorTypeTransient)
	default:
		return dps.NewTransportError("receive", t.portName,
			fmt.Errorf("serial read failed: %w", err), dps.ErrorTypeTransient)
	}
}

// SetTimeout sets the read timeout for subsequent Receive calls
func (t *Transport) SetTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.port.SetReadTimeout(timeout); err != nil {
		return dps.NewTransportError("setTimeout", t.portName,
			fmt.Errorf("failed to set read timeout: %w", err), dps.ErrorTypePermanent)
	}
	t.timeout = timeout
	return nil
}

// Close closes the serial port
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	if err := t.port.Close(); err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	return nil
}

// IsConnected returns true if the port is open
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed
}

// Type returns the transport type
func (*Transport) Type() dps.TransportType {
	return dps.TransportUART
}

// ListPorts enumerates serial ports present on the system.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}
	return ports, nil
}

// Ensure Transport implements dps.Transport
var _ dps.Transport = (*Transport)(nil)
