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

// Package udp provides the network transport for a DPS device reached
// through its wifi bridge. Each datagram carries exactly one frame in the
// same wire format the serial link uses.
package udp

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	dps "github.com/opendps-project/go-dps"
	"github.com/opendps-project/go-dps/internal/frame"
)

// DefaultPort is the UDP port the wifi bridge listens on.
const DefaultPort = 5005

// DefaultTimeout is the initial receive timeout.
const DefaultTimeout = time.Second

// Transport implements the dps.Transport interface over UDP
type Transport struct {
	conn    net.Conn
	addr    string
	timeout time.Duration
	mu      sync.Mutex
	closed  bool
}

// Option configures a Transport
type Option func(*config)

type config struct {
	port    int
	timeout time.Duration
}

// WithPort overrides the bridge port
func WithPort(port int) Option {
	return func(c *config) {
		if port > 0 {
			c.port = port
		}
	}
}

// WithTimeout sets the initial receive timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *config) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// New connects to the bridge at the given host or host:port address
func New(host string, opts ...Option) (*Transport, error) {
	cfg := config{
		port:    DefaultPort,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	addr := host
	if _, _, err := net.SplitHostPort(host); err != nil {
		addr = net.JoinHostPort(host, strconv.Itoa(cfg.port))
	}

	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, dps.NewTransportError("open", addr,
			fmt.Errorf("failed to connect: %w", err), dps.ErrorTypePermanent)
	}

	return &Transport{
		conn:    conn,
		addr:    addr,
		timeout: cfg.timeout,
	}, nil
}

// Send encodes one command frame and transmits it as a single datagram.
func (t *Transport) Send(payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return dps.NewTransportError("send", t.addr,
			dps.ErrTransportWrite, dps.ErrorTypePermanent)
	}

	if _, err := t.conn.Write(frame.Encode(payload)); err != nil {
		return dps.NewTransportError("send", t.addr,
			fmt.Errorf("datagram send failed: %w", err), dps.ErrorTypeTransient)
	}
	return nil
}

// Receive blocks for one datagram and decodes the frame it carries.
func (t *Transport) Receive() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, dps.NewTransportError("receive", t.addr,
			dps.ErrTransportRead, dps.ErrorTypePermanent)
	}

	if err := t.conn.SetReadDeadline(time.Now().Add(t.timeout)); err != nil {
		return nil, dps.NewTransportError("receive", t.addr,
			fmt.Errorf("failed to set deadline: %w", err), dps.ErrorTypePermanent)
	}

	buf := make([]byte, frame.MaxWireLength)
	n, err := t.conn.Read(buf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, dps.NewTimeoutError("receive", t.addr)
		}
		return nil, dps.NewTransportError("receive", t.addr,
			fmt.Errorf("datagram receive failed: %w", err), dps.ErrorTypeTransient)
	}

	payload, err := frame.Decode(buf[:n])
	if err != nil {
		if errors.Is(err, frame.ErrChecksum) {
			return nil, dps.NewTransportError("receive", t.addr,
				dps.ErrChecksumMismatch, dps.ErrorTypeTransient)
		}
		return nil, dps.NewTransportError("receive", t.addr,
			dps.ErrFrameCorrupted, dps.ErrorTypeTransient)
	}
	return payload, nil
}

// SetTimeout sets the receive timeout
func (t *Transport) SetTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = timeout
	return nil
}

// Close closes the connection
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	if err := t.conn.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

// IsConnected returns true if the connection is open
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed
}

// Type returns the transport type
func (*Transport) Type() dps.TransportType {
	return dps.TransportUDP
}

// Ensure Transport implements dps.Transport
var _ dps.Transport = (*Transport)(nil)
