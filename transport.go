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

package dps

import "time"

// Transport carries protocol frames between the host and the device.
// Implementations own the byte-stream framing: delimiting, escaping and the
// CRC trailer. Send and Receive therefore deal in plain, unescaped frame
// payloads as built by the Create helpers, and a fully escaped frame on the
// wire never exceeds MaxFrameLength.
//
// The protocol is strictly half-duplex, so a transport does not need to
// support concurrent Send and Receive; the Device serializes its exchanges.
type Transport interface {
	// Send transmits one frame payload
	Send(frame []byte) error

	// Receive blocks until the next complete frame arrives or the
	// configured timeout expires
	Receive() ([]byte, error)

	// Close closes the transport connection
	Close() error

	// SetTimeout sets the receive timeout for the transport
	SetTimeout(timeout time.Duration) error

	// IsConnected returns true if the transport is connected
	IsConnected() bool

	// Type returns the transport type
	Type() TransportType
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportUART represents UART/serial transport.
	TransportUART TransportType = "uart"
	// TransportUDP represents UDP transport via a wifi bridge.
	TransportUDP TransportType = "udp"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)
