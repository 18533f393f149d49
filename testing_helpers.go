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

import (
	"sync"
	"time"
)

// MockTransport is an in-memory Transport for testing. Sent frames are
// recorded; Receive drains a queue of inbound frames. A ResponseFunc can
// be installed to produce inbound frames per sent frame, and unsolicited
// frames can be injected with QueueFrame.
type MockTransport struct {
	// ResponseFunc maps one sent frame to the inbound frames it provokes
	ResponseFunc func(frame []byte) ([][]byte, error)
	sendErr      error
	inbound      [][]byte
	sent         [][]byte
	mu           sync.Mutex
	closed       bool
}

// NewMockTransport creates an empty mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// Send records the frame and queues whatever the ResponseFunc produces
func (m *MockTransport) Send(frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrTransportWrite
	}
	if m.sendErr != nil {
		return m.sendErr
	}

	cp := append([]byte(nil), frame...)
	m.sent = append(m.sent, cp)

	if m.ResponseFunc != nil {
		frames, err := m.ResponseFunc(cp)
		if err != nil {
			return err
		}
		m.inbound = append(m.inbound, frames...)
	}
	return nil
}

// Receive pops the next queued inbound frame or reports a timeout
func (m *MockTransport) Receive() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrTransportRead
	}
	if len(m.inbound) == 0 {
		return nil, NewTimeoutError("receive", "mock")
	}
	frame := m.inbound[0]
	m.inbound = m.inbound[1:]
	return frame, nil
}

// QueueFrame injects an inbound frame, e.g. an unsolicited OCP event
func (m *MockTransport) QueueFrame(frame []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbound = append(m.inbound, append([]byte(nil), frame...))
}

// Sent returns all frames sent so far
func (m *MockTransport) Sent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.sent...)
}

// SetSendError makes every subsequent Send fail with err
func (m *MockTransport) SetSendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// Close marks the transport closed
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// SetTimeout is a no-op for the mock
func (*MockTransport) SetTimeout(_ time.Duration) error {
	return nil
}

// IsConnected returns true until the mock is closed
func (m *MockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

// Type returns TransportMock
func (*MockTransport) Type() TransportType {
	return TransportMock
}
