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

package udp

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dps "github.com/opendps-project/go-dps"
	"github.com/opendps-project/go-dps/internal/frame"
)

// newBridge starts a loopback UDP listener standing in for the wifi bridge.
// handler receives each decoded frame and returns the reply payload, or nil
// for no reply.
func newBridge(t *testing.T, handler func(payload []byte) []byte) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })

	go func() {
		buf := make([]byte, frame.MaxWireLength)
		for {
			n, addr, err := pc.ReadFrom(buf)
			if err != nil {
				return
			}
			payload, err := frame.Decode(buf[:n])
			if err != nil {
				continue
			}
			if reply := handler(payload); reply != nil {
				_, _ = pc.WriteTo(frame.Encode(reply), addr)
			}
		}
	}()

	return pc.LocalAddr().String()
}

func TestTransportType(t *testing.T) {
	t.Parallel()

	addr := newBridge(t, func([]byte) []byte { return nil })
	transport, err := New(addr)
	require.NoError(t, err)
	defer func() { _ = transport.Close() }()

	assert.Equal(t, dps.TransportUDP, transport.Type())
	assert.True(t, transport.IsConnected())
}

func TestSendReceiveRoundTrip(t *testing.T) {
	t.Parallel()

	addr := newBridge(t, func(payload []byte) []byte {
		require.Equal(t, []byte{0x01}, payload)
		return []byte{0x81, 0x01}
	})

	transport, err := New(addr, WithTimeout(2*time.Second))
	require.NoError(t, err)
	defer func() { _ = transport.Close() }()

	require.NoError(t, transport.Send([]byte{0x01}))

	payload, err := transport.Receive()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x81, 0x01}, payload)
}

func TestSendReceiveFullUpgradeChunk(t *testing.T) {
	t.Parallel()

	// echo bridge; exercises a full 1024 byte chunk frame both directions
	addr := newBridge(t, func(payload []byte) []byte { return payload })

	transport, err := New(addr, WithTimeout(2*time.Second))
	require.NoError(t, err)
	defer func() { _ = transport.Close() }()

	payload := make([]byte, frame.MaxPayloadLength)
	payload[0] = 0x0A
	for i := 1; i < len(payload); i++ {
		payload[i] = byte(i * 7)
	}

	require.NoError(t, transport.Send(payload))
	got, err := transport.Receive()
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestReceiveTimeout(t *testing.T) {
	t.Parallel()

	addr := newBridge(t, func([]byte) []byte { return nil })

	transport, err := New(addr, WithTimeout(50*time.Millisecond))
	require.NoError(t, err)
	defer func() { _ = transport.Close() }()

	require.NoError(t, transport.Send([]byte{0x01}))

	_, err = transport.Receive()
	require.Error(t, err)
	assert.Equal(t, dps.ErrorTypeTimeout, dps.GetErrorType(err))
	assert.True(t, dps.IsRetryable(err))
}

func TestDefaultPortAppended(t *testing.T) {
	t.Parallel()

	transport, err := New("192.0.2.1")
	require.NoError(t, err)
	defer func() { _ = transport.Close() }()

	assert.Equal(t, "192.0.2.1:5005", transport.addr)
}

func TestClosedTransportRefusesTraffic(t *testing.T) {
	t.Parallel()

	addr := newBridge(t, func([]byte) []byte { return nil })
	transport, err := New(addr)
	require.NoError(t, err)

	require.NoError(t, transport.Close())
	require.NoError(t, transport.Close())
	assert.False(t, transport.IsConnected())

	err = transport.Send([]byte{0x01})
	require.Error(t, err)
	assert.Equal(t, dps.ErrorTypePermanent, dps.GetErrorType(err))

	_, err = transport.Receive()
	require.Error(t, err)
	assert.Equal(t, dps.ErrorTypePermanent, dps.GetErrorType(err))
}
