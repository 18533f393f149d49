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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dpstest "github.com/opendps-project/go-dps/internal/testing"
)

// upgradeBootloader scripts the device side of an upgrade session for the
// mock transport: it acknowledges the start with an agreed chunk size and
// answers each chunk, judging the final one by the byte count it received.
type upgradeBootloader struct {
	agreedChunk uint16
	imageLen    int
	received    int
	finalStatus byte
}

func (b *upgradeBootloader) respond(frame []byte) ([][]byte, error) {
	switch frame[0] {
	case byte(CmdUpgradeStart):
		return [][]byte{dpstest.BuildUpgradeStartResponse(0, b.agreedChunk, 1)}, nil
	case byte(CmdUpgradeData):
		data := frame[1:]
		b.received += len(data)
		if len(data) < int(b.agreedChunk) {
			return [][]byte{dpstest.BuildUpgradeDataResponse(b.finalStatus)}, nil
		}
		return [][]byte{dpstest.BuildUpgradeDataResponse(0)}, nil
	default:
		return [][]byte{dpstest.BuildResponse(frame[0], false)}, nil
	}
}

func validTestImage(n int) []byte {
	img := make([]byte, n)
	for i := range img {
		img[i] = byte(i)
	}
	img[3] = 0x20
	return img
}

func TestUpgradeHappyPath(t *testing.T) {
	t.Parallel()

	bl := &upgradeBootloader{agreedChunk: 256, finalStatus: byte(UpgradeSuccess)}
	transport := NewMockTransport()
	transport.ResponseFunc = bl.respond

	device, err := New(transport)
	require.NoError(t, err)

	image := validTestImage(700)
	var updates []UpgradeProgress
	err = device.Upgrade(image,
		WithUpgradeChunkSize(256),
		WithUpgradeProgress(func(p UpgradeProgress) { updates = append(updates, p) }))
	require.NoError(t, err)

	assert.Equal(t, 700, bl.received)
	require.NotEmpty(t, updates)
	last := updates[len(updates)-1]
	assert.Equal(t, 700, last.BytesSent)
	assert.Equal(t, 700, last.TotalBytes)
}

func TestUpgradeAdoptsClampedChunkSize(t *testing.T) {
	t.Parallel()

	// host asks for 1024, bootloader only accepts 128
	bl := &upgradeBootloader{agreedChunk: 128, finalStatus: byte(UpgradeSuccess)}
	transport := NewMockTransport()
	transport.ResponseFunc = bl.respond

	device, err := New(transport)
	require.NoError(t, err)

	var chunkSeen uint16
	err = device.Upgrade(validTestImage(300),
		WithUpgradeProgress(func(p UpgradeProgress) { chunkSeen = p.ChunkSize }))
	require.NoError(t, err)

	assert.Equal(t, uint16(128), chunkSeen)

	// every data frame after the start must respect the clamped size
	for _, frame := range transport.Sent()[1:] {
		assert.LessOrEqual(t, len(frame)-1, 128)
	}
}

func TestUpgradeExactMultipleSendsEmptyTerminator(t *testing.T) {
	t.Parallel()

	bl := &upgradeBootloader{agreedChunk: 128, finalStatus: byte(UpgradeSuccess)}
	transport := NewMockTransport()
	transport.ResponseFunc = bl.respond

	device, err := New(transport)
	require.NoError(t, err)

	require.NoError(t, device.Upgrade(validTestImage(256)))

	sent := transport.Sent()
	// start + two full chunks + empty terminator
	require.Len(t, sent, 4)
	assert.Equal(t, []byte{byte(CmdUpgradeData)}, sent[3])
}

func TestUpgradeStartRefused(t *testing.T) {
	t.Parallel()

	transport := NewMockTransport()
	transport.ResponseFunc = func(frame []byte) ([][]byte, error) {
		return [][]byte{dpstest.BuildUpgradeStartResponse(byte(UpgradeBootcomError), 0, 0)}, nil
	}

	device, err := New(transport)
	require.NoError(t, err)

	err = device.Upgrade(validTestImage(64))
	var upgradeErr *UpgradeError
	require.ErrorAs(t, err, &upgradeErr)
	assert.Equal(t, UpgradeBootcomError, upgradeErr.Status)
	// refusal ends the session, no data may follow
	assert.Len(t, transport.Sent(), 1)
}

func TestUpgradeFailsMidStream(t *testing.T) {
	t.Parallel()

	transport := NewMockTransport()
	chunks := 0
	transport.ResponseFunc = func(frame []byte) ([][]byte, error) {
		if frame[0] == byte(CmdUpgradeStart) {
			return [][]byte{dpstest.BuildUpgradeStartResponse(0, 64, 0)}, nil
		}
		chunks++
		if chunks == 2 {
			return [][]byte{dpstest.BuildUpgradeDataResponse(byte(UpgradeFlashError))}, nil
		}
		return [][]byte{dpstest.BuildUpgradeDataResponse(0)}, nil
	}

	device, err := New(transport)
	require.NoError(t, err)

	err = device.Upgrade(validTestImage(300))
	var upgradeErr *UpgradeError
	require.ErrorAs(t, err, &upgradeErr)
	assert.Equal(t, UpgradeFlashError, upgradeErr.Status)
	// the stream stops at the failing chunk
	assert.Len(t, transport.Sent(), 3)
}

func TestUpgradeCRCFailureOnFinalChunk(t *testing.T) {
	t.Parallel()

	bl := &upgradeBootloader{agreedChunk: 64, finalStatus: byte(UpgradeCRCError)}
	transport := NewMockTransport()
	transport.ResponseFunc = bl.respond

	device, err := New(transport)
	require.NoError(t, err)

	err = device.Upgrade(validTestImage(100))
	var upgradeErr *UpgradeError
	require.ErrorAs(t, err, &upgradeErr)
	assert.Equal(t, UpgradeCRCError, upgradeErr.Status)
}

func TestUpgradeRejectsInvalidImage(t *testing.T) {
	t.Parallel()

	transport := NewMockTransport()
	device, err := New(transport)
	require.NoError(t, err)

	// byte 3 is not a SRAM stack pointer high byte
	image := make([]byte, 64)
	err = device.Upgrade(image)
	require.ErrorIs(t, err, ErrFirmwareInvalid)
	assert.Empty(t, transport.Sent(), "invalid image must be rejected before any traffic")

	err = device.Upgrade([]byte{0x00, 0x10})
	require.ErrorIs(t, err, ErrFirmwareInvalid)
}

func TestUpgradeForceSkipsImageCheck(t *testing.T) {
	t.Parallel()

	bl := &upgradeBootloader{agreedChunk: 64, finalStatus: byte(UpgradeSuccess)}
	transport := NewMockTransport()
	transport.ResponseFunc = bl.respond

	device, err := New(transport)
	require.NoError(t, err)

	image := make([]byte, 64) // fails the sanity check
	require.NoError(t, device.Upgrade(image, WithUpgradeForce(true)))
	assert.Equal(t, 64, bl.received)
}

func TestUpgradeZeroChunkSizeResponse(t *testing.T) {
	t.Parallel()

	transport := NewMockTransport()
	transport.ResponseFunc = func(frame []byte) ([][]byte, error) {
		return [][]byte{dpstest.BuildUpgradeStartResponse(0, 0, 0)}, nil
	}

	device, err := New(transport)
	require.NoError(t, err)

	err = device.Upgrade(validTestImage(64))
	require.ErrorIs(t, err, ErrUnexpectedResponse)
}

func TestUpgradeStartWireFormat(t *testing.T) {
	t.Parallel()

	bl := &upgradeBootloader{agreedChunk: 1024, finalStatus: byte(UpgradeSuccess)}
	transport := NewMockTransport()
	transport.ResponseFunc = bl.respond

	device, err := New(transport)
	require.NoError(t, err)

	require.NoError(t, device.Upgrade(validTestImage(16)))

	sent := transport.Sent()
	require.NotEmpty(t, sent)
	start := sent[0]
	require.Len(t, start, 5)
	assert.Equal(t, byte(CmdUpgradeStart), start[0])
	assert.Equal(t, uint16(1024), uint16(start[1])<<8|uint16(start[2]))
}
