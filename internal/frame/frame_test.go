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

package frame

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload []byte
	}{
		{"empty", []byte{}},
		{"single byte", []byte{0x01}},
		{"plain command", []byte{0x02, 0x12, 0x34}},
		{"payload containing SOF", []byte{0x04, SOF}},
		{"payload containing DLE", []byte{0x04, DLE}},
		{"payload containing EOF", []byte{0x04, EOF}},
		{"all delimiters", []byte{SOF, DLE, EOF, SOF, DLE, EOF}},
		{"status response sized", bytes.Repeat([]byte{0x7E}, 13)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			wire := Encode(tt.payload)
			require.Equal(t, SOF, wire[0])
			require.Equal(t, EOF, wire[len(wire)-1])

			// no unescaped delimiter may appear inside the frame
			escaped := false
			for _, b := range wire[1 : len(wire)-1] {
				if escaped {
					escaped = false
					continue
				}
				if b == DLE {
					escaped = true
					continue
				}
				assert.NotEqual(t, SOF, b)
				assert.NotEqual(t, EOF, b)
			}

			got, err := Decode(wire)
			require.NoError(t, err)
			assert.Equal(t, tt.payload, got)
		})
	}
}

func TestEncodeEscapesDelimiters(t *testing.T) {
	t.Parallel()

	wire := Encode([]byte{0x7E})
	// 0x7E escapes to 0x7D 0x5E
	assert.Equal(t, []byte{DLE, 0x5E}, wire[1:3])
}

func TestDecodeRejectsMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		wire []byte
		want error
	}{
		{"empty", nil, ErrTruncated},
		{"no SOF", []byte{0x01, 0x02, 0x03, EOF}, ErrTruncated},
		{"no EOF", []byte{SOF, 0x01, 0x02, 0x03}, ErrTruncated},
		{"too short", []byte{SOF, EOF}, ErrTruncated},
		{"body without crc", []byte{SOF, 0x01, EOF}, ErrTruncated},
		{"dangling escape", []byte{SOF, 0x01, 0x02, 0x03, DLE, EOF}, ErrBadEscape},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Decode(tt.wire)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecodeRejectsBadChecksum(t *testing.T) {
	t.Parallel()

	wire := Encode([]byte{0x01, 0x02, 0x03})
	wire[1] ^= 0xFF

	_, err := Decode(wire)
	require.ErrorIs(t, err, ErrChecksum)
}

func TestReaderScansFrameFromStream(t *testing.T) {
	t.Parallel()

	payload := []byte{0x84, 0x01, 0x2E, 0xE0}
	reader := NewReader(bytes.NewReader(Encode(payload)))

	got, err := reader.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestReaderSkipsGarbageBeforeFrame(t *testing.T) {
	t.Parallel()

	var stream []byte
	stream = append(stream, 0x00, 0xFF, 0x42) // line noise
	stream = append(stream, Encode([]byte{0x81, 0x01})...)

	reader := NewReader(bytes.NewReader(stream))
	got, err := reader.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x81, 0x01}, got)
}

func TestReaderRestartsOnMidFrameSOF(t *testing.T) {
	t.Parallel()

	// a partial frame interrupted by a fresh SOF must be discarded
	var stream []byte
	stream = append(stream, SOF, 0x01, 0x02)
	stream = append(stream, Encode([]byte{0x81, 0x01})...)

	reader := NewReader(bytes.NewReader(stream))
	got, err := reader.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x81, 0x01}, got)
}

func TestReaderReadsConsecutiveFrames(t *testing.T) {
	t.Parallel()

	var stream []byte
	stream = append(stream, Encode([]byte{0x81, 0x01})...)
	stream = append(stream, Encode([]byte{0x85, 0x01})...)

	reader := NewReader(bytes.NewReader(stream))

	first, err := reader.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x81, 0x01}, first)

	second, err := reader.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x85, 0x01}, second)
}

func TestReaderAcceptsUpgradeChunkFrames(t *testing.T) {
	t.Parallel()

	// an upgrade_data frame carrying a 64 byte chunk
	payload := make([]byte, 65)
	payload[0] = 0x0A
	for i := 1; i < len(payload); i++ {
		payload[i] = byte(i)
	}

	reader := NewReader(bytes.NewReader(Encode(payload)))
	got, err := reader.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestReaderAcceptsLargestChunkFrame(t *testing.T) {
	t.Parallel()

	// a full 1024 byte chunk, every byte needing escape, is the worst case
	payload := make([]byte, MaxPayloadLength)
	payload[0] = 0x0A
	for i := 1; i < len(payload); i++ {
		payload[i] = SOF
	}

	wire := Encode(payload)
	require.LessOrEqual(t, len(wire), MaxWireLength)

	reader := NewReader(bytes.NewReader(wire))
	got, err := reader.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

// zeroReader models a serial port read timeout: progress stops without an
// error from the underlying stream.
type zeroReader struct{}

func (zeroReader) Read([]byte) (int, error) { return 0, nil }

func TestReaderTimeout(t *testing.T) {
	t.Parallel()

	reader := NewReader(zeroReader{})
	_, err := reader.ReadFrame()
	require.ErrorIs(t, err, ErrTimeout)
}

func TestReaderRejectsOverlongFrame(t *testing.T) {
	t.Parallel()

	stream := make([]byte, MaxWireLength+8)
	stream[0] = SOF // never terminated

	reader := NewReader(bytes.NewReader(stream))
	_, err := reader.ReadFrame()
	require.ErrorIs(t, err, ErrTooLong)
}

func TestWorstCaseFrameFitsWireBound(t *testing.T) {
	t.Parallel()

	// a status response where every byte needs escaping is the worst case
	payload := bytes.Repeat([]byte{SOF}, 13)
	wire := Encode(payload)
	assert.LessOrEqual(t, len(wire), MaxWireLength)
}
