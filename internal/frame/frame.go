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

// Package frame implements the byte-stream framing used on the wire:
// SOF/EOF delimiting, DLE escaping and a CRC-16 trailer. A wire frame is
//
//	[SOF] [payload, escaped] [crc16 big-endian, escaped] [EOF]
//
// where any payload or CRC byte colliding with SOF, DLE or EOF is sent as
// DLE followed by the byte XOR 0x20.
package frame

import (
	"errors"
	"io"
)

// Frame delimiters and the escape byte
const (
	SOF byte = 0x7E // start of frame
	DLE byte = 0x7D // escape, next byte is XOR'd
	EOF byte = 0x7F // end of frame
)

// escapeXor is applied to a byte following DLE.
const escapeXor byte = 0x20

// MaxPayloadLength is the largest frame payload the receiver accepts: an
// upgrade_data frame carrying the command byte plus a full 1024 byte chunk.
// Everything else on the wire is far smaller.
const MaxPayloadLength = 1 + 1024

// MaxWireLength bounds a fully escaped frame including delimiters. A frame
// escapes to at most twice its payload and CRC, plus SOF and EOF.
const MaxWireLength = 2*(MaxPayloadLength+2) + 2

// Framing errors
var (
	// ErrTruncated indicates a frame without proper delimiters or too
	// short to carry a CRC
	ErrTruncated = errors.New("truncated frame")
	// ErrBadEscape indicates a DLE at the end of a frame body
	ErrBadEscape = errors.New("dangling escape byte")
	// ErrChecksum indicates the CRC trailer did not match the payload
	ErrChecksum = errors.New("frame checksum mismatch")
	// ErrTimeout indicates the underlying reader made no progress
	ErrTimeout = errors.New("read timeout")
	// ErrTooLong indicates a frame exceeding MaxWireLength
	ErrTooLong = errors.New("frame too long")
)

// needsEscape reports whether b collides with a frame delimiter.
func needsEscape(b byte) bool {
	return b == SOF || b == DLE || b == EOF
}

func appendEscaped(dst []byte, b byte) []byte {
	if needsEscape(b) {
		return append(dst, DLE, b^escapeXor)
	}
	return append(dst, b)
}

// Encode wraps a frame payload for transmission: CRC appended, delimiters
// added, collisions escaped.
func Encode(payload []byte) []byte {
	crc := Checksum(payload)

	wire := make([]byte, 0, 2*len(payload)+6)
	wire = append(wire, SOF)
	for _, b := range payload {
		wire = appendEscaped(wire, b)
	}
	wire = appendEscaped(wire, byte(crc>>8))
	wire = appendEscaped(wire, byte(crc))
	return append(wire, EOF)
}

// Decode strips the delimiters and escaping from a received wire frame and
// validates its CRC, returning the bare payload.
func Decode(wire []byte) ([]byte, error) {
	if len(wire) < 4 || wire[0] != SOF || wire[len(wire)-1] != EOF {
		return nil, ErrTruncated
	}

	body := make([]byte, 0, len(wire)-2)
	escaped := false
	for _, b := range wire[1 : len(wire)-1] {
		if escaped {
			body = append(body, b^escapeXor)
			escaped = false
			continue
		}
		if b == DLE {
			escaped = true
			continue
		}
		body = append(body, b)
	}
	if escaped {
		return nil, ErrBadEscape
	}
	if len(body) < 2 {
		return nil, ErrTruncated
	}

	payload := body[:len(body)-2]
	crc := uint16(body[len(body)-2])<<8 | uint16(body[len(body)-1])
	if crc != Checksum(payload) {
		return nil, ErrChecksum
	}
	return payload, nil
}

// Reader scans frames out of a raw byte stream. Bytes outside a SOF..EOF
// window are discarded; a SOF inside a frame restarts it, matching the
// device's own receiver.
type Reader struct {
	r   io.Reader
	buf [MaxWireLength]byte
	one [1]byte
}

// NewReader creates a Reader scanning the given stream.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadFrame blocks until one complete frame has been scanned from the
// stream, then decodes it. A zero-byte read with no error from the
// underlying stream is treated as a timeout, matching serial port
// semantics.
func (fr *Reader) ReadFrame() ([]byte, error) {
	n := 0
	sof := false
	for {
		b, err := fr.readByte()
		if err != nil {
			return nil, err
		}

		if b == SOF {
			n = 0
			sof = true
		}
		if !sof {
			continue
		}
		if n >= len(fr.buf) {
			return nil, ErrTooLong
		}
		fr.buf[n] = b
		n++
		if b == EOF {
			return Decode(fr.buf[:n])
		}
	}
}

func (fr *Reader) readByte() (byte, error) {
	n, err := fr.r.Read(fr.one[:])
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrTimeout
	}
	return fr.one[0], nil
}
