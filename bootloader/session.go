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

// Package bootloader implements the device-side upgrade session state
// machine: the protocol exchange that negotiates a chunk size, streams
// firmware data into flash with per-chunk acknowledgement and verifies the
// image CRC before booting it.
package bootloader

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	dps "github.com/opendps-project/go-dps"
	"github.com/opendps-project/go-dps/internal/frame"
)

// State is the upgrade session state. Success and Failed are terminal; a
// failed session is abandoned and the host must start a new one.
type State int

// Session states
const (
	StateIdle State = iota
	StateReceiving
	StateFinishing
	StateSuccess
	StateFailed
)

// String returns the name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReceiving:
		return "receiving"
	case StateFinishing:
		return "finishing"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DefaultMaxChunkSize is the largest data chunk the session accepts.
// Requests for more are clamped; the clamped size in the upgrade_start
// response is authoritative for the host. It matches the largest payload
// the wire framing will carry.
const DefaultMaxChunkSize = frame.MaxPayloadLength - 1

// Session is the device-side upgrade session. It is the only mutable state
// of the protocol core: at most one session exists at a time, owned by the
// bootloader loop for the lifetime of one upgrade.
type Session struct {
	flash   Flash
	bootcom Bootcom
	log     zerolog.Logger

	reason   dps.UpgradeReason
	maxChunk uint16

	state      State
	failStatus dps.UpgradeStatus

	chunkSize   uint16
	expectedCRC uint16
	crc         uint16
	offset      uint32
	erasedTo    uint32
}

// Option is a functional option for configuring a Session
type Option func(*Session)

// WithLogger routes the session's logging to the given logger
func WithLogger(log zerolog.Logger) Option {
	return func(s *Session) {
		s.log = log
	}
}

// WithMaxChunkSize caps the chunk size the session will agree to
func WithMaxChunkSize(size uint16) Option {
	return func(s *Session) {
		if size > 0 {
			s.maxChunk = size
		}
	}
}

// WithReason sets the boot reason reported in the upgrade_start response
func WithReason(reason dps.UpgradeReason) Option {
	return func(s *Session) {
		s.reason = reason
	}
}

// New creates an idle upgrade session. If no explicit reason is given and
// the bootcom store holds a pending upgrade request, the reason defaults to
// ReasonBootcom.
func New(flash Flash, bootcom Bootcom, opts ...Option) *Session {
	s := &Session{
		flash:    flash,
		bootcom:  bootcom,
		log:      zerolog.Nop(),
		reason:   dps.ReasonUnknown,
		maxChunk: DefaultMaxChunkSize,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.reason == dps.ReasonUnknown {
		if _, _, ok := bootcom.Read(); ok {
			s.reason = dps.ReasonBootcom
		}
	}
	return s
}

// State returns the current session state.
func (s *Session) State() State {
	return s.state
}

// ChunkSize returns the agreed chunk size, zero before a session started.
func (s *Session) ChunkSize() uint16 {
	return s.chunkSize
}

// HandleFrame processes one received frame payload and returns the response
// frame to transmit. The session never refuses to answer: host misbehavior
// and hardware failures alike are reported as an UpgradeStatus on the wire.
func (s *Session) HandleFrame(payload []byte) []byte {
	if len(payload) == 0 {
		return s.protocolError(dps.CmdUpgradeData)
	}
	cmd := dps.Command(payload[0])

	switch s.state {
	case StateIdle:
		if cmd == dps.CmdUpgradeStart {
			return s.handleStart(payload)
		}
		s.log.Warn().Stringer("cmd", cmd).Msg("command before upgrade start")
		return s.protocolError(cmd)
	case StateReceiving:
		if cmd == dps.CmdUpgradeData {
			return s.handleData(payload)
		}
		// A second upgrade_start lands here too: it is rejected and the
		// running session is left untouched. A host that wants to start
		// over resets the device.
		s.log.Warn().Stringer("cmd", cmd).Stringer("state", s.state).
			Msg("unexpected command during upgrade")
		return s.protocolError(cmd)
	default:
		// terminal; the session object no longer accepts traffic
		return s.protocolError(cmd)
	}
}

// handleStart validates the upgrade request, persists it across resets and
// confirms the agreed chunk size.
func (s *Session) handleStart(payload []byte) []byte {
	requested, crc, ok := dps.UnpackUpgradeStart(payload)
	if !ok {
		return s.protocolError(dps.CmdUpgradeStart)
	}

	chunkSize := requested
	if chunkSize == 0 || chunkSize > s.maxChunk {
		chunkSize = s.maxChunk
	}

	if err := s.bootcom.Write(chunkSize, crc); err != nil {
		s.log.Error().Err(err).Msg("bootcom write failed")
		s.state = StateFailed
		s.failStatus = dps.UpgradeBootcomError
		return s.startResponse(dps.UpgradeBootcomError, 0)
	}

	s.chunkSize = chunkSize
	s.expectedCRC = crc
	s.crc = 0
	s.offset = 0
	s.erasedTo = 0
	s.state = StateReceiving

	s.log.Info().Uint16("chunk_size", chunkSize).Uint16("crc", crc).
		Stringer("reason", s.reason).Msg("upgrade session started")
	return s.startResponse(dps.UpgradeContinue, chunkSize)
}

// handleData programs one chunk. A chunk shorter than the agreed size,
// including an empty one, ends the image and triggers CRC verification.
func (s *Session) handleData(payload []byte) []byte {
	data, _ := dps.UnpackUpgradeData(payload)

	if len(data) > int(s.chunkSize) {
		s.log.Warn().Int("got", len(data)).Uint16("agreed", s.chunkSize).
			Msg("oversized chunk")
		return s.fail(dps.UpgradeProtocolError)
	}

	final := len(data) < int(s.chunkSize)
	if final {
		s.state = StateFinishing
	}

	if len(data) > 0 {
		if status := s.program(data); status != dps.UpgradeContinue {
			return s.fail(status)
		}
	}

	if !final {
		return s.dataResponse(dps.UpgradeContinue)
	}

	if s.crc != s.expectedCRC {
		s.log.Error().Uint16("want", s.expectedCRC).Uint16("got", s.crc).
			Msg("image crc mismatch")
		return s.fail(dps.UpgradeCRCError)
	}

	if err := s.bootcom.Clear(); err != nil {
		// The image is good; a stale bootcom entry only means the next
		// boot lands in the bootloader again.
		s.log.Warn().Err(err).Msg("bootcom clear failed")
	}

	s.state = StateSuccess
	s.log.Info().Uint32("bytes", s.offset).Msg("upgrade verified")
	return s.dataResponse(dps.UpgradeSuccess)
}

// program erases ahead as needed and writes one chunk at the current offset.
func (s *Session) program(data []byte) dps.UpgradeStatus {
	end := s.offset + uint32(len(data))
	if end > s.flash.Size() {
		return dps.UpgradeOverflowError
	}

	for s.erasedTo < end {
		if err := s.flash.Erase(s.erasedTo); err != nil {
			s.log.Error().Err(err).Uint32("addr", s.erasedTo).Msg("erase failed")
			return dps.UpgradeEraseError
		}
		s.erasedTo += s.flash.PageSize()
	}

	if err := s.flash.Write(s.offset, data); err != nil {
		s.log.Error().Err(err).Uint32("addr", s.offset).Msg("write failed")
		return dps.UpgradeFlashError
	}

	s.crc = frame.Update(s.crc, data)
	s.offset = end
	return dps.UpgradeContinue
}

// fail moves the session to its terminal failed state and builds the
// response carrying the status.
func (s *Session) fail(status dps.UpgradeStatus) []byte {
	s.state = StateFailed
	s.failStatus = status
	return s.dataResponse(status)
}

// protocolError answers an out-of-place frame without changing state.
func (s *Session) protocolError(cmd dps.Command) []byte {
	switch cmd {
	case dps.CmdUpgradeStart:
		return s.startResponse(dps.UpgradeProtocolError, 0)
	case dps.CmdUpgradeData:
		return s.dataResponse(dps.UpgradeProtocolError)
	default:
		buf := make([]byte, dps.MaxFrameLength)
		n := dps.CreateResponse(buf, cmd, byte(dps.UpgradeProtocolError))
		return buf[:n]
	}
}

func (s *Session) startResponse(status dps.UpgradeStatus, chunkSize uint16) []byte {
	buf := make([]byte, dps.MaxFrameLength)
	n := dps.CreateUpgradeStartResponse(buf, status, chunkSize, s.reason)
	return buf[:n]
}

func (s *Session) dataResponse(status dps.UpgradeStatus) []byte {
	buf := make([]byte, dps.MaxFrameLength)
	n := dps.CreateUpgradeDataResponse(buf, status)
	return buf[:n]
}

// Run serves one complete upgrade session over the transport: frames in,
// responses out, until the session reaches a terminal state. On success the
// application is booted and Run returns nil; on failure it returns an
// *dps.UpgradeError and the caller decides whether to await a fresh session.
// Receive timeouts are ignored, the bootloader waits for the host.
func (s *Session) Run(ctx context.Context, t dps.Transport) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		payload, err := t.Receive()
		if err != nil {
			if dps.GetErrorType(err) == dps.ErrorTypeTimeout {
				continue
			}
			return err
		}

		resp := s.HandleFrame(payload)
		if err := t.Send(resp); err != nil {
			return err
		}

		switch s.state {
		case StateSuccess:
			s.flash.BootApplication()
			return nil
		case StateFailed:
			return &dps.UpgradeError{Status: s.failStatus}
		}
	}
}

// ErrSessionActive is returned by Reset while an upgrade is in progress.
var ErrSessionActive = errors.New("upgrade session still in progress")

// Reset prepares a terminal session object for reuse by a fresh
// upgrade_start. Resetting a running session is refused, the device-side
// rule is one session at a time.
func (s *Session) Reset() error {
	if s.state == StateReceiving || s.state == StateFinishing {
		return ErrSessionActive
	}
	s.state = StateIdle
	s.chunkSize = 0
	s.expectedCRC = 0
	s.crc = 0
	s.offset = 0
	s.erasedTo = 0
	s.failStatus = 0
	return nil
}
