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

import "encoding/binary"

// The basic frame payload is [cmd][optional payload...] to which the device
// responds [CmdResponse | cmd][success][response data...].
//
// All 16-bit fields are big-endian with one exception: the over-current
// protection event, the only frame the device originates on its own, carries
// its current in little-endian order. That asymmetry is part of the wire
// format and must not be "fixed".
//
// The Create helpers write a complete frame into the caller's buffer and
// return its length. If the buffer is too small they return 0 and leave the
// buffer untouched; a partial frame is never written.
//
// The Unpack helpers validate the leading command byte and the payload
// length, returning ok == false on any mismatch. Payloads longer than the
// fixed shape are accepted with the trailing bytes ignored, so a newer
// device can pad a frame without breaking an older host.

// MaxFrameLength is the size of the largest frame the protocol defines,
// based on the status response frame, fully escaped.
const MaxFrameLength = 2 * 16

// Fixed frame sizes, command byte included.
const (
	responseFrameLen       = 2
	statusResponseFrameLen = 13
	upgradeStartFrameLen   = 5
	upgradeStartRespLen    = 5
	upgradeDataRespLen     = 2
)

// CreateResponse builds a generic [CmdResponse | cmd][success] reply frame.
func CreateResponse(frame []byte, cmd Command, success byte) int {
	if len(frame) < responseFrameLen {
		return 0
	}
	frame[0] = cmd.WithResponse()
	frame[1] = success
	return responseFrameLen
}

// CreatePing builds a ping frame. Ping carries no payload.
func CreatePing(frame []byte) int {
	if len(frame) < 1 {
		return 0
	}
	frame[0] = byte(CmdPing)
	return 1
}

// CreatePowerEnable builds a power_enable frame. A non-zero enable byte
// turns the output on.
func CreatePowerEnable(frame []byte, enable byte) int {
	if len(frame) < 2 {
		return 0
	}
	frame[0] = byte(CmdPowerEnable)
	frame[1] = enable
	return 2
}

// CreateVout builds a set_vout frame. The voltage is in millivolts.
func CreateVout(frame []byte, voutMV uint16) int {
	if len(frame) < 3 {
		return 0
	}
	frame[0] = byte(CmdSetVout)
	binary.BigEndian.PutUint16(frame[1:3], voutMV)
	return 3
}

// CreateIlimit builds a set_ilimit frame. The current is in milliamperes.
func CreateIlimit(frame []byte, ilimitMA uint16) int {
	if len(frame) < 3 {
		return 0
	}
	frame[0] = byte(CmdSetIlimit)
	binary.BigEndian.PutUint16(frame[1:3], ilimitMA)
	return 3
}

// CreateStatus builds a status request frame. Status carries no payload.
func CreateStatus(frame []byte) int {
	if len(frame) < 1 {
		return 0
	}
	frame[0] = byte(CmdStatus)
	return 1
}

// CreateStatusResponse builds the status reply frame carrying all live
// measurements. This is the largest frame the protocol defines.
func CreateStatusResponse(frame []byte, vIn, vOutSetting, vOut, iOut, iLimit uint16, powerEnabled byte) int {
	if len(frame) < statusResponseFrameLen {
		return 0
	}
	frame[0] = CmdStatus.WithResponse()
	frame[1] = 1
	binary.BigEndian.PutUint16(frame[2:4], vIn)
	binary.BigEndian.PutUint16(frame[4:6], vOutSetting)
	binary.BigEndian.PutUint16(frame[6:8], vOut)
	binary.BigEndian.PutUint16(frame[8:10], iOut)
	binary.BigEndian.PutUint16(frame[10:12], iLimit)
	frame[12] = powerEnabled
	return statusResponseFrameLen
}

// CreateWifiStatus builds a wifi_status frame.
func CreateWifiStatus(frame []byte, status WifiStatus) int {
	if len(frame) < 2 {
		return 0
	}
	frame[0] = byte(CmdWifiStatus)
	frame[1] = byte(status)
	return 2
}

// CreateLock builds a lock frame. A non-zero locked byte locks the front
// panel controls.
func CreateLock(frame []byte, locked byte) int {
	if len(frame) < 2 {
		return 0
	}
	frame[0] = byte(CmdLock)
	frame[1] = locked
	return 2
}

// CreateOcp builds the unsolicited over-current protection event frame
// carrying the current that tripped the protection, in milliamperes.
// Note the little-endian byte order; see the package comment above.
func CreateOcp(frame []byte, iCut uint16) int {
	if len(frame) < 3 {
		return 0
	}
	frame[0] = byte(CmdOCPEvent)
	binary.LittleEndian.PutUint16(frame[1:3], iCut)
	return 3
}

// CreateUpgradeStart builds an upgrade_start frame requesting chunkSize
// bytes per data packet and announcing the CRC-16 of the image to follow.
func CreateUpgradeStart(frame []byte, chunkSize, crc uint16) int {
	if len(frame) < upgradeStartFrameLen {
		return 0
	}
	frame[0] = byte(CmdUpgradeStart)
	binary.BigEndian.PutUint16(frame[1:3], chunkSize)
	binary.BigEndian.PutUint16(frame[3:5], crc)
	return upgradeStartFrameLen
}

// CreateUpgradeStartResponse builds the bootloader's reply to upgrade_start.
// chunkSize is the agreed size, which may be smaller than requested and is
// authoritative for the remainder of the session.
func CreateUpgradeStartResponse(frame []byte, status UpgradeStatus, chunkSize uint16, reason UpgradeReason) int {
	if len(frame) < upgradeStartRespLen {
		return 0
	}
	frame[0] = CmdUpgradeStart.WithResponse()
	frame[1] = byte(status)
	binary.BigEndian.PutUint16(frame[2:4], chunkSize)
	frame[4] = byte(reason)
	return upgradeStartRespLen
}

// CreateUpgradeData builds an upgrade_data frame. A payload shorter than the
// agreed chunk size, including an empty one, signals the end of the image.
func CreateUpgradeData(frame []byte, data []byte) int {
	if len(frame) < 1+len(data) {
		return 0
	}
	frame[0] = byte(CmdUpgradeData)
	copy(frame[1:], data)
	return 1 + len(data)
}

// CreateUpgradeDataResponse builds the bootloader's per-chunk acknowledgement.
func CreateUpgradeDataResponse(frame []byte, status UpgradeStatus) int {
	if len(frame) < upgradeDataRespLen {
		return 0
	}
	frame[0] = CmdUpgradeData.WithResponse()
	frame[1] = byte(status)
	return upgradeDataRespLen
}

// UnpackResponse parses a generic reply frame, recovering which command is
// being acknowledged and the device's success byte.
func UnpackResponse(payload []byte) (cmd Command, success byte, ok bool) {
	if len(payload) < responseFrameLen || !IsResponse(payload[0]) {
		return 0, 0, false
	}
	cmd, _ = SplitResponse(payload[0])
	return cmd, payload[1], true
}

// UnpackPowerEnable parses a power_enable frame.
func UnpackPowerEnable(payload []byte) (enable byte, ok bool) {
	if len(payload) < 2 || payload[0] != byte(CmdPowerEnable) {
		return 0, false
	}
	return payload[1], true
}

// UnpackVout parses a set_vout frame.
func UnpackVout(payload []byte) (voutMV uint16, ok bool) {
	if len(payload) < 3 || payload[0] != byte(CmdSetVout) {
		return 0, false
	}
	return binary.BigEndian.Uint16(payload[1:3]), true
}

// UnpackIlimit parses a set_ilimit frame.
func UnpackIlimit(payload []byte) (ilimitMA uint16, ok bool) {
	if len(payload) < 3 || payload[0] != byte(CmdSetIlimit) {
		return 0, false
	}
	return binary.BigEndian.Uint16(payload[1:3]), true
}

// Status holds the measurements and settings reported by the status command.
// Voltages are millivolts, currents milliamperes.
type Status struct {
	VIn          uint16
	VOutSetting  uint16
	VOut         uint16
	IOut         uint16
	ILimit       uint16
	PowerEnabled bool
}

// UnpackStatusResponse parses the status reply frame.
func UnpackStatusResponse(payload []byte) (Status, bool) {
	if len(payload) < statusResponseFrameLen || payload[0] != CmdStatus.WithResponse() {
		return Status{}, false
	}
	return Status{
		VIn:          binary.BigEndian.Uint16(payload[2:4]),
		VOutSetting:  binary.BigEndian.Uint16(payload[4:6]),
		VOut:         binary.BigEndian.Uint16(payload[6:8]),
		IOut:         binary.BigEndian.Uint16(payload[8:10]),
		ILimit:       binary.BigEndian.Uint16(payload[10:12]),
		PowerEnabled: payload[12] != 0,
	}, true
}

// UnpackWifiStatus parses a wifi_status frame.
func UnpackWifiStatus(payload []byte) (WifiStatus, bool) {
	if len(payload) < 2 || payload[0] != byte(CmdWifiStatus) {
		return 0, false
	}
	return WifiStatus(payload[1]), true
}

// UnpackLock parses a lock frame.
func UnpackLock(payload []byte) (locked byte, ok bool) {
	if len(payload) < 2 || payload[0] != byte(CmdLock) {
		return 0, false
	}
	return payload[1], true
}

// UnpackOcp parses an over-current protection event frame. Little-endian,
// matching CreateOcp.
func UnpackOcp(payload []byte) (iCut uint16, ok bool) {
	if len(payload) < 3 || payload[0] != byte(CmdOCPEvent) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(payload[1:3]), true
}

// UnpackUpgradeStart parses an upgrade_start frame.
func UnpackUpgradeStart(payload []byte) (chunkSize, crc uint16, ok bool) {
	if len(payload) < upgradeStartFrameLen || payload[0] != byte(CmdUpgradeStart) {
		return 0, 0, false
	}
	return binary.BigEndian.Uint16(payload[1:3]), binary.BigEndian.Uint16(payload[3:5]), true
}

// UnpackUpgradeStartResponse parses the bootloader's reply to upgrade_start.
func UnpackUpgradeStartResponse(payload []byte) (status UpgradeStatus, chunkSize uint16, reason UpgradeReason, ok bool) {
	if len(payload) < upgradeStartRespLen || payload[0] != CmdUpgradeStart.WithResponse() {
		return 0, 0, 0, false
	}
	return UpgradeStatus(payload[1]), binary.BigEndian.Uint16(payload[2:4]), UpgradeReason(payload[4]), true
}

// UnpackUpgradeData parses an upgrade_data frame. The returned slice aliases
// the input payload.
func UnpackUpgradeData(payload []byte) (data []byte, ok bool) {
	if len(payload) < 1 || payload[0] != byte(CmdUpgradeData) {
		return nil, false
	}
	return payload[1:], true
}

// UnpackUpgradeDataResponse parses the bootloader's per-chunk acknowledgement.
func UnpackUpgradeDataResponse(payload []byte) (UpgradeStatus, bool) {
	if len(payload) < upgradeDataRespLen || payload[0] != CmdUpgradeData.WithResponse() {
		return 0, false
	}
	return UpgradeStatus(payload[1]), true
}
