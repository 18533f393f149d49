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

// Package testing provides a virtual DPS device and canned response frames
// for tests. It deliberately spells out every byte instead of reusing the
// protocol helpers so that tests exercising those helpers have an
// independent source of truth.
package testing

// Command bytes for reference
const (
	CmdPing         = 0x01
	CmdSetVout      = 0x02
	CmdSetIlimit    = 0x03
	CmdStatus       = 0x04
	CmdPowerEnable  = 0x05
	CmdWifiStatus   = 0x06
	CmdLock         = 0x07
	CmdOcpEvent     = 0x08
	CmdUpgradeStart = 0x09
	CmdUpgradeData  = 0x0A

	// ResponseBit is OR'd into the command byte of every response
	ResponseBit = 0x80
)

// BuildResponse creates the two byte acknowledgement for a command
func BuildResponse(cmd byte, success bool) []byte {
	s := byte(0)
	if success {
		s = 1
	}
	return []byte{cmd | ResponseBit, s}
}

// BuildStatusResponse creates a cmd_status response frame
func BuildStatusResponse(vIn, vSet, vOut, iOut, iLimit uint16, powerEnabled bool) []byte {
	p := byte(0)
	if powerEnabled {
		p = 1
	}
	return []byte{
		CmdStatus | ResponseBit, 1,
		byte(vIn >> 8), byte(vIn),
		byte(vSet >> 8), byte(vSet),
		byte(vOut >> 8), byte(vOut),
		byte(iOut >> 8), byte(iOut),
		byte(iLimit >> 8), byte(iLimit),
		p,
	}
}

// BuildOcpEvent creates an unsolicited over-current event frame. The
// current is little endian on the wire, unlike every other field.
func BuildOcpEvent(iCutMA uint16) []byte {
	return []byte{CmdOcpEvent, byte(iCutMA), byte(iCutMA >> 8)}
}

// BuildUpgradeStartResponse creates an upgrade_start response frame
func BuildUpgradeStartResponse(status byte, chunkSize uint16, reason byte) []byte {
	return []byte{
		CmdUpgradeStart | ResponseBit, status,
		byte(chunkSize >> 8), byte(chunkSize),
		reason,
	}
}

// BuildUpgradeDataResponse creates an upgrade_data response frame
func BuildUpgradeDataResponse(status byte) []byte {
	return []byte{CmdUpgradeData | ResponseBit, status}
}
