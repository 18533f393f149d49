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

package testing

import "encoding/binary"

// VirtualDevice simulates the application firmware of a DPS unit: a handful
// of registers and the command handling of its serial task. It speaks raw
// frame payloads so it can back any transport in tests.
type VirtualDevice struct {
	VIn        uint16 // millivolts at the input terminals
	VSet       uint16 // requested output voltage
	IOut       uint16 // simulated load current when power is on
	ILimit     uint16
	PowerOn    bool
	Locked     bool
	WifiStatus byte

	// RejectWrites makes every settings command fail, the way locked
	// firmware refuses remote control from an unexpected source.
	RejectWrites bool
}

// NewVirtualDevice creates a device with typical bench values: 12 V in,
// output off, 5 V / 1 A programmed.
func NewVirtualDevice() *VirtualDevice {
	return &VirtualDevice{
		VIn:    12000,
		VSet:   5000,
		ILimit: 1000,
	}
}

// VOut returns the simulated output terminal voltage.
func (d *VirtualDevice) VOut() uint16 {
	if d.PowerOn {
		return d.VSet
	}
	return 0
}

// HandleFrame processes one command payload and returns the response
// payload, exactly as the firmware's protocol task would.
func (d *VirtualDevice) HandleFrame(payload []byte) []byte {
	if len(payload) == 0 {
		return BuildResponse(0, false)
	}
	cmd := payload[0]

	switch cmd {
	case CmdPing:
		return BuildResponse(cmd, true)

	case CmdSetVout:
		if len(payload) < 3 || d.writesBlocked() {
			return BuildResponse(cmd, false)
		}
		d.VSet = binary.BigEndian.Uint16(payload[1:3])
		return BuildResponse(cmd, true)

	case CmdSetIlimit:
		if len(payload) < 3 || d.writesBlocked() {
			return BuildResponse(cmd, false)
		}
		d.ILimit = binary.BigEndian.Uint16(payload[1:3])
		return BuildResponse(cmd, true)

	case CmdStatus:
		iOut := uint16(0)
		if d.PowerOn {
			iOut = d.IOut
		}
		return BuildStatusResponse(d.VIn, d.VSet, d.VOut(), iOut, d.ILimit, d.PowerOn)

	case CmdPowerEnable:
		if len(payload) < 2 || d.writesBlocked() {
			return BuildResponse(cmd, false)
		}
		d.PowerOn = payload[1] != 0
		return BuildResponse(cmd, true)

	case CmdWifiStatus:
		if len(payload) < 2 {
			return BuildResponse(cmd, false)
		}
		d.WifiStatus = payload[1]
		return BuildResponse(cmd, true)

	case CmdLock:
		if len(payload) < 2 {
			return BuildResponse(cmd, false)
		}
		d.Locked = payload[1] != 0
		return BuildResponse(cmd, true)

	default:
		// unknown commands are answered, never dropped
		return BuildResponse(cmd, false)
	}
}

func (d *VirtualDevice) writesBlocked() bool {
	return d.RejectWrites
}

// TripOCP simulates an over-current event: power drops and the unsolicited
// event frame that the firmware pushes is returned for the test to inject.
func (d *VirtualDevice) TripOCP(iCutMA uint16) []byte {
	d.PowerOn = false
	return BuildOcpEvent(iCutMA)
}
