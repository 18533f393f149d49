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

// Command identifies one operation of the OpenDPS serial protocol.
// Identifiers are small non-zero integers; the response flag occupies the
// high bit of the same wire byte and never collides with them.
type Command byte

// Protocol command codes
const (
	CmdPing Command = iota + 1
	CmdSetVout
	CmdSetIlimit
	CmdStatus
	CmdPowerEnable
	CmdWifiStatus
	CmdLock
	CmdOCPEvent
	CmdUpgradeStart
	CmdUpgradeData
)

// CmdResponse is the flag OR'd into the command byte of a reply frame.
// It is not a command of its own.
const CmdResponse Command = 0x80

// Direction describes which end of the link originates a command.
type Direction int

// Command directions
const (
	DirHostToDevice Direction = iota
	DirDeviceToHost
	DirBoth
)

// VariableLength marks commands whose request payload size is not fixed.
const VariableLength = -1

// CommandInfo describes the static properties of one command: its protocol
// name, the size of the request payload following the command byte
// (VariableLength for upgrade data), and which end originates it.
type CommandInfo struct {
	Name       string
	PayloadLen int
	Direction  Direction
}

var commandTable = map[Command]CommandInfo{
	CmdPing:         {Name: "ping", PayloadLen: 0, Direction: DirHostToDevice},
	CmdSetVout:      {Name: "set_vout", PayloadLen: 2, Direction: DirHostToDevice},
	CmdSetIlimit:    {Name: "set_ilimit", PayloadLen: 2, Direction: DirHostToDevice},
	CmdStatus:       {Name: "status", PayloadLen: 0, Direction: DirHostToDevice},
	CmdPowerEnable:  {Name: "power_enable", PayloadLen: 1, Direction: DirHostToDevice},
	CmdWifiStatus:   {Name: "wifi_status", PayloadLen: 1, Direction: DirHostToDevice},
	CmdLock:         {Name: "lock", PayloadLen: 1, Direction: DirHostToDevice},
	CmdOCPEvent:     {Name: "ocp_event", PayloadLen: 2, Direction: DirDeviceToHost},
	CmdUpgradeStart: {Name: "upgrade_start", PayloadLen: 4, Direction: DirHostToDevice},
	CmdUpgradeData:  {Name: "upgrade_data", PayloadLen: VariableLength, Direction: DirHostToDevice},
}

// Lookup returns the static description of cmd. The second return value is
// false for bytes that are not defined commands (including the bare response
// flag).
func Lookup(cmd Command) (CommandInfo, bool) {
	info, ok := commandTable[cmd]
	return info, ok
}

// Commands returns all defined command identifiers in wire-value order.
// Used by dispatchers and by tests that enumerate the command set.
func Commands() []Command {
	cmds := make([]Command, 0, len(commandTable))
	for c := CmdPing; c <= CmdUpgradeData; c++ {
		cmds = append(cmds, c)
	}
	return cmds
}

// IsResponse reports whether the wire byte b carries the response flag.
func IsResponse(b byte) bool {
	return b&byte(CmdResponse) != 0
}

// SplitResponse separates a wire command byte into the command identifier
// and the response flag. Modelling the two as separate values keeps the bit
// masking in one place instead of scattered through call sites.
func SplitResponse(b byte) (cmd Command, isResponse bool) {
	return Command(b &^ byte(CmdResponse)), IsResponse(b)
}

// WithResponse returns the wire byte of a reply frame for c.
func (c Command) WithResponse() byte {
	return byte(c) | byte(CmdResponse)
}

// String returns the protocol name of the command.
func (c Command) String() string {
	if info, ok := commandTable[c]; ok {
		return info.Name
	}
	if c == CmdResponse {
		return "response"
	}
	return "unknown"
}
