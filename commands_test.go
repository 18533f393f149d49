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
)

func TestCommandWireValues(t *testing.T) {
	t.Parallel()

	// the numeric values are the wire protocol, not an implementation detail
	assert.Equal(t, Command(1), CmdPing)
	assert.Equal(t, Command(2), CmdSetVout)
	assert.Equal(t, Command(3), CmdSetIlimit)
	assert.Equal(t, Command(4), CmdStatus)
	assert.Equal(t, Command(5), CmdPowerEnable)
	assert.Equal(t, Command(6), CmdWifiStatus)
	assert.Equal(t, Command(7), CmdLock)
	assert.Equal(t, Command(8), CmdOCPEvent)
	assert.Equal(t, Command(9), CmdUpgradeStart)
	assert.Equal(t, Command(10), CmdUpgradeData)
	assert.Equal(t, Command(0x80), CmdResponse)
}

func TestCommandRegistry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		cmd        Command
		payloadLen int
		direction  Direction
	}{
		{"ping", CmdPing, 0, DirHostToDevice},
		{"set_vout", CmdSetVout, 2, DirHostToDevice},
		{"set_ilimit", CmdSetIlimit, 2, DirHostToDevice},
		{"status", CmdStatus, 0, DirHostToDevice},
		{"power_enable", CmdPowerEnable, 1, DirHostToDevice},
		{"wifi_status", CmdWifiStatus, 1, DirHostToDevice},
		{"lock", CmdLock, 1, DirHostToDevice},
		{"ocp_event", CmdOCPEvent, 2, DirDeviceToHost},
		{"upgrade_start", CmdUpgradeStart, 4, DirHostToDevice},
		{"upgrade_data", CmdUpgradeData, VariableLength, DirHostToDevice},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			info, ok := Lookup(tt.cmd)
			require.True(t, ok)
			assert.Equal(t, tt.name, info.Name)
			assert.Equal(t, tt.payloadLen, info.PayloadLen)
			assert.Equal(t, tt.direction, info.Direction)
			assert.Equal(t, tt.name, tt.cmd.String())
		})
	}
}

func TestCommandsEnumeratesAllDefined(t *testing.T) {
	t.Parallel()

	cmds := Commands()
	require.Len(t, cmds, 10)

	for i, cmd := range cmds {
		assert.Equal(t, Command(i+1), cmd, "commands must come out in wire-value order")
		_, ok := Lookup(cmd)
		assert.True(t, ok)
	}
}

func TestLookupRejectsUndefined(t *testing.T) {
	t.Parallel()

	for _, b := range []Command{0, 11, 0x7F, CmdResponse, 0xFF} {
		_, ok := Lookup(b)
		assert.False(t, ok, "byte 0x%02X must not be a command", byte(b))
	}
}

func TestResponseFlag(t *testing.T) {
	t.Parallel()

	assert.Equal(t, byte(0x84), CmdStatus.WithResponse())
	assert.True(t, IsResponse(0x84))
	assert.False(t, IsResponse(0x04))

	cmd, isResp := SplitResponse(0x8A)
	assert.Equal(t, CmdUpgradeData, cmd)
	assert.True(t, isResp)

	cmd, isResp = SplitResponse(0x01)
	assert.Equal(t, CmdPing, cmd)
	assert.False(t, isResp)
}

func TestCommandStringUnknown(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "unknown", Command(0x42).String())
	assert.Equal(t, "response", CmdResponse.String())
}

func TestStatusEnumStrings(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "connected", WifiConnected.String())
	assert.Equal(t, "upgrading", WifiUpgrading.String())
	assert.Equal(t, "success", UpgradeSuccess.String())
	assert.Equal(t, "crc error", UpgradeCRCError.String())
	assert.Equal(t, "bootcom request", ReasonBootcom.String())
	assert.Equal(t, "unknown", UpgradeStatus(99).String())
}

func TestUpgradeEnumWireValues(t *testing.T) {
	t.Parallel()

	assert.Equal(t, UpgradeStatus(0), UpgradeContinue)
	assert.Equal(t, UpgradeStatus(1), UpgradeBootcomError)
	assert.Equal(t, UpgradeStatus(2), UpgradeCRCError)
	assert.Equal(t, UpgradeStatus(3), UpgradeEraseError)
	assert.Equal(t, UpgradeStatus(4), UpgradeFlashError)
	assert.Equal(t, UpgradeStatus(5), UpgradeOverflowError)
	assert.Equal(t, UpgradeStatus(6), UpgradeProtocolError)
	assert.Equal(t, UpgradeStatus(16), UpgradeSuccess)

	assert.Equal(t, UpgradeReason(0), ReasonUnknown)
	assert.Equal(t, UpgradeReason(1), ReasonForced)
	assert.Equal(t, UpgradeReason(2), ReasonPastFailure)
	assert.Equal(t, UpgradeReason(3), ReasonBootcom)
	assert.Equal(t, UpgradeReason(4), ReasonUnfinishedUpgrade)
	assert.Equal(t, UpgradeReason(5), ReasonAppStartFailed)

	assert.Equal(t, WifiStatus(0), WifiOff)
	assert.Equal(t, WifiStatus(4), WifiUpgrading)
}
