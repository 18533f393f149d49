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

// WifiStatus is the wifi indicator state shown on the device screen.
// It is purely informational payload for the wifi_status command.
type WifiStatus byte

// Wifi states
const (
	WifiOff WifiStatus = iota
	WifiConnecting
	WifiConnected
	WifiError
	WifiUpgrading // Used by the wifi bridge when doing FOTA
)

// String returns a short human readable name for the wifi state.
func (s WifiStatus) String() string {
	switch s {
	case WifiOff:
		return "off"
	case WifiConnecting:
		return "connecting"
	case WifiConnected:
		return "connected"
	case WifiError:
		return "error"
	case WifiUpgrading:
		return "upgrading"
	default:
		return "unknown"
	}
}

// UpgradeStatus is the outcome code the bootloader reports during an upgrade
// session. The numeric values are part of the wire protocol. UpgradeSuccess
// sits at 16, away from the error codes, so future errors can be added
// without renumbering it.
type UpgradeStatus byte

// Upgrade session outcomes
const (
	UpgradeContinue      UpgradeStatus = 0  // go-ahead for continued upgrade
	UpgradeBootcomError  UpgradeStatus = 1  // errors in the bootcom data
	UpgradeCRCError      UpgradeStatus = 2  // crc verification of the image failed
	UpgradeEraseError    UpgradeStatus = 3  // error while erasing flash
	UpgradeFlashError    UpgradeStatus = 4  // error while writing to flash
	UpgradeOverflowError UpgradeStatus = 5  // image would overflow flash
	UpgradeProtocolError UpgradeStatus = 6  // upgrade data without upgrade start, or sizing violation
	UpgradeSuccess       UpgradeStatus = 16 // entire image received and verified
)

// String returns a short human readable name for the upgrade outcome.
func (s UpgradeStatus) String() string {
	switch s {
	case UpgradeContinue:
		return "continue"
	case UpgradeBootcomError:
		return "bootcom error"
	case UpgradeCRCError:
		return "crc error"
	case UpgradeEraseError:
		return "erase error"
	case UpgradeFlashError:
		return "flash error"
	case UpgradeOverflowError:
		return "overflow error"
	case UpgradeProtocolError:
		return "protocol error"
	case UpgradeSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// UpgradeReason describes why the device entered upgrade mode. The bootloader
// reports it in the upgrade_start response.
type UpgradeReason byte

// Upgrade reasons
const (
	ReasonUnknown           UpgradeReason = iota // no idea why we are here
	ReasonForced                                 // user forced via button
	ReasonPastFailure                            // persistent storage init failed
	ReasonBootcom                                // app requested via bootcom
	ReasonUnfinishedUpgrade                      // a previous upgrade never finished
	ReasonAppStartFailed                         // app returned
)

// String returns a short human readable name for the upgrade reason.
func (r UpgradeReason) String() string {
	switch r {
	case ReasonUnknown:
		return "unknown"
	case ReasonForced:
		return "forced by user"
	case ReasonPastFailure:
		return "persistent storage failure"
	case ReasonBootcom:
		return "bootcom request"
	case ReasonUnfinishedUpgrade:
		return "unfinished upgrade"
	case ReasonAppStartFailed:
		return "app start failed"
	default:
		return "unknown"
	}
}
