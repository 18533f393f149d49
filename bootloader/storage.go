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

package bootloader

// Flash abstracts the application flash region the upgrade session writes
// into. Pages must be erased before they are written.
type Flash interface {
	// PageSize returns the erase granularity in bytes
	PageSize() uint32

	// Size returns the capacity available for the application image
	Size() uint32

	// Erase erases the page containing addr
	Erase(addr uint32) error

	// Write programs data at addr. The covered pages must have been erased.
	Write(addr uint32, data []byte) error

	// BootApplication hands control to the application image. It is only
	// called after a successful upgrade.
	BootApplication()
}

// Bootcom is the boot-communication store that survives a device reset. The
// application writes the upgrade request into it before rebooting into the
// bootloader; the bootloader keeps it set while an upgrade is unfinished
// and clears it once the new image has verified.
type Bootcom interface {
	// Write persists an upgrade request
	Write(chunkSize, crc uint16) error

	// Read returns the persisted upgrade request, if any
	Read() (chunkSize, crc uint16, ok bool)

	// Clear removes the persisted upgrade request
	Clear() error
}
