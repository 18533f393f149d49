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

/*
Package dps provides a pure Go library for instrumenting OpenDPS bench power
supplies over their serial protocol.

Everything that can be done with the buttons and dial on the device can be
done over the wire: reading live measurements, setting output voltage and
current limits, toggling the power output, locking the front panel, and
driving firmware upgrade sessions against the bootloader.

The wire protocol is a simple command/response exchange. A frame is a command
byte followed by a fixed-shape payload; the device answers with the same
command byte OR'd with the response flag. Frames are delimited and escaped on
the raw byte stream by the transport layer (see the transport/uart and
transport/udp packages), which also appends a CRC-16 trailer.

Basic Usage:

	import (
	    dps "github.com/opendps-project/go-dps"
	    "github.com/opendps-project/go-dps/transport/uart"
	)

	// Create a UART transport
	transport, err := uart.New("/dev/ttyUSB0")
	if err != nil {
	    log.Fatal(err)
	}
	defer transport.Close()

	device, err := dps.New(transport,
	    dps.WithTimeout(2*time.Second),
	)
	if err != nil {
	    log.Fatal(err)
	}

	// Set 3.3 V, 500 mA, power on
	if err := device.SetVoltage(3300); err != nil {
	    log.Fatal(err)
	}
	if err := device.SetCurrent(500); err != nil {
	    log.Fatal(err)
	}
	if err := device.SetPowerEnable(true); err != nil {
	    log.Fatal(err)
	}

	status, err := device.Status()
	if err != nil {
	    log.Fatal(err)
	}
	fmt.Printf("V_out: %d mV  I_out: %d mA\n", status.VOut, status.IOut)

Firmware Upgrades:

The Upgrade method drives the complete upgrade session: it negotiates a chunk
size with the bootloader, streams the image with per-chunk acknowledgement and
reports the device's CRC verdict. See the bootloader package for the
device-side state machine.

Unsolicited Events:

The one frame the device sends on its own is the over-current protection
event. Register a handler with WithOCPHandler to receive it; it may arrive
at any time, including while a command response is pending.

Error Handling:

All operations return inspectable errors:

	if errors.Is(err, dps.ErrTransportTimeout) {
	    // Handle timeout
	}

Thread Safety:

A Device serializes its exchanges internally, matching the strictly
half-duplex protocol. The frame helpers in this package are pure functions
and safe for concurrent use.
*/
package dps
