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
	"context"
	"fmt"

	"github.com/opendps-project/go-dps/internal/frame"
)

// DefaultUpgradeChunkSize is the chunk size requested from the bootloader
// unless overridden. The bootloader may clamp it. It is the largest chunk
// the wire framing can carry in one upgrade_data frame.
const DefaultUpgradeChunkSize = frame.MaxPayloadLength - 1

// UpgradeProgress is passed to the progress callback after each
// acknowledged chunk.
type UpgradeProgress struct {
	BytesSent  int
	TotalBytes int
	ChunkSize  uint16
}

// UpgradeProgressFunc receives progress updates during an upgrade. It runs
// on the goroutine driving the session and should return quickly.
type UpgradeProgressFunc func(UpgradeProgress)

// UpgradeOption is a functional option for configuring an upgrade session.
type UpgradeOption func(*upgradeConfig)

type upgradeConfig struct {
	progress  UpgradeProgressFunc
	chunkSize uint16
	force     bool
}

// WithUpgradeChunkSize sets the chunk size to request from the bootloader.
// The size the bootloader confirms is authoritative and may be smaller.
func WithUpgradeChunkSize(size uint16) UpgradeOption {
	return func(c *upgradeConfig) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithUpgradeForce skips the firmware image sanity check.
func WithUpgradeForce(force bool) UpgradeOption {
	return func(c *upgradeConfig) {
		c.force = force
	}
}

// WithUpgradeProgress sets a callback reporting upgrade progress.
func WithUpgradeProgress(fn UpgradeProgressFunc) UpgradeOption {
	return func(c *upgradeConfig) {
		c.progress = fn
	}
}

// Upgrade flashes a new firmware image onto the device.
func (d *Device) Upgrade(image []byte, opts ...UpgradeOption) error {
	return d.UpgradeContext(context.Background(), image, opts...)
}

// UpgradeContext drives a complete firmware upgrade session against the
// bootloader: it announces the image CRC, adopts whatever chunk size the
// bootloader confirms, streams the image chunk by chunk and ends the
// session with a short or empty chunk.
//
// The protocol defines no retry within a session. Any terminal status other
// than success is returned as an *UpgradeError and the whole session must
// be restarted to recover.
func (d *Device) UpgradeContext(ctx context.Context, image []byte, opts ...UpgradeOption) error {
	cfg := upgradeConfig{chunkSize: DefaultUpgradeChunkSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	if !cfg.force {
		if err := validateImage(image); err != nil {
			return err
		}
	}

	chunkSize, err := d.upgradeStart(ctx, cfg.chunkSize, frame.Checksum(image))
	if err != nil {
		return err
	}

	return d.upgradeStream(ctx, image, chunkSize, cfg.progress)
}

// upgradeStart negotiates the session and returns the agreed chunk size.
func (d *Device) upgradeStart(ctx context.Context, requested uint16, crc uint16) (uint16, error) {
	var buf [MaxFrameLength]byte
	n := CreateUpgradeStart(buf[:], requested, crc)

	resp, err := d.exchange(ctx, buf[:n])
	if err != nil {
		return 0, fmt.Errorf("upgrade start: %w", err)
	}

	status, chunkSize, reason, ok := UnpackUpgradeStartResponse(resp)
	if !ok {
		return 0, fmt.Errorf("upgrade start: %w", ErrUnexpectedResponse)
	}
	if status != UpgradeContinue {
		return 0, &UpgradeError{Status: status}
	}
	if chunkSize == 0 {
		return 0, fmt.Errorf("upgrade start: zero chunk size: %w", ErrUnexpectedResponse)
	}

	if chunkSize != requested {
		d.log.Info().Uint16("requested", requested).Uint16("agreed", chunkSize).
			Msg("bootloader clamped chunk size")
	}
	d.log.Info().Stringer("reason", reason).Msg("bootloader entered upgrade mode")

	return chunkSize, nil
}

// upgradeStream sends the image in chunks of exactly chunkSize bytes. The
// final chunk is shorter than chunkSize (empty when the image is an exact
// multiple) and doubles as the end-of-image signal; the bootloader answers
// it with its CRC verdict instead of a go-ahead.
func (d *Device) upgradeStream(ctx context.Context, image []byte, chunkSize uint16, progress UpgradeProgressFunc) error {
	txBuf := make([]byte, 1+int(chunkSize))
	total := len(image)
	sent := 0

	for {
		end := sent + int(chunkSize)
		if end > total {
			end = total
		}
		data := image[sent:end]

		n := CreateUpgradeData(txBuf, data)
		resp, err := d.exchange(ctx, txBuf[:n])
		if err != nil {
			return fmt.Errorf("upgrade data at offset %d: %w", sent, err)
		}

		status, ok := UnpackUpgradeDataResponse(resp)
		if !ok {
			return fmt.Errorf("upgrade data at offset %d: %w", sent, ErrUnexpectedResponse)
		}

		sent = end
		if progress != nil {
			progress(UpgradeProgress{BytesSent: sent, TotalBytes: total, ChunkSize: chunkSize})
		}

		if len(data) < int(chunkSize) {
			// terminating chunk, the verdict is final
			if status == UpgradeSuccess {
				d.log.Info().Int("bytes", total).Msg("upgrade complete")
				return nil
			}
			return &UpgradeError{Status: status}
		}
		if status != UpgradeContinue {
			return &UpgradeError{Status: status}
		}
	}
}

// validateImage rejects images that cannot be a firmware binary for the
// device. The vector table starts with the initial stack pointer, which on
// this hardware lives in the 0x20000000 SRAM region.
func validateImage(image []byte) error {
	if len(image) < 8 || image[3] != 0x20 {
		return ErrFirmwareInvalid
	}
	return nil
}
