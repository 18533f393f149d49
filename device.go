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
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// OCPHandler receives unsolicited over-current protection events. iCutMA is
// the current that tripped the protection, in milliamperes. Handlers run on
// the goroutine performing the exchange and should return quickly.
type OCPHandler func(iCutMA uint16)

// DeviceConfig contains configuration options for the Device
type DeviceConfig struct {
	// RetryConfig configures retry behavior for simple commands
	RetryConfig *RetryConfig
	// Timeout is the default timeout for exchanges
	Timeout time.Duration
}

// DefaultDeviceConfig returns default device configuration
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		RetryConfig: DefaultRetryConfig(),
		Timeout:     1 * time.Second,
	}
}

// Device represents an OpenDPS power supply reachable over a Transport.
//
// The device speaks a strictly half-duplex protocol: one command, one
// response. Device serializes its exchanges with an internal mutex, so its
// methods may be called from multiple goroutines.
type Device struct {
	transport  Transport
	config     *DeviceConfig
	log        zerolog.Logger
	ocpHandler OCPHandler
	mu         sync.Mutex
}

// New creates a new Device on the given transport
func New(transport Transport, opts ...Option) (*Device, error) {
	device := &Device{
		transport: transport,
		config:    DefaultDeviceConfig(),
		log:       zerolog.Nop(),
	}

	for _, opt := range opts {
		if err := opt(device); err != nil {
			return nil, err
		}
	}

	if device.config.Timeout > 0 {
		if err := device.SetTimeout(device.config.Timeout); err != nil {
			return nil, err
		}
	}

	return device, nil
}

// Transport returns the underlying transport
func (d *Device) Transport() Transport {
	return d.transport
}

// SetTimeout sets the default timeout for exchanges
func (d *Device) SetTimeout(timeout time.Duration) error {
	d.config.Timeout = timeout
	if err := d.transport.SetTimeout(timeout); err != nil {
		return fmt.Errorf("failed to set timeout on transport: %w", err)
	}
	return nil
}

// SetRetryConfig updates the retry configuration
func (d *Device) SetRetryConfig(config *RetryConfig) {
	d.config.RetryConfig = config
}

// Close closes the device connection
func (d *Device) Close() error {
	if d.transport != nil {
		if err := d.transport.Close(); err != nil {
			return fmt.Errorf("failed to close transport: %w", err)
		}
	}
	return nil
}

// Ping checks that the device is online
func (d *Device) Ping() error {
	return d.PingContext(context.Background())
}

// PingContext checks that the device is online
func (d *Device) PingContext(ctx context.Context) error {
	var buf [MaxFrameLength]byte
	n := CreatePing(buf[:])
	return d.simpleCommand(ctx, buf[:n], CmdPing)
}

// SetVoltage sets the output voltage in millivolts
func (d *Device) SetVoltage(voutMV uint16) error {
	return d.SetVoltageContext(context.Background(), voutMV)
}

// SetVoltageContext sets the output voltage in millivolts. The device rejects
// voltages outside its range; that surfaces as ErrCommandFailed.
func (d *Device) SetVoltageContext(ctx context.Context, voutMV uint16) error {
	var buf [MaxFrameLength]byte
	n := CreateVout(buf[:], voutMV)
	return d.simpleCommand(ctx, buf[:n], CmdSetVout)
}

// SetCurrent sets the maximum output current in milliamperes
func (d *Device) SetCurrent(ilimitMA uint16) error {
	return d.SetCurrentContext(context.Background(), ilimitMA)
}

// SetCurrentContext sets the maximum output current in milliamperes
func (d *Device) SetCurrentContext(ctx context.Context, ilimitMA uint16) error {
	var buf [MaxFrameLength]byte
	n := CreateIlimit(buf[:], ilimitMA)
	return d.simpleCommand(ctx, buf[:n], CmdSetIlimit)
}

// SetPowerEnable enables or disables the power output
func (d *Device) SetPowerEnable(enable bool) error {
	return d.SetPowerEnableContext(context.Background(), enable)
}

// SetPowerEnableContext enables or disables the power output
func (d *Device) SetPowerEnableContext(ctx context.Context, enable bool) error {
	var buf [MaxFrameLength]byte
	n := CreatePowerEnable(buf[:], boolByte(enable))
	return d.simpleCommand(ctx, buf[:n], CmdPowerEnable)
}

// SetLocked locks or unlocks the front panel controls
func (d *Device) SetLocked(locked bool) error {
	return d.SetLockedContext(context.Background(), locked)
}

// SetLockedContext locks or unlocks the front panel controls
func (d *Device) SetLockedContext(ctx context.Context, locked bool) error {
	var buf [MaxFrameLength]byte
	n := CreateLock(buf[:], boolByte(locked))
	return d.simpleCommand(ctx, buf[:n], CmdLock)
}

// SetWifiStatus updates the wifi indicator on the device screen
func (d *Device) SetWifiStatus(status WifiStatus) error {
	return d.SetWifiStatusContext(context.Background(), status)
}

// SetWifiStatusContext updates the wifi indicator on the device screen
func (d *Device) SetWifiStatusContext(ctx context.Context, status WifiStatus) error {
	var buf [MaxFrameLength]byte
	n := CreateWifiStatus(buf[:], status)
	return d.simpleCommand(ctx, buf[:n], CmdWifiStatus)
}

// Status reads the live measurements and settings from the device
func (d *Device) Status() (Status, error) {
	return d.StatusContext(context.Background())
}

// StatusContext reads the live measurements and settings from the device
func (d *Device) StatusContext(ctx context.Context) (Status, error) {
	var buf [MaxFrameLength]byte
	n := CreateStatus(buf[:])

	resp, err := d.exchangeRetry(ctx, buf[:n])
	if err != nil {
		return Status{}, err
	}

	status, ok := UnpackStatusResponse(resp)
	if !ok {
		return Status{}, fmt.Errorf("status: %w", ErrUnexpectedResponse)
	}
	return status, nil
}

// simpleCommand performs one command expecting the generic
// [response | cmd][success] acknowledgement.
func (d *Device) simpleCommand(ctx context.Context, frame []byte, cmd Command) error {
	resp, err := d.exchangeRetry(ctx, frame)
	if err != nil {
		return err
	}

	respCmd, success, ok := UnpackResponse(resp)
	if !ok || respCmd != cmd {
		return fmt.Errorf("%s: %w", cmd, ErrUnexpectedResponse)
	}
	if success == 0 {
		return fmt.Errorf("%s: %w", cmd, ErrCommandFailed)
	}
	return nil
}

// exchangeRetry performs an exchange with the configured retry policy.
// Retrying a whole exchange is safe for simple commands because they are
// idempotent; upgrade traffic bypasses this and uses exchange directly.
func (d *Device) exchangeRetry(ctx context.Context, frame []byte) ([]byte, error) {
	var resp []byte
	err := RetryWithConfig(ctx, d.config.RetryConfig, func() error {
		var err error
		resp, err = d.exchange(ctx, frame)
		return err
	})
	return resp, err
}

// exchange sends one frame and waits for its response. Unsolicited OCP
// event frames arriving in between are dispatched to the registered handler
// and the wait continues.
func (d *Device) exchange(ctx context.Context, frame []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.log.Trace().Hex("tx", frame).Msg("frame sent")
	if err := d.transport.Send(frame); err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}

	for {
		resp, err := d.transport.Receive()
		if err != nil {
			return nil, fmt.Errorf("receive: %w", err)
		}
		d.log.Trace().Hex("rx", resp).Msg("frame received")

		if len(resp) > 0 && resp[0] == byte(CmdOCPEvent) {
			d.dispatchOCP(resp)
			continue
		}
		return resp, nil
	}
}

// dispatchOCP delivers an unsolicited over-current event to the handler.
func (d *Device) dispatchOCP(payload []byte) {
	iCut, ok := UnpackOcp(payload)
	if !ok {
		d.log.Warn().Hex("frame", payload).Msg("malformed ocp event")
		return
	}
	d.log.Warn().Uint16("i_cut_ma", iCut).Msg("over-current protection tripped")
	if d.ocpHandler != nil {
		d.ocpHandler(iCut)
	}
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
