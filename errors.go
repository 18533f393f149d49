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
	"errors"
	"fmt"
)

// Transport and protocol errors
var (
	// ErrTransportTimeout indicates a read or write timed out
	ErrTransportTimeout = errors.New("transport timeout")
	// ErrTransportRead indicates a read from the transport failed
	ErrTransportRead = errors.New("transport read failed")
	// ErrTransportWrite indicates a write to the transport failed
	ErrTransportWrite = errors.New("transport write failed")
	// ErrCommunicationFailed indicates the exchange with the device failed
	ErrCommunicationFailed = errors.New("communication with device failed")
	// ErrFrameCorrupted indicates a received frame could not be deframed
	ErrFrameCorrupted = errors.New("frame corrupted")
	// ErrChecksumMismatch indicates a received frame failed CRC validation
	ErrChecksumMismatch = errors.New("frame checksum mismatch")
	// ErrFrameTooLarge indicates a frame exceeds MaxFrameLength
	ErrFrameTooLarge = errors.New("frame exceeds maximum length")
	// ErrUnexpectedResponse indicates the device answered with the wrong frame
	ErrUnexpectedResponse = errors.New("unexpected response from device")
	// ErrCommandFailed indicates the device reported the command failed
	ErrCommandFailed = errors.New("command failed according to device")
	// ErrDeviceNotFound indicates no device is reachable on the given path
	ErrDeviceNotFound = errors.New("device not found")
	// ErrInvalidParameter indicates an invalid argument was supplied
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrFirmwareInvalid indicates the firmware image failed the sanity check
	ErrFirmwareInvalid = errors.New("firmware image does not look valid")
)

// ErrorType classifies errors for retry decisions
type ErrorType int

const (
	// ErrorTypePermanent indicates an error that will not resolve by retrying
	ErrorTypePermanent ErrorType = iota
	// ErrorTypeTransient indicates an error that may resolve by retrying
	ErrorTypeTransient
	// ErrorTypeTimeout indicates a timeout occurred
	ErrorTypeTimeout
)

// String returns the name of the error type.
func (t ErrorType) String() string {
	switch t {
	case ErrorTypePermanent:
		return "permanent"
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// TransportError wraps a transport-level failure with enough context to
// decide whether the operation is worth retrying.
type TransportError struct {
	Err       error
	Op        string
	Port      string
	Type      ErrorType
	Retryable bool
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s on %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a TransportError with retryability derived from
// the error type.
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType != ErrorTypePermanent,
	}
}

// NewTimeoutError creates a TransportError for a timed out operation.
func NewTimeoutError(op, port string) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       ErrTransportTimeout,
		Type:      ErrorTypeTimeout,
		Retryable: true,
	}
}

// GetErrorType classifies an error for retry decisions.
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ErrorTypePermanent
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Type
	}

	switch {
	case errors.Is(err, ErrTransportTimeout):
		return ErrorTypeTimeout
	case errors.Is(err, ErrTransportRead),
		errors.Is(err, ErrTransportWrite),
		errors.Is(err, ErrCommunicationFailed),
		errors.Is(err, ErrFrameCorrupted),
		errors.Is(err, ErrChecksumMismatch):
		return ErrorTypeTransient
	default:
		return ErrorTypePermanent
	}
}

// IsRetryable reports whether an operation that produced err is worth
// retrying. A TransportError carries an explicit retryable flag; sentinel
// errors are classified by kind.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Retryable
	}

	switch {
	case errors.Is(err, ErrTransportTimeout),
		errors.Is(err, ErrTransportRead),
		errors.Is(err, ErrTransportWrite),
		errors.Is(err, ErrCommunicationFailed),
		errors.Is(err, ErrFrameCorrupted),
		errors.Is(err, ErrChecksumMismatch):
		return true
	default:
		return false
	}
}

// UpgradeError reports a terminal upgrade session outcome other than
// success. The wire status distinguishes host-side protocol violations from
// device-side storage failures; the host treats all of them as a failed
// upgrade requiring operator intervention.
type UpgradeError struct {
	Status UpgradeStatus
}

// Error implements the error interface.
func (e *UpgradeError) Error() string {
	return fmt.Sprintf("upgrade failed: device reported %s", e.Status)
}
