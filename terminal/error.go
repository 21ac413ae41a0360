package terminal

import (
	"errors"
	"fmt"
)

// Error is the closed set of faults a terminal reports through its error callback.
type Error int

const (
	// BufferOverflow means the receive buffer could not accept new data; the excess
	// bytes were dropped.
	BufferOverflow Error = iota
	// ChecksumError means a transport-level integrity check (e.g. UART parity) failed.
	ChecksumError
	// UnexpectedControlFlow means a flow-control signal contradicts the protocol state.
	UnexpectedControlFlow
	// DeviceGone means the underlying device is disconnected or unrecoverable.
	DeviceGone
)

// String implements fmt.Stringer.
func (e Error) String() string {
	switch e {
	case BufferOverflow:
		return "BufferOverflow"
	case ChecksumError:
		return "ChecksumError"
	case UnexpectedControlFlow:
		return "UnexpectedControlFlow"
	case DeviceGone:
		return "DeviceGone"
	default:
		return fmt.Sprintf("Error(%d)", int(e))
	}
}

// Valid reports whether e is one of the defined kinds.
func (e Error) Valid() bool {
	return e >= BufferOverflow && e <= DeviceGone
}

// Transient reports whether the fault is expected to clear by protocol-level retry.
// Only DeviceGone needs external intervention.
func (e Error) Transient() bool {
	return e != DeviceGone
}

// Sentinel errors returned by Write, Read and Close.
var (
	ErrDeviceGone   = errors.New("terminal: device gone")
	ErrClosed       = errors.New("terminal: terminal closed")
	ErrIO           = errors.New("terminal: i/o failure")
	ErrCloseTimeout = errors.New("terminal: close timeout")
)
