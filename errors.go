package webserial

import (
	"errors"
	"fmt"
)

var (
	// ErrNotSupported is returned by Binding.Open when the platform lacks
	// the serial capability.
	ErrNotSupported = errors.New("webserial: serial capability not supported")

	// ErrPortNotFound is returned by Binding.Open when a virtual path
	// matches no currently listed device.
	ErrPortNotFound = errors.New("webserial: port not found")

	// ErrPortNotOpen is returned by session operations that require an open
	// transport.
	ErrPortNotOpen = errors.New("webserial: port not open")

	// ErrInvalidBaudRate is returned when an open or update requests a baud
	// rate outside the supported table.
	ErrInvalidBaudRate = errors.New("webserial: invalid baud rate")
)

// StreamErrorCode classifies transport read failures.
type StreamErrorCode int

const (
	CodeFraming StreamErrorCode = iota + 1
	CodeParity
	CodeBreak
	CodeOverrun
	CodeDisconnected
)

func (c StreamErrorCode) String() string {
	switch c {
	case CodeFraming:
		return "framing"
	case CodeParity:
		return "parity"
	case CodeBreak:
		return "break"
	case CodeOverrun:
		return "overrun"
	case CodeDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// StreamError is a classified transport read failure. Framing, parity,
// break and overrun conditions are line noise: the read loop logs them and
// keeps going. Everything else propagates to the caller.
type StreamError struct {
	Code StreamErrorCode
	Err  error
}

func (e *StreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("webserial: %s error: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("webserial: %s error", e.Code)
}

func (e *StreamError) Unwrap() error { return e.Err }

// Recoverable reports whether the error is in the line-noise whitelist.
func (e *StreamError) Recoverable() bool {
	switch e.Code {
	case CodeFraming, CodeParity, CodeBreak, CodeOverrun:
		return true
	}
	return false
}

// recoverableLineNoise reports whether err is a whitelisted line-noise
// condition that the read loop should absorb.
func recoverableLineNoise(err error) (*StreamError, bool) {
	var se *StreamError
	if errors.As(err, &se) && se.Recoverable() {
		return se, true
	}
	return nil, false
}
