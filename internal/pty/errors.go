package pty

import "errors"

// Sentinel errors for the pty package.
var (
	// ErrAllocation is returned when the host cannot allocate a new pseudo-terminal pair.
	ErrAllocation = errors.New("pty allocation failed")

	// ErrAlreadyClosed is returned when an operation is attempted on a closed side of a pair.
	ErrAlreadyClosed = errors.New("pty side already closed")

	// ErrWouldBlock is returned by a controller read when no bytes are currently available.
	ErrWouldBlock = errors.New("no data available")

	// ErrEndOfStream is returned by a controller read once the device side has gone away.
	ErrEndOfStream = errors.New("end of pty stream")

	// ErrNotSupported is returned when pseudo-terminals are not supported on this platform.
	ErrNotSupported = errors.New("pty not supported on this platform")
)
