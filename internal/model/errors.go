package model

import "errors"

var (
	// ErrCommandRequired is returned when a capture has no command description.
	ErrCommandRequired = errors.New("command is required")

	// ErrCaptureNotFound is returned when a capture is not in the history.
	ErrCaptureNotFound = errors.New("capture not found")
)
