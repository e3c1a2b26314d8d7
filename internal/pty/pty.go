// Package pty provides controller/device pseudo-terminal pairs used to capture
// the output of code that expects to be attached to a real terminal.
//
// The controller side is read from (and written to) by the capturing process.
// The device side is what standard streams get bound to while a unit of work
// runs. Controller reads never block: they return ErrWouldBlock when nothing is
// buffered and ErrEndOfStream once the platform reports that the device is gone.
package pty

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

const (
	// DefaultRows is the initial number of rows for a new pair.
	DefaultRows = 24

	// DefaultCols is the initial number of columns for a new pair.
	DefaultCols = 80

	// DefaultReadBufferSize is the chunk size used when draining a controller.
	DefaultReadBufferSize = 1024

	// InjectSettleTimeout bounds how long Inject waits for injected input to
	// become readable on the device before restoring echo.
	InjectSettleTimeout = 100 * time.Millisecond
)

// Pair is an allocated controller/device pseudo-terminal pair.
// A Pair is owned by exactly one capture at a time and is not safe for
// concurrent use by multiple owners.
type Pair struct {
	controller *Controller
	device     *Device
}

// Open allocates a fresh pair sized DefaultRows x DefaultCols.
func Open() (*Pair, error) {
	return OpenSize(DefaultRows, DefaultCols)
}

// OpenSize allocates a fresh pair with the given window size.
func OpenSize(rows, cols uint16) (*Pair, error) {
	controller, device, err := openPair()
	if err != nil {
		return nil, err
	}

	p := &Pair{
		controller: controller,
		device:     device,
	}

	if rows > 0 && cols > 0 {
		if err := p.Resize(rows, cols); err != nil {
			p.Close()
			return nil, err
		}
	}

	return p, nil
}

// Controller returns the observer side of the pair.
func (p *Pair) Controller() *Controller {
	return p.controller
}

// Device returns the terminal side of the pair.
func (p *Pair) Device() *Device {
	return p.device
}

// Close closes whichever sides are still open, device first.
func (p *Pair) Close() error {
	var firstErr error
	if !p.device.Closed() {
		firstErr = p.device.Close()
	}
	if !p.controller.Closed() {
		if err := p.controller.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Controller is the observer side of a pair.
type Controller struct {
	file   *os.File
	fd     int
	closed atomic.Bool
}

// Read reads whatever bytes are currently buffered, up to len(b).
// It never waits: it returns ErrWouldBlock when nothing is buffered and
// ErrEndOfStream when the platform signals that the device side is gone.
// A zero-length read with a nil error is possible and is not an error.
func (c *Controller) Read(b []byte) (int, error) {
	if c.closed.Load() {
		return 0, ErrAlreadyClosed
	}
	return readFd(c.fd, b)
}

// Wait blocks until the controller is readable or timeout elapses.
// It reports whether the controller became readable.
func (c *Controller) Wait(timeout time.Duration) (bool, error) {
	if c.closed.Load() {
		return false, ErrAlreadyClosed
	}
	return waitReadable(c.fd, timeout)
}

// Write sends bytes to the device side as if typed on a keyboard.
func (c *Controller) Write(b []byte) (int, error) {
	if c.closed.Load() {
		return 0, ErrAlreadyClosed
	}
	return writeFd(c.fd, b)
}

// Close releases the controller.
func (c *Controller) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrAlreadyClosed
	}
	if err := c.file.Close(); err != nil {
		return fmt.Errorf("close controller: %w", err)
	}
	return nil
}

// Closed reports whether Close has been called.
func (c *Controller) Closed() bool {
	return c.closed.Load()
}

// Device is the terminal side of a pair.
type Device struct {
	file   *os.File
	name   string
	closed atomic.Bool
}

// File returns the underlying file, suitable for binding to standard streams
// or handing to a child process.
func (d *Device) File() *os.File {
	return d.file
}

// Name returns the device path, for example /dev/pts/3.
func (d *Device) Name() string {
	return d.name
}

// Read reads from the device, blocking until input is available.
func (d *Device) Read(b []byte) (int, error) {
	if d.closed.Load() {
		return 0, ErrAlreadyClosed
	}
	return d.file.Read(b)
}

// Write writes to the device as a program attached to the terminal would.
func (d *Device) Write(b []byte) (int, error) {
	if d.closed.Load() {
		return 0, ErrAlreadyClosed
	}
	return d.file.Write(b)
}

// Close releases the device.
func (d *Device) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return ErrAlreadyClosed
	}
	if err := d.file.Close(); err != nil {
		return fmt.Errorf("close device: %w", err)
	}
	return nil
}

// Closed reports whether Close has been called.
func (d *Device) Closed() bool {
	return d.closed.Load()
}
