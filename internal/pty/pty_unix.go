//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package pty

import (
	"errors"
	"fmt"
	"time"

	creackpty "github.com/creack/pty"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// openPair allocates a pair through the host's pty multiplexer.
func openPair() (*Controller, *Device, error) {
	controllerFile, deviceFile, err := creackpty.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrAllocation, err)
	}

	// Fd switches both files to blocking mode. The controller is then put back
	// into non-blocking mode because it is only ever read with raw syscalls.
	controllerFd := int(controllerFile.Fd())
	deviceFd := int(deviceFile.Fd())

	if err := unix.SetNonblock(controllerFd, true); err != nil {
		controllerFile.Close()
		deviceFile.Close()
		return nil, nil, fmt.Errorf("%w: set controller non-blocking: %v", ErrAllocation, err)
	}

	// The device gets dup'ed onto fds 0-2, whose *os.File wrappers do plain
	// blocking syscalls.
	if err := unix.SetNonblock(deviceFd, false); err != nil {
		controllerFile.Close()
		deviceFile.Close()
		return nil, nil, fmt.Errorf("%w: set device blocking: %v", ErrAllocation, err)
	}

	controller := &Controller{
		file: controllerFile,
		fd:   controllerFd,
	}
	device := &Device{
		file: deviceFile,
		name: deviceFile.Name(),
	}
	return controller, device, nil
}

// Resize changes the pair's window size.
func (p *Pair) Resize(rows, cols uint16) error {
	if p.controller.Closed() {
		return ErrAlreadyClosed
	}
	// Set through the raw fd: (*os.File).Fd would put the controller back
	// into blocking mode.
	ws := &unix.Winsize{
		Row: rows,
		Col: cols,
	}
	if err := unix.IoctlSetWinsize(p.controller.fd, unix.TIOCSWINSZ, ws); err != nil {
		return fmt.Errorf("set pty size: %w", err)
	}
	return nil
}

// Size returns the pair's current window size.
func (p *Pair) Size() (rows, cols uint16, err error) {
	if p.device.Closed() {
		return 0, 0, ErrAlreadyClosed
	}
	ws, err := creackpty.GetsizeFull(p.device.file)
	if err != nil {
		return 0, 0, fmt.Errorf("get pty size: %w", err)
	}
	return ws.Rows, ws.Cols, nil
}

// Inject writes data to the controller so a unit of work reading its standard
// input sees it, with echo disabled on the device for the duration of the
// write. The device's terminal state is restored on every path.
func (p *Pair) Inject(data []byte) (err error) {
	if p.device.Closed() || p.controller.Closed() {
		return ErrAlreadyClosed
	}

	fd := int(p.device.file.Fd())
	state, err := term.GetState(fd)
	if err != nil {
		return fmt.Errorf("save device terminal state: %w", err)
	}
	defer func() {
		if restoreErr := term.Restore(fd, state); restoreErr != nil && err == nil {
			err = fmt.Errorf("restore device terminal state: %w", restoreErr)
		}
	}()

	termios, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return fmt.Errorf("read device termios: %w", err)
	}
	termios.Lflag &^= unix.ECHO
	if err := unix.IoctlSetTermios(fd, ioctlSetTermios, termios); err != nil {
		return fmt.Errorf("disable device echo: %w", err)
	}

	if _, err := p.controller.Write(data); err != nil {
		return fmt.Errorf("inject input: %w", err)
	}

	// Input is processed by the line discipline asynchronously on some hosts.
	// Wait for it to reach the device before echo is switched back on.
	if _, err := waitReadable(fd, InjectSettleTimeout); err != nil {
		return err
	}
	return nil
}

// readFd performs one non-blocking read and classifies the outcome.
func readFd(fd int, b []byte) (int, error) {
	for {
		n, err := unix.Read(fd, b)
		switch {
		case err == nil:
			return n, nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return 0, ErrWouldBlock
		case errors.Is(err, unix.EIO):
			// Linux reports a hung-up device with EIO once the buffer is empty.
			return 0, ErrEndOfStream
		case errors.Is(err, unix.EBADF):
			return 0, ErrAlreadyClosed
		default:
			return 0, fmt.Errorf("read controller: %w", err)
		}
	}
}

// writeFd writes all of b, waiting for writability when the kernel buffer is full.
func writeFd(fd int, b []byte) (int, error) {
	written := 0
	for written < len(b) {
		n, err := unix.Write(fd, b[written:])
		if n > 0 {
			written += n
		}
		switch {
		case err == nil:
		case errors.Is(err, unix.EINTR):
		case errors.Is(err, unix.EAGAIN):
			if err := waitWritable(fd); err != nil {
				return written, err
			}
		case errors.Is(err, unix.EBADF):
			return written, ErrAlreadyClosed
		default:
			return written, fmt.Errorf("write controller: %w", err)
		}
	}
	return written, nil
}

// waitReadable blocks in select(2) until fd is readable or timeout elapses.
func waitReadable(fd int, timeout time.Duration) (bool, error) {
	for {
		var readSet unix.FdSet
		readSet.Set(fd)
		tv := unix.NsecToTimeval(timeout.Nanoseconds())

		n, err := unix.Select(fd+1, &readSet, nil, nil, &tv)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("select controller: %w", err)
		}
		return n > 0 && readSet.IsSet(fd), nil
	}
}

func waitWritable(fd int) error {
	for {
		var writeSet unix.FdSet
		writeSet.Set(fd)

		_, err := unix.Select(fd+1, nil, &writeSet, nil, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return fmt.Errorf("select controller for write: %w", err)
		}
		return nil
	}
}
