//go:build unix

package redirect

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

var streamFds = [...]int{unix.Stdin, unix.Stdout, unix.Stderr}

// saved holds duplicates of the standard stream descriptors at scope entry.
type saved struct {
	fds [len(streamFds)]int
}

// save duplicates fds 0-2 so they can be put back later.
func save() (*saved, error) {
	s := &saved{}
	for i, fd := range streamFds {
		dup, err := unix.Dup(fd)
		if err != nil {
			for _, prev := range s.fds[:i] {
				unix.Close(prev)
			}
			return nil, fmt.Errorf("save fd %d: %w", fd, err)
		}
		unix.CloseOnExec(dup)
		s.fds[i] = dup
	}
	return s, nil
}

// bind points fds 0-2 at device.
func bind(device *os.File) error {
	deviceFd := int(device.Fd())
	for _, fd := range streamFds {
		if err := dup2(deviceFd, fd); err != nil {
			return fmt.Errorf("bind fd %d: %w", fd, err)
		}
	}
	return nil
}

// restore puts the saved descriptors back and releases the duplicates.
func (s *saved) restore() error {
	var errs []error
	for i, fd := range streamFds {
		if err := dup2(s.fds[i], fd); err != nil {
			errs = append(errs, fmt.Errorf("restore fd %d: %w", fd, err))
		}
		unix.Close(s.fds[i])
	}
	return errors.Join(errs...)
}

func dup2(from, to int) error {
	for {
		err := unix.Dup2(from, to)
		if !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}

// Detach returns an independent duplicate of f that keeps pointing at f's
// current target even while a scope rebinds the standard streams. It is used
// for diagnostics that must never end up inside a capture.
func Detach(f *os.File) (*os.File, error) {
	dup, err := unix.Dup(int(f.Fd()))
	if err != nil {
		return nil, fmt.Errorf("detach %s: %w", f.Name(), err)
	}
	unix.CloseOnExec(dup)
	return os.NewFile(uintptr(dup), f.Name()), nil
}
