//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package pty

import "time"

func openPair() (*Controller, *Device, error) {
	return nil, nil, ErrNotSupported
}

// Resize is not supported on this platform.
func (p *Pair) Resize(rows, cols uint16) error {
	return ErrNotSupported
}

// Size is not supported on this platform.
func (p *Pair) Size() (rows, cols uint16, err error) {
	return 0, 0, ErrNotSupported
}

// Inject is not supported on this platform.
func (p *Pair) Inject(data []byte) error {
	return ErrNotSupported
}

func readFd(fd int, b []byte) (int, error) {
	return 0, ErrNotSupported
}

func writeFd(fd int, b []byte) (int, error) {
	return 0, ErrNotSupported
}

func waitReadable(fd int, timeout time.Duration) (bool, error) {
	return false, ErrNotSupported
}
