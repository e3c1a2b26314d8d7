//go:build !unix

package redirect

import (
	"errors"
	"os"
)

var errUnsupported = errors.New("stream redirection not supported on this platform")

type saved struct{}

func save() (*saved, error) {
	return nil, errUnsupported
}

func bind(device *os.File) error {
	return errUnsupported
}

func (s *saved) restore() error {
	return nil
}

// Detach returns f unchanged on platforms without descriptor duplication.
func Detach(f *os.File) (*os.File, error) {
	return f, nil
}
