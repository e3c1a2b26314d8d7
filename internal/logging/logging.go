// Package logging builds the logrus logger used by the command line tools.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/remote-agent-terminal/ptyscreen/internal/redirect"
)

// New returns a text logger writing to w at level.
func New(w io.Writer, level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: level > logrus.InfoLevel,
		FullTimestamp:    true,
	})
	return l
}

// Detached returns a logger on a private duplicate of the process's stderr, so
// its output still reaches the real terminal while captures rebind fd 2. The
// returned file should be closed once the logger is no longer used.
func Detached(level logrus.Level) (*logrus.Logger, *os.File, error) {
	stderr, err := redirect.Detach(os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	return New(stderr, level), stderr, nil
}
