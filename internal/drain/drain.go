// Package drain pulls bytes out of a pty controller until the device side is
// exhausted. How "exhausted" is detected differs between hosts, so it is
// expressed as a Strategy chosen once per capture.
package drain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/remote-agent-terminal/ptyscreen/internal/linebuf"
	"github.com/remote-agent-terminal/ptyscreen/internal/pty"
)

const (
	// DefaultSettle is how long Poll waits for in-flight bytes after the
	// controller first reports that nothing is buffered.
	DefaultSettle = 20 * time.Millisecond

	// DefaultIdleTimeout is how long Select waits for readability before
	// concluding that the device will not produce any more output.
	DefaultIdleTimeout = time.Second

	// DefaultMaxEmptyReads bounds consecutive reads that return nothing.
	DefaultMaxEmptyReads = 8
)

// Reason says why a drain stopped.
type Reason string

const (
	ReasonNoData      Reason = "no-data"
	ReasonEndOfStream Reason = "end-of-stream"
	ReasonIdle        Reason = "idle-timeout"
	ReasonEmptyReads  Reason = "empty-reads"
)

// Source is the controller side of a pty as seen by a drain.
type Source interface {
	Read(b []byte) (int, error)
	Wait(timeout time.Duration) (bool, error)
}

// Sink receives each non-empty chunk read from the source. The slice is only
// valid for the duration of the call.
type Sink func(chunk []byte)

// Stats describes a finished drain.
type Stats struct {
	Chunks int
	Bytes  int
	Reason Reason
}

// Strategy reads a source to exhaustion.
type Strategy interface {
	Name() string
	Drain(src Source, sink Sink) (Stats, error)
}

// Poll reads without waiting and stops as soon as the controller has nothing
// buffered and nothing arrives within Settle. It suits hosts that report a
// drained, still-open controller as "no data" instead of end of file.
type Poll struct {
	ChunkSize     int
	Settle        time.Duration
	MaxEmptyReads int
}

// Name implements Strategy.
func (Poll) Name() string {
	return "poll"
}

// Drain implements Strategy.
func (p Poll) Drain(src Source, sink Sink) (Stats, error) {
	buf := make([]byte, chunkSize(p.ChunkSize))
	maxEmpty := maxEmptyReads(p.MaxEmptyReads)
	var stats Stats
	empty := 0

	for {
		n, err := src.Read(buf)
		switch {
		case errors.Is(err, pty.ErrWouldBlock):
			if p.Settle <= 0 {
				stats.Reason = ReasonNoData
				return stats, nil
			}
			ready, err := src.Wait(p.Settle)
			if err != nil {
				return stats, fmt.Errorf("poll drain: %w", err)
			}
			if !ready {
				stats.Reason = ReasonNoData
				return stats, nil
			}
			empty++
		case errors.Is(err, pty.ErrEndOfStream):
			stats.Reason = ReasonEndOfStream
			return stats, nil
		case err != nil:
			return stats, fmt.Errorf("poll drain: %w", err)
		case n == 0:
			empty++
		default:
			empty = 0
			stats.Chunks++
			stats.Bytes += n
			sink(buf[:n])
			continue
		}

		if empty >= maxEmpty {
			stats.Reason = ReasonEmptyReads
			return stats, nil
		}
	}
}

// Select waits for readability before every read and stops on the distinct
// error some hosts raise once the device side is fully closed. IdleTimeout
// bounds each wait so a device kept open elsewhere cannot block forever.
type Select struct {
	ChunkSize     int
	IdleTimeout   time.Duration
	MaxEmptyReads int
}

// Name implements Strategy.
func (Select) Name() string {
	return "select"
}

// Drain implements Strategy.
func (s Select) Drain(src Source, sink Sink) (Stats, error) {
	buf := make([]byte, chunkSize(s.ChunkSize))
	maxEmpty := maxEmptyReads(s.MaxEmptyReads)
	idle := s.IdleTimeout
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	var stats Stats
	empty := 0

	for {
		ready, err := src.Wait(idle)
		if err != nil {
			return stats, fmt.Errorf("select drain: %w", err)
		}
		if !ready {
			stats.Reason = ReasonIdle
			return stats, nil
		}

		n, err := src.Read(buf)
		switch {
		case errors.Is(err, pty.ErrEndOfStream):
			stats.Reason = ReasonEndOfStream
			return stats, nil
		case errors.Is(err, pty.ErrWouldBlock), err == nil && n == 0:
			empty++
		case err != nil:
			return stats, fmt.Errorf("select drain: %w", err)
		default:
			empty = 0
			stats.Chunks++
			stats.Bytes += n
			sink(buf[:n])
			continue
		}

		if empty >= maxEmpty {
			stats.Reason = ReasonEmptyReads
			return stats, nil
		}
	}
}

// Lines drains src with strategy and folds everything read into logical
// lines. When tee is non-nil it sees every chunk as well.
func Lines(strategy Strategy, src Source, opts linebuf.Options, tee Sink) ([]string, Stats, error) {
	buf := linebuf.New(opts)
	stats, err := strategy.Drain(src, func(chunk []byte) {
		buf.Feed(chunk)
		if tee != nil {
			tee(chunk)
		}
	})
	return buf.Lines(), stats, err
}

// Parse returns the strategy with the given name ("poll" or "select") using
// default tuning, except for the select idle timeout.
func Parse(name string, idleTimeout time.Duration) (Strategy, error) {
	switch strings.ToLower(name) {
	case "poll":
		return Poll{Settle: DefaultSettle}, nil
	case "select":
		return Select{IdleTimeout: idleTimeout}, nil
	default:
		return nil, fmt.Errorf("unknown drain strategy %q", name)
	}
}

// ForPlatform returns the strategy that matches how goos reports the end of a
// pty stream: linux raises EIO once the device is closed, other hosts report a
// drained controller as having no data.
func ForPlatform(goos string) Strategy {
	if goos == "linux" {
		return Select{IdleTimeout: DefaultIdleTimeout}
	}
	return Poll{Settle: DefaultSettle}
}

func chunkSize(n int) int {
	if n <= 0 {
		return pty.DefaultReadBufferSize
	}
	return n
}

func maxEmptyReads(n int) int {
	if n <= 0 {
		return DefaultMaxEmptyReads
	}
	return n
}
