// Package capture runs a unit of work with its standard streams attached to a
// fresh pseudo-terminal and returns what it displayed as logical lines.
//
// A capture is strictly sequential: the pair is opened, the work runs with fds
// 0-2 bound to the device, the device and controller are released in the
// order the platform policy asks for, and the controller is drained in
// between. Captures nest: work may start another capture, whose output never
// reaches the outer one.
package capture

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding"

	"github.com/remote-agent-terminal/ptyscreen/internal/buffer"
	"github.com/remote-agent-terminal/ptyscreen/internal/drain"
	"github.com/remote-agent-terminal/ptyscreen/internal/linebuf"
	"github.com/remote-agent-terminal/ptyscreen/internal/pty"
	"github.com/remote-agent-terminal/ptyscreen/internal/recording"
	"github.com/remote-agent-terminal/ptyscreen/internal/redirect"
)

// CloseOrder says when the device side is closed relative to draining.
type CloseOrder string

const (
	// CloseDeviceFirst closes the device before draining, for hosts that only
	// signal end of stream once the device is gone.
	CloseDeviceFirst CloseOrder = "device-first"

	// DrainFirst drains while the device is still open and closes it after,
	// for hosts that discard unread output when the device closes.
	DrainFirst CloseOrder = "drain-first"
)

// ParseCloseOrder parses a CloseOrder name.
func ParseCloseOrder(name string) (CloseOrder, error) {
	switch order := CloseOrder(name); order {
	case CloseDeviceFirst, DrainFirst:
		return order, nil
	default:
		return "", fmt.Errorf("unknown close order %q", name)
	}
}

// Policy bundles the end-of-stream strategy with the matching close order.
type Policy struct {
	Strategy drain.Strategy
	Order    CloseOrder
}

// PlatformPolicy returns the policy that terminates reliably on goos.
func PlatformPolicy(goos string) Policy {
	if goos == "linux" {
		return Policy{Strategy: drain.ForPlatform(goos), Order: CloseDeviceFirst}
	}
	return Policy{Strategy: drain.ForPlatform(goos), Order: DrainFirst}
}

// Options configures a capture. The zero value captures with the platform
// policy into a 24x80 pair.
type Options struct {
	// Policy overrides the platform policy. Either field may be left empty.
	Policy Policy

	// Rows and Cols size the pair. Zero means pty.DefaultRows/DefaultCols.
	Rows uint16
	Cols uint16

	// Encoding of the bytes the work writes. Nil means UTF-8.
	Encoding encoding.Encoding

	// RawTail keeps the last RawTail raw controller bytes in Result.Raw.
	RawTail int

	// Recorder, when set, receives the header, every controller chunk and every
	// injected input. The caller owns it and closes it.
	Recorder *recording.Cast

	// Command is informational: it goes into logs and the recording header.
	Command string

	// Logger receives diagnostics. Nil discards them. It must not write to the
	// process's standard streams, since those are rebound during the work.
	Logger *logrus.Logger
}

// Result is what a finished capture produced.
type Result struct {
	Lines    []string
	Raw      []byte
	Device   string
	Stats    drain.Stats
	Duration time.Duration
}

// Session is handed to the unit of work while its capture is running.
type Session struct {
	pair     *pty.Pair
	recorder *recording.Cast
	log      *logrus.Entry
}

// Device returns the path of the terminal device the work is attached to.
func (s *Session) Device() string {
	return s.pair.Device().Name()
}

// Inject types line followed by a newline into the terminal, with echo
// suppressed, so the work can read it back from standard input.
func (s *Session) Inject(line string) error {
	data := []byte(line + "\n")
	if err := s.pair.Inject(data); err != nil {
		return err
	}
	if s.recorder != nil {
		if err := s.recorder.WriteInput(data); err != nil {
			s.log.WithError(err).Warn("record injected input")
		}
	}
	return nil
}

var discard = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

// Run opens a pair, runs work attached to its device and returns the lines the
// work displayed. A failing work still yields its lines; the error is the
// *redirect.WorkFailure wrapping what work returned. Panics inside work
// propagate after the standard streams are restored and the pair is released.
func Run(opts Options, work func(*Session) error) (*Result, error) {
	policy := resolvePolicy(opts.Policy)
	logger := opts.Logger
	if logger == nil {
		logger = discard
	}

	rows, cols := opts.Rows, opts.Cols
	if rows == 0 || cols == 0 {
		rows, cols = pty.DefaultRows, pty.DefaultCols
	}

	start := time.Now()
	pair, err := pty.OpenSize(rows, cols)
	if err != nil {
		return nil, err
	}
	defer pair.Close()

	sess := &Session{
		pair:     pair,
		recorder: opts.Recorder,
		log: logger.WithFields(logrus.Fields{
			"pty":      pair.Device().Name(),
			"strategy": policy.Strategy.Name(),
			"order":    policy.Order,
			"depth":    redirect.Depth() + 1,
		}),
	}
	sess.log.WithField("command", opts.Command).Debug("capture started")

	if opts.Recorder != nil {
		header := recording.Header{
			Width:   int(cols),
			Height:  int(rows),
			Command: opts.Command,
		}
		if err := opts.Recorder.WriteHeader(header); err != nil {
			return nil, err
		}
	}

	workErr := redirect.Do(pair.Device().File(), func() error {
		return work(sess)
	})
	var failure *redirect.WorkFailure
	if workErr != nil && !errors.As(workErr, &failure) {
		// The streams could not be rebound or restored; the work's output,
		// if any, is not trustworthy.
		return nil, fmt.Errorf("redirect standard streams: %w", workErr)
	}

	if policy.Order == CloseDeviceFirst {
		if err := pair.Device().Close(); err != nil {
			return nil, err
		}
	}

	var tail *buffer.RingBuffer
	if opts.RawTail > 0 {
		tail = buffer.NewRingBuffer(opts.RawTail)
	}
	tee := func(chunk []byte) {
		if tail != nil {
			tail.Write(chunk)
		}
		if opts.Recorder != nil {
			if err := opts.Recorder.WriteOutput(chunk); err != nil {
				sess.log.WithError(err).Warn("record output")
			}
		}
	}

	lines, stats, drainErr := drain.Lines(policy.Strategy, pair.Controller(), linebuf.Options{Encoding: opts.Encoding}, tee)

	if policy.Order == DrainFirst {
		if err := pair.Device().Close(); err != nil && drainErr == nil {
			drainErr = err
		}
	}
	if err := pair.Controller().Close(); err != nil && drainErr == nil {
		drainErr = err
	}

	result := &Result{
		Lines:    lines,
		Device:   pair.Device().Name(),
		Stats:    stats,
		Duration: time.Since(start),
	}
	if tail != nil {
		result.Raw = tail.ReadAll()
	}

	sess.log.WithFields(logrus.Fields{
		"bytes":  stats.Bytes,
		"lines":  len(lines),
		"reason": stats.Reason,
	}).Debug("capture finished")

	if drainErr != nil {
		return result, errors.Join(workErr, fmt.Errorf("drain controller: %w", drainErr))
	}
	return result, workErr
}

// Lines captures work with default options and returns only its lines.
func Lines(work func() error) ([]string, error) {
	result, err := Run(Options{}, func(*Session) error {
		return work()
	})
	if result == nil {
		return nil, err
	}
	return result.Lines, err
}

func resolvePolicy(p Policy) Policy {
	platform := PlatformPolicy(runtime.GOOS)
	if p.Strategy == nil {
		p.Strategy = platform.Strategy
	}
	if p.Order == "" {
		p.Order = platform.Order
	}
	return p
}
