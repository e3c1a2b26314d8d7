package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/term"

	"github.com/remote-agent-terminal/ptyscreen/internal/capture"
	"github.com/remote-agent-terminal/ptyscreen/internal/db"
	"github.com/remote-agent-terminal/ptyscreen/internal/drain"
	"github.com/remote-agent-terminal/ptyscreen/internal/frame"
	"github.com/remote-agent-terminal/ptyscreen/internal/model"
	"github.com/remote-agent-terminal/ptyscreen/internal/recording"
	"github.com/remote-agent-terminal/ptyscreen/internal/redirect"
	"github.com/remote-agent-terminal/ptyscreen/internal/repository"
)

const fallbackConsoleWidth = 80

// captureOptions turns the capture section of the config into capture.Options.
func captureOptions(command string) (capture.Options, error) {
	strategyName := cfg.Capture.Strategy
	if strategyName == "auto" {
		strategyName = drain.ForPlatform(runtime.GOOS).Name()
	}
	strategy, err := drain.Parse(strategyName, cfg.Capture.IdleTimeout)
	if err != nil {
		return capture.Options{}, err
	}

	var order capture.CloseOrder
	if cfg.Capture.CloseOrder != "auto" {
		if order, err = capture.ParseCloseOrder(cfg.Capture.CloseOrder); err != nil {
			return capture.Options{}, err
		}
	}

	enc, err := cfg.Capture.ResolveEncoding()
	if err != nil {
		return capture.Options{}, err
	}

	return capture.Options{
		Policy:   capture.Policy{Strategy: strategy, Order: order},
		Encoding: enc,
		RawTail:  cfg.Capture.RawTail,
		Command:  command,
		Logger:   log,
	}, nil
}

// consoleWidth returns the width of the terminal on stdout. It must not be
// called while a capture has rebound the standard streams.
func consoleWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return fallbackConsoleWidth
	}
	return width
}

// frameOptions sizes a frame for the current console.
func frameOptions(height int, title string) frame.Options {
	return frame.Options{
		Width:   frame.Width(consoleWidth(), cfg.Frame.MaxWidth, cfg.Frame.Margin),
		Height:  height,
		Margin:  cfg.Frame.Margin,
		Padding: cfg.Frame.Padding,
		Title:   title,
	}
}

// openRecorder creates the cast file for a capture when recording is enabled.
func openRecorder(id string) (*recording.Cast, string, error) {
	if cfg.Record.Dir == "" {
		return nil, "", nil
	}
	if err := os.MkdirAll(cfg.Record.Dir, 0755); err != nil {
		return nil, "", fmt.Errorf("create record dir: %w", err)
	}
	path := filepath.Join(cfg.Record.Dir, id+".cast")
	rec, err := recording.Create(path)
	if err != nil {
		return nil, "", err
	}
	return rec, path, nil
}

// openHistory returns the capture repository, or nil when history is disabled.
func openHistory() (*repository.CaptureRepository, error) {
	if cfg.History.Path == "" {
		return nil, nil
	}
	database, err := db.InitDB(cfg.History.Path)
	if err != nil {
		return nil, err
	}
	return repository.NewCaptureRepository(database), nil
}

// captured runs work under a recorded, persisted capture described by command.
func captured(command string, rows, cols uint16, work func(*capture.Session) error) (*capture.Result, error) {
	record, err := model.NewCapture(command, time.Now())
	if err != nil {
		return nil, err
	}

	opts, err := captureOptions(command)
	if err != nil {
		return nil, err
	}
	opts.Rows, opts.Cols = rows, cols

	rec, castPath, err := openRecorder(record.ID)
	if err != nil {
		return nil, err
	}
	opts.Recorder = rec

	result, runErr := capture.Run(opts, work)
	if rec != nil {
		if err := rec.Close(); err != nil {
			log.WithError(err).Warn("close recording")
		}
	}
	if result == nil {
		return nil, runErr
	}

	record.Lines = result.Lines
	record.Device = result.Device
	record.Strategy = opts.Policy.Strategy.Name()
	record.CastPath = castPath
	record.Bytes = result.Stats.Bytes
	record.Duration = result.Duration
	if runErr != nil {
		record.Fail(runErr)
	}

	repo, err := openHistory()
	if err != nil {
		log.WithError(err).Warn("open history")
	} else if repo != nil {
		if err := repo.Create(context.Background(), record); err != nil {
			log.WithError(err).Warn("save capture")
		} else {
			log.WithField("id", record.ID).Debug("capture saved")
		}
	}

	return result, runErr
}

// exitStatus maps a failed capture to the status ptyscreen exits with.
func exitStatus(err error) error {
	var failure *redirect.WorkFailure
	if !errors.As(err, &failure) {
		return err
	}
	var exitErr *exec.ExitError
	if errors.As(failure, &exitErr) && exitErr.ExitCode() > 0 {
		return &ExitError{Code: exitErr.ExitCode(), Err: err}
	}
	return &ExitError{Code: 1, Err: err}
}

// attach wires a child process to the standard streams, which inside a capture
// are the terminal device.
func attach(c *exec.Cmd) *exec.Cmd {
	c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
	return c
}
