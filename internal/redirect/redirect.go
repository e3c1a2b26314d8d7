// Package redirect rebinds the process's standard streams to a terminal device
// for the dynamic extent of a unit of work.
//
// Rebinding happens at the file descriptor level (fds 0, 1 and 2), so writes
// through os.Stdout, the log package, cgo code and inherited child processes
// all land on the device. Scopes nest: an inner scope snapshots whatever the
// outer scope bound, and restores exactly that.
package redirect

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// ErrOutOfOrder is returned when scopes are restored in a different order than
// they were entered, which means two goroutines redirected at the same time.
var ErrOutOfOrder = errors.New("redirect scopes restored out of order")

// WorkFailure wraps an error returned by a unit of work. It is only produced
// after the standard streams have been restored.
type WorkFailure struct {
	Err error
}

func (f *WorkFailure) Error() string {
	return fmt.Sprintf("redirected work failed: %v", f.Err)
}

func (f *WorkFailure) Unwrap() error {
	return f.Err
}

// scopes is the stack of active redirections, innermost last.
var (
	scopesMu sync.Mutex
	scopes   []*saved
)

// Depth returns the number of active redirection scopes.
func Depth() int {
	scopesMu.Lock()
	defer scopesMu.Unlock()
	return len(scopes)
}

// Run binds stdin, stdout and stderr to device, runs work, and restores the
// previous bindings on every exit path, including panics and runtime.Goexit.
// A panic keeps unwinding with its original value once restoration is done.
// An error from work is returned as a *WorkFailure.
func Run[T any](device *os.File, work func() (T, error)) (result T, err error) {
	s, err := save()
	if err != nil {
		return result, err
	}

	push(s)
	defer func() {
		restoreErr := pop(s)
		if restoreErr != nil && err == nil {
			err = restoreErr
		}
	}()

	if err := bind(device); err != nil {
		return result, err
	}

	result, err = work()
	if err != nil {
		return result, &WorkFailure{Err: err}
	}
	return result, nil
}

// Do is Run for units of work that produce no value.
func Do(device *os.File, work func() error) error {
	_, err := Run(device, func() (struct{}, error) {
		return struct{}{}, work()
	})
	return err
}

func push(s *saved) {
	scopesMu.Lock()
	defer scopesMu.Unlock()
	scopes = append(scopes, s)
}

// pop restores s and removes it from the stack. Restoration happens even when
// s is not the innermost scope, so the process is never left misrouted.
func pop(s *saved) error {
	scopesMu.Lock()
	top := len(scopes) - 1
	inOrder := top >= 0 && scopes[top] == s
	for i := top; i >= 0; i-- {
		if scopes[i] == s {
			scopes = append(scopes[:i], scopes[i+1:]...)
			break
		}
	}
	scopesMu.Unlock()

	if err := s.restore(); err != nil {
		return err
	}
	if !inOrder {
		return ErrOutOfOrder
	}
	return nil
}
