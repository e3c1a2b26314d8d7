//go:build unix

package redirect

import (
	"errors"
	"fmt"
	"io"
	"os"
	"testing"

	"golang.org/x/sys/unix"
)

// fileID identifies the open file behind a descriptor.
type fileID struct {
	dev uint64
	ino uint64
}

func statFd(t *testing.T, fd int) fileID {
	t.Helper()
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		t.Fatalf("fstat %d: %v", fd, err)
	}
	return fileID{dev: uint64(st.Dev), ino: uint64(st.Ino)}
}

func streamIDs(t *testing.T) [3]fileID {
	t.Helper()
	return [3]fileID{statFd(t, 0), statFd(t, 1), statFd(t, 2)}
}

// newSink returns a pipe whose write end stands in for a terminal device.
func newSink(t *testing.T) (r, w *os.File) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	t.Cleanup(func() {
		r.Close()
		w.Close()
	})
	return r, w
}

func readSink(t *testing.T, r, w *os.File) string {
	t.Helper()
	w.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read sink: %v", err)
	}
	return string(data)
}

func TestRunCapturesStandardStreams(t *testing.T) {
	r, w := newSink(t)
	before := streamIDs(t)

	got, err := Run(w, func() (int, error) {
		fmt.Print("hello ")
		fmt.Fprint(os.Stderr, "world")
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
	if after := streamIDs(t); after != before {
		t.Error("standard streams were not restored")
	}
	if out := readSink(t, r, w); out != "hello world" {
		t.Errorf("expected %q, got %q", "hello world", out)
	}
	if Depth() != 0 {
		t.Errorf("expected depth 0, got %d", Depth())
	}
}

func TestRunRestoresAfterError(t *testing.T) {
	_, w := newSink(t)
	before := streamIDs(t)
	sentinel := errors.New("boom")

	err := Do(w, func() error {
		return sentinel
	})

	if !errors.Is(err, sentinel) {
		t.Errorf("expected original error to be reachable, got %v", err)
	}
	var failure *WorkFailure
	if !errors.As(err, &failure) {
		t.Errorf("expected *WorkFailure, got %T", err)
	}
	if after := streamIDs(t); after != before {
		t.Error("standard streams were not restored after a failing unit of work")
	}
}

func TestRunRestoresAfterPanic(t *testing.T) {
	_, w := newSink(t)
	before := streamIDs(t)
	type marker struct{ name string }
	want := &marker{name: "panic value"}

	var recovered any
	func() {
		defer func() { recovered = recover() }()
		_ = Do(w, func() error {
			panic(want)
		})
	}()

	if recovered != want {
		t.Errorf("expected original panic value, got %v", recovered)
	}
	if after := streamIDs(t); after != before {
		t.Error("standard streams were not restored after a panic")
	}
	if Depth() != 0 {
		t.Errorf("expected depth 0, got %d", Depth())
	}
}

func TestNestedScopesRestoreOuterBinding(t *testing.T) {
	outerR, outerW := newSink(t)
	innerR, innerW := newSink(t)
	before := streamIDs(t)
	outerID := statFd(t, int(outerW.Fd()))

	err := Do(outerW, func() error {
		fmt.Print("before|")
		innerErr := Do(innerW, func() error {
			if Depth() != 2 {
				return fmt.Errorf("expected depth 2, got %d", Depth())
			}
			fmt.Print("inner")
			return nil
		})
		if innerErr != nil {
			return innerErr
		}
		if statFd(t, 1) != outerID {
			return errors.New("inner scope did not restore the outer binding")
		}
		fmt.Print("after")
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}

	if after := streamIDs(t); after != before {
		t.Error("standard streams were not restored")
	}
	if out := readSink(t, innerR, innerW); out != "inner" {
		t.Errorf("inner sink: expected %q, got %q", "inner", out)
	}
	if out := readSink(t, outerR, outerW); out != "before|after" {
		t.Errorf("outer sink: expected %q, got %q", "before|after", out)
	}
}

func TestDetachSurvivesRedirection(t *testing.T) {
	logR, logW := newSink(t)
	detached, err := Detach(logW)
	if err != nil {
		t.Fatalf("Detach: %v", err)
	}
	defer detached.Close()
	detachedID := statFd(t, int(detached.Fd()))

	_, w := newSink(t)
	err = Do(w, func() error {
		if statFd(t, int(detached.Fd())) != detachedID {
			return errors.New("detached file changed target")
		}
		_, err := fmt.Fprint(detached, "diagnostic")
		return err
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}

	detached.Close()
	if out := readSink(t, logR, logW); out != "diagnostic" {
		t.Errorf("expected %q, got %q", "diagnostic", out)
	}
}
