package pty

import (
	"errors"
	"runtime"
	"testing"
	"time"
)

// openOrSkip opens a pair or skips the test on hosts without ptys.
func openOrSkip(t *testing.T) *Pair {
	t.Helper()
	p, err := Open()
	if errors.Is(err, ErrNotSupported) || errors.Is(err, ErrAllocation) {
		t.Skipf("pty unavailable: %v", err)
	}
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

// readAvailable collects controller output until want bytes arrived or the deadline passes.
func readAvailable(t *testing.T, c *Controller, want int) []byte {
	t.Helper()
	var out []byte
	buf := make([]byte, DefaultReadBufferSize)
	deadline := time.Now().Add(2 * time.Second)
	for len(out) < want && time.Now().Before(deadline) {
		if _, err := c.Wait(100 * time.Millisecond); err != nil {
			t.Fatalf("Wait: %v", err)
		}
		n, err := c.Read(buf)
		if err != nil && !errors.Is(err, ErrWouldBlock) {
			t.Fatalf("Read: %v", err)
		}
		out = append(out, buf[:n]...)
	}
	return out
}

func TestOpen(t *testing.T) {
	p := openOrSkip(t)

	if p.Device().Name() == "" {
		t.Error("expected device name")
	}

	rows, cols, err := p.Size()
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if rows != DefaultRows || cols != DefaultCols {
		t.Errorf("expected %dx%d, got %dx%d", DefaultRows, DefaultCols, rows, cols)
	}
}

func TestResize(t *testing.T) {
	p := openOrSkip(t)

	if err := p.Resize(40, 132); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	rows, cols, err := p.Size()
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if rows != 40 || cols != 132 {
		t.Errorf("expected 40x132, got %dx%d", rows, cols)
	}
}

func TestControllerReadWouldBlock(t *testing.T) {
	p := openOrSkip(t)

	_, err := p.Controller().Read(make([]byte, 16))
	if !errors.Is(err, ErrWouldBlock) {
		t.Errorf("expected ErrWouldBlock, got %v", err)
	}
}

func TestDeviceWriteReachesController(t *testing.T) {
	p := openOrSkip(t)

	if _, err := p.Device().Write([]byte("hi\n")); err != nil {
		t.Fatalf("device Write: %v", err)
	}

	// The line discipline translates the newline into CR LF.
	got := string(readAvailable(t, p.Controller(), 4))
	if got != "hi\r\n" {
		t.Errorf("expected %q, got %q", "hi\r\n", got)
	}
}

func TestEndOfStreamAfterDeviceClose(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("hung-up device is reported as EIO only on linux")
	}
	p := openOrSkip(t)

	if err := p.Device().Close(); err != nil {
		t.Fatalf("device Close: %v", err)
	}

	_, err := p.Controller().Read(make([]byte, 16))
	if !errors.Is(err, ErrEndOfStream) {
		t.Errorf("expected ErrEndOfStream, got %v", err)
	}
}

func TestDoubleClose(t *testing.T) {
	p := openOrSkip(t)

	if err := p.Controller().Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := p.Controller().Close(); !errors.Is(err, ErrAlreadyClosed) {
		t.Errorf("expected ErrAlreadyClosed, got %v", err)
	}
	if _, err := p.Controller().Read(make([]byte, 1)); !errors.Is(err, ErrAlreadyClosed) {
		t.Errorf("expected ErrAlreadyClosed from Read, got %v", err)
	}
	if _, err := p.Controller().Write([]byte("x")); !errors.Is(err, ErrAlreadyClosed) {
		t.Errorf("expected ErrAlreadyClosed from Write, got %v", err)
	}

	if err := p.Device().Close(); err != nil {
		t.Fatalf("device Close: %v", err)
	}
	if err := p.Device().Close(); !errors.Is(err, ErrAlreadyClosed) {
		t.Errorf("expected ErrAlreadyClosed, got %v", err)
	}

	// Pair.Close skips sides that are already closed.
	if err := p.Close(); err != nil {
		t.Errorf("expected nil from Pair.Close, got %v", err)
	}
}

func TestInjectSuppressesEcho(t *testing.T) {
	p := openOrSkip(t)

	if err := p.Inject([]byte("yo\n")); err != nil {
		t.Fatalf("Inject: %v", err)
	}

	buf := make([]byte, 16)
	n, err := p.Device().Read(buf)
	if err != nil {
		t.Fatalf("device Read: %v", err)
	}
	if got := string(buf[:n]); got != "yo\n" {
		t.Errorf("expected %q on device, got %q", "yo\n", got)
	}

	if _, err := p.Controller().Read(buf); !errors.Is(err, ErrWouldBlock) {
		t.Errorf("expected no echo on controller, got err=%v", err)
	}
}
