// Package buffer provides a bounded byte buffer that keeps the most recent
// raw output of a capture.
package buffer

import (
	"sync"
)

// RingBuffer is a thread-safe circular buffer that stores the most recent data
// up to a specified capacity. When the buffer is full, oldest data is
// overwritten.
//
// Captures tee every controller chunk into a RingBuffer so the undecoded tail
// of a session stays available for debugging and recordings.
type RingBuffer struct {
	data     []byte
	start    int
	size     int
	written  int64
	capacity int
	mu       sync.RWMutex
}

// NewRingBuffer creates a new RingBuffer with the specified capacity.
// The capacity must be greater than 0; if not, it defaults to 1.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &RingBuffer{
		data:     make([]byte, capacity),
		capacity: capacity,
	}
}

// Write appends data to the buffer, overwriting the oldest bytes once the
// buffer is full. It never fails and implements io.Writer.
func (rb *RingBuffer) Write(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}

	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.written += int64(len(p))

	// Only the last 'capacity' bytes of an oversized write can survive.
	src := p
	if len(src) > rb.capacity {
		src = src[len(src)-rb.capacity:]
	}

	end := (rb.start + rb.size) % rb.capacity
	first := copy(rb.data[end:], src)
	copy(rb.data, src[first:])

	rb.size += len(src)
	if rb.size > rb.capacity {
		rb.start = (rb.start + rb.size - rb.capacity) % rb.capacity
		rb.size = rb.capacity
	}

	return len(p), nil
}

// ReadAll returns a copy of all data currently in the buffer, oldest first.
func (rb *RingBuffer) ReadAll() []byte {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if rb.size == 0 {
		return nil
	}

	result := make([]byte, rb.size)
	n := copy(result, rb.data[rb.start:min(rb.start+rb.size, rb.capacity)])
	copy(result[n:], rb.data[:rb.size-n])
	return result
}

// Clear removes all data from the buffer and resets the dropped count.
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.start = 0
	rb.size = 0
	rb.written = 0
}

// Len returns the current number of bytes in the buffer.
func (rb *RingBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	return rb.size
}

// Cap returns the capacity of the buffer.
func (rb *RingBuffer) Cap() int {
	return rb.capacity
}

// Dropped returns how many bytes have been overwritten or never stored
// because the buffer was full.
func (rb *RingBuffer) Dropped() int64 {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	return rb.written - int64(rb.size)
}
