// Package recording writes captures as asciinema v2 casts, so a capture can be
// replayed with the exact timing and raw bytes the controller produced.
package recording

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
	"unicode/utf8"
)

// Header represents the header of an asciinema v2 recording.
type Header struct {
	Version   int               `json:"version"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Timestamp int64             `json:"timestamp"`
	Command   string            `json:"command,omitempty"`
	Title     string            `json:"title,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
}

// Event represents a single event in an asciinema v2 recording.
// Format: [time_offset, event_type, data]
type Event struct {
	TimeOffset float64
	EventType  string // "o" for output, "i" for input
	Data       string
}

// MarshalJSON implements custom JSON marshaling for Event.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{e.TimeOffset, e.EventType, e.Data})
}

// UnmarshalJSON implements custom JSON unmarshaling for Event.
func (e *Event) UnmarshalJSON(data []byte) error {
	var arr []interface{}
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	if len(arr) != 3 {
		return fmt.Errorf("invalid event format: expected 3 elements, got %d", len(arr))
	}

	timeOffset, ok := arr[0].(float64)
	if !ok {
		return fmt.Errorf("invalid time offset type")
	}
	e.TimeOffset = timeOffset

	eventType, ok := arr[1].(string)
	if !ok {
		return fmt.Errorf("invalid event type")
	}
	e.EventType = eventType

	eventData, ok := arr[2].(string)
	if !ok {
		return fmt.Errorf("invalid event data type")
	}
	e.Data = eventData

	return nil
}

// Cast records one capture. Output chunks may split multi-byte characters;
// the incomplete tail is held back until the next chunk so every event
// carries valid UTF-8.
type Cast struct {
	writer    io.Writer
	file      *os.File // only set if we own the file
	startTime time.Time
	pending   map[string][]byte
	mu        sync.Mutex
}

// Create creates a Cast that writes to the given file path.
func Create(filePath string) (*Cast, error) {
	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create cast file: %w", err)
	}

	c := NewWithWriter(file)
	c.file = file
	return c, nil
}

// NewWithWriter creates a Cast that writes to w.
func NewWithWriter(w io.Writer) *Cast {
	return &Cast{
		writer:    w,
		startTime: time.Now(),
		pending:   make(map[string][]byte),
	}
}

// WriteHeader writes the asciinema v2 header. It must be called once, before
// any event.
func (c *Cast) WriteHeader(h Header) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	h.Version = 2
	h.Timestamp = c.startTime.Unix()

	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	if _, err := c.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	return nil
}

// WriteOutput records bytes read from the controller.
func (c *Cast) WriteOutput(data []byte) error {
	return c.writeEvent("o", data)
}

// WriteInput records bytes injected into the controller.
func (c *Cast) WriteInput(data []byte) error {
	return c.writeEvent("i", data)
}

// writeEvent writes the complete characters of pending+data as one event.
func (c *Cast) writeEvent(eventType string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	buf := append(c.pending[eventType], data...)
	cut := completePrefix(buf)
	c.pending[eventType] = append([]byte(nil), buf[cut:]...)
	if cut == 0 {
		return nil
	}

	return c.emit(eventType, buf[:cut])
}

func (c *Cast) emit(eventType string, data []byte) error {
	event := Event{
		TimeOffset: time.Since(c.startTime).Seconds(),
		EventType:  eventType,
		Data:       string(data),
	}

	eventData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := c.writer.Write(append(eventData, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	return nil
}

// completePrefix returns the length of the longest prefix of b that does not
// end inside a multi-byte character.
func completePrefix(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if utf8.FullRune(b[i:]) {
				return len(b)
			}
			return i
		}
	}
	return len(b)
}

// Close flushes held-back bytes and closes the file if the Cast owns it.
func (c *Cast) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for _, eventType := range []string{"o", "i"} {
		if rest := c.pending[eventType]; len(rest) > 0 {
			if err := c.emit(eventType, rest); err != nil && firstErr == nil {
				firstErr = err
			}
			delete(c.pending, eventType)
		}
	}

	if c.file != nil {
		if err := c.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// StartTime returns the start time of the recording.
func (c *Cast) StartTime() time.Time {
	return c.startTime
}
