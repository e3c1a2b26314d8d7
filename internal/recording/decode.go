package recording

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

const maxEventSize = 1 << 20

// Decoder reads a cast written by Cast.
type Decoder struct {
	scanner *bufio.Scanner
	header  Header
	line    int
}

// NewDecoder reads the header line from r and returns a decoder positioned at
// the first event.
func NewDecoder(r io.Reader) (*Decoder, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)

	d := &Decoder{scanner: scanner}
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read header: %w", err)
		}
		return nil, fmt.Errorf("failed to read header: %w", io.ErrUnexpectedEOF)
	}
	d.line++
	if err := json.Unmarshal(scanner.Bytes(), &d.header); err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}
	if d.header.Version != 2 {
		return nil, fmt.Errorf("unsupported cast version %d", d.header.Version)
	}
	return d, nil
}

// Header returns the cast header.
func (d *Decoder) Header() Header {
	return d.header
}

// Next returns the next event, or io.EOF after the last one.
func (d *Decoder) Next() (Event, error) {
	for d.scanner.Scan() {
		d.line++
		data := bytes.TrimSpace(d.scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			return Event{}, fmt.Errorf("line %d: %w", d.line, err)
		}
		return event, nil
	}
	if err := d.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}
