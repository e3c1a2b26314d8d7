package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CaptureStatus represents how the captured unit of work ended.
type CaptureStatus string

const (
	CaptureStatusOK     CaptureStatus = "ok"
	CaptureStatusFailed CaptureStatus = "failed"
)

// Capture is a finished capture as kept in the history.
type Capture struct {
	ID        string        `json:"id"`
	Command   string        `json:"command"`
	Lines     []string      `json:"lines"`
	Status    CaptureStatus `json:"status"`
	Error     string        `json:"error,omitempty"`
	Device    string        `json:"device,omitempty"`
	Strategy  string        `json:"strategy,omitempty"`
	CastPath  string        `json:"castPath,omitempty"`
	Bytes     int           `json:"bytes"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
}

// NewCapture returns a capture with a fresh ID for command.
func NewCapture(command string, startedAt time.Time) (*Capture, error) {
	if command == "" {
		return nil, ErrCommandRequired
	}
	return &Capture{
		ID:        uuid.New().String(),
		Command:   command,
		Lines:     []string{},
		Status:    CaptureStatusOK,
		StartedAt: startedAt,
	}, nil
}

// Fail marks the capture as failed with err.
func (c *Capture) Fail(err error) {
	c.Status = CaptureStatusFailed
	c.Error = err.Error()
}

// LinesToJSON converts the Lines slice to a JSON string for storage.
func (c *Capture) LinesToJSON() (string, error) {
	lines := c.Lines
	if lines == nil {
		lines = []string{}
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// LinesFromJSON parses a JSON string into the Lines slice.
func (c *Capture) LinesFromJSON(data string) error {
	c.Lines = []string{}
	if data == "" {
		return nil
	}
	return json.Unmarshal([]byte(data), &c.Lines)
}

// Preview returns the last non-empty captured line.
func (c *Capture) Preview() string {
	for i := len(c.Lines) - 1; i >= 0; i-- {
		if c.Lines[i] != "" {
			return c.Lines[i]
		}
	}
	return ""
}
