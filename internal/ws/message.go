package ws

import "encoding/json"

// MessageType represents the type of WebSocket message.
type MessageType string

const (
	// Client -> Server message types
	MessageTypePing MessageType = "ping"

	// Server -> Client message types
	MessageTypeHeader MessageType = "header"
	MessageTypeOutput MessageType = "output"
	MessageTypeInput  MessageType = "input"
	MessageTypeDone   MessageType = "done"
	MessageTypePong   MessageType = "pong"
	MessageTypeError  MessageType = "error"
)

// Message represents a WebSocket message.
type Message struct {
	Type    MessageType     `json:"type"`
	Data    string          `json:"data,omitempty"`
	Time    float64         `json:"time,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

var eventTypes = map[string]MessageType{
	"o": MessageTypeOutput,
	"i": MessageTypeInput,
}
