package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/remote-agent-terminal/ptyscreen/internal/recording"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8192

	// DefaultMaxDelay caps the pause between two replayed events.
	DefaultMaxDelay = 2 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Replayer streams recorded casts to WebSocket clients.
type Replayer struct {
	// MaxDelay caps the wait between events. Zero means DefaultMaxDelay.
	MaxDelay time.Duration

	Logger *logrus.Logger
}

// NewReplayer creates a Replayer with the default pause cap.
func NewReplayer(logger *logrus.Logger) *Replayer {
	return &Replayer{MaxDelay: DefaultMaxDelay, Logger: logger}
}

// Serve upgrades the request and replays the cast at castPath. Speed scales
// the recorded pacing: 2 plays twice as fast, zero or less sends every event
// without waiting. A missing or unreadable cast is reported as a plain HTTP error
// before the upgrade.
func (p *Replayer) Serve(w http.ResponseWriter, r *http.Request, castPath string, speed float64) error {
	f, err := os.Open(castPath)
	if err != nil {
		http.Error(w, "recording unavailable", http.StatusNotFound)
		return err
	}
	defer f.Close()

	dec, err := recording.NewDecoder(f)
	if err != nil {
		http.Error(w, "recording unreadable", http.StatusUnprocessableEntity)
		return err
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	pings := make(chan struct{}, 8)
	gone := make(chan struct{})
	go p.readPump(conn, pings, gone)

	err = p.writeLoop(conn, dec, speed, pings, gone)
	if err != nil && !errors.Is(err, errClientGone) {
		p.log().WithError(err).WithField("cast", castPath).Warn("replay failed")
		p.send(conn, &Message{Type: MessageTypeError, Error: err.Error()})
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return nil
}

var errClientGone = errors.New("client disconnected")

// writeLoop is the only writer on conn.
func (p *Replayer) writeLoop(conn *websocket.Conn, dec *recording.Decoder, speed float64, pings <-chan struct{}, gone <-chan struct{}) error {
	header, err := json.Marshal(dec.Header())
	if err != nil {
		return err
	}
	if err := p.send(conn, &Message{Type: MessageTypeHeader, Payload: header}); err != nil {
		return err
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}

	last := 0.0
	for {
		event, err := dec.Next()
		if err == io.EOF {
			return p.send(conn, &Message{Type: MessageTypeDone, Time: last})
		}
		if err != nil {
			return err
		}

		msgType, ok := eventTypes[event.EventType]
		if !ok {
			continue
		}

		var delay time.Duration
		if speed > 0 {
			delay = min(time.Duration((event.TimeOffset-last)/speed*float64(time.Second)), maxDelay)
		}
		last = event.TimeOffset

		timer := time.NewTimer(max(delay, 0))
	wait:
		for {
			select {
			case <-timer.C:
				break wait
			case <-pings:
				if err := p.send(conn, &Message{Type: MessageTypePong}); err != nil {
					timer.Stop()
					return err
				}
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					timer.Stop()
					return err
				}
			case <-gone:
				timer.Stop()
				return errClientGone
			}
		}

		if err := p.send(conn, &Message{Type: msgType, Data: event.Data, Time: event.TimeOffset}); err != nil {
			return err
		}
	}
}

// readPump watches the connection for pings and for the client going away.
func (p *Replayer) readPump(conn *websocket.Conn, pings chan<- struct{}, gone chan<- struct{}) {
	defer close(gone)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				p.log().WithError(err).Debug("websocket closed")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			p.log().WithError(err).Debug("ignoring malformed message")
			continue
		}
		if msg.Type == MessageTypePing {
			select {
			case pings <- struct{}{}:
			default:
			}
		}
	}
}

func (p *Replayer) send(conn *websocket.Conn, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", msg.Type, err)
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (p *Replayer) log() *logrus.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return logrus.StandardLogger()
}
