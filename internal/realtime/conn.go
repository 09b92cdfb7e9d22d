package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 10 << 20
	sendBuffer     = 256
)

var ErrConnClosed = errors.New("connection closed")

// Conn is one accepted WebSocket. Writes go through a buffered queue drained
// by WritePump, so the hub never blocks on a slow peer.
type Conn struct {
	ws     *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	UserID string
	log    *logrus.Entry

	mu     sync.Mutex
	joined map[string]struct{}
}

func NewConn(ws *websocket.Conn, userID string, log *logrus.Logger) *Conn {
	return &Conn{
		ws:     ws,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		UserID: userID,
		log:    log.WithField("user_id", userID),
		joined: make(map[string]struct{}),
	}
}

// Emit sends an event to this connection only.
func (c *Conn) Emit(event string, data any) error {
	frame, err := Encode(event, data)
	if err != nil {
		return err
	}
	if !c.enqueue(frame) {
		return ErrConnClosed
	}
	return nil
}

func (c *Conn) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *Conn) markJoined(sessionID string) {
	c.mu.Lock()
	c.joined[sessionID] = struct{}{}
	c.mu.Unlock()
}

// Joined reports whether this connection has joined the session's group.
func (c *Conn) Joined(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.joined[sessionID]
	return ok
}

// WritePump owns all writes to the socket until the connection closes.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.WithError(err).Debug("ws write failed")
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump decodes envelopes and hands them to handle until the peer goes
// away. Frames that are not valid envelopes are reported through bad.
func (c *Conn) ReadPump(handle func(Envelope), bad func(error)) {
	defer c.Close()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.WithError(err).Info("ws closed unexpectedly")
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			if err == nil {
				err = errors.New("missing event name")
			}
			bad(err)
			continue
		}
		handle(env)
	}
}
