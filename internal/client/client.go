// Package client is the recorder side of the session channel: one WebSocket
// that reconnects on its own and re-joins the last joined session.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/scribe/internal/realtime"
)

const (
	DefaultMaxAttempts = 5
	writeWait          = 10 * time.Second
)

var (
	ErrNotConnected = errors.New("channel not connected")
	ErrGaveUp       = errors.New("channel reconnect attempts exhausted")
)

type Options struct {
	URL   string
	Token string

	Dialer      *websocket.Dialer
	MaxAttempts int
	// InitialInterval is the first reconnect delay.
	InitialInterval time.Duration

	OnEvent      func(realtime.Envelope)
	OnConnect    func()
	OnDisconnect func(error)

	Log *logrus.Logger
}

type Client struct {
	opts Options
	log  *logrus.Logger

	mu     sync.Mutex
	ws     *websocket.Conn
	joined *realtime.JoinSessionPayload

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Dial connects and starts the read loop. The client reconnects until ctx is
// cancelled, Close is called or MaxAttempts consecutive dials fail.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 500 * time.Millisecond
	}
	if opts.Log == nil {
		opts.Log = logrus.New()
	}

	ctx, cancel := context.WithCancel(ctx)
	c := &Client{opts: opts, log: opts.Log, ctx: ctx, cancel: cancel, done: make(chan struct{})}

	ws, err := c.dial()
	if err != nil {
		cancel()
		return nil, err
	}
	c.setConn(ws)

	go c.run(ws)
	if opts.OnConnect != nil {
		opts.OnConnect()
	}
	return c, nil
}

func (c *Client) dial() (*websocket.Conn, error) {
	header := http.Header{}
	if c.opts.Token != "" {
		header.Set("Authorization", "Bearer "+c.opts.Token)
	}
	ws, _, err := c.opts.Dialer.DialContext(c.ctx, c.opts.URL, header)
	return ws, err
}

func (c *Client) setConn(ws *websocket.Conn) {
	c.mu.Lock()
	c.ws = ws
	c.mu.Unlock()
}

// Done is closed when the client has stopped for good.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) Close() error {
	c.cancel()
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws != nil {
		_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		return ws.Close()
	}
	return nil
}

func (c *Client) Join(sessionID, userID string) error {
	p := realtime.JoinSessionPayload{SessionID: sessionID, UserID: userID}
	c.mu.Lock()
	c.joined = &p
	c.mu.Unlock()
	return c.send(realtime.EventJoinSession, p)
}

func (c *Client) SendChunk(p realtime.AudioStreamPayload) error {
	return c.send(realtime.EventAudioStream, p)
}

func (c *Client) StopSession(p realtime.StopSessionPayload) error {
	return c.send(realtime.EventStopSession, p)
}

func (c *Client) send(event string, data any) error {
	frame, err := realtime.Encode(event, data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws == nil {
		return ErrNotConnected
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

func (c *Client) run(ws *websocket.Conn) {
	defer close(c.done)

	for {
		err := c.readLoop(ws)

		c.mu.Lock()
		if c.ws == ws {
			c.ws = nil
		}
		c.mu.Unlock()
		_ = ws.Close()

		if c.ctx.Err() != nil {
			return
		}
		c.log.WithError(err).Warn("channel disconnected")
		if c.opts.OnDisconnect != nil {
			c.opts.OnDisconnect(err)
		}

		next, err := c.reconnect()
		if err != nil {
			if c.ctx.Err() == nil {
				c.log.WithError(err).Error("giving up on channel")
				if c.opts.OnDisconnect != nil {
					c.opts.OnDisconnect(ErrGaveUp)
				}
			}
			return
		}
		ws = next
	}
}

func (c *Client) readLoop(ws *websocket.Conn) error {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		var env realtime.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.log.WithError(err).Debug("skipping malformed frame")
			continue
		}
		if c.opts.OnEvent != nil {
			c.opts.OnEvent(env)
		}
	}
}

func (c *Client) reconnect() (*websocket.Conn, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.opts.InitialInterval
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = 0

	var ws *websocket.Conn
	attempt := 0
	op := func() error {
		attempt++
		next, err := c.dial()
		if err != nil {
			c.log.WithError(err).WithField("attempt", attempt).Info("reconnect failed")
			return err
		}
		ws = next
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.opts.MaxAttempts-1)), c.ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}

	c.setConn(ws)

	c.mu.Lock()
	joined := c.joined
	c.mu.Unlock()
	if joined != nil {
		if err := c.send(realtime.EventJoinSession, *joined); err != nil {
			c.log.WithError(err).Warn("re-join failed")
		}
	}
	if c.opts.OnConnect != nil {
		c.opts.OnConnect()
	}
	c.log.WithField("attempt", attempt).Info("channel reconnected")
	return ws, nil
}
