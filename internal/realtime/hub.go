package realtime

import (
	"context"

	"github.com/sirupsen/logrus"
)

type membership struct {
	conn      *Conn
	sessionID string
	done      chan struct{}
}

type delivery struct {
	sessionID string
	frame     []byte
}

type countReq struct {
	sessionID string
	reply     chan int
}

// Hub owns every broadcast group. Membership changes and deliveries are
// serialized through Run, so concurrent joins cannot lose updates and events
// for one session reach each member in emission order.
type Hub struct {
	log *logrus.Logger
	bus Bus

	register   chan membership
	unregister chan *Conn
	deliver    chan delivery
	count      chan countReq
	stopped    chan struct{}

	groups map[string]map[*Conn]struct{}
	conns  map[*Conn]map[string]struct{}
}

// NewHub builds a hub. With a nil bus broadcasts stay in process.
func NewHub(log *logrus.Logger, bus Bus) *Hub {
	return &Hub{
		log:        log,
		bus:        bus,
		register:   make(chan membership),
		unregister: make(chan *Conn),
		deliver:    make(chan delivery, 1024),
		count:      make(chan countReq),
		stopped:    make(chan struct{}),
		groups:     make(map[string]map[*Conn]struct{}),
		conns:      make(map[*Conn]map[string]struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)

	if h.bus != nil {
		go func() {
			if err := h.bus.Run(ctx, h.deliverLocal); err != nil && ctx.Err() == nil {
				h.log.WithError(err).Error("broadcast bus stopped")
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			for c := range h.conns {
				c.Close()
			}
			return
		case m := <-h.register:
			h.add(m.conn, m.sessionID)
			close(m.done)
		case c := <-h.unregister:
			h.remove(c)
		case d := <-h.deliver:
			h.fanOut(d)
		case req := <-h.count:
			req.reply <- len(h.groups[req.sessionID])
		}
	}
}

// Join adds c to the session's group. It returns once the hub has applied the
// change, so any broadcast issued afterwards reaches c.
func (h *Hub) Join(c *Conn, sessionID string) {
	m := membership{conn: c, sessionID: sessionID, done: make(chan struct{})}
	select {
	case h.register <- m:
		<-m.done
		c.markJoined(sessionID)
	case <-h.stopped:
	}
}

// Leave removes c from every group it joined.
func (h *Hub) Leave(c *Conn) {
	select {
	case h.unregister <- c:
	case <-h.stopped:
	}
}

// Members returns the number of connections joined to a session.
func (h *Hub) Members(sessionID string) int {
	req := countReq{sessionID: sessionID, reply: make(chan int, 1)}
	select {
	case h.count <- req:
		return <-req.reply
	case <-h.stopped:
		return 0
	}
}

func (h *Hub) Broadcast(sessionID, event string, data any) {
	frame, err := Encode(event, data)
	if err != nil {
		h.log.WithError(err).WithField("event", event).Error("encode broadcast")
		return
	}
	if h.bus != nil {
		if err := h.bus.Publish(context.Background(), sessionID, frame); err != nil {
			h.log.WithError(err).WithField("session_id", sessionID).Error("publish broadcast")
		}
		return
	}
	h.deliverLocal(sessionID, frame)
}

func (h *Hub) deliverLocal(sessionID string, frame []byte) {
	select {
	case h.deliver <- delivery{sessionID: sessionID, frame: frame}:
	case <-h.stopped:
	}
}

func (h *Hub) add(c *Conn, sessionID string) {
	group, ok := h.groups[sessionID]
	if !ok {
		group = make(map[*Conn]struct{})
		h.groups[sessionID] = group
	}
	group[c] = struct{}{}

	sessions, ok := h.conns[c]
	if !ok {
		sessions = make(map[string]struct{})
		h.conns[c] = sessions
	}
	sessions[sessionID] = struct{}{}
}

func (h *Hub) remove(c *Conn) {
	for sessionID := range h.conns[c] {
		group := h.groups[sessionID]
		delete(group, c)
		if len(group) == 0 {
			delete(h.groups, sessionID)
		}
	}
	delete(h.conns, c)
}

func (h *Hub) fanOut(d delivery) {
	for c := range h.groups[d.sessionID] {
		if !c.enqueue(d.frame) {
			h.log.WithField("session_id", d.sessionID).WithField("user_id", c.UserID).Warn("dropping slow or closed connection")
			c.Close()
			h.remove(c)
		}
	}
}
