package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/edusphere/calls/signal"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	// must be shorter than pongWait so the peer gets a ping in time
	pingPeriod = (pongWait * 9) / 10

	outboundQueueSize = 256
)

// wsConn is one authenticated client connection. All writes go through a
// single pump goroutine draining the outbound queue, which preserves the
// delivery order of everything enqueued for this client.
type wsConn struct {
	userID string
	ws     *websocket.Conn

	out       chan signal.Envelope
	closed    chan struct{}
	closeOnce sync.Once
}

func newWSConn(userID string, ws *websocket.Conn) *wsConn {
	return &wsConn{
		userID: userID,
		ws:     ws,
		out:    make(chan signal.Envelope, outboundQueueSize),
		closed: make(chan struct{}),
	}
}

var _ Conn = (*wsConn)(nil)

// Deliver enqueues an envelope for the write pump. It never blocks: a full
// queue means the client has stopped draining and is treated as gone.
func (c *wsConn) Deliver(env signal.Envelope) error {
	select {
	case <-c.closed:
		return fmt.Errorf("connection for %s is closed", c.userID)
	default:
	}
	select {
	case c.out <- env:
		return nil
	default:
		return fmt.Errorf("outbound queue for %s is full", c.userID)
	}
}

// Close tears the websocket down. Idempotent.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.ws.Close()
	})
	return nil
}

// readPump decodes inbound frames and hands them to the relay. From is
// pinned to the authenticated user so a client cannot impersonate another
// sender. Returns when the connection dies.
func (c *wsConn) readPump(relay *Relay, dir *Directory) {
	defer c.Close()

	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		dir.Touch(c.userID)
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("conn %s: read error: %v", c.userID, err)
			}
			return
		}

		env, err := signal.Decode(data)
		if err != nil {
			log.Warnf("conn %s: dropping malformed envelope: %v", c.userID, err)
			continue
		}
		if env.From != c.userID {
			log.Warnf("conn %s: rewriting spoofed from %q", c.userID, env.From)
			env.From = c.userID
		}
		relay.Forward(env)
	}
}

// writePump serializes all outbound traffic and keeps the connection alive
// with pings.
func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.closed:
			return
		case env := <-c.out:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(env); err != nil {
				log.Warnf("conn %s: write error: %v", c.userID, err)
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
