package client

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/edusphere/calls/signal"
)

// Transport is the persistent duplex channel to the relay. One per client.
// Implementations must preserve send order and deliver inbound envelopes in
// arrival order.
type Transport interface {
	Send(env signal.Envelope) error
	// Inbound yields envelopes addressed to this client. Closed when the
	// transport dies.
	Inbound() <-chan signal.Envelope
	// Done yields the terminal transport error (or nil on clean close),
	// then is closed.
	Done() <-chan error
	Close() error
}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// WSTransport is the gorilla/websocket Transport used against the relay.
type WSTransport struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	inbound chan signal.Envelope
	done    chan error

	closed    chan struct{}
	closeOnce sync.Once
}

var _ Transport = (*WSTransport)(nil)

// DialRelay connects to the relay's websocket endpoint with the given
// connect token and starts the read and keepalive loops.
func DialRelay(ctx context.Context, relayURL, token string) (*WSTransport, error) {
	u, err := url.Parse(relayURL)
	if err != nil {
		return nil, fmt.Errorf("parse relay url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	log.Infof("transport: connecting to %s", u.Host)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	t := &WSTransport{
		conn:    conn,
		inbound: make(chan signal.Envelope, 64),
		done:    make(chan error, 1),
		closed:  make(chan struct{}),
	}
	go t.readLoop()
	go t.pingLoop()
	return t, nil
}

// Send writes one envelope. Serialized by a mutex so the controller loop and
// its async futures can share the transport.
func (t *WSTransport) Send(env signal.Envelope) error {
	select {
	case <-t.closed:
		return fmt.Errorf("%w: transport closed", ErrTransport)
	default:
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = t.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := t.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return nil
}

func (t *WSTransport) Inbound() <-chan signal.Envelope { return t.inbound }
func (t *WSTransport) Done() <-chan error              { return t.done }

// Close shuts the connection down. Idempotent.
func (t *WSTransport) Close() error {
	t.finish(nil)
	return nil
}

func (t *WSTransport) finish(err error) {
	t.closeOnce.Do(func() {
		close(t.closed)
		_ = t.conn.Close()
		t.done <- err
		close(t.done)
	})
}

func (t *WSTransport) readLoop() {
	// inbound is closed here, by its only sender
	defer close(t.inbound)

	_ = t.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	t.conn.SetPongHandler(func(string) error {
		return t.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			select {
			case <-t.closed:
				// local close, not a transport failure
				t.finish(nil)
			default:
				log.Warnf("transport: read error: %v", err)
				t.finish(fmt.Errorf("%w: %v", ErrTransport, err))
			}
			return
		}

		env, err := signal.Decode(data)
		if err != nil {
			log.Warnf("transport: dropping malformed envelope: %v", err)
			continue
		}

		select {
		case t.inbound <- env:
		case <-t.closed:
			return
		}
	}
}

func (t *WSTransport) pingLoop() {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-t.closed:
			return
		case <-ticker.C:
			t.writeMu.Lock()
			err := t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
			t.writeMu.Unlock()
			if err != nil {
				log.Warnf("transport: ping error: %v", err)
				return
			}
		}
	}
}
