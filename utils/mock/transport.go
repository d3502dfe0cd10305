package mock

import (
	"fmt"
	"sync"

	"github.com/edusphere/calls/client"
	"github.com/edusphere/calls/signal"
)

// Hub is an in-memory stand-in for the relay: transports joined to the same
// hub exchange envelopes by user id, and sending to an absent user bounces a
// synthesized unreachable reject, the way the real relay does.
type Hub struct {
	mu      sync.Mutex
	members map[string]*PipeTransport
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{members: map[string]*PipeTransport{}}
}

// Join registers a user and returns their transport.
func (h *Hub) Join(userID string) *PipeTransport {
	t := &PipeTransport{
		hub:     h,
		userID:  userID,
		inbound: make(chan signal.Envelope, 64),
		done:    make(chan error, 1),
		closed:  make(chan struct{}),
	}
	h.mu.Lock()
	h.members[userID] = t
	h.mu.Unlock()
	return t
}

// Drop disconnects a user abruptly, as if their websocket died.
func (h *Hub) Drop(userID string) {
	h.mu.Lock()
	t := h.members[userID]
	delete(h.members, userID)
	h.mu.Unlock()
	if t != nil {
		t.finish(fmt.Errorf("connection dropped"))
	}
}

func (h *Hub) route(env signal.Envelope) error {
	h.mu.Lock()
	dst := h.members[env.To]
	src := h.members[env.From]
	h.mu.Unlock()

	if dst == nil {
		if src != nil && env.Kind != signal.KindCallReject && env.Kind != signal.KindCallEnd {
			src.deliver(signal.MustNew(signal.KindCallReject, env.SessionID, env.To, env.From,
				signal.Reject{Reason: signal.ReasonUnreachable}))
		}
		return nil
	}
	dst.deliver(env)
	return nil
}

// PipeTransport is one hub member's client.Transport.
type PipeTransport struct {
	hub    *Hub
	userID string

	inbound chan signal.Envelope
	done    chan error
	closed  chan struct{}
	once    sync.Once
}

var _ client.Transport = (*PipeTransport)(nil)

// Send routes one envelope through the hub.
func (t *PipeTransport) Send(env signal.Envelope) error {
	select {
	case <-t.closed:
		return fmt.Errorf("transport closed")
	default:
	}
	return t.hub.route(env)
}

// Inbound yields envelopes routed to this member.
func (t *PipeTransport) Inbound() <-chan signal.Envelope { return t.inbound }

// Done yields the terminal error once the transport finishes.
func (t *PipeTransport) Done() <-chan error { return t.done }

// Close detaches from the hub cleanly.
func (t *PipeTransport) Close() error {
	t.hub.mu.Lock()
	if t.hub.members[t.userID] == t {
		delete(t.hub.members, t.userID)
	}
	t.hub.mu.Unlock()
	t.finish(nil)
	return nil
}

func (t *PipeTransport) deliver(env signal.Envelope) {
	select {
	case <-t.closed:
	case t.inbound <- env:
	}
}

func (t *PipeTransport) finish(err error) {
	t.once.Do(func() {
		// inbound stays open: a concurrent deliver must not race a close
		close(t.closed)
		t.done <- err
		close(t.done)
	})
}
