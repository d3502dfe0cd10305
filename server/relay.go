package server

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/edusphere/calls/signal"
)

// Relay forwards envelopes verbatim between live connections. It keeps no
// call state machine and never decodes negotiation payloads; the only
// bookkeeping is an engagement index (session id → the two user ids) so a
// disconnect can be fanned out to mid-call counterparts.
type Relay struct {
	dir *Directory

	mu      sync.Mutex
	engaged map[string][2]string
}

// NewRelay creates a relay backed by the given presence directory.
func NewRelay(dir *Directory) *Relay {
	return &Relay{
		dir:     dir,
		engaged: make(map[string][2]string),
	}
}

// Forward resolves env.To and delivers the envelope unchanged, or bounces a
// call-reject/unreachable back to the sender when the destination has no
// live presence entry. Callers must pass validated envelopes with From
// pinned to the authenticated sender.
func (r *Relay) Forward(env signal.Envelope) {
	dst, ok := r.dir.Resolve(env.To)
	if !ok {
		log.Debugf("relay: %s -> %s (%s): destination offline", env.From, env.To, env.Kind)
		r.dropEngagement(env.SessionID)
		r.bounce(env)
		return
	}

	r.track(env)

	if err := dst.Deliver(env); err != nil {
		// outbound queue gone or full: the destination is as good as offline
		log.Warnf("relay: deliver %s to %s failed: %v", env.Kind, env.To, err)
		r.dropEngagement(env.SessionID)
		r.bounce(env)
		return
	}
	log.Debugf("relay: %s -> %s (%s session %s)", env.From, env.To, env.Kind, env.SessionID)
}

// PeerGone notifies the counterpart of every session the departed user was
// engaged in, with a synthetic call-end, then forgets those sessions.
func (r *Relay) PeerGone(userID string) {
	type notice struct {
		sessionID string
		other     string
	}
	var notices []notice

	r.mu.Lock()
	for sid, pair := range r.engaged {
		switch userID {
		case pair[0]:
			notices = append(notices, notice{sessionID: sid, other: pair[1]})
		case pair[1]:
			notices = append(notices, notice{sessionID: sid, other: pair[0]})
		default:
			continue
		}
		delete(r.engaged, sid)
	}
	r.mu.Unlock()

	for _, n := range notices {
		conn, ok := r.dir.Resolve(n.other)
		if !ok {
			continue
		}
		end := signal.MustNew(signal.KindCallEnd, n.sessionID, userID, n.other,
			signal.Reject{Reason: signal.ReasonPeerOffline})
		if err := conn.Deliver(end); err != nil {
			log.Warnf("relay: peer-gone notice to %s failed: %v", n.other, err)
			continue
		}
		log.Infof("relay: notified %s that %s left session %s", n.other, userID, n.sessionID)
	}
}

// Engaged reports whether a session is currently tracked. Test hook.
func (r *Relay) Engaged(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.engaged[sessionID]
	return ok
}

func (r *Relay) track(env signal.Envelope) {
	switch env.Kind {
	case signal.KindCallRequest:
		r.mu.Lock()
		r.engaged[env.SessionID] = [2]string{env.From, env.To}
		r.mu.Unlock()
	case signal.KindCallEnd, signal.KindCallReject:
		r.dropEngagement(env.SessionID)
	default:
	}
}

func (r *Relay) dropEngagement(sessionID string) {
	r.mu.Lock()
	delete(r.engaged, sessionID)
	r.mu.Unlock()
}

// bounce returns a synthetic unreachable rejection to the sender of env,
// tagged with the original session so the caller's controller can match it.
func (r *Relay) bounce(env signal.Envelope) {
	if env.Kind == signal.KindCallEnd || env.Kind == signal.KindCallReject {
		// already a terminal signal; nothing useful to tell the sender
		return
	}
	sender, ok := r.dir.Resolve(env.From)
	if !ok {
		// sender vanished between send and bounce; nothing to do
		return
	}
	rej := signal.MustNew(signal.KindCallReject, env.SessionID, env.To, env.From,
		signal.Reject{Reason: signal.ReasonUnreachable})
	if err := sender.Deliver(rej); err != nil {
		log.Warnf("relay: bounce to %s failed: %v", env.From, err)
	}
}
