package server

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/edusphere/calls/signal"
)

// Conn is the live connection handle the directory hands out. Deliver must
// enqueue without blocking the caller; ordering across Deliver calls on the
// same handle must be preserved by the implementation.
type Conn interface {
	Deliver(env signal.Envelope) error
	Close() error
}

type presenceEntry struct {
	conn       Conn
	lastSeenAt time.Time
}

// Directory maps durable user IDs to their live connection handles. It is
// the only state shared across the whole relay process. Entirely in-memory:
// a restart empties it and clients must register again.
type Directory struct {
	mu     sync.RWMutex
	byUser map[string]*presenceEntry
	byConn map[Conn]string
}

// NewDirectory creates an empty presence directory.
func NewDirectory() *Directory {
	return &Directory{
		byUser: make(map[string]*presenceEntry),
		byConn: make(map[Conn]string),
	}
}

// Register makes userID reachable through c. A user has at most one live
// connection: registering again closes and supersedes the previous one, so a
// client reconnecting after a drop is immediately reachable.
func (d *Directory) Register(userID string, c Conn) {
	var stale Conn

	d.mu.Lock()
	if prev, ok := d.byUser[userID]; ok && prev.conn != c {
		delete(d.byConn, prev.conn)
		stale = prev.conn
	}
	d.byUser[userID] = &presenceEntry{conn: c, lastSeenAt: time.Now()}
	d.byConn[c] = userID
	d.mu.Unlock()

	if stale != nil {
		log.Warnf("presence: user %s re-registered, closing stale connection", userID)
		_ = stale.Close()
	}
	log.Debugf("presence: user %s registered", userID)
}

// Unregister removes whatever user is bound to c and reports who it was.
// Keyed by handle so a disconnect clears presence even without a logout.
func (d *Directory) Unregister(c Conn) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	userID, ok := d.byConn[c]
	if !ok {
		return "", false
	}
	delete(d.byConn, c)
	// the user may have re-registered on a newer connection already; only
	// drop the user entry if it still points at this handle.
	if entry, ok := d.byUser[userID]; ok && entry.conn == c {
		delete(d.byUser, userID)
	}
	log.Debugf("presence: user %s unregistered", userID)
	return userID, true
}

// Resolve answers "is this user reachable right now".
func (d *Directory) Resolve(userID string) (Conn, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	entry, ok := d.byUser[userID]
	if !ok {
		return nil, false
	}
	return entry.conn, true
}

// Touch refreshes the liveness timestamp, typically on a keepalive pong.
func (d *Directory) Touch(userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if entry, ok := d.byUser[userID]; ok {
		entry.lastSeenAt = time.Now()
	}
}

// CloseAll closes every live connection. Shutdown path.
func (d *Directory) CloseAll() {
	d.mu.Lock()
	conns := make([]Conn, 0, len(d.byConn))
	for c := range d.byConn {
		conns = append(conns, c)
	}
	d.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
}

// LastSeen returns the liveness timestamp for a registered user.
func (d *Directory) LastSeen(userID string) (time.Time, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	entry, ok := d.byUser[userID]
	if !ok {
		return time.Time{}, false
	}
	return entry.lastSeenAt, true
}
