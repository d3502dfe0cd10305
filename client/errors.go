package client

import "errors"

// Terminal error taxonomy for call sessions. Every one of these ends the
// session; none are retried automatically. Retrying means the user places a
// fresh call.
var (
	// ErrMediaAccess means camera/microphone access was denied or the device
	// is unavailable. Always surfaced, never silently swallowed.
	ErrMediaAccess = errors.New("media access denied or unavailable")
	// ErrUserOffline means the callee had no live presence entry; the callee
	// never saw the attempt.
	ErrUserOffline = errors.New("user is offline")
	// ErrCallTimeout means nobody answered before the ring deadline.
	ErrCallTimeout = errors.New("no answer before deadline")
	// ErrNegotiation means description/candidate exchange failed to produce
	// a usable connection.
	ErrNegotiation = errors.New("negotiation failed")
	// ErrTransport means the signaling connection itself was lost; handled
	// like presence loss of the peer.
	ErrTransport = errors.New("signaling transport lost")
	// ErrSessionExists means a non-terminal session with that peer already
	// exists; at most one is allowed per peer pair.
	ErrSessionExists = errors.New("a call with this peer is already in progress")
	// ErrNoSession means the referenced session is unknown (already ended or
	// never existed).
	ErrNoSession = errors.New("no such call session")
)
