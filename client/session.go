package client

import (
	"time"

	"github.com/edusphere/calls/signal"
)

// State is the call session FSM state. idle is both initial and terminal;
// sessions never rest in ending, it only exists inside teardown.
type State int

const (
	// StateIdle means no session (terminal).
	StateIdle State = iota
	// StatePlacing means we sent a call-request and wait for the answer.
	StatePlacing
	// StateRingingRemote means we received a call-request and ring locally.
	StateRingingRemote
	// StateConnected means both sides consented; negotiation drives media.
	StateConnected
	// StateEnding is the transient teardown step before idle.
	StateEnding
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlacing:
		return "placing"
	case StateRingingRemote:
		return "ringing-remote"
	case StateConnected:
		return "connected"
	case StateEnding:
		return "ending"
	default:
		return "unknown"
	}
}

// asyncOp marks which suspension point is outstanding for a session.
type asyncOp int

const (
	opNone asyncOp = iota
	// opCapturePlace: capturing media before sending call-request.
	opCapturePlace
	// opCaptureAccept: capturing media before sending call-accept.
	opCaptureAccept
	// opOffer: generating the description offer after call-accept arrived.
	opOffer
	// opAnswer: generating the description answer from the remote offer.
	opAnswer
)

// session is one call attempt, exclusively owned by the controller loop.
// Nothing outside the loop goroutine touches it.
type session struct {
	id       string
	peer     string
	outbound bool
	state    State

	neg Negotiator

	// pending is the suspension point currently outstanding; while it is not
	// opNone, inbound envelopes for this session queue in backlog and are
	// drained in order once the operation completes.
	pending asyncOp
	backlog []signal.Envelope

	ringTimer *time.Timer

	audioOn bool
	videoOn bool

	createdAt      time.Time
	lastActivityAt time.Time
}

func (s *session) touch() {
	s.lastActivityAt = time.Now()
}

func (s *session) stopRingTimer() {
	if s.ringTimer != nil {
		s.ringTimer.Stop()
		s.ringTimer = nil
	}
}

// SessionInfo is the snapshot shape returned by Controller.Sessions.
type SessionInfo struct {
	ID       string
	Peer     string
	State    State
	Outbound bool
	AudioOn  bool
	VideoOn  bool
}
