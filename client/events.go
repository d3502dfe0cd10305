package client

import (
	"time"

	"github.com/edusphere/calls/signal"
)

// Event is what the controller emits for the surrounding UI. A closed set of
// concrete types; consumers switch on them.
type Event interface {
	isEvent()
}

// StateChanged fires on every FSM transition of a session.
type StateChanged struct {
	SessionID string
	Peer      string
	State     State
}

// IncomingCall fires when a call-request creates a ringing session. The UI
// answers with Accept or Reject on the controller.
type IncomingCall struct {
	SessionID  string
	Peer       string
	CallerName string
}

// RemoteMedia fires when a remote track becomes available on a connected
// session.
type RemoteMedia struct {
	SessionID string
	Stream    RemoteStream
}

// MediaToggled fires after ToggleAudio/ToggleVideo.
type MediaToggled struct {
	SessionID string
	AudioOn   bool
	VideoOn   bool
}

// CallEnded fires exactly once per session, on the transition to terminal
// idle. Err is nil for a normal local hang-up or remote call-end; otherwise
// it is one of the taxonomy errors.
type CallEnded struct {
	SessionID string
	Peer      string
	Reason    signal.Reason
	Err       error
}

func (StateChanged) isEvent() {}
func (IncomingCall) isEvent() {}
func (RemoteMedia) isEvent()  {}
func (MediaToggled) isEvent() {}
func (CallEnded) isEvent()    {}

// CallRecord is handed to the history collaborator when a session reaches
// terminal state. Durable storage of these is outside this module.
type CallRecord struct {
	SessionID string
	Caller    string
	Callee    string
	Outcome   string
	StartedAt time.Time
	EndedAt   time.Time
}

// HistoryRecorder receives a record per finished call attempt.
type HistoryRecorder interface {
	Record(rec CallRecord)
}

type nopHistory struct{}

func (nopHistory) Record(CallRecord) {}
