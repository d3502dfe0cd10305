package client

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/edusphere/calls/signal"
	"github.com/edusphere/calls/utils"
	"github.com/edusphere/calls/utils/async"
)

// DefaultRingTimeout is how long a caller waits for an answer.
const DefaultRingTimeout = 30 * time.Second

// Config carries the per-client controller settings.
type Config struct {
	// UserID is the durable identity this controller signs envelopes with.
	UserID string
	// DisplayName travels inside call-request for the callee's incoming UI.
	DisplayName string
	// RingTimeout bounds the placing state; zero means DefaultRingTimeout.
	RingTimeout time.Duration
	// Media is what PlaceCall/Accept capture locally.
	Media MediaConstraints
}

// Controller is the per-client call state machine. A single goroutine owns
// every session; user actions, inbound envelopes, negotiator events and
// timers all funnel into that loop as messages, so no envelope is ever
// processed concurrently with another for the same session.
type Controller struct {
	cfg     Config
	tr      Transport
	factory NegotiatorFactory
	history HistoryRecorder

	actions      chan action
	asyncResults chan asyncResult
	negEvents    chan negEvent
	timeouts     chan string
	events       chan Event

	stop      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	// loop-owned state below; never touched outside run()
	inbound  <-chan signal.Envelope
	trDone   <-chan error
	sessions map[string]*session
	byPeer   map[string]string
}

type actionKind int

const (
	actPlace actionKind = iota
	actAccept
	actReject
	actHangUp
	actToggleAudio
	actToggleVideo
	actSessions
)

type action struct {
	kind      actionKind
	sessionID string
	peer      string
	reply     chan error
	snapshot  chan []SessionInfo
}

type asyncResult struct {
	sessionID string
	op        asyncOp
	res       utils.Result[string]
}

type negEvent struct {
	sessionID string
	candidate *signal.Candidate
	stream    *RemoteStream
	failure   error
}

// NewController builds a controller and starts its event loop. history may
// be nil.
func NewController(cfg Config, tr Transport, factory NegotiatorFactory, history HistoryRecorder) *Controller {
	if cfg.RingTimeout <= 0 {
		cfg.RingTimeout = DefaultRingTimeout
	}
	if history == nil {
		history = nopHistory{}
	}
	c := &Controller{
		cfg:          cfg,
		tr:           tr,
		factory:      factory,
		history:      history,
		actions:      make(chan action),
		asyncResults: make(chan asyncResult, 8),
		negEvents:    make(chan negEvent, 64),
		timeouts:     make(chan string, 8),
		events:       make(chan Event, 64),
		stop:         make(chan struct{}),
		stopped:      make(chan struct{}),
		inbound:      tr.Inbound(),
		trDone:       tr.Done(),
		sessions:     make(map[string]*session),
		byPeer:       make(map[string]string),
	}
	go c.run()
	return c
}

// Events is the stream the UI renders from. Closed when the controller
// stops.
func (c *Controller) Events() <-chan Event { return c.events }

// UserID returns the identity this controller acts as.
func (c *Controller) UserID() string { return c.cfg.UserID }

// PlaceCall starts an outbound call attempt and returns its session id.
func (c *Controller) PlaceCall(peer string) (string, error) {
	sessionID := uuid.New().String()
	err := c.do(action{kind: actPlace, sessionID: sessionID, peer: peer})
	if err != nil {
		return "", err
	}
	return sessionID, nil
}

// Accept answers a ringing incoming call.
func (c *Controller) Accept(sessionID string) error {
	return c.do(action{kind: actAccept, sessionID: sessionID})
}

// Reject declines a ringing incoming call.
func (c *Controller) Reject(sessionID string) error {
	return c.do(action{kind: actReject, sessionID: sessionID})
}

// HangUp cancels a placing call or ends a connected one.
func (c *Controller) HangUp(sessionID string) error {
	return c.do(action{kind: actHangUp, sessionID: sessionID})
}

// ToggleAudio flips the local audio flag for a session.
func (c *Controller) ToggleAudio(sessionID string) error {
	return c.do(action{kind: actToggleAudio, sessionID: sessionID})
}

// ToggleVideo flips the local video flag for a session.
func (c *Controller) ToggleVideo(sessionID string) error {
	return c.do(action{kind: actToggleVideo, sessionID: sessionID})
}

// Sessions snapshots the live session table.
func (c *Controller) Sessions() []SessionInfo {
	snap := make(chan []SessionInfo, 1)
	select {
	case c.actions <- action{kind: actSessions, snapshot: snap}:
		return <-snap
	case <-c.stopped:
		return nil
	}
}

// Close hangs up everything and stops the loop. Blocks until done.
func (c *Controller) Close() {
	c.closeOnce.Do(func() { close(c.stop) })
	<-c.stopped
}

func (c *Controller) do(act action) error {
	act.reply = make(chan error, 1)
	select {
	case c.actions <- act:
		return <-act.reply
	case <-c.stopped:
		return ErrTransport
	}
}

func (c *Controller) run() {
	defer close(c.stopped)
	defer close(c.events)

	for {
		select {
		case <-c.stop:
			c.shutdown()
			return
		case act := <-c.actions:
			c.handleAction(act)
		case env, ok := <-c.inbound:
			if !ok {
				c.inbound = nil
				continue
			}
			c.handleEnvelope(env)
		case err, ok := <-c.trDone:
			c.trDone = nil
			if ok {
				c.transportLost(err)
			}
		case res := <-c.asyncResults:
			c.handleAsyncResult(res)
		case ne := <-c.negEvents:
			c.handleNegEvent(ne)
		case sid := <-c.timeouts:
			c.handleRingTimeout(sid)
		}
	}
}

// ---- user actions ----

func (c *Controller) handleAction(act action) {
	switch act.kind {
	case actPlace:
		act.reply <- c.placeCall(act.sessionID, act.peer)
	case actAccept:
		act.reply <- c.acceptCall(act.sessionID)
	case actReject:
		act.reply <- c.rejectCall(act.sessionID)
	case actHangUp:
		act.reply <- c.hangUp(act.sessionID)
	case actToggleAudio:
		act.reply <- c.toggleMedia(act.sessionID, true)
	case actToggleVideo:
		act.reply <- c.toggleMedia(act.sessionID, false)
	case actSessions:
		infos := make([]SessionInfo, 0, len(c.sessions))
		for _, s := range c.sessions {
			infos = append(infos, SessionInfo{
				ID:       s.id,
				Peer:     s.peer,
				State:    s.state,
				Outbound: s.outbound,
				AudioOn:  s.audioOn,
				VideoOn:  s.videoOn,
			})
		}
		act.snapshot <- infos
	}
}

func (c *Controller) placeCall(sessionID, peer string) error {
	if peer == c.cfg.UserID {
		return ErrNoSession
	}
	if _, exists := c.byPeer[peer]; exists {
		return ErrSessionExists
	}

	s, err := c.newSession(sessionID, peer, true)
	if err != nil {
		return err
	}
	c.setState(s, StatePlacing)

	// suspension point: device capture runs off-loop, call-request is sent
	// once the media is actually available
	s.pending = opCapturePlace
	c.runAsync(s, opCapturePlace, func() utils.Result[string] {
		return utils.Result[string]{Err: s.neg.CaptureMedia(context.Background(), c.cfg.Media)}
	})
	return nil
}

func (c *Controller) acceptCall(sessionID string) error {
	s, ok := c.sessions[sessionID]
	if !ok {
		return ErrNoSession
	}
	if s.state != StateRingingRemote || s.pending != opNone {
		return ErrNoSession
	}

	s.pending = opCaptureAccept
	c.runAsync(s, opCaptureAccept, func() utils.Result[string] {
		return utils.Result[string]{Err: s.neg.CaptureMedia(context.Background(), c.cfg.Media)}
	})
	return nil
}

func (c *Controller) rejectCall(sessionID string) error {
	s, ok := c.sessions[sessionID]
	if !ok || s.state != StateRingingRemote {
		return ErrNoSession
	}
	c.send(signal.MustNew(signal.KindCallReject, s.id, c.cfg.UserID, s.peer,
		signal.Reject{Reason: signal.ReasonDeclined}))
	c.teardown(s, signal.ReasonDeclined, nil, false)
	return nil
}

func (c *Controller) hangUp(sessionID string) error {
	s, ok := c.sessions[sessionID]
	if !ok {
		return ErrNoSession
	}
	switch s.state {
	case StatePlacing:
		c.teardown(s, signal.ReasonCancelled, nil, true)
	case StateRingingRemote:
		return c.rejectCall(sessionID)
	case StateConnected:
		c.teardown(s, signal.ReasonHangup, nil, true)
	default:
		return ErrNoSession
	}
	return nil
}

func (c *Controller) toggleMedia(sessionID string, audio bool) error {
	s, ok := c.sessions[sessionID]
	if !ok {
		return ErrNoSession
	}
	if audio {
		s.audioOn = !s.audioOn
	} else {
		s.videoOn = !s.videoOn
	}
	c.emit(MediaToggled{SessionID: s.id, AudioOn: s.audioOn, VideoOn: s.videoOn})
	return nil
}

// ---- inbound envelopes ----

func (c *Controller) handleEnvelope(env signal.Envelope) {
	if env.To != c.cfg.UserID {
		log.Warnf("controller %s: envelope addressed to %s, dropping", c.cfg.UserID, env.To)
		return
	}

	if env.Kind == signal.KindCallRequest {
		c.handleCallRequest(env)
		return
	}

	s, ok := c.sessions[env.SessionID]
	if !ok {
		// late accept after timeout, stray candidates after teardown, the
		// loser's call-end in a glare exchange: all quietly discarded
		log.Debugf("controller %s: no session %s for %s, discarding",
			c.cfg.UserID, env.SessionID, env.Kind)
		return
	}
	s.touch()

	if s.pending != opNone {
		s.backlog = append(s.backlog, env)
		return
	}
	c.dispatch(s, env)
}

func (c *Controller) handleCallRequest(env signal.Envelope) {
	// glare: we are placing a call to the same peer that is now calling us.
	// The lexicographically smaller caller id wins; the larger side cancels
	// its attempt and rings instead.
	if sid, ok := c.byPeer[env.From]; ok {
		out := c.sessions[sid]
		if out.state == StatePlacing && out.outbound {
			if c.cfg.UserID < env.From {
				log.Infof("controller %s: glare with %s, our request wins", c.cfg.UserID, env.From)
				return
			}
			log.Infof("controller %s: glare with %s, yielding", c.cfg.UserID, env.From)
			c.teardown(out, signal.ReasonCancelled, nil, true)
		} else {
			// duplicate request while already ringing/connected with them
			c.send(signal.MustNew(signal.KindCallReject, env.SessionID, c.cfg.UserID, env.From,
				signal.Reject{Reason: signal.ReasonBusy}))
			return
		}
	} else if len(c.sessions) > 0 {
		// a second, unrelated call while non-idle: auto-reject as busy
		c.send(signal.MustNew(signal.KindCallReject, env.SessionID, c.cfg.UserID, env.From,
			signal.Reject{Reason: signal.ReasonBusy}))
		return
	}

	s, err := c.newSession(env.SessionID, env.From, false)
	if err != nil {
		log.Errorf("controller %s: negotiator for incoming call: %v", c.cfg.UserID, err)
		c.send(signal.MustNew(signal.KindCallReject, env.SessionID, c.cfg.UserID, env.From,
			signal.Reject{Reason: signal.ReasonDeclined}))
		return
	}
	c.setState(s, StateRingingRemote)

	var req signal.CallRequest
	_ = env.DecodePayload(&req)
	c.emit(IncomingCall{SessionID: s.id, Peer: s.peer, CallerName: req.CallerName})
}

// dispatch applies one envelope to a session with no suspension point
// outstanding. Envelopes invalid for the current state are ignored.
func (c *Controller) dispatch(s *session, env signal.Envelope) {
	switch env.Kind {
	case signal.KindCallAccept:
		if s.state != StatePlacing {
			c.ignore(s, env)
			return
		}
		s.stopRingTimer()
		c.setState(s, StateConnected)
		s.pending = opOffer
		c.runAsync(s, opOffer, func() utils.Result[string] {
			sdp, err := s.neg.CreateOffer(context.Background())
			return utils.Result[string]{Val: sdp, Err: err}
		})

	case signal.KindCallReject:
		if s.state != StatePlacing {
			c.ignore(s, env)
			return
		}
		reason := env.RejectReason()
		var err error
		if reason == signal.ReasonUnreachable {
			err = ErrUserOffline
		}
		c.teardown(s, reason, err, false)

	case signal.KindCallEnd:
		// valid in every non-idle state: caller cancelled the ring, the
		// peer hung up, or the relay reports the peer's connection gone
		reason := env.RejectReason()
		var err error
		if reason == signal.ReasonPeerOffline {
			err = ErrTransport
		}
		c.teardown(s, reason, err, false)

	case signal.KindOffer:
		if s.state != StateConnected || s.outbound {
			c.ignore(s, env)
			return
		}
		var desc signal.Description
		if err := env.DecodePayload(&desc); err != nil {
			log.Warnf("controller %s: bad offer payload: %v", c.cfg.UserID, err)
			return
		}
		s.pending = opAnswer
		c.runAsync(s, opAnswer, func() utils.Result[string] {
			sdp, err := s.neg.CreateAnswer(context.Background(), desc.SDP)
			return utils.Result[string]{Val: sdp, Err: err}
		})

	case signal.KindAnswer:
		if s.state != StateConnected || !s.outbound {
			c.ignore(s, env)
			return
		}
		var desc signal.Description
		if err := env.DecodePayload(&desc); err != nil {
			log.Warnf("controller %s: bad answer payload: %v", c.cfg.UserID, err)
			return
		}
		if err := s.neg.InstallRemoteAnswer(desc.SDP); err != nil {
			log.Errorf("controller %s: install answer: %v", c.cfg.UserID, err)
			c.teardown(s, signal.ReasonHangup, ErrNegotiation, true)
		}

	case signal.KindCandidate:
		if s.state != StateConnected {
			c.ignore(s, env)
			return
		}
		var cand signal.Candidate
		if err := env.DecodePayload(&cand); err != nil {
			log.Warnf("controller %s: bad candidate payload: %v", c.cfg.UserID, err)
			return
		}
		if err := s.neg.AddRemoteCandidate(cand); err != nil {
			// one unusable candidate does not kill the call
			log.Warnf("controller %s: add candidate: %v", c.cfg.UserID, err)
		}

	default:
		c.ignore(s, env)
	}
}

func (c *Controller) ignore(s *session, env signal.Envelope) {
	log.Debugf("controller %s: %s invalid in state %s, ignoring",
		c.cfg.UserID, env.Kind, s.state)
}

// ---- suspension point completions ----

func (c *Controller) handleAsyncResult(res asyncResult) {
	s, ok := c.sessions[res.sessionID]
	if !ok || s.pending != res.op {
		// session ended while the operation ran
		return
	}
	s.pending = opNone
	s.touch()

	switch res.op {
	case opCapturePlace:
		if res.res.Err != nil {
			// nothing was sent yet; the callee never learns of the attempt
			c.teardown(s, signal.ReasonCancelled, res.res.Err, false)
			return
		}
		req := signal.MustNew(signal.KindCallRequest, s.id, c.cfg.UserID, s.peer,
			signal.CallRequest{CallerName: c.cfg.DisplayName})
		if !c.send(req) {
			c.teardown(s, signal.ReasonPeerOffline, ErrTransport, false)
			return
		}
		c.armRingTimer(s)

	case opCaptureAccept:
		if res.res.Err != nil {
			c.teardown(s, signal.ReasonCancelled, res.res.Err, true)
			return
		}
		if !c.send(signal.MustNew(signal.KindCallAccept, s.id, c.cfg.UserID, s.peer, nil)) {
			c.teardown(s, signal.ReasonPeerOffline, ErrTransport, false)
			return
		}
		c.setState(s, StateConnected)

	case opOffer:
		if res.res.Err != nil {
			c.teardown(s, signal.ReasonHangup, ErrNegotiation, true)
			return
		}
		env := signal.MustNew(signal.KindOffer, s.id, c.cfg.UserID, s.peer,
			signal.Description{SDP: res.res.Val})
		if !c.send(env) {
			c.teardown(s, signal.ReasonPeerOffline, ErrTransport, false)
			return
		}

	case opAnswer:
		if res.res.Err != nil {
			c.teardown(s, signal.ReasonHangup, ErrNegotiation, true)
			return
		}
		env := signal.MustNew(signal.KindAnswer, s.id, c.cfg.UserID, s.peer,
			signal.Description{SDP: res.res.Val})
		if !c.send(env) {
			c.teardown(s, signal.ReasonPeerOffline, ErrTransport, false)
			return
		}
	}

	c.drainBacklog(res.sessionID)
}

// drainBacklog replays envelopes queued while a suspension point was
// outstanding, in receipt order, stopping if a new one opens.
func (c *Controller) drainBacklog(sessionID string) {
	for {
		s, ok := c.sessions[sessionID]
		if !ok || s.pending != opNone || len(s.backlog) == 0 {
			return
		}
		env := s.backlog[0]
		s.backlog = s.backlog[1:]
		c.dispatch(s, env)
	}
}

// ---- negotiator events ----

func (c *Controller) handleNegEvent(ne negEvent) {
	s, ok := c.sessions[ne.sessionID]
	if !ok {
		return
	}

	switch {
	case ne.candidate != nil:
		env := signal.MustNew(signal.KindCandidate, s.id, c.cfg.UserID, s.peer, *ne.candidate)
		if !c.send(env) {
			log.Warnf("controller %s: candidate send failed", c.cfg.UserID)
		}
	case ne.stream != nil:
		c.emit(RemoteMedia{SessionID: s.id, Stream: *ne.stream})
	case ne.failure != nil:
		log.Errorf("controller %s: negotiation failed on %s: %v", c.cfg.UserID, s.id, ne.failure)
		c.teardown(s, signal.ReasonHangup, ErrNegotiation, true)
	}
}

// ---- timers, transport loss, shutdown ----

func (c *Controller) armRingTimer(s *session) {
	sid := s.id
	s.ringTimer = time.AfterFunc(c.cfg.RingTimeout, func() {
		select {
		case c.timeouts <- sid:
		case <-c.stopped:
		}
	})
}

func (c *Controller) handleRingTimeout(sid string) {
	s, ok := c.sessions[sid]
	if !ok || s.state != StatePlacing {
		return
	}
	log.Infof("controller %s: call %s timed out", c.cfg.UserID, sid)
	c.teardown(s, signal.ReasonTimeout, ErrCallTimeout, true)
}

func (c *Controller) transportLost(err error) {
	log.Warnf("controller %s: transport lost: %v", c.cfg.UserID, err)
	for _, sid := range c.sessionIDs() {
		if s, ok := c.sessions[sid]; ok {
			c.teardown(s, signal.ReasonPeerOffline, ErrTransport, false)
		}
	}
}

func (c *Controller) shutdown() {
	for _, sid := range c.sessionIDs() {
		if s, ok := c.sessions[sid]; ok {
			c.teardown(s, signal.ReasonHangup, nil, true)
		}
	}
	if err := c.tr.Close(); err != nil {
		log.Warnf("controller %s: transport close: %v", c.cfg.UserID, err)
	}
}

func (c *Controller) sessionIDs() []string {
	ids := make([]string, 0, len(c.sessions))
	for id := range c.sessions {
		ids = append(ids, id)
	}
	return ids
}

// ---- session lifecycle ----

func (c *Controller) newSession(sessionID, peer string, outbound bool) (*session, error) {
	neg, err := c.factory()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	s := &session{
		id:             sessionID,
		peer:           peer,
		outbound:       outbound,
		state:          StateIdle,
		neg:            neg,
		audioOn:        true,
		videoOn:        true,
		createdAt:      now,
		lastActivityAt: now,
	}
	c.sessions[sessionID] = s
	c.byPeer[peer] = sessionID
	go c.forwardNegEvents(sessionID, neg)
	return s, nil
}

// forwardNegEvents fans one negotiator's channels into the loop, tagged
// with the session id. Exits when the negotiator closes.
func (c *Controller) forwardNegEvents(sessionID string, neg Negotiator) {
	for {
		var ne negEvent
		select {
		case <-neg.Done():
			return
		case <-c.stopped:
			return
		case cand := <-neg.Candidates():
			ne = negEvent{sessionID: sessionID, candidate: &cand}
		case stream := <-neg.RemoteStreams():
			ne = negEvent{sessionID: sessionID, stream: &stream}
		case err := <-neg.Failures():
			ne = negEvent{sessionID: sessionID, failure: err}
		}
		select {
		case c.negEvents <- ne:
		case <-c.stopped:
			return
		}
	}
}

// teardown is the single exit path for a session: every termination route
// funnels here, so the negotiator is released exactly once.
func (c *Controller) teardown(s *session, reason signal.Reason, err error, sendEnd bool) {
	delete(c.sessions, s.id)
	if c.byPeer[s.peer] == s.id {
		delete(c.byPeer, s.peer)
	}
	s.stopRingTimer()

	c.setState(s, StateEnding)
	if sendEnd {
		c.send(signal.MustNew(signal.KindCallEnd, s.id, c.cfg.UserID, s.peer,
			signal.Reject{Reason: reason}))
	}
	if s.neg != nil {
		_ = s.neg.Close()
	}
	s.state = StateIdle

	caller, callee := c.cfg.UserID, s.peer
	if !s.outbound {
		caller, callee = s.peer, c.cfg.UserID
	}
	c.history.Record(CallRecord{
		SessionID: s.id,
		Caller:    caller,
		Callee:    callee,
		Outcome:   string(reason),
		StartedAt: s.createdAt,
		EndedAt:   time.Now(),
	})

	c.emit(CallEnded{SessionID: s.id, Peer: s.peer, Reason: reason, Err: err})
}

// ---- helpers ----

func (c *Controller) setState(s *session, st State) {
	s.state = st
	s.touch()
	c.emit(StateChanged{SessionID: s.id, Peer: s.peer, State: st})
}

// send pushes an envelope to the relay, best effort. Returns false when the
// transport refused it.
func (c *Controller) send(env signal.Envelope) bool {
	if err := c.tr.Send(env); err != nil {
		log.Warnf("controller %s: send %s failed: %v", c.cfg.UserID, env.Kind, err)
		return false
	}
	return true
}

func (c *Controller) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		log.Warnf("controller %s: event consumer too slow, dropping %T", c.cfg.UserID, ev)
	}
}

// runAsync executes one suspension point off-loop and posts its result back
// as a loop message.
func (c *Controller) runAsync(s *session, op asyncOp, f func() utils.Result[string]) {
	sid := s.id
	fut := async.Async(f)
	go func() {
		select {
		case c.asyncResults <- asyncResult{sessionID: sid, op: op, res: fut.Await()}:
		case <-c.stopped:
		}
	}()
}
