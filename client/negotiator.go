package client

//go:generate mockgen -source=negotiator.go -destination=mock_client/negotiator.go -package=mock_client

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	log "github.com/sirupsen/logrus"

	"github.com/edusphere/calls/signal"
)

// MediaConstraints selects which local devices a session wants.
type MediaConstraints struct {
	Audio bool
	Video bool
}

// RemoteStream is a remote track that became available on the connection.
type RemoteStream struct {
	Track    *webrtc.TrackRemote
	Receiver *webrtc.RTPReceiver
}

// Negotiator wraps one peer connection for one call attempt. Instantiated
// exactly once per session, closed exactly once when the session ends.
// Outbound negotiation events surface on channels; the controller fans them
// into its event loop.
type Negotiator interface {
	// CaptureMedia opens local devices and attaches their tracks. Fails with
	// ErrMediaAccess when the devices cannot be opened.
	CaptureMedia(ctx context.Context, want MediaConstraints) error
	// CreateOffer produces the local description for the caller side.
	CreateOffer(ctx context.Context) (string, error)
	// CreateAnswer installs the remote offer and produces the local answer
	// for the callee side. Buffered candidates flush on install.
	CreateAnswer(ctx context.Context, remoteOfferSDP string) (string, error)
	// InstallRemoteAnswer installs the callee's answer on the caller side.
	// Buffered candidates flush on install.
	InstallRemoteAnswer(sdp string) error
	// AddRemoteCandidate applies a remote path candidate, buffering it when
	// the remote description is not installed yet. Buffered candidates are
	// applied in receipt order, never dropped.
	AddRemoteCandidate(cand signal.Candidate) error
	// Candidates yields locally discovered path candidates to relay out.
	Candidates() <-chan signal.Candidate
	// RemoteStreams yields remote tracks as they arrive.
	RemoteStreams() <-chan RemoteStream
	// Failures yields at most one unrecoverable negotiation failure.
	Failures() <-chan error
	// Done is closed when the negotiator is closed.
	Done() <-chan struct{}
	// Close releases local media and the underlying connection. Idempotent.
	Close() error
}

// NegotiatorFactory builds one Negotiator per call attempt.
type NegotiatorFactory func() (Negotiator, error)

// mediaCapturer opens local devices and attaches tracks to the peer
// connection, returning a release func for the captured tracks. Platform
// specific: see media_linux.go and media_other.go.
type mediaCapturer func(want MediaConstraints) (release func(), err error)

// NewNegotiatorFactory returns the production factory backed by pion. Each
// call builds a fresh API (media engine, default interceptors) and peer
// connection against the given STUN servers.
func NewNegotiatorFactory(stunURLs []string) NegotiatorFactory {
	return func() (Negotiator, error) {
		api, newCapturer, err := newMediaStack()
		if err != nil {
			return nil, fmt.Errorf("build media stack: %w", err)
		}
		pc, err := api.NewPeerConnection(webrtc.Configuration{
			ICEServers: []webrtc.ICEServer{{URLs: stunURLs}},
		})
		if err != nil {
			return nil, fmt.Errorf("create peer connection: %w", err)
		}
		return newNegotiator(pc, newCapturer(pc)), nil
	}
}

// pionNegotiator is the production Negotiator. All methods are called from
// the controller loop (or its async futures); the mutex only guards against
// pion's own callback goroutines.
type pionNegotiator struct {
	pc      peerConn
	capture mediaCapturer

	mu           sync.Mutex
	remoteSet    bool
	pending      []signal.Candidate
	releaseMedia func()

	candidates chan signal.Candidate
	streams    chan RemoteStream
	failures   chan error
	done       chan struct{}
	closeOnce  sync.Once
	closeErr   error
}

var _ Negotiator = (*pionNegotiator)(nil)

func newNegotiator(pc peerConn, capture mediaCapturer) *pionNegotiator {
	n := &pionNegotiator{
		pc:         pc,
		capture:    capture,
		candidates: make(chan signal.Candidate, 64),
		streams:    make(chan RemoteStream, 8),
		failures:   make(chan error, 1),
		done:       make(chan struct{}),
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			log.Debug("negotiator: candidate gathering complete")
			return
		}
		j := c.ToJSON()
		cand := signal.Candidate{Candidate: j.Candidate}
		if j.SDPMid != nil {
			cand.SDPMid = *j.SDPMid
		}
		if j.SDPMLineIndex != nil {
			cand.SDPMLineIndex = *j.SDPMLineIndex
		}
		negSend(n.done, n.candidates, cand)
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Debugf("negotiator: remote track %s", track.Kind())
		negSend(n.done, n.streams, RemoteStream{Track: track, Receiver: receiver})
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Debugf("negotiator: connection state %s", state)
		if state == webrtc.PeerConnectionStateFailed {
			negSend(n.done, n.failures, fmt.Errorf("peer connection failed"))
		}
	})

	return n
}

// negSend delivers to an event channel unless the negotiator is closed or
// the consumer stopped draining.
func negSend[T any](done <-chan struct{}, ch chan T, v T) {
	select {
	case <-done:
	case ch <- v:
	default:
		log.Warn("negotiator: event channel full, dropping event")
	}
}

func (n *pionNegotiator) CaptureMedia(ctx context.Context, want MediaConstraints) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	release, err := n.capture(want)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMediaAccess, err)
	}
	n.mu.Lock()
	n.releaseMedia = release
	n.mu.Unlock()
	return nil
}

func (n *pionNegotiator) CreateOffer(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	offer, err := n.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("create offer: %w", err)
	}
	if err := n.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}
	return offer.SDP, nil
}

func (n *pionNegotiator) CreateAnswer(ctx context.Context, remoteOfferSDP string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	err := n.installRemote(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  remoteOfferSDP,
	})
	if err != nil {
		return "", err
	}
	answer, err := n.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("create answer: %w", err)
	}
	if err := n.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}
	return answer.SDP, nil
}

func (n *pionNegotiator) InstallRemoteAnswer(sdp string) error {
	return n.installRemote(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  sdp,
	})
}

// installRemote sets the remote description and flushes the candidate
// buffer in receipt order.
func (n *pionNegotiator) installRemote(desc webrtc.SessionDescription) error {
	if err := n.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}

	n.mu.Lock()
	n.remoteSet = true
	buffered := n.pending
	n.pending = nil
	n.mu.Unlock()

	for _, cand := range buffered {
		if err := n.apply(cand); err != nil {
			return err
		}
	}
	return nil
}

func (n *pionNegotiator) AddRemoteCandidate(cand signal.Candidate) error {
	n.mu.Lock()
	if !n.remoteSet {
		n.pending = append(n.pending, cand)
		n.mu.Unlock()
		return nil
	}
	n.mu.Unlock()
	return n.apply(cand)
}

func (n *pionNegotiator) apply(cand signal.Candidate) error {
	init := webrtc.ICECandidateInit{
		Candidate:     cand.Candidate,
		SDPMid:        &cand.SDPMid,
		SDPMLineIndex: &cand.SDPMLineIndex,
	}
	if err := n.pc.AddICECandidate(init); err != nil {
		return fmt.Errorf("add path candidate: %w", err)
	}
	return nil
}

func (n *pionNegotiator) Candidates() <-chan signal.Candidate { return n.candidates }
func (n *pionNegotiator) RemoteStreams() <-chan RemoteStream  { return n.streams }
func (n *pionNegotiator) Failures() <-chan error              { return n.failures }
func (n *pionNegotiator) Done() <-chan struct{}               { return n.done }

// Close releases local media tracks and the peer connection. Calling it
// twice is a no-op, not an error.
func (n *pionNegotiator) Close() error {
	n.closeOnce.Do(func() {
		close(n.done)
		n.mu.Lock()
		release := n.releaseMedia
		n.releaseMedia = nil
		n.mu.Unlock()
		if release != nil {
			release()
		}
		n.closeErr = n.pc.Close()
	})
	return n.closeErr
}
