package client

import "github.com/pion/webrtc/v4"

// this file contains the abstraction of the webrtc package

// peerConn is the slice of *webrtc.PeerConnection the negotiator needs.
// Tests substitute a fake so candidate buffering and description ordering
// can be exercised without ICE or networking.
type peerConn interface {
	OnICECandidate(func(*webrtc.ICECandidate))
	OnTrack(func(*webrtc.TrackRemote, *webrtc.RTPReceiver))
	OnConnectionStateChange(func(webrtc.PeerConnectionState))
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	SetLocalDescription(desc webrtc.SessionDescription) error
	CreateOffer(options *webrtc.OfferOptions) (webrtc.SessionDescription, error)
	CreateAnswer(options *webrtc.AnswerOptions) (webrtc.SessionDescription, error)
	Close() error
}

var _ peerConn = (*webrtc.PeerConnection)(nil)
