package client

import (
	"github.com/pion/webrtc/v4"
	log "github.com/sirupsen/logrus"
)

// addRecvOnlyTransceivers ensures the SDP always has audio and video m-lines
// with ICE credentials even when no local track was attached.
func addRecvOnlyTransceivers(pc *webrtc.PeerConnection) {
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		log.Warnf("media: add video transceiver: %v", err)
	}
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		log.Warnf("media: add audio transceiver: %v", err)
	}
}
