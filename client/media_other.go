//go:build !linux || !cgo

package client

import (
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	log "github.com/sirupsen/logrus"
)

// newMediaStack on non-Linux platforms builds a receive-only stack with the
// default codecs. Device capture via pion/mediadevices needs the
// platform-specific drivers that are only wired for Linux here; other
// platforms still negotiate and receive remote media.
func newMediaStack() (*webrtc.API, func(pc *webrtc.PeerConnection) mediaCapturer, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, nil, err
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return nil, nil, err
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(registry),
	)

	newCapturer := func(pc *webrtc.PeerConnection) mediaCapturer {
		return func(want MediaConstraints) (func(), error) {
			log.Infof("media: no local capture on this platform, negotiating receive-only")
			addRecvOnlyTransceivers(pc)
			return func() {}, nil
		}
	}
	return api, newCapturer, nil
}
