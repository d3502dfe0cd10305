//go:build linux && cgo

package client

import (
	"fmt"

	"github.com/pion/interceptor"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
	log "github.com/sirupsen/logrus"
)

// newMediaStack builds the pion API with VP8+Opus via mediadevices and the
// default interceptors, and returns a capturer constructor bound to the
// codec selector. Camera/microphone access on Linux goes through V4L2 and
// malgo drivers.
func newMediaStack() (*webrtc.API, func(pc *webrtc.PeerConnection) mediaCapturer, error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, nil, fmt.Errorf("vp8 params: %w", err)
	}
	vpxParams.BitRate = 1_000_000

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, nil, fmt.Errorf("opus params: %w", err)
	}

	selector := mediadevices.NewCodecSelector(
		mediadevices.WithVideoEncoders(&vpxParams),
		mediadevices.WithAudioEncoders(&opusParams),
	)

	mediaEngine := &webrtc.MediaEngine{}
	selector.Populate(mediaEngine)

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return nil, nil, fmt.Errorf("register interceptors: %w", err)
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(registry),
	)

	newCapturer := func(pc *webrtc.PeerConnection) mediaCapturer {
		return func(want MediaConstraints) (func(), error) {
			return captureLocalMedia(pc, selector, want)
		}
	}
	return api, newCapturer, nil
}

// captureLocalMedia opens the requested devices and attaches their tracks.
// GetUserMedia fails as a unit, so when both kinds are wanted and the
// combined attempt fails we retry each kind alone before giving up.
func captureLocalMedia(pc *webrtc.PeerConnection, selector *mediadevices.CodecSelector, want MediaConstraints) (func(), error) {
	if !want.Audio && !want.Video {
		addRecvOnlyTransceivers(pc)
		return func() {}, nil
	}

	attempts := []MediaConstraints{want}
	if want.Audio && want.Video {
		attempts = append(attempts,
			MediaConstraints{Video: true},
			MediaConstraints{Audio: true},
		)
	}

	var lastErr error
	for _, attempt := range attempts {
		constraints := mediadevices.MediaStreamConstraints{Codec: selector}
		if attempt.Video {
			constraints.Video = func(c *mediadevices.MediaTrackConstraints) {
				// raw formats only: MJPEG camera nodes can poison the VP8
				// encoder with malformed frames
				c.FrameFormat = prop.FrameFormatOneOf{
					frame.FormatYUYV,
					frame.FormatI420,
					frame.FormatI444,
					frame.FormatRGBA,
				}
				c.Width = prop.IntRanged{Max: 640}
				c.Height = prop.IntRanged{Max: 480}
			}
		}
		if attempt.Audio {
			constraints.Audio = func(_ *mediadevices.MediaTrackConstraints) {}
		}

		stream, err := mediadevices.GetUserMedia(constraints)
		if err != nil {
			log.Warnf("media: capture attempt (audio=%v video=%v) failed: %v",
				attempt.Audio, attempt.Video, err)
			lastErr = err
			continue
		}

		tracks := stream.GetTracks()
		for _, track := range tracks {
			track.OnEnded(func(err error) {
				if err != nil {
					log.Warnf("media: local track ended: %v", err)
				}
			})
			if _, err := pc.AddTrack(track); err != nil {
				log.Warnf("media: add track: %v", err)
			}
		}
		log.Infof("media: captured %d local track(s)", len(tracks))

		release := func() {
			for _, t := range tracks {
				_ = t.Close()
			}
		}
		return release, nil
	}

	return nil, fmt.Errorf("no capturable device: %w", lastErr)
}
