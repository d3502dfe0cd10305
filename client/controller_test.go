package client_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomock "go.uber.org/mock/gomock"

	"github.com/edusphere/calls/client"
	"github.com/edusphere/calls/client/mock_client"
	"github.com/edusphere/calls/signal"
	"github.com/edusphere/calls/utils/mock"
)

var displayNames = map[string]string{
	"alice": "Alice L.",
	"bob":   "Bob T.",
	"carol": "Carol W.",
}

// negFixture is one mocked negotiator plus the channels the controller
// drains from it.
type negFixture struct {
	mock       *mock_client.MockNegotiator
	candidates chan signal.Candidate
	streams    chan client.RemoteStream
	failures   chan error
	done       chan struct{}
	closes     atomic.Int32
}

func newNegFixture(ctrl *gomock.Controller) *negFixture {
	f := &negFixture{
		candidates: make(chan signal.Candidate, 16),
		streams:    make(chan client.RemoteStream, 4),
		failures:   make(chan error, 1),
		done:       make(chan struct{}),
	}
	m := mock_client.NewMockNegotiator(ctrl)
	m.EXPECT().Candidates().Return((<-chan signal.Candidate)(f.candidates)).AnyTimes()
	m.EXPECT().RemoteStreams().Return((<-chan client.RemoteStream)(f.streams)).AnyTimes()
	m.EXPECT().Failures().Return((<-chan error)(f.failures)).AnyTimes()
	m.EXPECT().Done().Return((<-chan struct{})(f.done)).AnyTimes()
	m.EXPECT().Close().DoAndReturn(func() error {
		if f.closes.Add(1) == 1 {
			close(f.done)
		}
		return nil
	}).AnyTimes()
	f.mock = m
	return f
}

func factoryOf(t *testing.T, fixtures ...*negFixture) client.NegotiatorFactory {
	var mu sync.Mutex
	next := 0
	return func() (client.Negotiator, error) {
		mu.Lock()
		defer mu.Unlock()
		if next >= len(fixtures) {
			t.Errorf("controller built %d negotiators, only %d expected", next+1, len(fixtures))
			return nil, fmt.Errorf("no negotiator fixture left")
		}
		f := fixtures[next]
		next++
		return f.mock, nil
	}
}

func newTestController(t *testing.T, hub *mock.Hub, userID string, ringTimeout time.Duration, fixtures ...*negFixture) *client.Controller {
	c := client.NewController(client.Config{
		UserID:      userID,
		DisplayName: displayNames[userID],
		RingTimeout: ringTimeout,
		Media:       client.MediaConstraints{Audio: true, Video: true},
	}, hub.Join(userID), factoryOf(t, fixtures...), nil)
	t.Cleanup(c.Close)
	return c
}

// awaitEvent consumes events until one of type T shows up.
func awaitEvent[T client.Event](t *testing.T, c *client.Controller) T {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-c.Events():
			require.True(t, ok, "event stream closed while waiting for %T", *new(T))
			if v, ok := ev.(T); ok {
				return v
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %T", *new(T))
		}
	}
}

func awaitState(t *testing.T, c *client.Controller, sessionID string, want client.State) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-c.Events():
			require.True(t, ok, "event stream closed while waiting for state %s", want)
			if sc, ok := ev.(client.StateChanged); ok && sc.SessionID == sessionID && sc.State == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %s", want)
		}
	}
}

func requireClosedOnce(t *testing.T, f *negFixture) {
	t.Helper()
	require.Eventually(t, func() bool { return f.closes.Load() == 1 },
		2*time.Second, 10*time.Millisecond, "negotiator close count = %d", f.closes.Load())
}

func TestCallConnectsEndToEnd(t *testing.T) {
	ctrl := gomock.NewController(t)
	hub := mock.NewHub()
	fa := newNegFixture(ctrl)
	fb := newNegFixture(ctrl)

	fa.mock.EXPECT().CaptureMedia(gomock.Any(), gomock.Any()).Return(nil)
	fa.mock.EXPECT().CreateOffer(gomock.Any()).Return("offer-sdp", nil)
	installed := make(chan struct{}, 1)
	fa.mock.EXPECT().InstallRemoteAnswer("answer-sdp").DoAndReturn(func(string) error {
		installed <- struct{}{}
		return nil
	})
	fb.mock.EXPECT().CaptureMedia(gomock.Any(), gomock.Any()).Return(nil)
	fb.mock.EXPECT().CreateAnswer(gomock.Any(), "offer-sdp").Return("answer-sdp", nil)

	alice := newTestController(t, hub, "alice", time.Second, fa)
	bob := newTestController(t, hub, "bob", time.Second, fb)

	sid, err := alice.PlaceCall("bob")
	require.NoError(t, err)
	awaitState(t, alice, sid, client.StatePlacing)

	inc := awaitEvent[client.IncomingCall](t, bob)
	assert.Equal(t, sid, inc.SessionID)
	assert.Equal(t, "alice", inc.Peer)
	assert.Equal(t, "Alice L.", inc.CallerName)

	require.NoError(t, bob.Accept(sid))
	awaitState(t, bob, sid, client.StateConnected)
	awaitState(t, alice, sid, client.StateConnected)

	select {
	case <-installed:
	case <-time.After(2 * time.Second):
		t.Fatal("caller never installed the remote answer")
	}

	// trickle: a candidate discovered on bob's side lands in alice's negotiator
	cand := signal.Candidate{Candidate: "candidate:1 1 udp 2122260223 192.0.2.7 5000 typ host", SDPMid: "0"}
	applied := make(chan signal.Candidate, 1)
	fa.mock.EXPECT().AddRemoteCandidate(cand).DoAndReturn(func(c signal.Candidate) error {
		applied <- c
		return nil
	})
	fb.candidates <- cand
	select {
	case got := <-applied:
		assert.Equal(t, cand, got)
	case <-time.After(2 * time.Second):
		t.Fatal("candidate never reached the caller")
	}

	// remote media surfaces as an event
	fa.streams <- client.RemoteStream{}
	media := awaitEvent[client.RemoteMedia](t, alice)
	assert.Equal(t, sid, media.SessionID)

	require.NoError(t, alice.HangUp(sid))
	endA := awaitEvent[client.CallEnded](t, alice)
	assert.Equal(t, signal.ReasonHangup, endA.Reason)
	assert.NoError(t, endA.Err)
	endB := awaitEvent[client.CallEnded](t, bob)
	assert.Equal(t, signal.ReasonHangup, endB.Reason)

	requireClosedOnce(t, fa)
	requireClosedOnce(t, fb)
	assert.Empty(t, alice.Sessions())
	assert.Empty(t, bob.Sessions())
}

func TestRejectedCall(t *testing.T) {
	ctrl := gomock.NewController(t)
	hub := mock.NewHub()
	fa := newNegFixture(ctrl)
	fb := newNegFixture(ctrl)
	fa.mock.EXPECT().CaptureMedia(gomock.Any(), gomock.Any()).Return(nil)

	alice := newTestController(t, hub, "alice", time.Second, fa)
	bob := newTestController(t, hub, "bob", time.Second, fb)

	sid, err := alice.PlaceCall("bob")
	require.NoError(t, err)

	inc := awaitEvent[client.IncomingCall](t, bob)
	require.NoError(t, bob.Reject(inc.SessionID))

	endB := awaitEvent[client.CallEnded](t, bob)
	assert.Equal(t, signal.ReasonDeclined, endB.Reason)

	endA := awaitEvent[client.CallEnded](t, alice)
	assert.Equal(t, sid, endA.SessionID)
	assert.Equal(t, signal.ReasonDeclined, endA.Reason)
	assert.NoError(t, endA.Err)

	requireClosedOnce(t, fa)
	requireClosedOnce(t, fb)
}

func TestCalleeUnreachable(t *testing.T) {
	ctrl := gomock.NewController(t)
	hub := mock.NewHub()
	fa := newNegFixture(ctrl)
	fa.mock.EXPECT().CaptureMedia(gomock.Any(), gomock.Any()).Return(nil)

	alice := newTestController(t, hub, "alice", time.Second, fa)

	sid, err := alice.PlaceCall("bob")
	require.NoError(t, err)

	end := awaitEvent[client.CallEnded](t, alice)
	assert.Equal(t, sid, end.SessionID)
	assert.Equal(t, signal.ReasonUnreachable, end.Reason)
	assert.ErrorIs(t, end.Err, client.ErrUserOffline)
	requireClosedOnce(t, fa)
}

func TestRingTimeoutAndLateAcceptDiscarded(t *testing.T) {
	ctrl := gomock.NewController(t)
	hub := mock.NewHub()
	fa := newNegFixture(ctrl)
	fa.mock.EXPECT().CaptureMedia(gomock.Any(), gomock.Any()).Return(nil)

	bobTr := hub.Join("bob") // a callee that rings forever
	alice := newTestController(t, hub, "alice", 100*time.Millisecond, fa)

	sid, err := alice.PlaceCall("bob")
	require.NoError(t, err)

	var req signal.Envelope
	select {
	case req = <-bobTr.Inbound():
	case <-time.After(2 * time.Second):
		t.Fatal("call-request never arrived")
	}
	assert.Equal(t, signal.KindCallRequest, req.Kind)

	end := awaitEvent[client.CallEnded](t, alice)
	assert.Equal(t, signal.ReasonTimeout, end.Reason)
	assert.ErrorIs(t, end.Err, client.ErrCallTimeout)

	// the caller told us to stop ringing
	select {
	case env := <-bobTr.Inbound():
		assert.Equal(t, signal.KindCallEnd, env.Kind)
		assert.Equal(t, signal.ReasonTimeout, env.RejectReason())
	case <-time.After(2 * time.Second):
		t.Fatal("call-end never arrived")
	}

	// an answer after the timeout must be quietly discarded
	require.NoError(t, bobTr.Send(signal.MustNew(signal.KindCallAccept, sid, "bob", "alice", nil)))
	select {
	case ev, ok := <-alice.Events():
		if ok {
			t.Fatalf("unexpected event after timeout: %#v", ev)
		}
	case <-time.After(200 * time.Millisecond):
	}
	assert.Empty(t, alice.Sessions())
}

func TestBusyAutoReject(t *testing.T) {
	ctrl := gomock.NewController(t)
	hub := mock.NewHub()
	fa := newNegFixture(ctrl)
	fb := newNegFixture(ctrl)
	fc := newNegFixture(ctrl)
	fa.mock.EXPECT().CaptureMedia(gomock.Any(), gomock.Any()).Return(nil)
	fc.mock.EXPECT().CaptureMedia(gomock.Any(), gomock.Any()).Return(nil)

	alice := newTestController(t, hub, "alice", time.Second, fa)
	bob := newTestController(t, hub, "bob", time.Second, fb)
	carol := newTestController(t, hub, "carol", time.Second, fc)

	_, err := alice.PlaceCall("bob")
	require.NoError(t, err)
	awaitEvent[client.IncomingCall](t, bob)

	// bob is ringing for alice; carol's attempt bounces without disturbing him
	sidC, err := carol.PlaceCall("bob")
	require.NoError(t, err)
	end := awaitEvent[client.CallEnded](t, carol)
	assert.Equal(t, sidC, end.SessionID)
	assert.Equal(t, signal.ReasonBusy, end.Reason)

	infos := bob.Sessions()
	require.Len(t, infos, 1)
	assert.Equal(t, "alice", infos[0].Peer)
	requireClosedOnce(t, fc)
}

func TestGlareYieldsToSmallerCallerID(t *testing.T) {
	ctrl := gomock.NewController(t)
	hub := mock.NewHub()
	faOut := newNegFixture(ctrl)
	fbOut := newNegFixture(ctrl)
	fbIn := newNegFixture(ctrl)

	// hold alice's capture until both attempts are in flight, so the
	// crossing is guaranteed
	release := make(chan struct{})
	faOut.mock.EXPECT().CaptureMedia(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, client.MediaConstraints) error {
			<-release
			return nil
		})
	faOut.mock.EXPECT().CreateOffer(gomock.Any()).Return("offer-sdp", nil)
	faOut.mock.EXPECT().InstallRemoteAnswer("answer-sdp").Return(nil)
	fbOut.mock.EXPECT().CaptureMedia(gomock.Any(), gomock.Any()).Return(nil).MaxTimes(1)
	fbIn.mock.EXPECT().CaptureMedia(gomock.Any(), gomock.Any()).Return(nil)
	fbIn.mock.EXPECT().CreateAnswer(gomock.Any(), "offer-sdp").Return("answer-sdp", nil)

	alice := newTestController(t, hub, "alice", time.Second, faOut)
	bob := newTestController(t, hub, "bob", time.Second, fbOut, fbIn)

	sidA, err := alice.PlaceCall("bob")
	require.NoError(t, err)
	sidB, err := bob.PlaceCall("alice")
	require.NoError(t, err)
	close(release)

	// bob has the larger id, so his attempt folds and he rings for alice's
	endB := awaitEvent[client.CallEnded](t, bob)
	assert.Equal(t, sidB, endB.SessionID)
	assert.Equal(t, signal.ReasonCancelled, endB.Reason)

	inc := awaitEvent[client.IncomingCall](t, bob)
	assert.Equal(t, sidA, inc.SessionID)

	require.NoError(t, bob.Accept(sidA))
	awaitState(t, bob, sidA, client.StateConnected)
	awaitState(t, alice, sidA, client.StateConnected)

	// exactly one call survived, and it is alice's
	aInfos := alice.Sessions()
	require.Len(t, aInfos, 1)
	assert.Equal(t, sidA, aInfos[0].ID)
	assert.True(t, aInfos[0].Outbound)
	bInfos := bob.Sessions()
	require.Len(t, bInfos, 1)
	assert.Equal(t, sidA, bInfos[0].ID)
	assert.False(t, bInfos[0].Outbound)
	requireClosedOnce(t, fbOut)
}

func TestMediaAccessFailureAbortsBeforeSignaling(t *testing.T) {
	ctrl := gomock.NewController(t)
	hub := mock.NewHub()
	fa := newNegFixture(ctrl)
	fa.mock.EXPECT().CaptureMedia(gomock.Any(), gomock.Any()).
		Return(fmt.Errorf("%w: device busy", client.ErrMediaAccess))

	bobTr := hub.Join("bob")
	alice := newTestController(t, hub, "alice", time.Second, fa)

	_, err := alice.PlaceCall("bob")
	require.NoError(t, err)

	end := awaitEvent[client.CallEnded](t, alice)
	assert.ErrorIs(t, end.Err, client.ErrMediaAccess)
	requireClosedOnce(t, fa)

	// the callee must never have heard about the attempt
	select {
	case env := <-bobTr.Inbound():
		t.Fatalf("unexpected envelope %s", env.Kind)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestTransportLossEndsCalls(t *testing.T) {
	ctrl := gomock.NewController(t)
	hub := mock.NewHub()
	fa := newNegFixture(ctrl)
	fa.mock.EXPECT().CaptureMedia(gomock.Any(), gomock.Any()).Return(nil)

	alice := newTestController(t, hub, "alice", time.Second, fa)

	// ringing toward a raw peer; the wire dies under alice
	bobTr := hub.Join("bob")
	_, err := alice.PlaceCall("bob")
	require.NoError(t, err)
	select {
	case <-bobTr.Inbound():
	case <-time.After(2 * time.Second):
		t.Fatal("call-request never arrived")
	}

	hub.Drop("alice")

	end := awaitEvent[client.CallEnded](t, alice)
	assert.ErrorIs(t, end.Err, client.ErrTransport)
	requireClosedOnce(t, fa)
	assert.Empty(t, alice.Sessions())
}

func TestActionValidation(t *testing.T) {
	ctrl := gomock.NewController(t)
	hub := mock.NewHub()
	fa := newNegFixture(ctrl)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	fa.mock.EXPECT().CaptureMedia(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, client.MediaConstraints) error {
			<-release
			return nil
		})

	alice := newTestController(t, hub, "alice", time.Second, fa)

	_, err := alice.PlaceCall("alice")
	assert.Error(t, err, "calling yourself must fail")

	_, err = alice.PlaceCall("bob")
	require.NoError(t, err)
	_, err = alice.PlaceCall("bob")
	assert.ErrorIs(t, err, client.ErrSessionExists)

	assert.ErrorIs(t, alice.Accept("no-such-session"), client.ErrNoSession)
	assert.ErrorIs(t, alice.HangUp("no-such-session"), client.ErrNoSession)
}

func TestMediaToggle(t *testing.T) {
	ctrl := gomock.NewController(t)
	hub := mock.NewHub()
	fa := newNegFixture(ctrl)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	fa.mock.EXPECT().CaptureMedia(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, client.MediaConstraints) error {
			<-release
			return nil
		})

	alice := newTestController(t, hub, "alice", time.Second, fa)
	sid, err := alice.PlaceCall("bob")
	require.NoError(t, err)

	require.NoError(t, alice.ToggleAudio(sid))
	ev := awaitEvent[client.MediaToggled](t, alice)
	assert.False(t, ev.AudioOn)
	assert.True(t, ev.VideoOn)

	require.NoError(t, alice.ToggleVideo(sid))
	ev = awaitEvent[client.MediaToggled](t, alice)
	assert.False(t, ev.AudioOn)
	assert.False(t, ev.VideoOn)
}
