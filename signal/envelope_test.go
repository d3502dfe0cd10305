package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvelopeValidate(t *testing.T) {
	valid := MustNew(KindCallRequest, "sess", "alice", "bob", CallRequest{CallerName: "Alice"})
	assert.NoError(t, valid.Validate())

	cases := []struct {
		name string
		env  Envelope
	}{
		{"unknown kind", Envelope{Kind: "call-upgrade", SessionID: "s", From: "a", To: "b"}},
		{"empty session", Envelope{Kind: KindCallEnd, From: "a", To: "b"}},
		{"empty from", Envelope{Kind: KindCallEnd, SessionID: "s", To: "b"}},
		{"self addressed", Envelope{Kind: KindCallEnd, SessionID: "s", From: "a", To: "a"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Error(t, c.env.Validate())
		})
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte(`{"kind":"call-request"`))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"kind":"made-up","sessionId":"s","from":"a","to":"b"}`))
	assert.Error(t, err)
}

func TestRejectReason(t *testing.T) {
	env := MustNew(KindCallReject, "s", "bob", "alice", Reject{Reason: ReasonBusy})
	assert.Equal(t, ReasonBusy, env.RejectReason())

	// no payload at all defaults to declined
	bare := MustNew(KindCallReject, "s", "bob", "alice", nil)
	assert.Equal(t, ReasonDeclined, bare.RejectReason())
}

func TestCandidatePayloadRoundTrip(t *testing.T) {
	env := MustNew(KindCandidate, "s", "a", "b", Candidate{
		Candidate:     "candidate:1 1 udp 2130706431 192.0.2.1 54321 typ host",
		SDPMid:        "0",
		SDPMLineIndex: 1,
	})
	data, err := env.Encode()
	assert.NoError(t, err)

	back, err := Decode(data)
	assert.NoError(t, err)

	var cand Candidate
	assert.NoError(t, back.DecodePayload(&cand))
	assert.Equal(t, uint16(1), cand.SDPMLineIndex)
	assert.Equal(t, "0", cand.SDPMid)
	assert.Contains(t, cand.Candidate, "typ host")
}
