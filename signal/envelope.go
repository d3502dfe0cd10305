// Package signal defines the wire model shared by the relay and the call
// controllers: a closed set of envelope kinds plus the typed payloads that
// ride inside them. The relay never looks past the envelope header; payloads
// are decoded only at the edges.
package signal

import (
	"encoding/json"
	"fmt"
)

// Kind is the envelope discriminator. The set is closed: adding a kind means
// touching every switch over it, which is the point.
type Kind string

const (
	// KindCallRequest asks the callee to start ringing.
	KindCallRequest Kind = "call-request"
	// KindCallAccept is the callee's consent to the call.
	KindCallAccept Kind = "call-accept"
	// KindCallReject declines a call. Also synthesized by the relay when the
	// callee is unreachable.
	KindCallReject Kind = "call-reject"
	// KindCallEnd tears a call down from either side.
	KindCallEnd Kind = "call-end"
	// KindOffer carries the caller's session description.
	KindOffer Kind = "description-offer"
	// KindAnswer carries the callee's session description.
	KindAnswer Kind = "description-answer"
	// KindCandidate carries one discovered network path candidate.
	KindCandidate Kind = "path-candidate"
)

var kinds = map[Kind]struct{}{
	KindCallRequest: {},
	KindCallAccept:  {},
	KindCallReject:  {},
	KindCallEnd:     {},
	KindOffer:       {},
	KindAnswer:      {},
	KindCandidate:   {},
}

// Valid reports whether k is a member of the closed kind set.
func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// Envelope is the unit the relay forwards. From/To are durable user IDs, not
// connection handles. Payload is opaque to the relay.
type Envelope struct {
	Kind      Kind            `json:"kind"`
	SessionID string          `json:"sessionId"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Validate checks the envelope header. Payloads are not inspected here.
func (e Envelope) Validate() error {
	if !e.Kind.Valid() {
		return fmt.Errorf("unknown envelope kind %q", e.Kind)
	}
	if e.SessionID == "" {
		return fmt.Errorf("envelope %s: empty session id", e.Kind)
	}
	if e.From == "" || e.To == "" {
		return fmt.Errorf("envelope %s: empty from/to", e.Kind)
	}
	if e.From == e.To {
		return fmt.Errorf("envelope %s: from and to are both %q", e.Kind, e.From)
	}
	return nil
}

// Reason explains a call-reject or a relay/controller initiated call-end.
type Reason string

const (
	// ReasonDeclined means the callee refused the call.
	ReasonDeclined Reason = "declined"
	// ReasonBusy means the callee already had a non-idle session.
	ReasonBusy Reason = "busy"
	// ReasonUnreachable means the callee had no live presence entry.
	ReasonUnreachable Reason = "unreachable"
	// ReasonPeerOffline means the peer's connection dropped mid-call.
	ReasonPeerOffline Reason = "peer-offline"
	// ReasonTimeout means the caller gave up waiting for an answer.
	ReasonTimeout Reason = "timeout"
	// ReasonCancelled means the caller withdrew the attempt before an answer.
	ReasonCancelled Reason = "cancelled"
	// ReasonHangup means a connected call was ended normally.
	ReasonHangup Reason = "hangup"
)

// CallRequest is the payload of a call-request envelope.
type CallRequest struct {
	CallerName string `json:"callerName"`
}

// Reject is the payload of a call-reject envelope and, optionally, of a
// synthetic call-end.
type Reject struct {
	Reason Reason `json:"reason"`
}

// Description is the payload of description-offer and description-answer.
type Description struct {
	SDP string `json:"sdp"`
}

// Candidate is the payload of a path-candidate envelope.
type Candidate struct {
	Candidate     string `json:"candidate"`
	SDPMid        string `json:"sdpMid"`
	SDPMLineIndex uint16 `json:"sdpMLineIndex"`
}

// New builds an envelope with an encoded payload. payload may be nil for
// kinds that carry none (call-accept, call-end).
func New(kind Kind, sessionID, from, to string, payload any) (Envelope, error) {
	env := Envelope{
		Kind:      kind,
		SessionID: sessionID,
		From:      from,
		To:        to,
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("encode %s payload: %w", kind, err)
		}
		env.Payload = raw
	}
	return env, nil
}

// MustNew is New for payloads that cannot fail to marshal.
func MustNew(kind Kind, sessionID, from, to string, payload any) Envelope {
	env, err := New(kind, sessionID, from, to, payload)
	if err != nil {
		panic(err)
	}
	return env
}

// DecodePayload decodes the payload into out.
func (e Envelope) DecodePayload(out any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("envelope %s: no payload", e.Kind)
	}
	if err := json.Unmarshal(e.Payload, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Kind, err)
	}
	return nil
}

// RejectReason extracts the reason from a call-reject/call-end payload,
// defaulting to declined when none was carried.
func (e Envelope) RejectReason() Reason {
	var rej Reject
	if err := e.DecodePayload(&rej); err != nil || rej.Reason == "" {
		return ReasonDeclined
	}
	return rej.Reason
}

// Encode serializes the envelope for the wire.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses one wire frame into an envelope and validates the header.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}
