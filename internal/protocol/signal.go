package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrEmptySignal   = errors.New("empty signal payload")
	ErrUnknownSignal = errors.New("unknown signal type")
	ErrInvalidSignal = errors.New("invalid signal payload")
)

// SignalKind tags the variants of Signal on the wire.
type SignalKind string

const (
	KindOffer     SignalKind = "offer"
	KindAnswer    SignalKind = "answer"
	KindCandidate SignalKind = "candidate"
)

// Signal is the negotiation data carried inside a signal envelope. The set of
// implementations is closed: Offer, Answer and Candidate.
type Signal interface {
	Kind() SignalKind
	isSignal()
}

type Offer struct {
	SDP string
}

type Answer struct {
	SDP string
}

// Candidate is a trickled ICE candidate in the browser's RTCIceCandidateInit shape.
type Candidate struct {
	Candidate        string
	SDPMid           *string
	SDPMLineIndex    *uint16
	UsernameFragment *string
}

func (Offer) Kind() SignalKind     { return KindOffer }
func (Answer) Kind() SignalKind    { return KindAnswer }
func (Candidate) Kind() SignalKind { return KindCandidate }

func (Offer) isSignal()     {}
func (Answer) isSignal()    {}
func (Candidate) isSignal() {}

// wireSignal matches what browser peers (simple-peer) put on the wire, so
// CLI and web clients can share a room.
type wireSignal struct {
	Type      SignalKind     `json:"type"`
	SDP       string         `json:"sdp,omitempty"`
	Candidate *wireCandidate `json:"candidate,omitempty"`
}

type wireCandidate struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

// EncodeSignal serializes s into a payload suitable for Message.Payload.
func EncodeSignal(s Signal) (json.RawMessage, error) {
	var w wireSignal
	switch v := s.(type) {
	case Offer:
		w = wireSignal{Type: KindOffer, SDP: v.SDP}
	case Answer:
		w = wireSignal{Type: KindAnswer, SDP: v.SDP}
	case Candidate:
		w = wireSignal{Type: KindCandidate, Candidate: &wireCandidate{
			Candidate:        v.Candidate,
			SDPMid:           v.SDPMid,
			SDPMLineIndex:    v.SDPMLineIndex,
			UsernameFragment: v.UsernameFragment,
		}}
	case nil:
		return nil, ErrEmptySignal
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownSignal, s)
	}
	return json.Marshal(w)
}

// DecodeSignal parses a payload produced by EncodeSignal or by a browser peer.
func DecodeSignal(raw json.RawMessage) (Signal, error) {
	if len(raw) == 0 {
		return nil, ErrEmptySignal
	}

	var w wireSignal
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignal, err)
	}

	switch w.Type {
	case KindOffer, KindAnswer:
		if w.SDP == "" {
			return nil, fmt.Errorf("%w: %s without sdp", ErrInvalidSignal, w.Type)
		}
		if w.Type == KindOffer {
			return Offer{SDP: w.SDP}, nil
		}
		return Answer{SDP: w.SDP}, nil
	case KindCandidate:
		if w.Candidate == nil {
			return nil, fmt.Errorf("%w: candidate without body", ErrInvalidSignal)
		}
		return Candidate{
			Candidate:        w.Candidate.Candidate,
			SDPMid:           w.Candidate.SDPMid,
			SDPMLineIndex:    w.Candidate.SDPMLineIndex,
			UsernameFragment: w.Candidate.UsernameFragment,
		}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrInvalidSignal)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSignal, w.Type)
	}
}
