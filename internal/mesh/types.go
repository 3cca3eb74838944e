// Package mesh turns relay events into one peer connection per remote
// participant of a room.
package mesh

import (
	"context"
	"encoding/json"

	"github.com/TusharChoudharyy/zava-chat-app/internal/media"
	"github.com/TusharChoudharyy/zava-chat-app/internal/protocol"
)

// Role says which side of the offer/answer exchange a link plays.
type Role string

const (
	RoleInitiator Role = "initiator"
	RoleResponder Role = "responder"
)

type State string

const (
	StateNegotiating State = "negotiating"
	StateEstablished State = "established"
	StateClosed      State = "closed"
)

// Phase is the step of negotiation a link is waiting on.
type Phase string

const (
	PhaseAwaitingLocalDescription  Phase = "awaiting-local-description"
	PhaseAwaitingRemoteDescription Phase = "awaiting-remote-description"
	PhaseAwaitingMedia             Phase = "awaiting-media"
	PhaseDone                      Phase = "done"
)

// Signaler delivers a signal payload to one remote identity through the relay.
type Signaler interface {
	SendSignal(to string, payload json.RawMessage) error
}

// Presenter renders what the mesh produces. Calls arrive from link
// goroutines and must not block for long.
type Presenter interface {
	StreamAdded(peerID string, track media.RemoteTrack)
	StreamRemoved(peerID string)
	MediaStateChanged(peerID string, state protocol.MediaState)
	LinkStateChanged(peerID string, state State)
}

// Callbacks are invoked by a Connection from its own goroutines.
type Callbacks struct {
	OnCandidate   func(protocol.Candidate)
	OnTrack       func(media.RemoteTrack)
	OnControlOpen func()
	OnControl     func([]byte)
	OnFailed      func(error)
}

// Connector creates media transport connections.
type Connector interface {
	NewConnection(ctx context.Context, peerID string, role Role, tracks []*media.Track, cb Callbacks) (Connection, error)
}

// Connection is one peer connection carrying our local tracks and a control
// data channel.
type Connection interface {
	// CreateOffer sets and returns the local offer.
	CreateOffer(ctx context.Context) (string, error)

	// AcceptOffer applies a remote offer and returns the local answer.
	AcceptOffer(ctx context.Context, sdp string) (string, error)

	SetAnswer(sdp string) error
	AddCandidate(c protocol.Candidate) error

	// ReplaceVideo swaps the outgoing video track without renegotiating.
	ReplaceVideo(track *media.Track) error

	SendControl(data []byte) error
	Close() error
}

// LinkInfo is a snapshot of one link.
type LinkInfo struct {
	PeerID string
	Role   Role
	State  State
	Phase  Phase
}

type nopPresenter struct{}

func (nopPresenter) StreamAdded(string, media.RemoteTrack)         {}
func (nopPresenter) StreamRemoved(string)                          {}
func (nopPresenter) MediaStateChanged(string, protocol.MediaState) {}
func (nopPresenter) LinkStateChanged(string, State)                {}
