package session

import (
	"github.com/TusharChoudharyy/zava-chat-app/internal/media"
	"github.com/TusharChoudharyy/zava-chat-app/internal/mesh"
	"github.com/TusharChoudharyy/zava-chat-app/internal/protocol"
)

type EventKind string

const (
	EventParticipantJoined EventKind = "participant_joined"
	EventParticipantLeft   EventKind = "participant_left"
	EventStreamAdded       EventKind = "stream_added"
	EventStreamRemoved     EventKind = "stream_removed"
	EventMediaState        EventKind = "media_state"
	EventLinkState         EventKind = "link_state"
	EventHostAction        EventKind = "host_action"
	EventHostChanged       EventKind = "host_changed"
	EventDisconnected      EventKind = "disconnected"
	EventError             EventKind = "error"
)

// Event is something the presentation layer may want to render. Only the
// fields relevant to Kind are set.
type Event struct {
	Kind   EventKind
	PeerID string

	Track      media.RemoteTrack
	MediaState protocol.MediaState
	LinkState  mesh.State
	Action     string
	IsHost     bool
	Err        error
}

const eventBuffer = 64
