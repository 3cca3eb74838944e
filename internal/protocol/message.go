package protocol

import "encoding/json"

// Message is the envelope for every WebSocket frame exchanged between a
// client and the relay. Only the routing fields are interpreted by the
// relay; Payload is carried through untouched.
type Message struct {
	Type     string          `json:"type"`
	RoomID   string          `json:"room_id,omitempty"`
	IsHost   bool            `json:"is_host,omitempty"`
	ID       string          `json:"id,omitempty"`
	To       string          `json:"to,omitempty"`
	From     string          `json:"from,omitempty"`
	TargetID string          `json:"target_id,omitempty"`
	Action   string          `json:"action,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// Message type constants.
const (
	// client -> relay
	MessageTypeJoin   = "join"
	MessageTypeSignal = "signal"

	// relay -> client
	MessageTypeWelcome        = "welcome"
	MessageTypeJoined         = "joined"
	MessageTypePeerJoined     = "peer_joined"
	MessageTypePeerLeft       = "peer_left"
	MessageTypeSignalReceived = "signal_received"

	// both directions, different fields
	MessageTypeHostAction = "host_action"
)

// Host actions understood by the client.
const (
	ActionMute      = "mute"
	ActionStopVideo = "stop_video"
)

func NewJoin(roomID string, isHost bool) *Message {
	return &Message{Type: MessageTypeJoin, RoomID: roomID, IsHost: isHost}
}

func NewSignal(roomID, to string, payload json.RawMessage) *Message {
	return &Message{Type: MessageTypeSignal, RoomID: roomID, To: to, Payload: payload}
}

func NewHostAction(roomID, targetID, action string) *Message {
	return &Message{Type: MessageTypeHostAction, RoomID: roomID, TargetID: targetID, Action: action}
}

func NewWelcome(id string) *Message {
	return &Message{Type: MessageTypeWelcome, ID: id}
}

func NewJoined(roomID string, isHost bool) *Message {
	return &Message{Type: MessageTypeJoined, RoomID: roomID, IsHost: isHost}
}

func NewPeerJoined(id string) *Message {
	return &Message{Type: MessageTypePeerJoined, ID: id}
}

func NewPeerLeft(id string) *Message {
	return &Message{Type: MessageTypePeerLeft, ID: id}
}

func NewSignalReceived(from string, payload json.RawMessage) *Message {
	return &Message{Type: MessageTypeSignalReceived, From: from, Payload: payload}
}

// NewHostActionDelivery is the relay -> target form of a host action. The
// sender is deliberately not disclosed.
func NewHostActionDelivery(action string) *Message {
	return &Message{Type: MessageTypeHostAction, Action: action}
}
