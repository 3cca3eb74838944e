package signaling

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/TusharChoudharyy/zava-chat-app/internal/protocol"
)

// Router receives decoded relay messages, one at a time, in arrival order.
type Router interface {
	HandleWelcome(id string)
	HandleJoined(roomID string, isHost bool)
	HandlePeerJoined(id string)
	HandleSignal(from string, payload json.RawMessage)
	HandlePeerLeft(id string)
	HandleHostAction(action string)
}

// Run dispatches messages from c to r until the connection closes.
func Run(c *Client, r Router) {
	for msg := range c.Incoming() {
		Dispatch(msg, r)
	}
}

// Dispatch routes one relay message.
func Dispatch(msg *protocol.Message, r Router) {
	switch msg.Type {
	case protocol.MessageTypeWelcome:
		r.HandleWelcome(msg.ID)

	case protocol.MessageTypeJoined:
		r.HandleJoined(msg.RoomID, msg.IsHost)

	case protocol.MessageTypePeerJoined:
		r.HandlePeerJoined(msg.ID)

	case protocol.MessageTypeSignalReceived:
		r.HandleSignal(msg.From, msg.Payload)

	case protocol.MessageTypePeerLeft:
		r.HandlePeerLeft(msg.ID)

	case protocol.MessageTypeHostAction:
		r.HandleHostAction(msg.Action)

	default:
		log.Debug().Str("type", msg.Type).Msg("Ignoring unknown relay message")
	}
}
