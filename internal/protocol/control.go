package protocol

import "github.com/vmihailenco/msgpack/v5"

// ControlLabel is the label of the data channel every peer link opens next
// to its media tracks.
const ControlLabel = "control"

// Control message types.
const (
	ControlTypeMediaState = "media_state"
)

// ControlMessage is the envelope for messages on the control data channel.
type ControlMessage struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// MediaState tells a peer which of our outgoing tracks are live.
type MediaState struct {
	Audio  bool `msgpack:"audio"`
	Video  bool `msgpack:"video"`
	Screen bool `msgpack:"screen"`
}

// DecodePayload decodes the message payload into the provided struct
func (m ControlMessage) DecodePayload(v any) error {
	return msgpack.Unmarshal(m.Payload, v)
}

// NewControlMessage creates a ControlMessage with the given type and payload
func NewControlMessage(t string, payload any) (ControlMessage, error) {
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return ControlMessage{}, err
	}
	return ControlMessage{Type: t, Payload: b}, nil
}

// EncodeMediaState returns the bytes to send on the control channel.
func EncodeMediaState(st MediaState) ([]byte, error) {
	msg, err := NewControlMessage(ControlTypeMediaState, st)
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(msg)
}

func DecodeControl(data []byte) (ControlMessage, error) {
	var msg ControlMessage
	err := msgpack.Unmarshal(data, &msg)
	return msg, err
}
