package ws

import "encoding/json"

// Socket event names. Server->client events carry a Frame envelope;
// typing events are relayed peer to peer and never persisted.
const (
	EventOnlineAccounts  = "getOnlineUsers"
	EventNewMessage      = "newMessage"
	EventMessagesSeen    = "messagesSeen"
	EventMessageReaction = "messageReaction"
	EventTypingStart     = "typing_start"
	EventTypingStop      = "typing_stop"
)

// Frame is the envelope for every server->client frame.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// InboundFrame is a client->server frame. The target is tagged by the
// client: receiverId for a direct peer, groupId for a group.
type InboundFrame struct {
	Event      string `json:"event"`
	ReceiverID string `json:"receiverId,omitempty"`
	GroupID    string `json:"groupId,omitempty"`
}

// NewFrame marshals an event payload into a wire-ready frame.
func NewFrame(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: data})
}
