package model

import (
	"encoding/json"
)

// Live-channel event names. Client-to-server events carry a request payload;
// server-to-client events carry a MessagePayload or ConversationStartedPayload.
const (
	EventSendMessage         = "send-message"
	EventLoadPreviousMessage = "load-previous-message"
	EventReceiveNewMessage   = "receive-new-message"
	EventReceivePrevMessage  = "receive-previous-message"
	EventConversationStarted = "conversation-started"
)

// Envelope wraps every frame on the live channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SendMessagePayload is the client request to relay a message.
type SendMessagePayload struct {
	Content string `json:"content"`
}

// LoadPreviousPayload is the client request for one step of backfill.
type LoadPreviousPayload struct {
	Scroll bool `json:"scroll"`
}

// MessagePayload is the wire form of a relayed or backfilled message.
// Scroll tells the client whether to auto-scroll to reveal the message.
type MessagePayload struct {
	Username  string `json:"username"`
	Timestamp string `json:"timestamp"`
	Content   string `json:"content"`
	Scroll    bool   `json:"scroll"`
}

// ConversationStartedPayload notifies a waiting user that they were matched.
type ConversationStartedPayload struct {
	ConversationID string `json:"conversation_id"`
	Language       string `json:"language"`
}

// NewEvent marshals an event envelope ready for the wire.
func NewEvent(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// MessageEvent builds the wire frame for a message, tagged with the event
// name matching its scroll hint.
func MessageEvent(username string, msg *Message, scroll bool) ([]byte, error) {
	event := EventReceiveNewMessage
	if scroll {
		event = EventReceivePrevMessage
	}
	return NewEvent(event, MessagePayload{
		Username:  username,
		Timestamp: FormatTimestamp(msg.CreatedAt),
		Content:   msg.Content,
		Scroll:    scroll,
	})
}
