// Package wire defines the JSON frames exchanged with the realtime server.
package wire

import (
	"encoding/json"
	"fmt"
)

// Events sent by the client.
const (
	EventAuthenticate       = "authenticate"
	EventSendMessage        = "send_message"
	EventMarkRead           = "mark_read"
	EventTyping             = "typing"
	EventConversationOpened = "conversation_opened"
	EventDeleteMessage      = "delete_message"
)

// Events sent by the server. EventTyping is shared by both directions.
const (
	EventAuthenticated    = "authenticated"
	EventNewMessage       = "new_message"
	EventMessageDelivered = "message_delivered"
	EventMessageRead      = "message_read"
	EventOnlineUsers      = "online_users"
	EventUserOnline       = "user_online"
	EventUserOffline      = "user_offline"
	EventError            = "error"
	EventAck              = "ack"
)

// Events raised locally by the connection manager.
const (
	EventConnect      = "connect"
	EventConnectError = "connect_error"
	EventDisconnect   = "disconnect"
)

// Frame is one message on the realtime channel. ID is set on frames that
// expect an acknowledgement and echoed back on the matching ack frame.
type Frame struct {
	Event string          `json:"event"`
	ID    uint64          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewFrame marshals payload into a frame for event.
func NewFrame(event string, payload any) (Frame, error) {
	f := Frame{Event: event}
	if payload == nil {
		return f, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("encode %s payload: %w", event, err)
	}
	f.Data = data
	return f, nil
}

// Decode unmarshals the frame data into v.
func (f Frame) Decode(v any) error {
	if len(f.Data) == 0 {
		return fmt.Errorf("%s: empty payload", f.Event)
	}
	if err := json.Unmarshal(f.Data, v); err != nil {
		return fmt.Errorf("%s: decode payload: %w", f.Event, err)
	}
	return nil
}

// Encode returns the JSON text of the frame.
func (f Frame) Encode() ([]byte, error) {
	return json.Marshal(f)
}

// ParseFrame decodes a text message into a frame.
func ParseFrame(b []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(b, &f); err != nil {
		return Frame{}, fmt.Errorf("parse frame: %w", err)
	}
	if f.Event == "" {
		return Frame{}, fmt.Errorf("parse frame: missing event")
	}
	return f, nil
}
