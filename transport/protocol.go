package transport

import (
	"encoding/json"
	"fmt"
)

// Frame is the envelope of every socket message in either direction
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinChatPayload subscribes a connection to a user's notification room
type JoinChatPayload struct {
	UserId string `json:"user_id"`
}

// ConversationPayload names the conversation room to join or leave
type ConversationPayload struct {
	ConversationId string `json:"conversation_id"`
}

// TypingPayload is sent with typing_start and typing_stop
type TypingPayload struct {
	ConversationId string `json:"conversation_id"`
	UserId         string `json:"user_id"`
}

// NewFrame marshals data into a frame for event
func NewFrame(event string, data any) (*Frame, error) {
	f := &Frame{Event: event}
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", event, err)
		}
		f.Data = b
	}
	return f, nil
}

// Encode encodes data to JSON bytes
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decode decodes JSON bytes to struct
func Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// EncodeFrame builds the wire bytes of a frame in one step
func EncodeFrame(event string, data any) ([]byte, error) {
	f, err := NewFrame(event, data)
	if err != nil {
		return nil, err
	}
	return Encode(f)
}
