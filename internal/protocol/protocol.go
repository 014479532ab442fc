// Package protocol defines the JSON messages exchanged over the /ws endpoint.
package protocol

import (
	"encoding/json"
	"fmt"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// TypeSubscribe is sent by a client to start receiving events.
	TypeSubscribe MessageType = "subscribe"

	// TypeUnsubscribe is sent by a client to stop receiving events.
	TypeUnsubscribe MessageType = "unsubscribe"

	// TypeToggle asks the daemon to flip the pause state of a category.
	TypeToggle MessageType = "toggle"

	// TypeAck confirms a subscribe, unsubscribe or toggle request.
	TypeAck MessageType = "ack"

	// TypeError reports a rejected request.
	TypeError MessageType = "error"

	// TypeEvent carries one captured input event.
	TypeEvent MessageType = "event"

	// TypeState is pushed after any category changes pause state, and once
	// right after connecting.
	TypeState MessageType = "state"
)

// Message is the generic container for all WebSocket messages
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// New wraps payload in a Message of type t.
func New(t MessageType, payload any) (Message, error) {
	msg := Message{Type: t}
	if payload == nil {
		return msg, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return msg, fmt.Errorf("encode %s payload: %w", t, err)
	}
	msg.Payload = raw
	return msg, nil
}

// Encode marshals a Message of type t.
func Encode(t MessageType, payload any) ([]byte, error) {
	msg, err := New(t, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}

// Decode parses a raw frame.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("invalid message: %w", err)
	}
	if msg.Type == "" {
		return msg, fmt.Errorf("invalid message: missing type")
	}
	return msg, nil
}

// Into unmarshals the payload into v.
func (m Message) Into(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s: missing payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("%s: invalid payload: %w", m.Type, err)
	}
	return nil
}

// SubscribePayload is the payload for TypeSubscribe and TypeUnsubscribe
type SubscribePayload struct {
	Events []string `json:"events"`
}

// TogglePayload is the payload for TypeToggle. Category is "mouse",
// "keyboard" or "all".
type TogglePayload struct {
	Category string `json:"category"`
}

// AckPayload is the payload for TypeAck
type AckPayload struct {
	Op     MessageType `json:"op"`
	Events []string    `json:"events,omitempty"`
}

// ErrorPayload is the payload for TypeError
type ErrorPayload struct {
	Op      MessageType `json:"op,omitempty"`
	Message string      `json:"message"`
}

// CategoryState mirrors the daemon's per-category hook state.
type CategoryState struct {
	Installed        bool `json:"installed"`
	Paused           bool `json:"paused"`
	MouseMoveEnabled bool `json:"mouseMoveEnabled,omitempty"`
}

// StatePayload is the payload for TypeState
type StatePayload struct {
	Categories map[string]CategoryState `json:"categories"`
}
