package ws

import (
	"encoding/json"
	"fmt"
)

// MessageType constants for WebSocket protocol.
const (
	// Client -> Server
	TypePing = "ping"

	// Server -> Client
	TypeStateChanged         = "state_changed"
	TypeNarrationStarted     = "narration_started"
	TypeNarrationEnded       = "narration_ended"
	TypeNarrationStopped     = "narration_stopped"
	TypeNarrationUnavailable = "narration_unavailable"
	TypeError                = "error"
	TypePong                 = "pong"
)

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// NewMessage encodes payload into a message of the given type.
func NewMessage(msgType string, payload any) (Message, error) {
	msg := Message{Type: msgType}
	if payload == nil {
		return msg, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	msg.Payload = data
	return msg, nil
}

// Server Messages (outgoing)

type StateChangedPayload struct {
	State string `json:"state"`
}

type NarrationPayload struct {
	PlaybackID string `json:"playback_id,omitempty"`
	AudioURL   string `json:"audio_url,omitempty"`
	Message    string `json:"message,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
