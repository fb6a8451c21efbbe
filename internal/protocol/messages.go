package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants on the realtime avatar
// channel.
type MessageType string

const (
	TypeClientSpeak  MessageType = "client_speak"
	TypeClientClose  MessageType = "client_close"
	TypeSpeakResult  MessageType = "speak_result"
	TypeSessionEvent MessageType = "session_event"
	TypeErrorEvent   MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// ClientSpeak asks the avatar session to speak text.
type ClientSpeak struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
}

// ClientClose ends the avatar session from the client side.
type ClientClose struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
}

// SpeakResult reports the outcome of one utterance.
type SpeakResult struct {
	Type       MessageType `json:"type"`
	SessionID  string      `json:"session_id"`
	Success    bool        `json:"success"`
	DurationMS int64       `json:"duration_ms"`
	Error      string      `json:"error,omitempty"`
}

// SessionEvent signals lifecycle transitions on the channel.
type SessionEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Detail    string      `json:"detail,omitempty"`
}

// ErrorEvent reports a failure on the channel itself.
type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

// ParseClientMessage decodes and validates an inbound client payload.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientSpeak:
		var msg ClientSpeak
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.Text == "" {
			return nil, errors.New("invalid client_speak")
		}
		return msg, nil
	case TypeClientClose:
		var msg ClientClose
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" {
			return nil, errors.New("invalid client_close")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
