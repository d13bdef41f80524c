package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a server-originated message with the current timestamp.
func NewMessage(msgType string, payload interface{}) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Message{
		Type:      msgType,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Server → Client message types.
const (
	TypeSessionUpdate  = "session.update"
	TypeSessionEvent   = "session.event"
	TypeSessionDrained = "session.drained"
	TypeScriptResult   = "script.result"
	TypeError          = "error"
)

// Client → Server message types.
const (
	TypeSessionCreate = "session.create"
	TypeSessionPush   = "session.push"
	TypeSessionStop   = "session.stop"
	TypeSessionKill   = "session.kill"
)

// Error codes.
const (
	ErrSessionNotFound   = "SESSION_NOT_FOUND"
	ErrSessionTerminated = "SESSION_TERMINATED"
	ErrInvalidMessage    = "INVALID_MESSAGE"
	ErrInvalidState      = "INVALID_STATE"
	ErrInvalidCapacity   = "INVALID_CAPACITY"
	ErrMaxSessions       = "MAX_SESSIONS"
	ErrInternal          = "INTERNAL"
)

// Server → Client payloads.

type SessionUpdatePayload struct {
	ID        string `json:"id"`
	State     string `json:"state"`
	Capacity  int    `json:"capacity"`
	Length    int    `json:"length"`
	Remaining int    `json:"remaining"`
	Label     string `json:"label"`
	CreatedAt string `json:"createdAt"`
}

type SessionEventPayload struct {
	SessionID string `json:"sessionId"`
	Event     string `json:"event"` // "pushed" | "overflow" | "popped" | "underflow" | "terminated"
	Data      string `json:"data,omitempty"`
}

type SessionDrainedPayload struct {
	SessionID string   `json:"sessionId"`
	Values    []string `json:"values"`
}

type ScriptResultPayload struct {
	Script    string   `json:"script"`
	Output    string   `json:"output"`
	Values    []string `json:"values"`
	Overflows int      `json:"overflows"`
	Underflow bool     `json:"underflow"`
	Error     string   `json:"error,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Client → Server payloads.

type SessionCreatePayload struct {
	// Capacity is a pointer so a missing field can be told apart from zero.
	Capacity *int   `json:"capacity"`
	Label    string `json:"label"`
}

type SessionPushPayload struct {
	SessionID string `json:"sessionId"`
	Value     string `json:"value"`
}

type SessionIDPayload struct {
	SessionID string `json:"sessionId"`
}
