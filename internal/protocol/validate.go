package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// validClientTypes is the set of allowed client→server message types.
var validClientTypes = map[string]bool{
	TypeSessionCreate: true,
	TypeSessionPush:   true,
	TypeSessionStop:   true,
	TypeSessionKill:   true,
}

// ValidateClientMessage validates a raw JSON message from a client.
// Returns the parsed Message and any validation error.
func ValidateClientMessage(raw []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if msg.Type == "" {
		return nil, fmt.Errorf("missing 'type' field")
	}

	if !validClientTypes[msg.Type] {
		return nil, fmt.Errorf("unknown message type: %s", msg.Type)
	}

	if msg.Payload == nil {
		return nil, fmt.Errorf("missing 'payload' field")
	}

	// Validate required payload fields per type.
	switch msg.Type {
	case TypeSessionCreate:
		var p SessionCreatePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return nil, fmt.Errorf("invalid payload for %s: %w", msg.Type, err)
		}
		if p.Capacity == nil {
			return nil, fmt.Errorf("missing required field 'capacity' in %s payload", msg.Type)
		}
		if *p.Capacity < 0 {
			return nil, fmt.Errorf("field 'capacity' must not be negative in %s payload", msg.Type)
		}

	case TypeSessionPush:
		var p SessionPushPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return nil, fmt.Errorf("invalid payload for %s: %w", msg.Type, err)
		}
		if p.SessionID == "" {
			return nil, fmt.Errorf("missing required field 'sessionId' in %s payload", msg.Type)
		}
		if err := ValidateToken(p.Value); err != nil {
			return nil, fmt.Errorf("invalid field 'value' in %s payload: %w", msg.Type, err)
		}

	case TypeSessionStop, TypeSessionKill:
		var p SessionIDPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return nil, fmt.Errorf("invalid payload for %s: %w", msg.Type, err)
		}
		if p.SessionID == "" {
			return nil, fmt.Errorf("missing required field 'sessionId' in %s payload", msg.Type)
		}
	}

	return &msg, nil
}

// ValidateToken checks that a pushed value is a single console token: not
// empty and free of whitespace.
func ValidateToken(value string) error {
	if value == "" {
		return fmt.Errorf("empty value")
	}
	if strings.ContainsAny(value, " \t\r\n\v\f") {
		return fmt.Errorf("value %q contains whitespace", value)
	}
	return nil
}

// NewErrorMessage creates an error message ready to send to the client.
func NewErrorMessage(code, message string) (*Message, error) {
	return NewMessage(TypeError, ErrorPayload{
		Code:    code,
		Message: message,
	})
}
