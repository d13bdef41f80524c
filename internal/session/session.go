package session

import "time"

// State represents the lifecycle state of a session.
type State string

const (
	StateAwaitingCapacity State = "awaiting_capacity"
	StateReading          State = "reading"
	StateDraining         State = "draining"
	StateTerminated       State = "terminated"
)

// Session holds metadata and state for a single managed stack session.
type Session struct {
	ID        string    `json:"id"`
	State     State     `json:"state"`
	Capacity  int       `json:"capacity"`
	Length    int       `json:"length"`
	Remaining int       `json:"remaining"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"createdAt"`
}

// EventType distinguishes the things that happen to a session's stack.
type EventType string

const (
	EventPushed     EventType = "pushed"
	EventOverflow   EventType = "overflow"
	EventPopped     EventType = "popped"
	EventUnderflow  EventType = "underflow"
	EventTerminated EventType = "terminated"
)

// Event is a single observable change in a managed session.
type Event struct {
	SessionID string    `json:"sessionId"`
	Type      EventType `json:"type"`
	Data      string    `json:"data,omitempty"`
	Values    []string  `json:"values,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Outcome is the result of submitting one token to a session.
type Outcome string

const (
	OutcomePushed   Outcome = "pushed"
	OutcomeOverflow Outcome = "overflow"
	OutcomeSentinel Outcome = "sentinel"
)

// Result describes what a push or stop did to a managed session. Drained and
// Underflow are only set once the session has been drained.
type Result struct {
	Outcome   Outcome  `json:"outcome"`
	Drained   []string `json:"drained,omitempty"`
	Underflow bool     `json:"underflow,omitempty"`
	Session   Session  `json:"session"`
}
