package domain

import "fmt"

// AttemptState is the lifecycle of a running attempt.
type AttemptState int

const (
	StateActive AttemptState = iota
	StateSubmitting
	StateSubmitted
	StateErrored
)

func (s AttemptState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateSubmitting:
		return "submitting"
	case StateSubmitted:
		return "submitted"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// MarshalText lets states appear by name in JSON events.
func (s AttemptState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *AttemptState) UnmarshalText(text []byte) error {
	for _, candidate := range []AttemptState{StateActive, StateSubmitting, StateSubmitted, StateErrored} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown attempt state %q", text)
}

// Trigger names what asked for a submission.
type Trigger string

const (
	TriggerUser   Trigger = "user"
	TriggerExpiry Trigger = "expiry"
	TriggerRetry  Trigger = "retry"
)

// EventType enumerates session notifications.
type EventType string

const (
	EventTick      EventType = "tick"
	EventState     EventType = "state"
	EventSubmitted EventType = "submitted"
	EventError     EventType = "error"
)

// SessionEvent is pushed to session subscribers.
type SessionEvent struct {
	Type       EventType     `json:"type"`
	AttemptID  string        `json:"attemptId"`
	State      AttemptState  `json:"state"`
	Remaining  int           `json:"remaining"`
	Result     *SubmitResult `json:"result,omitempty"`
	ResultPath string        `json:"resultPath,omitempty"`
	Error      string        `json:"error,omitempty"`
	Retryable  bool          `json:"retryable,omitempty"`
}
