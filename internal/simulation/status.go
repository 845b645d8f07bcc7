package simulation

import "fmt"

type Status int

const (
	StatusIdle Status = iota
	StatusValidating
	StatusSubmitting
	StatusStreaming
	StatusCompleted
	StatusFailed
)

var statusNames = [...]string{
	StatusIdle:       "idle",
	StatusValidating: "validating",
	StatusSubmitting: "submitting",
	StatusStreaming:  "streaming",
	StatusCompleted:  "completed",
	StatusFailed:     "failed",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

// Terminal reports whether the session has finished, successfully or not.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Running reports whether a run is between submit and a terminal state.
func (s Status) Running() bool {
	return s == StatusValidating || s == StatusSubmitting || s == StatusStreaming
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is a copy of one session's state.
type Snapshot struct {
	Status       Status `json:"status"`
	TaskID       string `json:"taskId,omitempty"`
	LatestFrame  string `json:"-"`
	Frames       int    `json:"frames"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

type EventKind string

const (
	EventStatus       EventKind = "status"
	EventSubmitted    EventKind = "submitted"
	EventFrame        EventKind = "frame"
	EventStreamClosed EventKind = "stream_closed"
)

// Event is delivered to the controller observer. Session numbers increase
// by one for each Submit call.
type Event struct {
	Kind     EventKind
	Session  uint64
	Snapshot Snapshot
}
