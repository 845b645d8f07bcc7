package simulation

import (
	"errors"
	"fmt"
)

var ErrClosed = errors.New("simulation controller is closed")

// ValidationError is raised before any network call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// SubmitError reports a failed POST. StatusCode is zero for transport errors.
type SubmitError struct {
	StatusCode int
	Message    string
}

func (e *SubmitError) Error() string {
	if e == nil {
		return ""
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("submit failed: status %d", e.StatusCode)
	}
	return "submit failed: " + e.Message
}

// StreamError reports a websocket failure or a failed: message from the backend.
type StreamError struct {
	TaskID  string
	Message string
}

func (e *StreamError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}
