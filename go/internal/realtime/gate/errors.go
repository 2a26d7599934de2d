package gate

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned when no channel is available. The request
	// was never sent.
	ErrNotConnected = errors.New("not connected")

	// ErrTimeout is returned when no acknowledgment arrived in time. The
	// server may or may not have applied the request.
	ErrTimeout = errors.New("request timed out")

	// ErrDisconnected is returned when the channel dropped while the request
	// was waiting for its acknowledgment.
	ErrDisconnected = errors.New("disconnected while request was pending")

	// ErrAlreadyPending is returned when a request of the same class is
	// still waiting for its acknowledgment. The new request was not sent.
	ErrAlreadyPending = errors.New("request already in flight")
)

// RejectedError is returned when the server explicitly declined a request.
type RejectedError struct {
	Event   string
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s rejected", e.Event)
	}
	return fmt.Sprintf("%s rejected: %s", e.Event, e.Message)
}

// IsRejected reports whether err is a server rejection and returns it.
func IsRejected(err error) (*RejectedError, bool) {
	var rej *RejectedError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
