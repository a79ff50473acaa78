package realtime

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by EmitVolatile while no link is up.
	ErrNotConnected = errors.New("realtime: not connected")
	// ErrQueueFull is returned when the offline queue or the link buffer is full.
	ErrQueueFull = errors.New("realtime: outbound queue full")
	// ErrAckTimeout is passed to an ack callback whose ack never arrived.
	ErrAckTimeout = errors.New("realtime: ack timeout")
	// ErrClosed is returned after Close and passed to acks still pending at Close.
	ErrClosed = errors.New("realtime: manager closed")
)

// RejectedError is passed to an ack callback when the server answered with an error.
type RejectedError struct {
	Event  string
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("realtime: %s rejected: %s", e.Event, e.Reason)
}
