package canroute

import "errors"

// Handler is invoked once per delivered frame. Implementations run on the
// bus's delivery path (an interrupt analog) and must return quickly without
// blocking.
type Handler func(Frame)

// Bus represents a CAN peripheral which can transmit frames and deliver
// received frames through a single callback. Implementations should be safe
// for concurrent use by multiple goroutines.
type Bus interface {
	// Send transmits a frame. It may block until the frame is queued or sent.
	Send(frame Frame) error

	// OnReceive registers the callback invoked once per received frame.
	// A bus has exactly one callback slot: calling OnReceive again replaces
	// the previous callback, and passing nil clears it so received frames
	// are dropped. Multiplexing many consumers over the single slot is the
	// Router's job, not the bus's.
	OnReceive(h Handler)

	// Close releases resources. Further Send calls may return an error and
	// no further callbacks are delivered.
	Close() error
}

// ErrClosed indicates the bus or endpoint has been closed.
var ErrClosed = errors.New("canroute: closed")
