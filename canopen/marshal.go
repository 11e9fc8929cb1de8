package canopen

import (
	"github.com/notnil/canroute"
)

// FrameMarshaler encodes a typed CANopen entity into a CAN frame.
type FrameMarshaler interface {
	MarshalCANFrame() (canroute.Frame, error)
}

// FrameUnmarshaler decodes a typed CANopen entity from a CAN frame.
type FrameUnmarshaler interface {
	UnmarshalCANFrame(canroute.Frame) error
}

// FrameCodec combines marshaling and unmarshaling of CAN frames.
// Heartbeat, Emergency, NMT and SYNC all satisfy it.
type FrameCodec interface {
	FrameMarshaler
	FrameUnmarshaler
}
