package canopen

import (
	"fmt"
	"sync"
	"time"

	"github.com/notnil/canroute"
)

// SYNC represents a CANopen SYNC message. Counter is optional (nil => length 0).
type SYNC struct {
	Counter *uint8
}

// MarshalCANFrame encodes the SYNC to a CAN frame.
func (s SYNC) MarshalCANFrame() (canroute.Frame, error) {
	var f canroute.Frame
	f.ID = COBID(FCSync, 0)
	if s.Counter != nil {
		f.Len = 1
		f.Data[0] = *s.Counter
	} else {
		f.Len = 0
	}
	return f, nil
}

// UnmarshalCANFrame decodes the SYNC from a CAN frame.
func (s *SYNC) UnmarshalCANFrame(f canroute.Frame) error {
	fc, _, err := ParseCOBID(f.ID)
	if err != nil {
		return err
	}
	if fc != FCSync {
		return fmt.Errorf("canopen: not a SYNC frame (id=0x%X)", f.ID)
	}
	switch f.Len {
	case 0:
		s.Counter = nil
	case 1:
		v := f.Data[0]
		s.Counter = &v
	default:
		return fmt.Errorf("canopen: SYNC length %d invalid", f.Len)
	}
	return nil
}

// WatchSYNC registers a route for the SYNC COB-ID and invokes fn with each
// parsed SYNC message. Close the returned route to stop watching.
func WatchSYNC(r *canroute.Router, fn func(SYNC)) *canroute.Route {
	return r.AddFunc(COBID(FCSync, 0), func(f canroute.Frame) {
		var s SYNC
		if err := s.UnmarshalCANFrame(f); err != nil {
			return
		}
		fn(s)
	})
}

// SYNCWriter periodically transmits SYNC frames on the provided bus.
// If withCounter is set, a counter byte (0..127 then wrap) is included.
type SYNCWriter struct {
	bus         canroute.Bus
	interval    time.Duration
	withCounter bool

	start sync.Once
	stop  chan struct{}
}

// NewSYNCWriter creates a SYNC writer that sends at the given interval.
// If withCounter is true, a modulo-128 counter byte is added per CiA 301.
func NewSYNCWriter(bus canroute.Bus, interval time.Duration, withCounter bool) *SYNCWriter {
	return &SYNCWriter{bus: bus, interval: interval, withCounter: withCounter, stop: make(chan struct{})}
}

// Start launches the background goroutine. Calling Start multiple times has no additional effect.
func (w *SYNCWriter) Start() {
	w.start.Do(func() { go w.run() })
}

// Stop signals the writer to stop. Idempotent.
func (w *SYNCWriter) Stop() {
	select {
	case <-w.stop:
		return
	default:
	}
	close(w.stop)
}

func (w *SYNCWriter) run() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	var counter uint8
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			var frame canroute.Frame
			frame.ID = COBID(FCSync, 0)
			if w.withCounter {
				frame.Len = 1
				frame.Data[0] = counter & 0x7F
				counter = (counter + 1) & 0x7F
			} else {
				frame.Len = 0
			}
			_ = w.bus.Send(frame)
		}
	}
}
