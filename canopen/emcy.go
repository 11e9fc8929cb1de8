package canopen

import (
	"encoding/binary"
	"fmt"

	"github.com/notnil/canroute"
)

// Emergency represents an EMCY message including node id and payload.
// Layout (8 bytes total):
//
//	0..1: Error code (little-endian)
//	2:    Error register
//	3..7: Manufacturer specific data
type Emergency struct {
	Node          NodeID
	ErrorCode     uint16
	ErrorRegister uint8
	Manufacturer  [5]byte
}

// MarshalCANFrame encodes the EMCY event to a CAN frame.
func (e Emergency) MarshalCANFrame() (canroute.Frame, error) {
	return BuildEMCY(e.Node, e)
}

// UnmarshalCANFrame decodes the EMCY event from a CAN frame.
func (e *Emergency) UnmarshalCANFrame(f canroute.Frame) error {
	node, payload, err := ParseEMCY(f)
	if err != nil {
		return err
	}
	*e = payload
	e.Node = node
	return nil
}

// BuildEMCY builds an EMCY frame for the given node.
func BuildEMCY(node NodeID, e Emergency) (canroute.Frame, error) {
	if err := node.Validate(); err != nil {
		return canroute.Frame{}, err
	}
	var f canroute.Frame
	f.ID = COBID(FCEMCY, node)
	f.Len = 8
	binary.LittleEndian.PutUint16(f.Data[0:2], e.ErrorCode)
	f.Data[2] = e.ErrorRegister
	copy(f.Data[3:8], e.Manufacturer[:])
	return f, nil
}

// ParseEMCY decodes an EMCY payload from a CAN frame.
func ParseEMCY(f canroute.Frame) (NodeID, Emergency, error) {
	if f.Len < 8 {
		return 0, Emergency{}, fmt.Errorf("canopen: emcy too short: %d", f.Len)
	}
	fc, node, err := ParseCOBID(f.ID)
	if err != nil {
		return 0, Emergency{}, err
	}
	if fc != FCEMCY {
		return 0, Emergency{}, fmt.Errorf("canopen: not an emcy frame (id=0x%X)", f.ID)
	}
	var e Emergency
	e.Node = node
	e.ErrorCode = binary.LittleEndian.Uint16(f.Data[0:2])
	e.ErrorRegister = f.Data[2]
	copy(e.Manufacturer[:], f.Data[3:8])
	return node, e, nil
}

// WatchEmergencies registers a route for the node's EMCY COB-ID and invokes
// fn with each parsed event. The returned route is the caller's handle;
// close it to stop watching. fn runs on the router's delivery path.
func WatchEmergencies(r *canroute.Router, node NodeID, fn func(Emergency)) (*canroute.Route, error) {
	if err := node.Validate(); err != nil {
		return nil, err
	}
	rt := r.AddFunc(COBID(FCEMCY, node), func(f canroute.Frame) {
		_, e, err := ParseEMCY(f)
		if err != nil {
			return
		}
		fn(e)
	})
	return rt, nil
}
