package canopen

import (
	"fmt"

	"github.com/notnil/canroute"
)

// Heartbeat represents an NMT error control heartbeat from a node and
// implements CAN frame marshal/unmarshal.
type Heartbeat struct {
	Node  NodeID
	State NMTState
}

// MarshalCANFrame encodes the heartbeat to a CAN frame.
func (h Heartbeat) MarshalCANFrame() (canroute.Frame, error) {
	return BuildHeartbeat(h.Node, h.State)
}

// UnmarshalCANFrame decodes the heartbeat from a CAN frame.
func (h *Heartbeat) UnmarshalCANFrame(f canroute.Frame) error {
	node, state, err := ParseHeartbeat(f)
	if err != nil {
		return err
	}
	h.Node = node
	h.State = state
	return nil
}

// BuildHeartbeat produces an NMT error control heartbeat frame for node/state.
// A heartbeat contains a single byte with the current NMTState.
func BuildHeartbeat(node NodeID, state NMTState) (canroute.Frame, error) {
	if err := node.Validate(); err != nil {
		return canroute.Frame{}, err
	}
	var f canroute.Frame
	f.ID = COBID(FCNMTErrCtrl, node)
	f.Len = 1
	f.Data[0] = byte(state)
	return f, nil
}

// ParseHeartbeat parses a heartbeat frame and returns node id and state.
func ParseHeartbeat(f canroute.Frame) (NodeID, NMTState, error) {
	if f.Len < 1 {
		return 0, 0, fmt.Errorf("canopen: heartbeat too short: %d", f.Len)
	}
	fc, node, err := ParseCOBID(f.ID)
	if err != nil {
		return 0, 0, err
	}
	if fc != FCNMTErrCtrl {
		return 0, 0, fmt.Errorf("canopen: not a heartbeat frame (id=0x%X)", f.ID)
	}
	return node, NMTState(f.Data[0]), nil
}

// HeartbeatMonitor delivers parsed heartbeat events for a set of nodes.
// It owns one router route per watched node and retires them on Stop.
type HeartbeatMonitor struct {
	routes []*canroute.Route
}

// WatchHeartbeats registers routes for the heartbeat COB-IDs of the given
// nodes and invokes fn with each parsed event. fn runs on the router's
// delivery path and must not block. At least one node is required.
func WatchHeartbeats(r *canroute.Router, fn func(Heartbeat), nodes ...NodeID) (*HeartbeatMonitor, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("canopen: no nodes to watch")
	}
	for _, n := range nodes {
		if err := n.Validate(); err != nil {
			return nil, err
		}
	}
	m := &HeartbeatMonitor{}
	for _, n := range nodes {
		rt := r.AddFunc(COBID(FCNMTErrCtrl, n), func(f canroute.Frame) {
			node, state, err := ParseHeartbeat(f)
			if err != nil {
				return
			}
			fn(Heartbeat{Node: node, State: state})
		})
		m.routes = append(m.routes, rt)
	}
	return m, nil
}

// Stop removes the monitor's routes. Idempotent.
func (m *HeartbeatMonitor) Stop() {
	for _, rt := range m.routes {
		rt.Close()
	}
}
