package canopen

import (
	"fmt"

	"github.com/notnil/canroute"
)

// NMTCommand is the command specifier for NMT service.
type NMTCommand uint8

const (
	NMTStart               NMTCommand = 0x01
	NMTStop                NMTCommand = 0x02
	NMTEnterPreOperational NMTCommand = 0x80
	NMTResetNode           NMTCommand = 0x81
	NMTResetCommunication  NMTCommand = 0x82
)

// NMTState encodes the node state as used in heartbeat.
type NMTState uint8

const (
	StateBootup         NMTState = 0x00
	StateStopped        NMTState = 0x04
	StateOperational    NMTState = 0x05
	StatePreOperational NMTState = 0x7F
)

// NMT represents an NMT command (broadcast or targeted to a node).
// A Node value of 0 encodes broadcast per CiA 301.
type NMT struct {
	Command NMTCommand
	Node    uint8
}

// MarshalCANFrame encodes the NMT command to a CAN frame.
func (n NMT) MarshalCANFrame() (canroute.Frame, error) {
	return BuildNMT(n.Command, n.Node), nil
}

// UnmarshalCANFrame decodes the NMT command from a CAN frame.
func (n *NMT) UnmarshalCANFrame(f canroute.Frame) error {
	cmd, node, err := ParseNMT(f)
	if err != nil {
		return err
	}
	n.Command = cmd
	n.Node = node
	return nil
}

// BuildNMT builds an NMT command frame. node 0 means broadcast.
func BuildNMT(cmd NMTCommand, node uint8) canroute.Frame {
	var f canroute.Frame
	f.ID = COBID(FCNMT, 0)
	f.Len = 2
	f.Data[0] = byte(cmd)
	f.Data[1] = byte(node)
	return f
}

// ParseNMT decodes an NMT frame payload returning command and target node.
func ParseNMT(f canroute.Frame) (NMTCommand, uint8, error) {
	if f.ID != COBID(FCNMT, 0) {
		return 0, 0, fmt.Errorf("canopen: not an NMT frame (id=0x%X)", f.ID)
	}
	if f.Len < 2 {
		return 0, 0, fmt.Errorf("canopen: NMT frame too short: %d", f.Len)
	}
	return NMTCommand(f.Data[0]), f.Data[1], nil
}

// SendNMT transmits an NMT command on the given bus. node 0 broadcasts.
func SendNMT(bus canroute.Bus, cmd NMTCommand, node uint8) error {
	return bus.Send(BuildNMT(cmd, node))
}
