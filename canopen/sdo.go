package canopen

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/notnil/canroute"
)

// SDO command specifiers for initiate download/upload expedited
const (
	sdoCCSDownloadInitiate = 1 // client->server
	sdoCCSUploadInitiate   = 2 // client->server
	sdoSCSDownloadInitiate = 3 // server->client
	sdoSCSUploadInitiate   = 2 // server->client
)

// ErrSDOTimeout is returned when a matching SDO response does not arrive
// within the client's timeout.
var ErrSDOTimeout = errors.New("canopen: sdo response timeout")

// SDOExpeditedDownload builds client->server expedited download frame (write).
// It encodes index/subindex and up to 4 data bytes.
func SDOExpeditedDownload(target NodeID, index uint16, subindex uint8, data []byte) (canroute.Frame, error) {
	if err := target.Validate(); err != nil {
		return canroute.Frame{}, err
	}
	if len(data) > 4 {
		return canroute.Frame{}, fmt.Errorf("canopen: expedited download max 4 bytes, got %d", len(data))
	}
	var f canroute.Frame
	f.ID = COBID(FCSDORx, target)
	f.Len = 8
	// Command byte per CiA 301: CCS=1, e=1, s=1, n = unused bytes in 4..7.
	n := uint8(4 - len(data))
	cmd := byte(sdoCCSDownloadInitiate) << 5
	cmd |= 1 << 3 // e
	cmd |= 1 << 2 // s
	cmd |= n & 0x3
	f.Data[0] = cmd
	binary.LittleEndian.PutUint16(f.Data[1:3], index)
	f.Data[3] = subindex
	copy(f.Data[4:], data)
	return f, nil
}

// ParseSDOExpeditedDownload decodes an expedited initiate download request.
func ParseSDOExpeditedDownload(f canroute.Frame) (NodeID, uint16, uint8, []byte, error) {
	fc, node, err := ParseCOBID(f.ID)
	if err != nil {
		return 0, 0, 0, nil, err
	}
	if fc != FCSDORx {
		return 0, 0, 0, nil, fmt.Errorf("canopen: not SDO rx frame (id=0x%X)", f.ID)
	}
	if f.Len != 8 {
		return 0, 0, 0, nil, fmt.Errorf("canopen: SDO frame len %d, want 8", f.Len)
	}
	cmd := f.Data[0]
	if (cmd>>5)&0x7 != sdoCCSDownloadInitiate {
		return 0, 0, 0, nil, fmt.Errorf("canopen: not initiate download (cmd=0x%02X)", cmd)
	}
	expedited := cmd&(1<<3) != 0
	sizeIndicated := cmd&(1<<2) != 0
	if !expedited || !sizeIndicated {
		return 0, 0, 0, nil, fmt.Errorf("canopen: only expedited+size indicated supported (cmd=0x%02X)", cmd)
	}
	size := 4 - int(cmd&0x3)
	idx := binary.LittleEndian.Uint16(f.Data[1:3])
	sub := f.Data[3]
	out := make([]byte, size)
	copy(out, f.Data[4:4+size])
	return node, idx, sub, out, nil
}

// SDOExpeditedUploadRequest builds client->server request to read an object.
func SDOExpeditedUploadRequest(target NodeID, index uint16, subindex uint8) (canroute.Frame, error) {
	if err := target.Validate(); err != nil {
		return canroute.Frame{}, err
	}
	var f canroute.Frame
	f.ID = COBID(FCSDORx, target)
	f.Len = 8
	f.Data[0] = byte(sdoCCSUploadInitiate) << 5
	binary.LittleEndian.PutUint16(f.Data[1:3], index)
	f.Data[3] = subindex
	return f, nil
}

// ParseSDOExpeditedUploadResponse parses server->client expedited upload response.
func ParseSDOExpeditedUploadResponse(f canroute.Frame) (NodeID, uint16, uint8, []byte, error) {
	fc, node, err := ParseCOBID(f.ID)
	if err != nil {
		return 0, 0, 0, nil, err
	}
	if fc != FCSDOTx {
		return 0, 0, 0, nil, fmt.Errorf("canopen: not SDO tx frame (id=0x%X)", f.ID)
	}
	if f.Len != 8 {
		return 0, 0, 0, nil, fmt.Errorf("canopen: SDO frame len %d, want 8", f.Len)
	}
	cmd := f.Data[0]
	if (cmd>>5)&0x7 != sdoSCSUploadInitiate {
		return 0, 0, 0, nil, fmt.Errorf("canopen: not upload response (cmd=0x%02X)", cmd)
	}
	expedited := cmd&(1<<3) != 0
	sizeIndicated := cmd&(1<<2) != 0
	if !expedited || !sizeIndicated {
		return 0, 0, 0, nil, fmt.Errorf("canopen: only expedited+size indicated supported (cmd=0x%02X)", cmd)
	}
	size := 4 - int(cmd&0x3)
	idx := binary.LittleEndian.Uint16(f.Data[1:3])
	sub := f.Data[3]
	out := make([]byte, size)
	copy(out, f.Data[4:4+size])
	return node, idx, sub, out, nil
}

// SDOClient provides a synchronous-looking expedited SDO interface.
//
// Each operation parks a temporary route on the server's SDO response COB-ID,
// transmits the request through the router's bus, and waits for the matching
// response. The route is removed before the operation returns, so the
// response id stays free for other consumers between operations.
//
// Timeout zero waits indefinitely for the matching response.
type SDOClient struct {
	router  *canroute.Router
	node    NodeID
	timeout time.Duration
}

// NewSDOClient constructs an SDOClient for the given server node.
func NewSDOClient(router *canroute.Router, node NodeID, timeout time.Duration) *SDOClient {
	return &SDOClient{router: router, node: node, timeout: timeout}
}

// Download writes up to 4 bytes to index/subindex using expedited transfer.
func (c *SDOClient) Download(index uint16, subindex uint8, data []byte) error {
	req, err := SDOExpeditedDownload(c.node, index, subindex, data)
	if err != nil {
		return err
	}
	responses := make(chan canroute.Frame, 4)
	rt := c.router.AddFunc(COBID(FCSDOTx, c.node), func(f canroute.Frame) {
		select {
		case responses <- f:
		default:
			// Drop if the waiter is behind; delivery must not block.
		}
	})
	defer rt.Close()

	if err := c.router.Bus().Send(req); err != nil {
		return err
	}

	deadline := c.deadline()
	for {
		select {
		case f := <-responses:
			if f.Len != 8 || (f.Data[0]>>5)&0x7 != sdoSCSDownloadInitiate {
				continue
			}
			idx := binary.LittleEndian.Uint16(f.Data[1:3])
			sub := f.Data[3]
			if idx == index && sub == subindex {
				return nil
			}
		case <-deadline:
			return ErrSDOTimeout
		}
	}
}

// Upload reads up to 4 bytes via expedited transfer.
func (c *SDOClient) Upload(index uint16, subindex uint8) ([]byte, error) {
	req, err := SDOExpeditedUploadRequest(c.node, index, subindex)
	if err != nil {
		return nil, err
	}
	responses := make(chan canroute.Frame, 4)
	rt := c.router.AddFunc(COBID(FCSDOTx, c.node), func(f canroute.Frame) {
		select {
		case responses <- f:
		default:
		}
	})
	defer rt.Close()

	if err := c.router.Bus().Send(req); err != nil {
		return nil, err
	}

	deadline := c.deadline()
	for {
		select {
		case f := <-responses:
			_, idx, sub, data, perr := ParseSDOExpeditedUploadResponse(f)
			if perr != nil || idx != index || sub != subindex {
				continue
			}
			return data, nil
		case <-deadline:
			return nil, ErrSDOTimeout
		}
	}
}

// deadline returns a channel that fires at the client timeout, or never for
// a zero timeout.
func (c *SDOClient) deadline() <-chan time.Time {
	if c.timeout > 0 {
		return time.After(c.timeout)
	}
	return nil
}

// Typed helpers for common expedited cases (<=4 bytes)

func (c *SDOClient) WriteU8(index uint16, subindex uint8, value uint8) error {
	return c.Download(index, subindex, []byte{value})
}

func (c *SDOClient) WriteU16(index uint16, subindex uint8, value uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], value)
	return c.Download(index, subindex, b[:])
}

func (c *SDOClient) WriteU32(index uint16, subindex uint8, value uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], value)
	return c.Download(index, subindex, b[:])
}

func (c *SDOClient) ReadU8(index uint16, subindex uint8) (uint8, error) {
	b, err := c.Upload(index, subindex)
	if err != nil {
		return 0, err
	}
	if len(b) < 1 {
		return 0, fmt.Errorf("canopen: sdo read u8: empty")
	}
	return b[0], nil
}

func (c *SDOClient) ReadU16(index uint16, subindex uint8) (uint16, error) {
	b, err := c.Upload(index, subindex)
	if err != nil {
		return 0, err
	}
	if len(b) != 2 {
		return 0, fmt.Errorf("canopen: sdo read u16: got %d bytes", len(b))
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (c *SDOClient) ReadU32(index uint16, subindex uint8) (uint32, error) {
	b, err := c.Upload(index, subindex)
	if err != nil {
		return 0, err
	}
	if len(b) != 4 {
		return 0, fmt.Errorf("canopen: sdo read u32: got %d bytes", len(b))
	}
	return binary.LittleEndian.Uint32(b), nil
}
