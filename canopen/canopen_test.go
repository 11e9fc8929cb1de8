package canopen

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/notnil/canroute"
)

func TestCOBIDHelpers(t *testing.T) {
	if id := COBID(FCTPDO1, 1); id != 0x181 {
		t.Fatalf("tpdo1 id: 0x%X", id)
	}
	if id := COBID(FCNMT, 9); id != 0x000 {
		t.Fatalf("nmt id should ignore node: 0x%X", id)
	}
	if fc, node, err := ParseCOBID(0x5FF); err != nil || fc != FCSDOTx || node != 0x7F {
		t.Fatalf("parse sdo tx: fc=%v node=%v err=%v", fc, node, err)
	}
	if _, _, err := ParseCOBID(0x800); err == nil {
		t.Fatalf("expected error for 12-bit id")
	}
}

func TestNMTBuildParse(t *testing.T) {
	f := BuildNMT(NMTStart, 0)
	if cmd, node, err := ParseNMT(f); err != nil || cmd != NMTStart || node != 0 {
		t.Fatalf("nmt parse mismatch: cmd=%v node=%d err=%v", cmd, node, err)
	}
	var n NMT
	if err := n.UnmarshalCANFrame(f); err != nil || n.Command != NMTStart {
		t.Fatalf("nmt codec: %+v err=%v", n, err)
	}
}

func TestHeartbeat(t *testing.T) {
	f, err := BuildHeartbeat(10, StateOperational)
	if err != nil {
		t.Fatal(err)
	}
	node, st, err := ParseHeartbeat(f)
	if err != nil {
		t.Fatal(err)
	}
	if node != 10 || st != StateOperational {
		t.Fatalf("heartbeat mismatch node=%d st=%v", node, st)
	}
	if _, err := BuildHeartbeat(0, StateBootup); err == nil {
		t.Fatalf("node 0 should be rejected")
	}
}

func TestEMCY(t *testing.T) {
	e := Emergency{ErrorCode: 0x1234, ErrorRegister: 0x05}
	f, err := BuildEMCY(5, e)
	if err != nil {
		t.Fatal(err)
	}
	node, g, err := ParseEMCY(f)
	if err != nil {
		t.Fatal(err)
	}
	if node != 5 || g.ErrorCode != 0x1234 || g.ErrorRegister != 0x05 {
		t.Fatalf("emcy mismatch: node=%d g=%+v", node, g)
	}
}

func TestSDOExpeditedHelpers(t *testing.T) {
	data := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	f, err := SDOExpeditedDownload(0x23, 0x2000, 0x01, data)
	if err != nil {
		t.Fatal(err)
	}
	node, idx, sub, got, err := ParseSDOExpeditedDownload(f)
	if err != nil {
		t.Fatal(err)
	}
	if node != 0x23 || idx != 0x2000 || sub != 0x01 || !bytes.Equal(got, data) {
		t.Fatalf("sdo parse mismatch: node=%d idx=0x%X sub=%d data=%x", node, idx, sub, got)
	}

	req, err := SDOExpeditedUploadRequest(0x23, 0x1018, 0x00)
	if err != nil {
		t.Fatal(err)
	}
	if fc, node, err := ParseCOBID(req.ID); err != nil || fc != FCSDORx || node != 0x23 {
		t.Fatalf("upload req cobid: fc=%v node=%d err=%v", fc, node, err)
	}
}

// sdoTestServer routes expedited SDO requests for one node on its own router
// and answers them, standing in for a remote CANopen device.
func sdoTestServer(t *testing.T, bus *canroute.LoopbackBus, node NodeID, stored []byte) {
	t.Helper()
	server := canroute.New(bus.Open())
	t.Cleanup(func() { _ = server.Close() })

	server.AddFunc(COBID(FCSDORx, node), func(f canroute.Frame) {
		if f.Len != 8 {
			return
		}
		switch f.Data[0] >> 5 {
		case sdoCCSDownloadInitiate:
			var rsp canroute.Frame
			rsp.ID = COBID(FCSDOTx, node)
			rsp.Len = 8
			rsp.Data[0] = byte(sdoSCSDownloadInitiate << 5)
			rsp.Data[1] = f.Data[1]
			rsp.Data[2] = f.Data[2]
			rsp.Data[3] = f.Data[3]
			_ = server.Bus().Send(rsp)
		case sdoCCSUploadInitiate:
			var rsp canroute.Frame
			rsp.ID = COBID(FCSDOTx, node)
			rsp.Len = 8
			n := uint8(4 - len(stored))
			rsp.Data[0] = byte(sdoSCSUploadInitiate<<5) | (1 << 3) | (1 << 2) | (n & 0x3)
			rsp.Data[1] = f.Data[1]
			rsp.Data[2] = f.Data[2]
			rsp.Data[3] = f.Data[3]
			copy(rsp.Data[4:], stored)
			_ = server.Bus().Send(rsp)
		}
	})
}

func TestSDOClientDownloadUpload(t *testing.T) {
	bus := canroute.NewLoopbackBus()
	defer bus.Close()

	stored := []byte{0x01, 0x02, 0x03}
	sdoTestServer(t, bus, 0x22, stored)

	client := canroute.New(bus.Open())
	defer client.Close()

	c := NewSDOClient(client, 0x22, time.Second)
	if err := c.Download(0x2000, 0x01, []byte{0xAA, 0xBB}); err != nil {
		t.Fatalf("download: %v", err)
	}
	data, err := c.Upload(0x2000, 0x01)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !bytes.Equal(data, stored) {
		t.Fatalf("upload mismatch: %x", data)
	}

	// Temporary response routes are retired between operations.
	if n := client.Len(); n != 0 {
		t.Fatalf("client router should hold no routes, has %d", n)
	}
}

func TestSDOClientTypedHelpers(t *testing.T) {
	bus := canroute.NewLoopbackBus()
	defer bus.Close()

	var stored [4]byte
	binary.LittleEndian.PutUint32(stored[:], 0xCAFEBABE)
	sdoTestServer(t, bus, 0x11, stored[:])

	client := canroute.New(bus.Open())
	defer client.Close()

	c := NewSDOClient(client, 0x11, time.Second)
	if err := c.WriteU16(0x2001, 0x00, 0xBEEF); err != nil {
		t.Fatalf("write u16: %v", err)
	}
	v, err := c.ReadU32(0x1018, 0x01)
	if err != nil {
		t.Fatalf("read u32: %v", err)
	}
	if v != 0xCAFEBABE {
		t.Fatalf("read u32: 0x%X", v)
	}
}

func TestSDOClientTimeout(t *testing.T) {
	bus := canroute.NewLoopbackBus()
	defer bus.Close()

	// No server on the bus: the request goes unanswered.
	client := canroute.New(bus.Open())
	defer client.Close()

	c := NewSDOClient(client, 0x22, 20*time.Millisecond)
	if err := c.Download(0x2000, 0x01, []byte{0x01}); !errors.Is(err, ErrSDOTimeout) {
		t.Fatalf("want ErrSDOTimeout, got %v", err)
	}
}
