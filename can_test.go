package canroute

import (
	"bytes"
	"testing"
)

func TestFrame_Validate_Marshal_Unmarshal_String(t *testing.T) {
	cases := []struct {
		name    string
		frame   Frame
		wantStr string
		wantErr error
	}{
		{
			name:    "standard frame with data",
			frame:   MustFrame(0x123, []byte{0xDE, 0xAD}),
			wantStr: "123 [2] DE AD",
			wantErr: nil,
		},
		{
			name:    "extended RTR, zero length",
			frame:   Frame{ID: 0x1ABCDEFF, Extended: true, RTR: true, Len: 0},
			wantStr: "1ABCDEFF [0] RTR",
			wantErr: nil,
		},
	}

	for _, tc := range cases {
		if got := tc.frame.Validate(); got != tc.wantErr {
			t.Fatalf("%s: Validate() error = %v, want %v", tc.name, got, tc.wantErr)
		}
		b, err := tc.frame.MarshalBinary()
		if err != nil {
			t.Fatalf("%s: MarshalBinary() error = %v", tc.name, err)
		}
		var g Frame
		if err := g.UnmarshalBinary(b); err != nil {
			t.Fatalf("%s: UnmarshalBinary() error = %v", tc.name, err)
		}
		if g != tc.frame {
			t.Fatalf("%s: roundtrip mismatch: got %+v want %+v", tc.name, g, tc.frame)
		}
		if got := g.String(); got != tc.wantStr {
			t.Fatalf("%s: String() = %q, want %q", tc.name, got, tc.wantStr)
		}
	}

	// Invalid cases
	{
		f := Frame{ID: 0x800, Len: 0} // standard, out of range
		if err := f.Validate(); err == nil {
			t.Fatalf("expected invalid standard ID")
		}
	}
	{
		f := Frame{ID: 0x20000000, Extended: true} // extended, out of range
		if err := f.Validate(); err == nil {
			t.Fatalf("expected invalid extended ID")
		}
	}
	{
		defer func() {
			if r := recover(); r == nil {
				t.Fatalf("MustFrame should panic for len>8")
			}
		}()
		_ = MustFrame(0x123, make([]byte, 9))
	}
}

func TestLoopbackBus_SendDelivers_MultiEndpoint(t *testing.T) {
	bus := NewLoopbackBus()
	defer bus.Close()

	a := bus.Open()
	b := bus.Open()
	c := bus.Open()
	defer a.Close()
	defer b.Close()
	defer c.Close()

	var gotA, gotB, gotC []Frame
	a.OnReceive(func(f Frame) { gotA = append(gotA, f) })
	b.OnReceive(func(f Frame) { gotB = append(gotB, f) })
	c.OnReceive(func(f Frame) { gotC = append(gotC, f) })

	send := MustFrame(0x321, []byte("hello"))
	if err := a.Send(send); err != nil {
		t.Fatalf("send: %v", err)
	}

	if len(gotA) != 0 {
		t.Fatalf("sender should not hear its own frame, got %d", len(gotA))
	}
	if len(gotB) != 1 || len(gotC) != 1 {
		t.Fatalf("want 1 frame at b and c, got %d and %d", len(gotB), len(gotC))
	}
	if gotB[0].ID != send.ID || gotB[0].Len != send.Len || !bytes.Equal(gotB[0].Data[:gotB[0].Len], send.Data[:send.Len]) {
		t.Fatalf("b mismatch: got %+v want %+v", gotB[0], send)
	}
	if gotB[0].String() != "321 [5] 68 65 6C 6C 6F" {
		t.Fatalf("string: got %q", gotB[0].String())
	}

	// Replacing the callback sticks; clearing it drops frames.
	var second []Frame
	b.OnReceive(func(f Frame) { second = append(second, f) })
	c.OnReceive(nil)
	if err := a.Send(send); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(gotB) != 1 || len(second) != 1 {
		t.Fatalf("replacement callback: old=%d new=%d", len(gotB), len(second))
	}
	if len(gotC) != 1 {
		t.Fatalf("cleared callback should drop, got %d", len(gotC))
	}
}

func TestLoopbackBus_CloseBehavior(t *testing.T) {
	bus := NewLoopbackBus()
	a := bus.Open()
	b := bus.Open()

	var gotA int
	a.OnReceive(func(Frame) { gotA++ })

	// Closed endpoint neither sends nor receives.
	_ = a.Close()
	if err := a.Send(MustFrame(0x1, nil)); err == nil {
		t.Fatalf("closed endpoint should error on Send")
	}
	if err := b.Send(MustFrame(0x1, nil)); err != nil {
		t.Fatalf("send from b: %v", err)
	}
	if gotA != 0 {
		t.Fatalf("closed endpoint should not receive, got %d", gotA)
	}

	// Closed bus errors on Send from remaining endpoints.
	_ = bus.Close()
	if err := b.Send(MustFrame(0x1, nil)); err == nil {
		t.Fatalf("endpoint should error on Send after bus close")
	}
}

func TestFilters_Basics(t *testing.T) {
	f1 := MustFrame(0x100, []byte{1})
	f2 := MustFrame(0x101, []byte{2})
	f3 := Frame{ID: 0x1ABCDEFF, Extended: true, Len: 0}

	if !ByID(0x100)(f1) || ByID(0x100)(f2) {
		t.Fatalf("ByID failure")
	}
	if !(ByIDs(0x100, 0x102)(f1)) || ByIDs(0x100, 0x102)(f2) {
		t.Fatalf("ByIDs failure")
	}
	if !ByRange(0x100, 0x1FF)(f2) || ByRange(0x200, 0x2FF)(f2) {
		t.Fatalf("ByRange failure")
	}
	// Use a mask that distinguishes 0x100 from 0x101 (all 11 std bits)
	if !ByMask(0x100, 0x7FF)(f1) || ByMask(0x100, 0x7FF)(f2) {
		t.Fatalf("ByMask failure")
	}
	if !StandardOnly()(f1) || StandardOnly()(f3) {
		t.Fatalf("StandardOnly failure")
	}
	if !ExtendedOnly()(f3) || ExtendedOnly()(f1) {
		t.Fatalf("ExtendedOnly failure")
	}
	data := f1
	data.RTR = false
	if !DataOnly()(data) {
		t.Fatalf("DataOnly failure")
	}
	rtr := f1
	rtr.RTR = true
	if !RTROnly()(rtr) {
		t.Fatalf("RTROnly failure")
	}
	if !And(ByID(0x100), DataOnly())(data) || And(ByID(0x100), DataOnly())(rtr) {
		t.Fatalf("And failure")
	}
	if !Or(ByID(0x100), ByID(0x999))(f1) || !Or(ByID(0x999), ByID(0x100))(f1) {
		t.Fatalf("Or failure")
	}
	if Not(ByID(0x100))(f1) || !Not(ByID(0x999))(f1) {
		t.Fatalf("Not failure")
	}
}
