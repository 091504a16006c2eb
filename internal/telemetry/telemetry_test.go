package telemetry

import "testing"

func feedAll(p *Parser, bs []byte) []Frame {
	var out []Frame
	for _, b := range bs {
		if f, ok := p.Feed(b); ok {
			out = append(out, f)
		}
	}
	return out
}

// TestValidFrameRoundTrip is testable property 6: a well-formed frame
// parses back to its original op/data.
func TestValidFrameRoundTrip(t *testing.T) {
	frame := Encode(byte(OpTX), []byte{1, 2, 3})
	p := NewParser(IsKnown)
	got := feedAll(p, frame)
	if len(got) != 1 {
		t.Fatalf("got %d frames, want 1", len(got))
	}
	if got[0].Op != byte(OpTX) || len(got[0].Data) != 3 {
		t.Fatalf("frame = %+v", got[0])
	}
}

// TestCorruptCRCDiscardsFrame is testable property 7: a frame with a
// tampered CRC byte is discarded, not delivered.
func TestCorruptCRCDiscardsFrame(t *testing.T) {
	frame := Encode(byte(OpTX), []byte{1, 2, 3})
	frame[len(frame)-1] ^= 0xFF
	p := NewParser(IsKnown)
	got := feedAll(p, frame)
	if len(got) != 0 {
		t.Fatalf("got %d frames from corrupt CRC, want 0", len(got))
	}
}

// TestResyncAfterTruncatedFrame verifies a corrupted frame is fully
// consumed and discarded, and the very next valid OP byte starts a clean
// frame (spec.md §4.9: "truncated frames are recovered by resynchronising
// on the next valid OP").
func TestResyncAfterTruncatedFrame(t *testing.T) {
	corrupted := Encode(byte(OpTX), []byte{1, 2, 3})
	corrupted[len(corrupted)-1] ^= 0xFF // flip the CRC byte to force a failed parse
	valid := Encode(byte(OpRX), []byte{9, 9})

	p := NewParser(IsKnown)
	feedAll(p, corrupted)
	got := feedAll(p, valid)
	if len(got) != 1 || got[0].Op != byte(OpRX) {
		t.Fatalf("got %v, want one OpRX frame after resync", got)
	}
}

func TestUnknownOpcodeDiscarded(t *testing.T) {
	p := NewParser(IsKnown)
	got := feedAll(p, []byte{0xFF, 2, 1, 2, 0})
	if len(got) != 0 {
		t.Fatalf("got %d frames from unknown opcode, want 0", len(got))
	}
}

func TestLenTooLargeResyncs(t *testing.T) {
	p := NewParser(IsKnown)
	bad := []byte{byte(OpTX), 200}
	feedAll(p, bad)
	valid := Encode(byte(OpRX), []byte{1})
	got := feedAll(p, valid)
	if len(got) != 1 {
		t.Fatalf("got %d frames, want 1 after LEN>16 resync", len(got))
	}
}

func TestDownlinkBitpackRoundTrip(t *testing.T) {
	d := Downlink{
		State:            5,
		TimestampCentiS:  12345,
		Errors:           0x2A,
		LatE4:            -1234567,
		LonE4:            1654321,
		AltitudeM:        -4321,
		VelocityMS:       -300,
		VoltageDeciVolts: 123,
		PyroContinuity:   0b11,
		TestingOn:        true,
	}
	buf := d.Encode()
	if len(buf) != 15 {
		t.Fatalf("len(Encode()) = %d, want 15", len(buf))
	}
	got := DecodeDownlink(buf)
	if got != d {
		t.Fatalf("round trip mismatch:\n got  %+v\n want %+v", got, d)
	}
}

func TestUplinkGateEdgeTriggered(t *testing.T) {
	g := NewGate("liftoff-now")
	u := Uplink{Header: testingHeader, Passcode: TestPasscode("liftoff-now"), Event: 7, EnableTesting: true}

	ev, ok := g.Accept(u)
	if !ok || ev != 7 {
		t.Fatalf("first packet: ok=%v ev=%v, want accepted event 7", ok, ev)
	}
	_, ok = g.Accept(u)
	if ok {
		t.Fatal("duplicate packet with same event was accepted again")
	}
	u2 := u
	u2.Event = 8
	ev, ok = g.Accept(u2)
	if !ok || ev != 8 {
		t.Fatalf("distinct event: ok=%v ev=%v, want accepted event 8", ok, ev)
	}
}

func TestUplinkGateRejectsBadPasscode(t *testing.T) {
	g := NewGate("liftoff-now")
	u := Uplink{Header: testingHeader, Passcode: 0xDEADBEEF, Event: 1, EnableTesting: true}
	if _, ok := g.Accept(u); ok {
		t.Fatal("accepted uplink with wrong passcode")
	}
}
