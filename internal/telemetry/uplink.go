package telemetry

import "hash/crc32"

// testingHeader is the well-known header value an uplink packet's testing
// frame must carry to be considered for acceptance (spec.md §4.9).
const testingHeader = 0xA5

// Uplink is the ground-to-vehicle testing-event packet.
type Uplink struct {
	Header         uint8
	Passcode       uint32
	Event          uint8
	EnableTesting  bool
}

// TestPasscode derives the expected passcode from the configured test
// phrase (spec.md §4.9: "passcode matches crc32(test_phrase)").
func TestPasscode(testPhrase string) uint32 {
	return crc32.ChecksumIEEE([]byte(testPhrase))
}

// Gate is the edge-triggered acceptance filter for uplink testing events
// (spec.md §4.9): an event is accepted only if the header, passcode, and
// enable flag all check out, and only once per distinct packet — a
// repeated packet with the same event is ignored until a packet carrying a
// different (or cleared) event arrives.
type Gate struct {
	testPhrase string
	lastEvent  uint8
	lastValid  bool
}

func NewGate(testPhrase string) *Gate { return &Gate{testPhrase: testPhrase} }

// Accept returns the event to post and true if u should be accepted this
// call, or false if u fails validation or duplicates the previously
// accepted event.
func (g *Gate) Accept(u Uplink) (uint8, bool) {
	if u.Header != testingHeader || !u.EnableTesting {
		g.lastValid = false
		return 0, false
	}
	if u.Passcode != TestPasscode(g.testPhrase) {
		g.lastValid = false
		return 0, false
	}
	if g.lastValid && g.lastEvent == u.Event {
		return 0, false
	}
	g.lastValid = true
	g.lastEvent = u.Event
	return u.Event, true
}
