package recorder

import (
	"path/filepath"
	"testing"

	"github.com/skywardavionics/flightcore/internal/flashfs"
)

func openTestDB(t *testing.T) *flashfs.DB {
	t.Helper()
	db, err := flashfs.Open(filepath.Join(t.TempDir(), "flash.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestPreLiftoffRingRetention is testable property 3's companion scenario:
// when THRUSTING is entered, the queue contains only the last
// PreThrustingLimit entries pushed before liftoff (spec.md §4.8).
func TestPreLiftoffRingRetention(t *testing.T) {
	db := openTestDB(t)
	r := New(db, Config{QueueSize: 256, PreThrustingLimit: 5, SyncEveryNBuffers: 16}, nil)
	t.Cleanup(r.Close)

	r.Arm()
	for i := 0; i < 20; i++ {
		r.Push(Entry{Tag: TagFlightState, Ts: uint32(i), Phase: uint8(i)})
	}
	if len(r.queue) != 5 {
		t.Fatalf("queue len = %d, want 5", len(r.queue))
	}
	if r.queue[0].Ts != 15 {
		t.Fatalf("oldest retained Ts = %d, want 15 (entries 15..19 retained)", r.queue[0].Ts)
	}
}

func TestLiftoffFlushesBacklogThenStreams(t *testing.T) {
	db := openTestDB(t)
	r := New(db, Config{QueueSize: 256, PreThrustingLimit: 5, SyncEveryNBuffers: 16}, nil)
	t.Cleanup(r.Close)

	r.Arm()
	for i := 0; i < 3; i++ {
		r.Push(Entry{Tag: TagFlightState, Ts: uint32(i), Phase: uint8(i)})
	}
	if err := r.Liftoff(); err != nil {
		t.Fatalf("Liftoff: %v", err)
	}
	if r.State() != StateWriteToFlash {
		t.Fatalf("state = %v, want WRITE_TO_FLASH", r.State())
	}
	r.Push(Entry{Tag: TagFlightState, Ts: 99, Phase: 3})
	if err := r.Touchdown(); err != nil {
		t.Fatalf("Touchdown: %v", err)
	}
	if r.State() != StateOff {
		t.Fatalf("state = %v, want OFF after touchdown", r.State())
	}
}

func TestFlightNumberIncrementsAndPersists(t *testing.T) {
	db := openTestDB(t)
	r := New(db, Config{QueueSize: 16, PreThrustingLimit: 5, SyncEveryNBuffers: 16}, nil)
	t.Cleanup(r.Close)

	r.Arm()
	if err := r.Liftoff(); err != nil {
		t.Fatalf("Liftoff: %v", err)
	}
	r.Touchdown()

	r2 := New(db, Config{QueueSize: 16, PreThrustingLimit: 5, SyncEveryNBuffers: 16}, nil)
	t.Cleanup(r2.Close)
	r2.Arm()
	if err := r2.Liftoff(); err != nil {
		t.Fatalf("second Liftoff: %v", err)
	}
	names, err := db.List("/flights/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("List returned %d flight files, want 2: %v", len(names), names)
	}
}

func TestEncodeFlightStateRecordLength(t *testing.T) {
	e := Entry{Tag: TagFlightState, Ts: 1234, Phase: 3}
	buf := e.Encode()
	// u32 tag + u32 ts + u8 phase = 9 bytes.
	if len(buf) != 9 {
		t.Fatalf("len(Encode()) = %d, want 9", len(buf))
	}
}

func TestPageWriterSplitsRecordAcrossPageBoundary(t *testing.T) {
	db := openTestDB(t)
	f, err := db.Create("/flights/flight_00001")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	w := NewPageWriter(f, 16)

	filler := Entry{Tag: TagFlightState, Ts: 1, Phase: 1} // 9-byte record
	for i := 0; i < 28; i++ {                              // 28*9 = 252 bytes, 4 left in page
		if err := w.Write(filler.Encode()); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	// This record is 20 bytes (IMU sample), crossing the 4-byte remainder.
	spanning := Entry{Tag: TagIMU0, Ts: 2, Accel: [3]int16{1, 2, 3}, Gyro: [3]int16{4, 5, 6}}
	if err := w.Write(spanning.Encode()); err != nil {
		t.Fatalf("Write spanning record: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
