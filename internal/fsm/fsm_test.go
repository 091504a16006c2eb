package fsm

import "testing"

func testThresholds() Thresholds {
	return Thresholds{
		CalibratingMinTicks:  100,
		StillnessGyro:        0.05,
		GroundStableTicks:    50,
		LiftoffAccel:         35.0,
		LiftoffConsecTicks:   10,
		CoastConsecTicks:     10,
		ApogeeConsecTicks:    10,
		MainAltitudeM:        450,
		TouchdownVelocity:    2.0,
		TouchdownConsecTicks: 20,
	}
}

// TestHappyPathPhaseSequence is testable property 1 plus scenario S1: the
// phase sequence for a synthetic flight must visit every phase in order
// with no regressions.
func TestHappyPathPhaseSequence(t *testing.T) {
	f := New(testThresholds())
	var seq []Phase
	record := func() {
		if len(seq) == 0 || seq[len(seq)-1] != f.Phase() {
			seq = append(seq, f.Phase())
		}
	}
	record()

	for i := 0; i < 150; i++ {
		f.Step(Input{TickCount: i, GyroMagnitude: 1.0})
		record()
	}
	for i := 0; i < 60; i++ {
		f.Step(Input{GroundStable: true, AccelMagnitude: 9.8})
		record()
	}
	for i := 0; i < 15; i++ {
		f.Step(Input{GroundStable: true, AccelMagnitude: 100})
		record()
	}
	for i := 0; i < 15; i++ {
		f.Step(Input{FilteredAccel: -5})
		record()
	}
	height := 1000.0
	for i := 0; i < 15; i++ {
		height -= 1
		f.Step(Input{Velocity: -1, Height: height, PrevHeight: height + 1})
		record()
	}
	f.Step(Input{MainDeployFired: true, Height: 500})
	record()
	f.Step(Input{Height: 400})
	record()
	for i := 0; i < 25; i++ {
		f.Step(Input{Velocity: 0.1})
		record()
	}

	want := []Phase{Calibrating, Moving, Ready, Thrusting, Coasting, Apogee, Drogue, Main, Touchdown}
	if len(seq) != len(want) {
		t.Fatalf("phase sequence = %v, want %v", seq, want)
	}
	for i := range want {
		if seq[i] != want[i] {
			t.Fatalf("phase sequence = %v, want %v", seq, want)
		}
	}
}

func TestMonotonicityPastThrusting(t *testing.T) {
	f := New(testThresholds())
	f.phase = Thrusting
	ev, ok := f.transition(Moving, Event(0))
	if ok {
		t.Fatalf("regression from THRUSTING to MOVING allowed, got event %v", ev)
	}
	if f.Phase() != Thrusting {
		t.Fatalf("phase changed despite rejected regression: %v", f.Phase())
	}
}

func TestReadyCyclesBackToMovingBeforeLiftoff(t *testing.T) {
	f := New(testThresholds())
	f.phase = Ready
	f.Step(Input{GroundStable: false, AccelMagnitude: 9.8})
	if f.Phase() != Moving {
		t.Fatalf("phase = %v, want MOVING after losing ground stability pre-liftoff", f.Phase())
	}
}

func TestFailHoldsPreviousGoodPhase(t *testing.T) {
	f := New(testThresholds())
	f.phase = Coasting
	f.Fail()
	if f.Phase() != Invalid {
		t.Fatalf("phase = %v, want INVALID", f.Phase())
	}
	if f.PreviousGood() != Coasting {
		t.Fatalf("PreviousGood = %v, want COASTING", f.PreviousGood())
	}
}
