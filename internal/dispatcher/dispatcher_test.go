package dispatcher

import (
	"testing"

	"github.com/skywardavionics/flightcore/internal/fsm"
)

// TestTimerFiresOnceOnly is testable property 2: for every armed timer,
// exactly one trigger_event is emitted before reset.
func TestTimerFiresOnceOnly(t *testing.T) {
	tm := &timer{def: TimerDef{StartEvent: fsm.EventLiftoff, TriggerEvent: fsm.EventApogee, DurationTicks: 3}}

	if _, fired := tm.Observe(fsm.EventLiftoff, false); fired {
		t.Fatal("timer fired on arm")
	}
	fireCount := 0
	for i := 0; i < 10; i++ {
		if _, fired := tm.Observe(0, true); fired {
			fireCount++
		}
	}
	if fireCount != 1 {
		t.Fatalf("timer fired %d times, want exactly 1", fireCount)
	}
}

func TestTimerReArmIgnoredWhileArmed(t *testing.T) {
	tm := &timer{def: TimerDef{StartEvent: fsm.EventLiftoff, TriggerEvent: fsm.EventApogee, DurationTicks: 5}}
	tm.Observe(fsm.EventLiftoff, false)
	tm.Observe(fsm.EventLiftoff, true) // re-emission must not re-arm / reset countdown
	for i := 0; i < 3; i++ {
		tm.Observe(0, true)
	}
	if tm.state != TimerArmed {
		t.Fatalf("timer state = %v, want still armed after 4 of 5 ticks", tm.state)
	}
}

func TestDispatcherDropsNewestOnOverflow(t *testing.T) {
	raised := false
	d := New(EventActionMap{}, nil, func() { raised = true }, nil)
	for i := 0; i < queueCapacity; i++ {
		d.Post(fsm.Event(1))
	}
	d.Post(fsm.Event(2)) // overflow
	if !raised {
		t.Fatal("overflow did not raise the error flag")
	}
	if len(d.queue) != queueCapacity {
		t.Fatalf("queue len = %d, want %d", len(d.queue), queueCapacity)
	}
}

func TestDispatcherRunsActionListInOrder(t *testing.T) {
	var ran []ActionKind
	effect := func(a Action) error {
		ran = append(ran, a.Kind)
		return nil
	}
	am := EventActionMap{
		fsm.EventLiftoff: {{Kind: StartRecorder}, {Kind: FirePyro, Channel: 1}},
	}
	d := New(am, effect, nil, nil)
	d.Post(fsm.EventLiftoff)
	d.Drain(false)

	want := []ActionKind{StartRecorder, FirePyro}
	if len(ran) != len(want) || ran[0] != want[0] || ran[1] != want[1] {
		t.Fatalf("ran = %v, want %v", ran, want)
	}
}

func TestDispatcherActionFailureDoesNotUnwindPriorEffects(t *testing.T) {
	var ran []ActionKind
	effect := func(a Action) error {
		ran = append(ran, a.Kind)
		if a.Kind == FirePyro {
			return errFail
		}
		return nil
	}
	am := EventActionMap{
		fsm.EventLiftoff: {{Kind: FirePyro}, {Kind: SetLED}},
	}
	d := New(am, effect, nil, nil)
	d.Post(fsm.EventLiftoff)
	d.Drain(false)

	if len(ran) != 2 {
		t.Fatalf("ran = %v, want both actions attempted despite first failing", ran)
	}
	if d.stats.Failures.Load() != 1 {
		t.Fatalf("Failures = %d, want 1", d.stats.Failures.Load())
	}
}

type fakeErr struct{}

func (fakeErr) Error() string { return "fake failure" }

var errFail = fakeErr{}
