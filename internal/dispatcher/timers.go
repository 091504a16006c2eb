package dispatcher

import "github.com/skywardavionics/flightcore/internal/fsm"

// NumTimers is the general-purpose one-shot timer count. spec.md §9
// resolves the source's inconsistent num_timers=2-vs-array-of-8 to 8, plus
// one dedicated mach timer tracked separately (TimerBank.mach).
const NumTimers = 8

// TimerState is a timer's lifecycle per spec.md §4.1's Timer invariants.
type TimerState uint8

const (
	TimerIdle TimerState = iota
	TimerArmed
	TimerFired
)

// TimerDef is the static (start_event, trigger_event, duration_ticks)
// triple a timer is configured with at boot.
type TimerDef struct {
	StartEvent   fsm.Event
	TriggerEvent fsm.Event
	DurationTicks int
}

// timer is one runtime timer instance: its static definition plus mutable
// countdown state.
type timer struct {
	def       TimerDef
	state     TimerState
	remaining int
}

// Observe arms the timer on its start event (idempotent: already-armed or
// already-fired timers ignore a repeat start_event) and ticks down armed
// timers, returning the trigger event exactly once when it fires.
func (t *timer) Observe(ev fsm.Event, tickElapsed bool) (fsm.Event, bool) {
	if t.state == TimerIdle && ev == t.def.StartEvent {
		t.state = TimerArmed
		t.remaining = t.def.DurationTicks
		return 0, false
	}
	if t.state == TimerArmed && tickElapsed {
		t.remaining--
		if t.remaining <= 0 {
			t.state = TimerFired
			return t.def.TriggerEvent, true
		}
	}
	return 0, false
}

// Reset returns the timer to idle. Timers are otherwise only cancelled by
// process reset (spec.md §4.7).
func (t *timer) Reset() { t.state = TimerIdle; t.remaining = 0 }
