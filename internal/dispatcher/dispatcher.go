package dispatcher

import (
	"sync"
	"sync/atomic"

	"github.com/skywardavionics/flightcore/internal/fsm"
	"github.com/skywardavionics/flightcore/internal/observability"
)

// queueCapacity is the bounded MPSC event queue's capacity (spec.md §4.7).
const queueCapacity = 16

// eventQueueName labels this dispatcher's queue in the observability
// layer's per-queue metrics (spec.md §3's record_queue is the recorder's
// counterpart).
const eventQueueName = "event_queue"

// ActionEffect performs one action's real-world side effect (fire a pyro
// channel, set a servo, etc). Implementations are best-effort: a failure
// is counted in Stats.Failures and does not unwind prior effects in the
// same event's action list. No error flag is raised for a failed action.
type ActionEffect func(Action) error

// TimerBank holds the NumTimers general-purpose timers plus the dedicated
// mach timer (spec.md §4.7, §9's NUM_TIMERS=8 decision, and the
// supplemented mach-timer behavior from original_source/: a one-shot
// timer that suppresses altitude-based events while the vehicle is
// transonic).
type TimerBank struct {
	timers    [NumTimers]timer
	mach      timer
	suppressAltitudeEvents bool
}

// Configure installs the static timer definitions; machDef configures the
// dedicated mach timer.
func (b *TimerBank) Configure(defs [NumTimers]TimerDef, machDef TimerDef) {
	for i := range defs {
		b.timers[i].def = defs[i]
	}
	b.mach.def = machDef
}

// Observe feeds one event plus a tick-elapsed signal through every timer,
// collecting any trigger events that fire this call.
func (b *TimerBank) Observe(ev fsm.Event, tickElapsed bool) []fsm.Event {
	var fired []fsm.Event
	for i := range b.timers {
		if trig, ok := b.timers[i].Observe(ev, tickElapsed); ok {
			fired = append(fired, trig)
		}
	}
	if trig, ok := b.mach.Observe(ev, tickElapsed); ok {
		b.suppressAltitudeEvents = false
		fired = append(fired, trig)
	}
	if b.mach.state == TimerArmed {
		b.suppressAltitudeEvents = true
	}
	return fired
}

// SuppressingAltitudeEvents reports whether the vehicle is currently
// transonic per the mach timer's armed window.
func (b *TimerBank) SuppressingAltitudeEvents() bool { return b.suppressAltitudeEvents }

// EventActionMap is the static event->action-list table (spec.md §4.7:
// "static map event→(action, arg)*").
type EventActionMap map[fsm.Event][]Action

// Stats exposes the dispatcher's drop and per-action-failure counters for
// the observability layer.
type Stats struct {
	Dropped  atomic.Uint64
	Failures atomic.Uint64
}

// Dispatcher is the C7 event->action pipeline: a bounded MPSC queue feeding
// a single consumer that looks up and runs each event's action list.
type Dispatcher struct {
	mu      sync.Mutex
	queue   chan fsm.Event
	actions EventActionMap
	timers  TimerBank
	effect  ActionEffect
	stats   Stats
	errRaise func()
	metrics  *observability.Metrics
}

// New builds a Dispatcher. errRaise is called (e.g. to set the
// ERR_* bit for queue overflow) whenever the queue drops an event. metrics
// may be nil (e.g. in tests).
func New(actions EventActionMap, effect ActionEffect, errRaise func(), metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{
		queue:    make(chan fsm.Event, queueCapacity),
		actions:  actions,
		effect:   effect,
		errRaise: errRaise,
		metrics:  metrics,
	}
}

// Configure installs the static timer table.
func (d *Dispatcher) Configure(defs [NumTimers]TimerDef, machDef TimerDef) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.timers.Configure(defs, machDef)
}

// Post enqueues an event. Non-blocking: drop-newest on overflow with the
// caller-supplied error flag raised (spec.md §4.7).
func (d *Dispatcher) Post(ev fsm.Event) {
	select {
	case d.queue <- ev:
		if d.metrics != nil {
			d.metrics.QueueDepth.WithLabelValues(eventQueueName).Set(float64(len(d.queue)))
		}
	default:
		d.stats.Dropped.Add(1)
		if d.metrics != nil {
			d.metrics.QueueDroppedTotal.WithLabelValues(eventQueueName).Inc()
		}
		if d.errRaise != nil {
			d.errRaise()
		}
	}
}

// Drain processes every event currently queued, running each one's action
// list and feeding it through the timer bank, posting any resulting
// trigger events back into the queue. tickElapsed should be true exactly
// once per control tick so timers count down at the correct rate
// regardless of how many events arrive in that tick.
func (d *Dispatcher) Drain(tickElapsed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := len(d.queue)
	if n == 0 && tickElapsed {
		for _, trig := range d.timers.Observe(0, true) {
			d.Post(trig)
		}
		if d.metrics != nil {
			d.metrics.QueueDepth.WithLabelValues(eventQueueName).Set(float64(len(d.queue)))
		}
		return
	}
	for i := 0; i < n; i++ {
		ev := <-d.queue
		d.runActions(ev)
		elapsed := tickElapsed && i == 0
		for _, trig := range d.timers.Observe(ev, elapsed) {
			d.Post(trig)
		}
	}
	if d.metrics != nil {
		d.metrics.QueueDepth.WithLabelValues(eventQueueName).Set(float64(len(d.queue)))
	}
}

func (d *Dispatcher) runActions(ev fsm.Event) {
	if d.timers.SuppressingAltitudeEvents() && isAltitudeEvent(ev) {
		return
	}
	for _, action := range d.actions[ev] {
		if d.effect == nil {
			continue
		}
		if err := d.effect(action); err != nil {
			d.stats.Failures.Add(1)
		}
	}
}

func isAltitudeEvent(ev fsm.Event) bool {
	return ev == fsm.EventApogee || ev == fsm.EventMainDeploy
}
