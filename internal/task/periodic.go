// Package task provides the drift-free periodic task runner used by every
// fixed-rate subsystem (SensorRead, Preprocess, StateEst, FlightFSM,
// Telemetry, HealthMonitor — spec.md §5).
//
// Generalizes the source firmware's osDelayUntil(tick_count += dt) pattern
// (spec.md §9): deadlines are computed from an absolute accumulator rather
// than chained relative sleeps, so a slow tick does not push every
// subsequent tick later by the same amount.
package task

import (
	"context"
	"time"

	"github.com/skywardavionics/flightcore/internal/observability"
)

// Periodic runs fn at period, phase-shifted by offset relative to start,
// until ctx is cancelled. fn receives the tick index (0, 1, 2, ...) and
// the absolute deadline it was scheduled for. name labels the tick-jitter
// and tick-count metrics recorded on m (m may be nil, e.g. in tests).
//
// If fn overruns its period, the next deadline is still the original
// start+N*period. A deadline that is already past fires immediately, so
// ticks missed during an overrun run back-to-back until the loop is on
// schedule again; the overrun is the caller's responsibility to log.
func Periodic(ctx context.Context, name string, period, offset time.Duration, m *observability.Metrics, fn func(tick uint64, deadline time.Time)) {
	start := time.Now().Add(offset)
	var tick uint64
	timer := time.NewTimer(time.Until(start))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			deadline := start.Add(period * time.Duration(tick))
			fired := time.Now()
			fn(tick, deadline)
			if m != nil {
				m.TicksTotal.WithLabelValues(name).Inc()
				m.TickJitterSeconds.WithLabelValues(name).Observe(fired.Sub(deadline).Seconds())
			}
			tick++
			next := start.Add(period * time.Duration(tick))
			d := time.Until(next)
			if d < 0 {
				d = 0
			}
			timer.Reset(d)
		}
	}
}

// Spec describes a task the way the source firmware's static thread
// attribute structs did: a name and a nominal priority, for logging only —
// Go has no static stack/priority reservation to configure.
type Spec struct {
	Name     string
	Priority int
}

// Start launches entry in its own goroutine under the given Spec, the
// generalization of the source firmware's "given (name, stack_size,
// priority, entry) start a task" abstraction (spec.md §9).
func Start(ctx context.Context, spec Spec, entry func(ctx context.Context)) {
	go entry(ctx)
}
