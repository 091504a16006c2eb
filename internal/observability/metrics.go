// Package observability — metrics.go
//
// Prometheus metrics for the flight computer's ground-facing health
// endpoint.
//
// Endpoint: GET /metrics on 127.0.0.1:9091 (configurable).
// Format: Prometheus text exposition format (OpenMetrics compatible).
// Bind: loopback only — telemetry leaves the vehicle over the UART link
// in §4.9's codec, never over this endpoint.
//
// Metric naming convention: flightcore_<subsystem>_<name>_<unit>
//
// All metrics are registered on a dedicated prometheus.Registry (not the
// default global registry) to avoid collisions with other instrumented
// libraries in the same process. cmd/flightcored starts this endpoint on
// its --metrics-addr address at every boot.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metric descriptors for the flight computer.
type Metrics struct {
	registry *prometheus.Registry

	// ─── Control loop ─────────────────────────────────────────────────────

	// TickJitterSeconds records how far each control-loop tick's actual
	// deadline missed its scheduled absolute deadline (spec.md §9's
	// drift-free periodic loop requirement; this is the tripwire for
	// catching drift that creeps back in).
	TickJitterSeconds *prometheus.HistogramVec

	// TicksTotal counts completed control-loop ticks, by task name.
	TicksTotal *prometheus.CounterVec

	// ─── Sensor fusion ────────────────────────────────────────────────────

	// SensorFaultyChannels is the current number of sticky-faulty channels,
	// by modality (imu, baro).
	SensorFaultyChannels *prometheus.GaugeVec

	// ─── Dispatcher / recorder queues ─────────────────────────────────────

	// QueueDepth is the current depth of a bounded queue, by queue name.
	// Only the dispatcher's event_queue reports here; the recorder's queue
	// does not.
	QueueDepth *prometheus.GaugeVec

	// QueueDroppedTotal counts dropped pushes, by queue name.
	QueueDroppedTotal *prometheus.CounterVec

	// ─── Flight FSM ───────────────────────────────────────────────────────

	// FlightPhase is the current flight phase ordinal (spec.md §3).
	FlightPhase prometheus.Gauge

	// PhaseTransitionsTotal counts phase transitions, by from_phase and
	// to_phase.
	PhaseTransitionsTotal *prometheus.CounterVec

	// ─── Error word ───────────────────────────────────────────────────────

	// ErrorFlagsActive is a 1/0 gauge per error bit name (spec.md §7).
	ErrorFlagsActive *prometheus.GaugeVec

	// ─── Telemetry link ───────────────────────────────────────────────────

	// TelemetryFramesTotal counts parsed telemetry frames, by result. Only
	// the "accepted" result is recorded; rejected frames are not counted.
	TelemetryFramesTotal *prometheus.CounterVec

	// ─── Process ──────────────────────────────────────────────────────────

	// UptimeSeconds is the number of seconds since the process started.
	UptimeSeconds prometheus.Gauge

	startTime time.Time
}

// NewMetrics creates and registers all flight-computer Prometheus metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		TickJitterSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flightcore",
			Subsystem: "tasks",
			Name:      "tick_jitter_seconds",
			Help:      "Deadline miss distance for each periodic task's tick, by task name.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .02, .05, .1},
		}, []string{"task"}),

		TicksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flightcore",
			Subsystem: "tasks",
			Name:      "ticks_total",
			Help:      "Completed ticks, by task name.",
		}, []string{"task"}),

		SensorFaultyChannels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "flightcore",
			Subsystem: "sensors",
			Name:      "faulty_channels",
			Help:      "Current number of sticky-faulty redundant channels, by modality.",
		}, []string{"modality"}),

		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "flightcore",
			Subsystem: "queues",
			Name:      "depth",
			Help:      "Current bounded-queue depth, by queue name.",
		}, []string{"queue"}),

		QueueDroppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flightcore",
			Subsystem: "queues",
			Name:      "dropped_total",
			Help:      "Total dropped pushes, by queue name.",
		}, []string{"queue"}),

		FlightPhase: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flightcore",
			Subsystem: "fsm",
			Name:      "phase",
			Help:      "Current flight phase ordinal.",
		}),

		PhaseTransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flightcore",
			Subsystem: "fsm",
			Name:      "phase_transitions_total",
			Help:      "Total phase transitions, by from_phase and to_phase.",
		}, []string{"from_phase", "to_phase"}),

		ErrorFlagsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "flightcore",
			Subsystem: "errors",
			Name:      "flag_active",
			Help:      "1 if the named error flag is currently set in the error word, else 0.",
		}, []string{"flag"}),

		TelemetryFramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flightcore",
			Subsystem: "telemetry",
			Name:      "frames_total",
			Help:      "Total telemetry frames processed, by result.",
		}, []string{"result"}),

		UptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flightcore",
			Subsystem: "process",
			Name:      "uptime_seconds",
			Help:      "Seconds since process start.",
		}),
	}

	reg.MustRegister(
		m.TickJitterSeconds,
		m.TicksTotal,
		m.SensorFaultyChannels,
		m.QueueDepth,
		m.QueueDroppedTotal,
		m.FlightPhase,
		m.PhaseTransitionsTotal,
		m.ErrorFlagsActive,
		m.TelemetryFramesTotal,
		m.UptimeSeconds,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return m
}

// ServeMetrics starts the Prometheus HTTP metrics server on addr. Blocks
// until ctx is cancelled or the server fails. cmd/flightcored is its only
// caller.
func (m *Metrics) ServeMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go m.updateUptime(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server on %s: %w", addr, err)
	}
	return nil
}

func (m *Metrics) updateUptime(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.UptimeSeconds.Set(time.Since(m.startTime).Seconds())
		case <-ctx.Done():
			return
		}
	}
}
