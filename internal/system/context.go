// Package system wires the bus, sensor pipeline, FSM, dispatcher,
// recorder, and telemetry codec into the task list spec.md §5 describes,
// and owns process-wide startup/shutdown.
//
// Grounded on the teacher's cmd/octoreflex/main.go boot sequence: both
// build their collaborators bottom-up (storage/config before anything that
// reads it), start periodic workers, and tear down in reverse order on
// context cancellation. Context here plays the role octoreflex's
// top-level main() plays, pulled into a package so cmd/flightcored and
// cmd/flightsim can both drive it.
package system

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/skywardavionics/flightcore/internal/bus"
	"github.com/skywardavionics/flightcore/internal/config"
	"github.com/skywardavionics/flightcore/internal/dispatcher"
	"github.com/skywardavionics/flightcore/internal/errflags"
	"github.com/skywardavionics/flightcore/internal/estimator"
	"github.com/skywardavionics/flightcore/internal/flashfs"
	"github.com/skywardavionics/flightcore/internal/fsm"
	"github.com/skywardavionics/flightcore/internal/observability"
	"github.com/skywardavionics/flightcore/internal/recorder"
	"github.com/skywardavionics/flightcore/internal/sensors"
	"github.com/skywardavionics/flightcore/internal/task"
	"github.com/skywardavionics/flightcore/internal/telemetry"
)

// SensorSource is the external collaborator boundary for raw samples
// (spec.md §1: device-register drivers are out of scope; this interface is
// the contract the board-bring-up layer implements).
type SensorSource interface {
	ReadIMU(ch int) (bus.ImuSample, error)
	ReadBaro(ch int) (bus.BaroSample, error)
	ReadGyroRadS(ch int) [3]float32
}

// ActuatorSink is the external collaborator boundary for pyro/servo/buzzer
// effects.
type ActuatorSink interface {
	Do(dispatcher.Action) error
}

// UART is the external collaborator boundary for the telemetry byte
// stream.
type UART interface {
	WriteFrame([]byte) error
	ReadByte() (byte, bool)
}

// Context bundles every live collaborator for one flight computer
// instance.
type Context struct {
	Log     *zap.Logger
	Metrics *observability.Metrics

	Bus    *bus.State
	Cfg    *config.Registry
	FS     *flashfs.DB
	Sensor SensorSource
	Act    ActuatorSink
	UART   UART

	Elim  *sensors.Eliminator
	Pre   *sensors.PreFilter
	KF    *estimator.Kalman
	Orient *estimator.Orientation
	FSM    *fsm.FSM
	Disp   *dispatcher.Dispatcher
	Rec    *recorder.Recorder

	parser *telemetry.Parser
	gate   *telemetry.Gate

	controlPeriod   time.Duration
	telemetryPeriod time.Duration
	stillnessGyro   float64
}

// Build constructs a fully wired Context from configuration.
func Build(log *zap.Logger, metrics *observability.Metrics, cfg *config.Registry, fs *flashfs.DB, sensor SensorSource, act ActuatorSink, uart UART) (*Context, error) {
	controlHz := mustFloat(cfg, "control_freq_hz", 100)
	telemetryHz := mustFloat(cfg, "telemetry_freq_hz", 10)
	dt := float32(1.0 / controlHz)

	elim := sensors.New(sensors.Thresholds{
		AccelFaultG: mustFloat(cfg, "accel_fault_threshold_g", 3.0),
		BaroFaultPa: mustFloat(cfg, "baro_fault_threshold_pa", 5000),
		StickyTicks: int(mustFloat(cfg, "elim_sticky_n", 10)),
		ClearTicks:  int(mustFloat(cfg, "elim_clear_m", 50)),
	})
	pre := sensors.NewPreFilter()
	kf := estimator.New(estimator.Params{
		Dt: dt, QHeight: 0.001, QVelocity: 0.01, QBias: 0.0001, QBiasPostApogee: 0.001, RBaro: 1.0,
	})
	orient := estimator.NewOrientation(dt)

	stillnessGyro := mustFloat(cfg, "stillness_gyro_threshold_rads", 0.05)
	flightFSM := fsm.New(fsm.Thresholds{
		CalibratingMinTicks:  int(mustFloat(cfg, "calibrating_min_ticks", 100)),
		StillnessGyro:        stillnessGyro,
		GroundStableTicks:    int(mustFloat(cfg, "ground_stable_ticks", 50)),
		LiftoffAccel:         mustFloat(cfg, "liftoff_acc_threshold_ms2", 35.0),
		LiftoffConsecTicks:   int(mustFloat(cfg, "liftoff_consec_ticks", 10)),
		CoastConsecTicks:     int(mustFloat(cfg, "coast_consec_ticks", 10)),
		ApogeeConsecTicks:    int(mustFloat(cfg, "apogee_consec_ticks", 10)),
		MainAltitudeM:        mustFloat(cfg, "main_altitude_m", 450),
		TouchdownVelocity:    mustFloat(cfg, "touchdown_velocity_ms", 2.0),
		TouchdownConsecTicks: int(mustFloat(cfg, "touchdown_consec_ticks", 20)),
	})

	b := bus.New()

	rec := recorder.New(fs, recorder.Config{
		QueueSize:         int(mustFloat(cfg, "record_queue_size", 512)),
		PreThrustingLimit: int(mustFloat(cfg, "pre_thrusting_limit", 400)),
		SyncEveryNBuffers: int(mustFloat(cfg, "flash_sync_every_n_buffers", 16)),
	}, func() { b.Errors.Raise(errflags.LogFull) })

	disp := dispatcher.New(defaultEventActionMap(), func(a dispatcher.Action) error {
		if act == nil {
			return nil
		}
		return act.Do(a)
	}, func() { b.Errors.Raise(errflags.NoPyro) }, metrics)

	var testPhrase string
	if f := cfg.Field("test_phrase"); f != nil {
		testPhrase = f.Str
	}

	return &Context{
		Log: log, Metrics: metrics,
		Bus: b, Cfg: cfg, FS: fs, Sensor: sensor, Act: act, UART: uart,
		Elim: elim, Pre: pre, KF: kf, Orient: orient, FSM: flightFSM, Disp: disp, Rec: rec,
		parser: telemetry.NewParser(telemetry.IsKnown),
		gate:   telemetry.NewGate(testPhrase),
		controlPeriod:   time.Duration(float64(time.Second) / controlHz),
		telemetryPeriod: time.Duration(float64(time.Second) / telemetryHz),
		stillnessGyro:   stillnessGyro,
	}, nil
}

// Run starts every task from spec.md §5's task list and blocks until ctx
// is cancelled.
func (c *Context) Run(ctx context.Context) {
	task.Start(ctx, task.Spec{Name: "SensorRead", Priority: 10}, c.runSensorRead)
	task.Start(ctx, task.Spec{Name: "Preprocess", Priority: 9}, c.runPreprocess)
	task.Start(ctx, task.Spec{Name: "StateEst", Priority: 9}, c.runStateEst)
	task.Start(ctx, task.Spec{Name: "FlightFSM", Priority: 8}, c.runFlightFSM)
	task.Start(ctx, task.Spec{Name: "Dispatcher", Priority: 7}, c.runDispatcher)
	task.Start(ctx, task.Spec{Name: "Telemetry", Priority: 3}, c.runTelemetry)
	task.Start(ctx, task.Spec{Name: "HealthMonitor", Priority: 1}, c.runHealthMonitor)

	<-ctx.Done()
	c.Rec.Close()
	c.Log.Info("flight computer shutdown complete")
}

func (c *Context) runSensorRead(ctx context.Context) {
	task.Periodic(ctx, "SensorRead", c.controlPeriod, 0, c.Metrics, func(tick uint64, deadline time.Time) {
		if c.Sensor == nil {
			return
		}
		ts := uint32(time.Since(deadline).Milliseconds())
		for i := 0; i < 3; i++ {
			if s, err := c.Sensor.ReadIMU(i); err == nil {
				c.Bus.IMU[i].Store(s)
			}
		}
		for i := 0; i < 3; i++ {
			if s, err := c.Sensor.ReadBaro(i); err == nil {
				c.Bus.Baro[i].Store(s)
			}
		}
		g := c.Sensor.ReadGyroRadS(0)
		c.Orient.Integrate(g)
		gyroMag := math.Sqrt(float64(g[0])*float64(g[0]) + float64(g[1])*float64(g[1]) + float64(g[2])*float64(g[2]))
		c.Bus.Orient.Store(bus.Orientation{TimestampMs: ts, Quat: c.Orient.Quat(), GyroMagRadS: float32(gyroMag)})
	})
}

func (c *Context) runPreprocess(ctx context.Context) {
	task.Periodic(ctx, "Preprocess", c.controlPeriod, c.controlPeriod/5, c.Metrics, func(tick uint64, deadline time.Time) {
		var accel, pressure [3]float64
		for i := 0; i < 3; i++ {
			imu := c.Bus.IMU[i].Load()
			accel[i] = float64(imu.Accel[2]) / 1024.0 * 9.80665
			baro := c.Bus.Baro[i].Load()
			pressure[i] = float64(baro.PressurePa)
		}
		faultyIMU, numFaultyIMU := c.Elim.EvalAccel(accel)
		faultyBaro, numFaultyBaro := c.Elim.EvalBaro(pressure)
		c.Bus.Elim.Store(bus.ElimMask{FaultyIMU: faultyIMU, FaultyBaro: faultyBaro, NumFaultyIMU: numFaultyIMU, NumFaultyBaro: numFaultyBaro})
		c.Metrics.SensorFaultyChannels.WithLabelValues("imu").Set(float64(numFaultyIMU))
		c.Metrics.SensorFaultyChannels.WithLabelValues("baro").Set(float64(numFaultyBaro))

		res := c.Pre.Step(accel, faultyIMU, pressure, faultyBaro)
		c.Bus.Filtered.Store(bus.FilteredSample{
			RawAccel: float32(res.RawAccel), RawAGL: float32(res.RawAGL),
			FilteredAccel: float32(res.FilteredAccel), FilteredAGL: float32(res.FilteredAGL),
		})
	})
}

func (c *Context) runStateEst(ctx context.Context) {
	task.Periodic(ctx, "StateEst", c.controlPeriod, 2*c.controlPeriod/5, c.Metrics, func(tick uint64, deadline time.Time) {
		f := c.Bus.Filtered.Load()
		elim := c.Bus.Elim.Load()

		c.KF.Predict(f.FilteredAccel)
		c.KF.Update(f.FilteredAGL, elim.NumFaultyBaro)
		st := c.KF.State()
		hv, vv := c.KF.Covariance()

		c.Bus.Fused.Store(bus.FusedState{
			Height: st.Height, Velocity: st.Velocity,
			Acceleration: c.KF.Acceleration(f.FilteredAccel),
			HeightCov:    hv, VelocityCov: vv,
		})

		c.Rec.Push(recorderFlightInfo(st, c.KF.Acceleration(f.FilteredAccel)))
	})
}

func (c *Context) runFlightFSM(ctx context.Context) {
	var prevHeight float64
	first := true
	task.Periodic(ctx, "FlightFSM", c.controlPeriod, 3*c.controlPeriod/5, c.Metrics, func(tick uint64, deadline time.Time) {
		fused := c.Bus.Fused.Load()
		filtered := c.Bus.Filtered.Load()
		orient := c.Bus.Orient.Load()
		gyroMag := float64(orient.GyroMagRadS)
		in := fsm.Input{
			TickCount: int(tick), Height: float64(fused.Height), Velocity: float64(fused.Velocity),
			FilteredAccel:  float64(fused.Acceleration),
			AccelMagnitude: float64(filtered.RawAccel),
			GyroMagnitude:  gyroMag,
			GroundStable:   gyroMag <= c.stillnessGyro,
		}
		if !first {
			in.PrevHeight = prevHeight
		}
		prevHeight = float64(fused.Height)
		first = false

		prev := c.FSM.Phase()
		ev, ok := c.FSM.Step(in)
		c.Bus.Phase.Store(uint32(c.FSM.Phase()))
		if ok {
			c.Disp.Post(ev)
			c.Metrics.PhaseTransitionsTotal.WithLabelValues(prev.String(), c.FSM.Phase().String()).Inc()
			c.Rec.Push(recorder.Entry{Tag: recorder.TagFlightState, Ts: uint32(tick), Phase: uint8(c.FSM.Phase())})
			c.applyPhaseSideEffects(prev, c.FSM.Phase())
		}
		c.Metrics.FlightPhase.Set(float64(c.FSM.Phase()))
	})
}

func (c *Context) applyPhaseSideEffects(prev, next fsm.Phase) {
	switch {
	case prev == fsm.Moving && next == fsm.Ready:
		c.KF.Reset()
		c.Orient.Reset()
	case prev == fsm.Ready && next == fsm.Thrusting:
		c.KF.SoftReset()
		c.Rec.Arm()
		c.Rec.Liftoff()
	case next == fsm.Apogee:
		c.KF.EnterPostApogee()
	case next == fsm.Drogue:
		c.KF.EnterDrogue()
	case next == fsm.Touchdown:
		c.Rec.Touchdown()
	}
}

func (c *Context) runDispatcher(ctx context.Context) {
	task.Periodic(ctx, "Dispatcher", c.controlPeriod, 4*c.controlPeriod/5, c.Metrics, func(tick uint64, deadline time.Time) {
		c.Disp.Drain(true)
	})
}

func (c *Context) runTelemetry(ctx context.Context) {
	task.Periodic(ctx, "Telemetry", c.telemetryPeriod, 0, c.Metrics, func(tick uint64, deadline time.Time) {
		if c.UART == nil {
			return
		}
		for {
			b, ok := c.UART.ReadByte()
			if !ok {
				break
			}
			if f, ok := c.parser.Feed(b); ok {
				c.Metrics.TelemetryFramesTotal.WithLabelValues("accepted").Inc()
				_ = f
			}
		}
		fused := c.Bus.Fused.Load()
		phase := c.Bus.Phase.Load()
		dl := telemetry.Downlink{
			State:     uint8(phase) & 0x7,
			AltitudeM: int32(fused.Height),
			VelocityMS: int32(fused.Velocity),
			Errors:    errflags.Downlink6(c.Bus.Errors.Load()),
		}
		frame := telemetry.Encode(0x30, dl.Encode())
		_ = c.UART.WriteFrame(frame)
	})
}

func (c *Context) runHealthMonitor(ctx context.Context) {
	var prevWord uint32
	task.Periodic(ctx, "HealthMonitor", c.controlPeriod*10, 0, c.Metrics, func(tick uint64, deadline time.Time) {
		word := c.Bus.Errors.Load()
		rising := word &^ prevWord
		if rising != 0 {
			c.Rec.Push(recorder.Entry{Tag: recorder.TagErrorInfo, Ts: uint32(tick), ErrorCode: rising})
			for _, name := range errflags.Names(rising) {
				c.Log.Warn("error flag raised", zap.String("flag", name))
			}
		}
		prevWord = word
		for _, name := range errflags.Names(word) {
			c.Metrics.ErrorFlagsActive.WithLabelValues(name).Set(1)
		}
	})
}

func recorderFlightInfo(st estimator.State, accel float32) recorder.Entry {
	return recorder.Entry{Tag: recorder.TagFlightInfo, Height: st.Height, Velocity: st.Velocity, Acceleration: accel}
}

func defaultEventActionMap() dispatcher.EventActionMap {
	return dispatcher.EventActionMap{
		fsm.EventLiftoff:    {{Kind: dispatcher.StartRecorder}},
		fsm.EventMainDeploy: {{Kind: dispatcher.FirePyro, Channel: 1}},
		fsm.EventApogee:     {{Kind: dispatcher.FirePyro, Channel: 0}},
		fsm.EventTouchdown:  {{Kind: dispatcher.StopRecorder}, {Kind: dispatcher.PlayTone, FreqHz: 2000, DurMs: 500}},
	}
}

func mustFloat(cfg *config.Registry, name string, fallback float64) float64 {
	f := cfg.Field(name)
	if f == nil {
		return fallback
	}
	if f.IsFloat {
		return float64(f.F32)
	}
	return float64(f.I32)
}
