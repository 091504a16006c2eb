// Package main — cmd/flightsim/main.go
//
// Synthetic tick-stream driver for scenario S1 of spec.md §8: drives the
// system.Context with a scripted SensorSource instead of real hardware, at
// a compressed wall-clock rate so a 60-second simulated flight finishes in
// a couple of seconds. Only the S1 happy-path profile is scripted; the
// fault-injection and telemetry scenarios are not.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/skywardavionics/flightcore/internal/bus"
	"github.com/skywardavionics/flightcore/internal/config"
	"github.com/skywardavionics/flightcore/internal/dispatcher"
	"github.com/skywardavionics/flightcore/internal/flashfs"
	"github.com/skywardavionics/flightcore/internal/observability"
	"github.com/skywardavionics/flightcore/internal/system"
)

func main() {
	duration := flag.Duration("duration", 60*time.Second, "simulated flight duration")
	speedup := flag.Float64("speedup", 20.0, "wall-clock speedup factor")
	flash := flag.String("flash-path", "", "flash db path (temp file if empty)")
	flag.Parse()

	log, _ := zap.NewDevelopment()
	defer log.Sync() //nolint:errcheck

	path := *flash
	if path == "" {
		f, err := os.CreateTemp("", "flightsim-*.db")
		if err != nil {
			fmt.Fprintln(os.Stderr, "tempfile:", err)
			os.Exit(1)
		}
		path = f.Name()
		f.Close()
		defer os.Remove(path)
	}

	fs, err := flashfs.Open(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "flashfs open:", err)
		os.Exit(1)
	}
	defer fs.Close() //nolint:errcheck

	cfg, err := config.Defaults()
	if err != nil {
		fmt.Fprintln(os.Stderr, "defaults:", err)
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	sensor := newScriptedSensor(*duration, *speedup)
	sink := &loggingActuator{log: log}

	sysCtx, err := system.Build(log, metrics, cfg, fs, sensor, sink, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "system build:", err)
		os.Exit(1)
	}

	runCtx, cancel := context.WithTimeout(context.Background(), time.Duration(float64(*duration)/(*speedup))+2*time.Second)
	defer cancel()
	sysCtx.Run(runCtx)

	log.Info("simulation complete")
}

// scriptedSensor replays a canned happy-path profile: calibration
// stillness, a liftoff acceleration spike, coast to apogee, and a
// parachute descent to touchdown, matching scenario S1 (spec.md §8).
type scriptedSensor struct {
	mu        sync.Mutex
	start     time.Time
	total     time.Duration
	speedup   float64
}

func newScriptedSensor(total time.Duration, speedup float64) *scriptedSensor {
	return &scriptedSensor{start: time.Now(), total: total, speedup: speedup}
}

// simT returns the simulated elapsed time, compressed by speedup.
func (s *scriptedSensor) simT() time.Duration {
	return time.Duration(float64(time.Since(s.start)) * s.speedup)
}

func (s *scriptedSensor) ReadIMU(ch int) (bus.ImuSample, error) {
	t := s.simT().Seconds()
	accel := 9.8
	switch {
	case t > 21 && t < 23:
		accel = 100 // liftoff spike, ~10g
	case t > 23 && t < 38:
		accel = -3 // coast deceleration
	}
	return bus.ImuSample{TimestampMs: uint32(t * 1000), Accel: [3]int16{0, 0, int16(accel / 9.80665 * 1024)}}, nil
}

func (s *scriptedSensor) ReadBaro(ch int) (bus.BaroSample, error) {
	t := s.simT().Seconds()
	height := flightHeight(t)
	pressure := 101325.0 * math.Pow(1-0.0065*height/288.15, 5.257)
	return bus.BaroSample{TimestampMs: uint32(t * 1000), PressurePa: int32(pressure), TempCentiC: 1500}, nil
}

func (s *scriptedSensor) ReadGyroRadS(ch int) [3]float32 { return [3]float32{0.01, 0.01, 0.01} }

// flightHeight is a simple piecewise profile: a parabolic ascent from t=21s
// to 1530m at t=38s (ascent velocity up to 180 m/s), a step to the 1800m
// peak at t=38s, then a linear 40 m/s descent that reaches the ground at
// t=83s (scenario S1 bounds: max height >= 1000m, max velocity 150-250 m/s).
func flightHeight(t float64) float64 {
	switch {
	case t < 21:
		return 0
	case t < 38:
		dt := t - 21
		return 0.5 * 180 * dt * dt / 17
	default:
		dt := t - 38
		peak := 1800.0
		descent := peak - 40*dt
		if descent < 0 {
			return 0
		}
		return descent
	}
}

type loggingActuator struct{ log *zap.Logger }

func (a *loggingActuator) Do(action dispatcher.Action) error {
	a.log.Info("actuator effect", zap.String("kind", action.Kind.String()), zap.Int("channel", action.Channel))
	return nil
}
