package sensors

import (
	"math"
	"sort"

	"github.com/samber/lo"
)

// medianWindow is W in spec.md §4.3: a fixed-size sliding window whose
// Median() is the robust pre-filter estimate for one channel.
const medianWindow = 9

// MedianFilter holds the last medianWindow samples for one scalar channel.
type MedianFilter struct {
	buf  [medianWindow]float64
	n    int
	next int
}

// Push appends a new sample, evicting the oldest once the window is full.
func (m *MedianFilter) Push(v float64) {
	m.buf[m.next] = v
	m.next = (m.next + 1) % medianWindow
	if m.n < medianWindow {
		m.n++
	}
}

// Median returns the median of the samples currently held. Returns 0 if
// empty.
func (m *MedianFilter) Median() float64 {
	if m.n == 0 {
		return 0
	}
	tmp := append([]float64(nil), m.buf[:m.n]...)
	sort.Float64s(tmp)
	return tmp[len(tmp)/2]
}

// PreFilter runs the C3 pipeline: per-channel median-9, then average
// across non-faulty channels, for both the accel and AGL signals.
type PreFilter struct {
	accelMedian [3]MedianFilter
	aglMedian   [3]MedianFilter
	groundPressurePa float64
	tempCentiC       float64
}

func NewPreFilter() *PreFilter { return &PreFilter{} }

// SetCalibration records the ground pressure and temperature captured
// during CALIBRATING, used by AGL().
func (p *PreFilter) SetCalibration(groundPressurePa, tempCentiC float64) {
	p.groundPressurePa = groundPressurePa
	p.tempCentiC = tempCentiC
}

// AGL converts a pressure reading to altitude above ground level using the
// international standard atmosphere formula from spec.md §4.3:
//
//	h = ((p0/p)^(1/5.257) - 1) * (T + 273.15) / 0.0065
func (p *PreFilter) AGL(pressurePa float64) float64 {
	if pressurePa <= 0 || p.groundPressurePa <= 0 {
		return 0
	}
	tempK := p.tempCentiC/100.0 + 273.15
	return (math.Pow(p.groundPressurePa/pressurePa, 1.0/5.257) - 1) * tempK / 0.0065
}

// Result is the C3 output for one tick: raw (pre-median) and filtered
// (post-median) averages for both signals, matching spec.md §4.3.
type Result struct {
	RawAccel      float64
	RawAGL        float64
	FilteredAccel float64
	FilteredAGL   float64
}

// Step runs one tick: accel and pressure readings (already unit-converted
// by the sensor-read collaborator) for the 3 channels, plus their sticky
// faulty bits from the eliminator.
func (p *PreFilter) Step(accel [3]float64, faultyIMU [3]bool, pressure [3]float64, faultyBaro [3]bool) Result {
	agl := [3]float64{}
	for i := 0; i < 3; i++ {
		agl[i] = p.AGL(pressure[i])
	}

	rawAccel := averageNonFaulty(accel[:], faultyIMU[:])
	rawAGL := averageNonFaulty(agl[:], faultyBaro[:])

	filtAccelPerChan := [3]float64{}
	filtAGLPerChan := [3]float64{}
	for i := 0; i < 3; i++ {
		p.accelMedian[i].Push(accel[i])
		p.aglMedian[i].Push(agl[i])
		filtAccelPerChan[i] = p.accelMedian[i].Median()
		filtAGLPerChan[i] = p.aglMedian[i].Median()
	}

	return Result{
		RawAccel:      rawAccel,
		RawAGL:        rawAGL,
		FilteredAccel: averageNonFaulty(filtAccelPerChan[:], faultyIMU[:]),
		FilteredAGL:   averageNonFaulty(filtAGLPerChan[:], faultyBaro[:]),
	}
}

func averageNonFaulty(values []float64, faulty []bool) float64 {
	idx := lo.Filter(lo.Range(len(values)), func(i int, _ int) bool { return !faulty[i] })
	if len(idx) == 0 {
		return lo.Mean(values) // all faulty: hold steady by averaging everything rather than dividing by zero
	}
	good := lo.Map(idx, func(i int, _ int) float64 { return values[i] })
	return lo.Mean(good)
}
