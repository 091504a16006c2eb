// Package sensors implements the redundant-sensor eliminator (C2) and the
// median pre-filter (C3) from spec.md §4.2–§4.3.
//
// Grounded on the teacher's internal/anomaly package: both are a per-tick
// "compare each sample against a robust central estimate, flag outliers"
// computation, the same shape as anomaly.Engine.Score comparing a feature
// vector against a baseline. The per-channel sticky/clear hysteresis
// counters follow the counter shape of escalation.Accumulator; they are
// plain fields with no mutex of their own.
package sensors

import "github.com/samber/lo"

// Thresholds bundles the per-modality fault thresholds and hysteresis
// window lengths from spec.md §4.2 (accel default ~3 g, baro ~5000 Pa;
// N=10 sticky, M=50 clear).
type Thresholds struct {
	AccelFaultG  float64
	BaroFaultPa  float64
	StickyTicks  int
	ClearTicks   int
}

// ChannelCounter tracks one channel's consecutive-faulty and
// consecutive-good run lengths and derives the sticky "faulty" bit from
// them per spec.md §4.2's hysteresis rule.
type ChannelCounter struct {
	consecFaulty int
	consecGood   int
	sticky       bool
}

// Observe records one tick's raw faulty/not-faulty verdict and updates the
// sticky state: faulty after StickyTicks consecutive faulty ticks, cleared
// after ClearTicks consecutive good ticks.
func (c *ChannelCounter) Observe(faultyThisTick bool, sticky, clear int) bool {
	if faultyThisTick {
		c.consecFaulty++
		c.consecGood = 0
		if c.consecFaulty >= sticky {
			c.sticky = true
		}
	} else {
		c.consecGood++
		c.consecFaulty = 0
		if c.consecGood >= clear {
			c.sticky = false
		}
	}
	return c.sticky
}

// Eliminator runs the C2 per-modality voting procedure across three
// redundant channels.
type Eliminator struct {
	thr       Thresholds
	imu       [3]ChannelCounter
	baro      [3]ChannelCounter
	lastGoodAccel [3]float64
	lastGoodBaro  [3]float64
}

func New(thr Thresholds) *Eliminator {
	return &Eliminator{thr: thr}
}

// median3 returns the median of three readings.
func median3(a, b, c float64) float64 {
	if a > b {
		a, b = b, a
	}
	if b > c {
		b, c = c, b
	}
	if a > b {
		a, b = b, a
	}
	return b
}

// EvalAccel runs one tick of the accel-axis voting procedure (spec.md
// §4.2 step 1–2) across the three IMUs' vertical-axis accel reading
// (already converted to physical units by the caller). Returns the sticky
// faulty bit for each channel and the number currently faulty.
func (e *Eliminator) EvalAccel(accel [3]float64) (faulty [3]bool, numFaulty int) {
	med := median3(accel[0], accel[1], accel[2])
	for i := 0; i < 3; i++ {
		raw := absf(accel[i]-med) > e.thr.AccelFaultG
		faulty[i] = e.imu[i].Observe(raw, e.thr.StickyTicks, e.thr.ClearTicks)
		if !faulty[i] {
			e.lastGoodAccel[i] = accel[i]
		}
	}
	numFaulty = countTrue(faulty[:])
	return
}

// EvalBaro runs the same procedure over the three barometers' pressure
// readings (Pa).
func (e *Eliminator) EvalBaro(pressure [3]float64) (faulty [3]bool, numFaulty int) {
	med := median3(pressure[0], pressure[1], pressure[2])
	for i := 0; i < 3; i++ {
		raw := absf(pressure[i]-med) > e.thr.BaroFaultPa
		faulty[i] = e.baro[i].Observe(raw, e.thr.StickyTicks, e.thr.ClearTicks)
		if !faulty[i] {
			e.lastGoodBaro[i] = pressure[i]
		}
	}
	numFaulty = countTrue(faulty[:])
	return
}

// GoodAccel returns the average of currently-non-faulty accel channels,
// or the last-good values if all three are sticky-faulty (spec.md §4.2's
// "edge" case: elimination does not reset, consumer holds last-good).
func (e *Eliminator) GoodAccel(accel [3]float64, faulty [3]bool) float64 {
	return averageGood(accel[:], faulty[:], e.lastGoodAccel[:])
}

// GoodBaro is the pressure analogue of GoodAccel.
func (e *Eliminator) GoodBaro(pressure [3]float64, faulty [3]bool) float64 {
	return averageGood(pressure[:], faulty[:], e.lastGoodBaro[:])
}

func averageGood(values []float64, faulty []bool, lastGood []float64) float64 {
	idx := lo.Filter(lo.Range(len(values)), func(i int, _ int) bool { return !faulty[i] })
	if len(idx) == 0 {
		return lo.Mean(lastGood)
	}
	good := lo.Map(idx, func(i int, _ int) float64 { return values[i] })
	return lo.Mean(good)
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func countTrue(bs []bool) int {
	n := 0
	for _, b := range bs {
		if b {
			n++
		}
	}
	return n
}
