// Package estimator implements the C4 Kalman core and C5 orientation
// filter from spec.md §4.4–§4.5.
//
// Grounded on the teacher's internal/anomaly/mahalanobis.go: both are
// small fixed-dimension linear-algebra kernels with no dynamic allocation
// on the hot path, guarded division, and the same "no matrix inversion
// needed because the measurement is scalar" shortcut mahalanobis.go takes
// when it falls back to a closed-form scalar path.
package estimator

// State is x = [h, v, b]^T: height, vertical velocity, accel bias.
type State struct {
	Height   float32
	Velocity float32
	Bias     float32
}

// Cov is the 3x3 covariance matrix, stored densely so predict/update read
// as the textbook linear algebra they are. Kalman is not on a path where
// n > 3 will ever happen, so there is no case for a sparse/diagonal
// representation.
type Cov [3][3]float32

// Kalman is the C4 filter: predict/update/soft_reset/reset per spec.md
// §4.4, fixed single-precision arithmetic, dt fixed at construction time.
type Kalman struct {
	dt float32
	x  State
	p  Cov

	qHeight   float32
	qVelocity float32
	qBias     float32
	qBiasPostApogee float32

	rBaro float32

	postApogee bool // raises bias process noise and zeroes control input (spec.md §4.4, set on APOGEE)
	pastDrogue bool // switches Acceleration()'s reporting convention (spec.md §4.4, set on DROGUE)
}

// Params bundles the filter's tuning constants (spec.md §4.4).
type Params struct {
	Dt              float32
	QHeight         float32
	QVelocity       float32
	QBias           float32
	QBiasPostApogee float32 // raised to 10x after APOGEE to let bias re-zero
	RBaro           float32 // baseline baro measurement noise
}

func New(p Params) *Kalman {
	return &Kalman{
		dt:              p.Dt,
		qHeight:         p.QHeight,
		qVelocity:       p.QVelocity,
		qBias:           p.QBias,
		qBiasPostApogee: p.QBiasPostApogee,
		rBaro:           p.RBaro,
	}
}

// Reset is a full re-initialization: height set to 0 (ground level, since
// AGL is already ground-relative), velocity and bias zeroed, covariance
// reset to a diagonal prior. Called on MOVING->READY (spec.md §4.4).
func (k *Kalman) Reset() {
	k.x = State{}
	k.p = Cov{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
	k.postApogee = false
	k.pastDrogue = false
}

// SoftReset zeroes covariance off-diagonals but retains the current bias
// estimate and its variance. Called on READY->THRUSTING (spec.md §4.4).
func (k *Kalman) SoftReset() {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if i != j {
				k.p[i][j] = 0
			}
		}
	}
}

// EnterPostApogee raises bias process noise and forces the control input to
// zero (spec.md §4.4: "post-apogee: u_k ≡ 0"). Called on APOGEE.
func (k *Kalman) EnterPostApogee() { k.postApogee = true }

// EnterDrogue switches Acceleration()'s reporting convention to bias-only
// (spec.md §4.4: "Post-DROGUE, reported acceleration is bias only"). Called
// on DROGUE, one phase after EnterPostApogee.
func (k *Kalman) EnterDrogue() { k.pastDrogue = true }

// State returns the current state estimate.
func (k *Kalman) State() State { return k.x }

// Covariance returns the diagonal of the covariance matrix, the only part
// the bus and recorder need (spec.md §3's FusedState.covariance diagonal).
func (k *Kalman) Covariance() (heightVar, velVar float32) {
	return k.p[0][0], k.p[1][1]
}

// Predict advances the filter one dt using control input u (filtered
// accel). Post-apogee, u is forced to 0 per spec.md §4.4 ("post-apogee:
// u_k ≡ 0").
//
//	x_{k+1} = F x_k + G u_k
//	F = [[1, dt, -dt^2/2], [0, 1, -dt], [0, 0, 1]]
//	G = [dt^2/2, dt, 0]^T
func (k *Kalman) Predict(u float32) {
	dt := k.dt
	if k.postApogee {
		u = 0
	}

	h, v, b := k.x.Height, k.x.Velocity, k.x.Bias
	k.x = State{
		Height:   h + dt*v - 0.5*dt*dt*b + 0.5*dt*dt*u,
		Velocity: v - dt*b + dt*u,
		Bias:     b,
	}

	f := [3][3]float32{
		{1, dt, -0.5 * dt * dt},
		{0, 1, -dt},
		{0, 0, 1},
	}
	qBias := k.qBias
	if k.postApogee {
		qBias = k.qBiasPostApogee
	}
	q := Cov{
		{k.qHeight, 0, 0},
		{0, k.qVelocity, 0},
		{0, 0, qBias},
	}
	k.p = addCov(mulFPFt(f, k.p), q)
}

// Update applies a scalar baro-altitude measurement z against H=[1,0,0].
// numFaultyBaro scales R per spec.md §4.4 ("R is baro noise, scaled by
// num_faulty_baros").
func (k *Kalman) Update(z float32, numFaultyBaro int) {
	r := k.rBaro * rScale(numFaultyBaro)

	// Innovation and its variance: y = z - Hx, S = HPH^T + R = P00 + R.
	y := z - k.x.Height
	s := k.p[0][0] + r
	if s == 0 {
		s = 1e-6 // guard against division by zero (spec.md §4.4)
	}

	// Kalman gain K = P H^T / S = column 0 of P, scaled.
	kGain := [3]float32{k.p[0][0] / s, k.p[1][0] / s, k.p[2][0] / s}

	k.x.Height += kGain[0] * y
	k.x.Velocity += kGain[1] * y
	k.x.Bias += kGain[2] * y

	// P = (I - K H) P, with H = [1,0,0] this only modifies row-wise via K.
	var newP Cov
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			newP[i][j] = k.p[i][j] - kGain[i]*k.p[0][j]
		}
	}
	k.p = newP
}

// Acceleration returns the reported acceleration per spec.md §4.4: before
// DROGUE, filtered_accel + bias; after, bias only.
func (k *Kalman) Acceleration(filteredAccel float32) float32 {
	if k.pastDrogue {
		return k.x.Bias
	}
	return filteredAccel + k.x.Bias
}

func rScale(numFaultyBaro int) float32 {
	switch {
	case numFaultyBaro <= 0:
		return 1
	case numFaultyBaro == 1:
		return 2
	case numFaultyBaro == 2:
		return 5
	default:
		return 20 // all three faulty: degrade gracefully, weight accel path
	}
}

func addCov(a, b Cov) Cov {
	var out Cov
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = a[i][j] + b[i][j]
		}
	}
	return out
}

// mulFPFt computes F P F^T.
func mulFPFt(f [3][3]float32, p Cov) Cov {
	var fp Cov
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var sum float32
			for k := 0; k < 3; k++ {
				sum += f[i][k] * p[k][j]
			}
			fp[i][j] = sum
		}
	}
	var out Cov
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var sum float32
			for k := 0; k < 3; k++ {
				sum += fp[i][k] * f[j][k] // f[j][k] is (F^T)[k][j]
			}
			out[i][j] = sum
		}
	}
	return out
}
