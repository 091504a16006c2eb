package estimator

import "math"

// Quat is a unit quaternion [w, x, y, z].
type Quat [4]float32

// Identity returns the identity orientation.
func Identity() Quat { return Quat{1, 0, 0, 0} }

// Orientation integrates angular rate samples into a running quaternion
// estimate (C5, spec.md §4.5). It holds no covariance: this is a pure
// gyro-integration dead-reckoning filter, not a full attitude EKF.
type Orientation struct {
	dt float32
	q  Quat
}

func NewOrientation(dt float32) *Orientation {
	return &Orientation{dt: dt, q: Identity()}
}

// Reset returns orientation to identity, called alongside Kalman.Reset on
// MOVING->READY (spec.md §4.5).
func (o *Orientation) Reset() { o.q = Identity() }

// Quat returns the current orientation estimate.
func (o *Orientation) Quat() Quat { return o.q }

// Integrate advances the orientation by one tick given a gyro reading in
// rad/s, using first-order quaternion integration:
//
//	q_{k+1} = normalize(q_k + dt/2 * q_k ⊗ [0, gx, gy, gz])
func (o *Orientation) Integrate(gyro [3]float32) {
	omega := Quat{0, gyro[0], gyro[1], gyro[2]}
	dq := mulQuat(o.q, omega)

	half := o.dt / 2
	next := Quat{
		o.q[0] + half*dq[0],
		o.q[1] + half*dq[1],
		o.q[2] + half*dq[2],
		o.q[3] + half*dq[3],
	}
	o.q = normalizeQuat(next)
}

func mulQuat(a, b Quat) Quat {
	return Quat{
		a[0]*b[0] - a[1]*b[1] - a[2]*b[2] - a[3]*b[3],
		a[0]*b[1] + a[1]*b[0] + a[2]*b[3] - a[3]*b[2],
		a[0]*b[2] - a[1]*b[3] + a[2]*b[0] + a[3]*b[1],
		a[0]*b[3] + a[1]*b[2] - a[2]*b[1] + a[3]*b[0],
	}
}

func normalizeQuat(q Quat) Quat {
	n := float32(math.Sqrt(float64(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])))
	if n == 0 {
		return Identity()
	}
	return Quat{q[0] / n, q[1] / n, q[2] / n, q[3] / n}
}
