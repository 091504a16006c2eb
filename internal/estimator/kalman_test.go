package estimator

import "testing"

func testParams() Params {
	return Params{
		Dt:              0.01,
		QHeight:         0.001,
		QVelocity:       0.01,
		QBias:           0.0001,
		QBiasPostApogee: 0.001,
		RBaro:           1.0,
	}
}

// TestKalmanConvergesToConstantAltitude is testable property 4: fed a
// constant baro measurement and zero control input, the filter's height
// estimate converges to that measurement.
func TestKalmanConvergesToConstantAltitude(t *testing.T) {
	k := New(testParams())
	const target = float32(120.0)
	for i := 0; i < 2000; i++ {
		k.Predict(0)
		k.Update(target, 0)
	}
	got := k.State().Height
	if diff := got - target; diff > 0.5 || diff < -0.5 {
		t.Fatalf("height = %v, want close to %v", got, target)
	}
}

func TestKalmanResetZeroesState(t *testing.T) {
	k := New(testParams())
	for i := 0; i < 100; i++ {
		k.Predict(1)
		k.Update(50, 0)
	}
	k.Reset()
	if s := k.State(); s.Height != 0 || s.Velocity != 0 || s.Bias != 0 {
		t.Fatalf("state after Reset = %+v, want zero", s)
	}
}

func TestKalmanSoftResetKeepsBias(t *testing.T) {
	k := New(testParams())
	for i := 0; i < 500; i++ {
		k.Predict(0)
		k.Update(10, 0)
	}
	before := k.State().Bias
	k.SoftReset()
	after := k.State().Bias
	if before != after {
		t.Fatalf("SoftReset changed bias: before=%v after=%v", before, after)
	}
}

func TestKalmanUpdateDegradesGracefullyWithFaultyBaros(t *testing.T) {
	k := New(testParams())
	k.Predict(0)
	k.Update(100, 0)
	gain0 := k.State().Height

	k2 := New(testParams())
	k2.Predict(0)
	k2.Update(100, 3)
	gain3 := k2.State().Height

	// With all baros faulty, R is scaled way up, so the filter should trust
	// the measurement less and move less far on the first update.
	if gain3 > gain0 {
		t.Fatalf("fully-degraded update moved further than trusted update: %v vs %v", gain3, gain0)
	}
}

func TestKalmanPostApogeeIgnoresControlInput(t *testing.T) {
	k := New(testParams())
	k.EnterPostApogee()
	before := k.State()
	k.Predict(1000) // large control input should be ignored post-apogee
	after := k.State()
	if after.Velocity != before.Velocity {
		t.Fatalf("post-apogee predict used control input: before=%v after=%v", before, after)
	}
}

func TestOrientationIdentityStaysAtRest(t *testing.T) {
	o := NewOrientation(0.01)
	for i := 0; i < 100; i++ {
		o.Integrate([3]float32{0, 0, 0})
	}
	if q := o.Quat(); q != Identity() {
		t.Fatalf("Quat = %v, want identity after zero-rate integration", q)
	}
}

func TestOrientationResetReturnsIdentity(t *testing.T) {
	o := NewOrientation(0.01)
	for i := 0; i < 50; i++ {
		o.Integrate([3]float32{0.1, 0.2, 0.3})
	}
	o.Reset()
	if q := o.Quat(); q != Identity() {
		t.Fatalf("Quat after Reset = %v, want identity", q)
	}
}

func TestOrientationStaysUnitNorm(t *testing.T) {
	o := NewOrientation(0.01)
	for i := 0; i < 1000; i++ {
		o.Integrate([3]float32{0.5, -0.3, 0.2})
	}
	q := o.Quat()
	n := float64(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
	if diff := n - 1.0; diff > 1e-3 || diff < -1e-3 {
		t.Fatalf("quaternion norm^2 = %v, want ~1", n)
	}
}
