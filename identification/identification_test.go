package identification

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/viam-labs/postureopt/referenceframe"
)

var standardGravity = r3.Vector{Z: -9.81}

// pendulumModel is a single revolute joint about +Y at the world origin with
// a point-ish mass hanging 0.2m out along the arm's X axis.
func pendulumModel(t *testing.T) *referenceframe.Model {
	t.Helper()
	links := []*referenceframe.Link{
		{Name: "base", Mass: 4},
		{Name: "arm", Mass: 2, CenterOfMass: r3.Vector{X: 0.2}},
	}
	joints := []*referenceframe.Joint{{
		Name:   "pivot",
		Type:   referenceframe.RevoluteJoint,
		Parent: "base",
		Child:  "arm",
		Axis:   r3.Vector{Y: 1},
		Limit:  referenceframe.Limit{Min: -math.Pi, Max: math.Pi},
	}}
	m, err := referenceframe.NewModel("pendulum", links, joints)
	test.That(t, err, test.ShouldBeNil)
	return m
}

func TestGravityRegressorPendulum(t *testing.T) {
	m := pendulumModel(t)
	// the static holding torque of a horizontal pendulum is m*g*d*cos(q)
	for _, q := range []float64{0, 0.4, -1.1, math.Pi / 2} {
		regressor, err := GravityRegressor(m, standardGravity, []float64{q})
		test.That(t, err, test.ShouldBeNil)

		truth := TruthParams(m)
		tau := 0.
		for k, phi := range truth {
			tau += regressor.At(0, k) * phi
		}
		test.That(t, tau, test.ShouldAlmostEqual, 2*9.81*0.2*math.Cos(q), 1e-9)
	}
}

func TestGravityRegressorBaseLinkUnexcited(t *testing.T) {
	m := pendulumModel(t)
	regressor, err := GravityRegressor(m, standardGravity, []float64{0.7})
	test.That(t, err, test.ShouldBeNil)
	// the base never moves with the pivot, so its columns are all zero
	for k := 0; k < ParamsPerLink; k++ {
		test.That(t, regressor.At(0, k), test.ShouldEqual, 0)
	}
}

func TestTruthParams(t *testing.T) {
	m := pendulumModel(t)
	truth := TruthParams(m)
	test.That(t, len(truth), test.ShouldEqual, 2*ParamsPerLink)
	test.That(t, truth[0], test.ShouldEqual, 4.0)              // base mass
	test.That(t, truth[ParamsPerLink], test.ShouldEqual, 2.0)  // arm mass
	test.That(t, truth[ParamsPerLink+1], test.ShouldAlmostEqual, 0.4) // arm m*cx
}

func TestSimulateDeterministic(t *testing.T) {
	m := pendulumModel(t)
	traj, err := NewFixedPostureTrajectory([]Posture{
		{StartTime: 0, Angles: []float64{0}},
		{StartTime: 0.05, Angles: []float64{0.8}},
	})
	test.That(t, err, test.ShouldBeNil)

	cfg := SimulationConfig{Gravity: standardGravity, SamplesPerPosture: 5, TorqueNoiseStd: 0.01, Seed: 42}
	first, err := Simulate(cfg, traj, m)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, first.NumSamples(), test.ShouldEqual, 10)

	second, err := Simulate(cfg, traj, m)
	test.That(t, err, test.ShouldBeNil)
	for s := 0; s < first.NumSamples(); s++ {
		test.That(t, first.Torques.At(s, 0), test.ShouldEqual, second.Torques.At(s, 0))
	}
}

func TestEstimateRecoversFirstMoment(t *testing.T) {
	m := pendulumModel(t)
	traj, err := NewFixedPostureTrajectory([]Posture{
		{StartTime: 0, Angles: []float64{0}},
		{StartTime: 0.05, Angles: []float64{0.5}},
		{StartTime: 0.1, Angles: []float64{1.0}},
	})
	test.That(t, err, test.ShouldBeNil)

	data, err := Simulate(SimulationConfig{Gravity: standardGravity, SamplesPerPosture: 3}, traj, m)
	test.That(t, err, test.ShouldBeNil)

	estimator := NewEstimator(m, standardGravity)
	result, err := estimator.Estimate(data)
	test.That(t, err, test.ShouldBeNil)

	// only the arm's first moment is excited by a pure pendulum: the mass
	// column vanishes because the link origin sits on the joint axis
	for _, k := range result.Identifiable {
		test.That(t, k, test.ShouldBeGreaterThanOrEqualTo, ParamsPerLink)
		test.That(t, k, test.ShouldNotEqual, ParamsPerLink) // not the bare mass
	}
	test.That(t, result.Params[ParamsPerLink+1], test.ShouldAlmostEqual, 0.4, 1e-6)

	// noise-free data identifies the excited parameters exactly
	test.That(t, estimator.GravityError(result), test.ShouldAlmostEqual, 0, 1e-9)
}

func TestTrajectoryAt(t *testing.T) {
	traj, err := NewFixedPostureTrajectory([]Posture{
		{StartTime: 0, Angles: []float64{1}},
		{StartTime: 0.05, Angles: []float64{2}},
		{StartTime: 0.1, Angles: []float64{3}},
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, traj.At(0), test.ShouldResemble, []float64{1})
	test.That(t, traj.At(0.06), test.ShouldResemble, []float64{2})
	test.That(t, traj.At(99), test.ShouldResemble, []float64{3})
	test.That(t, traj.Duration(), test.ShouldAlmostEqual, 0.15)

	// a single posture is held for one second
	single, err := NewFixedPostureTrajectory([]Posture{{StartTime: 0.2, Angles: []float64{1}}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, single.Duration(), test.ShouldAlmostEqual, 1.2)
}

func TestTrajectoryValidation(t *testing.T) {
	_, err := NewFixedPostureTrajectory(nil)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewFixedPostureTrajectory([]Posture{
		{StartTime: 0, Angles: []float64{1, 2}},
		{StartTime: 0.05, Angles: []float64{1}},
	})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewFixedPostureTrajectory([]Posture{
		{StartTime: 0.05, Angles: []float64{1}},
		{StartTime: 0.05, Angles: []float64{2}},
	})
	test.That(t, err, test.ShouldNotBeNil)
}
