package posture

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestBuildProblemDefaults(t *testing.T) {
	cfg := planarArmConfig()
	problem, err := BuildProblem(cfg, planarArmModel(t))
	test.That(t, err, test.ShouldBeNil)

	// posture-major, joint-minor
	test.That(t, problem.NumVars(), test.ShouldEqual, 4)
	test.That(t, problem.Variables[0].Name, test.ShouldEqual, "p_0 q_0")
	test.That(t, problem.Variables[1].Name, test.ShouldEqual, "p_0 q_1")
	test.That(t, problem.Variables[2].Name, test.ShouldEqual, "p_1 q_0")
	test.That(t, problem.Variables[3].Name, test.ShouldEqual, "p_1 q_1")

	test.That(t, problem.InitialVector(), test.ShouldResemble, []float64{0, 0, 0, 0})
	lower, upper := problem.Bounds()
	for i := 0; i < 4; i++ {
		test.That(t, lower[i], test.ShouldAlmostEqual, -math.Pi)
		test.That(t, upper[i], test.ShouldAlmostEqual, math.Pi)
	}

	test.That(t, problem.Constraints.Name, test.ShouldEqual, "g")
	test.That(t, problem.Constraints.Count, test.ShouldEqual, NumConstraints(2, 3))
	test.That(t, problem.Constraints.Lower, test.ShouldEqual, 0.0)
	test.That(t, math.IsInf(problem.Constraints.Upper, 1), test.ShouldBeTrue)
}

func TestBuildProblemOverrides(t *testing.T) {
	cfg := planarArmConfig()
	cfg.AngleRanges = []*AngleRange{nil, {Lower: -0.5, Upper: 0.5}}
	cfg.InitialPostures = [][]float64{{0.1, 0.2}}

	problem, err := BuildProblem(cfg, planarArmModel(t))
	test.That(t, err, test.ShouldBeNil)

	lower, upper := problem.Bounds()
	// dof 0 keeps its physical limit, dof 1 is tightened in every posture
	test.That(t, lower[0], test.ShouldAlmostEqual, -math.Pi)
	test.That(t, lower[1], test.ShouldEqual, -0.5)
	test.That(t, upper[1], test.ShouldEqual, 0.5)
	test.That(t, lower[3], test.ShouldEqual, -0.5)

	// only the first posture is seeded, the second starts at zero
	test.That(t, problem.InitialVector(), test.ShouldResemble, []float64{0.1, 0.2, 0, 0})
}

func TestBuildProblemBadInitialPosture(t *testing.T) {
	cfg := planarArmConfig()
	cfg.InitialPostures = [][]float64{{0.1}}
	_, err := BuildProblem(cfg, planarArmModel(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "has 1 angles, want 2")
}

func TestBuildProblemNoJoints(t *testing.T) {
	_, err := BuildProblem(DefaultConfig(), separatedLinksModel(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no movable joints")
}

func TestNumConstraints(t *testing.T) {
	test.That(t, NumConstraints(1, 2), test.ShouldEqual, 1)
	test.That(t, NumConstraints(2, 3), test.ShouldEqual, 6)
	test.That(t, NumConstraints(5, 7), test.ShouldEqual, 105)
}
