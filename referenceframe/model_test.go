package referenceframe

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestLinkPosesZeroConfiguration(t *testing.T) {
	m := parseTestArm(t)
	poses, err := m.LinkPoses([]float64{0, 0})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(poses), test.ShouldEqual, 4)

	// base is the root, at the world origin
	test.That(t, poses[0].Point().Norm(), test.ShouldAlmostEqual, 0)
	// upper sits at the shoulder
	test.That(t, poses[1].Point().Z, test.ShouldAlmostEqual, 0.1)
	// fore is one upper-arm length out
	test.That(t, poses[2].Point().X, test.ShouldAlmostEqual, 0.3)
	test.That(t, poses[2].Point().Z, test.ShouldAlmostEqual, 0.1)
	// tool hangs off the fixed wrist
	test.That(t, poses[3].Point().X, test.ShouldAlmostEqual, 0.5)
}

func TestLinkPosesBentElbow(t *testing.T) {
	m := parseTestArm(t)
	// elbow at 90 degrees about +Y folds the forearm downward
	poses, err := m.LinkPoses([]float64{0, math.Pi / 2})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, poses[3].Point().X, test.ShouldAlmostEqual, 0.3, 1e-12)
	test.That(t, poses[3].Point().Z, test.ShouldAlmostEqual, 0.1-0.2, 1e-12)
}

func TestLinkPosesIsPure(t *testing.T) {
	m := parseTestArm(t)
	first, err := m.LinkPoses([]float64{0.3, -0.7})
	test.That(t, err, test.ShouldBeNil)
	// a different configuration must not disturb previously returned poses
	_, err = m.LinkPoses([]float64{-1.0, 1.5})
	test.That(t, err, test.ShouldBeNil)
	again, err := m.LinkPoses([]float64{0.3, -0.7})
	test.That(t, err, test.ShouldBeNil)
	for i := range first {
		test.That(t, first[i].Point(), test.ShouldResemble, again[i].Point())
	}
}

func TestLinkPosesWrongLength(t *testing.T) {
	m := parseTestArm(t)
	_, err := m.LinkPoses([]float64{0})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "wanted 2 joint angles")
}

func TestMovesWithJoint(t *testing.T) {
	m := parseTestArm(t)
	// shoulder (dof 0) moves everything but the base
	test.That(t, m.MovesWithJoint(0, 0), test.ShouldBeFalse)
	test.That(t, m.MovesWithJoint(0, 1), test.ShouldBeTrue)
	test.That(t, m.MovesWithJoint(0, 3), test.ShouldBeTrue)
	// elbow (dof 1) moves only the forearm and the tool beyond it
	test.That(t, m.MovesWithJoint(1, 1), test.ShouldBeFalse)
	test.That(t, m.MovesWithJoint(1, 2), test.ShouldBeTrue)
	test.That(t, m.MovesWithJoint(1, 3), test.ShouldBeTrue)
}
