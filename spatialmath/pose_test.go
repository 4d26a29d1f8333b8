package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestRotationFromAxisAngle(t *testing.T) {
	// quarter turn about Z maps X onto Y
	rm := NewRotationFromAxisAngle(r3.Vector{Z: 1}, math.Pi/2)
	got := rm.MulVec(r3.Vector{X: 1})
	test.That(t, got.X, test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, got.Y, test.ShouldAlmostEqual, 1, 1e-12)
	test.That(t, got.Z, test.ShouldAlmostEqual, 0, 1e-12)

	// zero axis yields the identity
	rm = NewRotationFromAxisAngle(r3.Vector{}, 1.2)
	got = rm.MulVec(r3.Vector{X: 1, Y: 2, Z: 3})
	test.That(t, got, test.ShouldResemble, r3.Vector{X: 1, Y: 2, Z: 3})
}

func TestRotationTranspose(t *testing.T) {
	rm := NewRotationFromRPY(0.3, -0.4, 0.5)
	eye := rm.Mul(rm.Transpose())
	test.That(t, PoseAlmostEqual(NewPose(eye, r3.Vector{}), NewZeroPose(), 1e-12), test.ShouldBeTrue)
}

func TestRotationFromRPY(t *testing.T) {
	// pure yaw equals a rotation about Z
	rm := NewRotationFromRPY(0, 0, math.Pi/3)
	want := NewRotationFromAxisAngle(r3.Vector{Z: 1}, math.Pi/3)
	test.That(t, PoseAlmostEqual(NewPose(rm, r3.Vector{}), NewPose(want, r3.Vector{}), 1e-12), test.ShouldBeTrue)
}

func TestCompose(t *testing.T) {
	// translate then rotate: the second translation happens in the rotated frame
	a := NewPose(NewRotationFromAxisAngle(r3.Vector{Z: 1}, math.Pi/2), r3.Vector{X: 1})
	b := NewPoseFromPoint(r3.Vector{X: 1})
	got := Compose(a, b).Point()
	test.That(t, got.X, test.ShouldAlmostEqual, 1, 1e-12)
	test.That(t, got.Y, test.ShouldAlmostEqual, 1, 1e-12)

	// composing with the identity changes nothing
	test.That(t, PoseAlmostEqual(Compose(a, NewZeroPose()), a, 1e-12), test.ShouldBeTrue)
}

func TestSegmentDistanceToSegment(t *testing.T) {
	cases := []struct {
		name                   string
		ap1, ap2, bp1, bp2     r3.Vector
		expected               float64
	}{
		{
			"parallel",
			r3.Vector{}, r3.Vector{X: 1},
			r3.Vector{Y: 2}, r3.Vector{X: 1, Y: 2},
			2,
		},
		{
			"crossing",
			r3.Vector{X: -1}, r3.Vector{X: 1},
			r3.Vector{Y: -1, Z: 0.5}, r3.Vector{Y: 1, Z: 0.5},
			0.5,
		},
		{
			"endpoint to endpoint",
			r3.Vector{}, r3.Vector{X: 1},
			r3.Vector{X: 2}, r3.Vector{X: 3},
			1,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			d := SegmentDistanceToSegment(c.ap1, c.ap2, c.bp1, c.bp2)
			test.That(t, d, test.ShouldAlmostEqual, c.expected, 1e-12)
		})
	}
}
