// Package spatialmath defines the rigid-body geometry used for self-collision
// checking: rotation matrices, poses, and oriented bounding boxes.
package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
)

// floatEpsilon is the tolerance below which floats are treated as equal.
const floatEpsilon = 1e-10

// RotationMatrix is a 3x3 rotation matrix stored in row-major order.
type RotationMatrix struct {
	mat [9]float64
}

// NewRotationMatrix creates a rotation matrix from a row-major slice of 9 values.
func NewRotationMatrix(m [9]float64) *RotationMatrix {
	return &RotationMatrix{m}
}

// NewZeroRotation returns the identity rotation.
func NewZeroRotation() *RotationMatrix {
	return &RotationMatrix{[9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}}
}

// NewRotationFromAxisAngle builds the rotation of theta radians about the given axis
// using the Rodrigues formula. A zero axis yields the identity.
func NewRotationFromAxisAngle(axis r3.Vector, theta float64) *RotationMatrix {
	n := axis.Norm()
	if n < floatEpsilon {
		return NewZeroRotation()
	}
	u := axis.Mul(1. / n)
	c := math.Cos(theta)
	s := math.Sin(theta)
	t := 1 - c
	return &RotationMatrix{[9]float64{
		c + u.X*u.X*t, u.X*u.Y*t - u.Z*s, u.X*u.Z*t + u.Y*s,
		u.Y*u.X*t + u.Z*s, c + u.Y*u.Y*t, u.Y*u.Z*t - u.X*s,
		u.Z*u.X*t - u.Y*s, u.Z*u.Y*t + u.X*s, c + u.Z*u.Z*t,
	}}
}

// NewRotationFromRPY builds a rotation from URDF-convention fixed-axis
// roll/pitch/yaw angles, i.e. Rz(yaw) * Ry(pitch) * Rx(roll).
func NewRotationFromRPY(roll, pitch, yaw float64) *RotationMatrix {
	rz := NewRotationFromAxisAngle(r3.Vector{Z: 1}, yaw)
	ry := NewRotationFromAxisAngle(r3.Vector{Y: 1}, pitch)
	rx := NewRotationFromAxisAngle(r3.Vector{X: 1}, roll)
	return rz.Mul(ry).Mul(rx)
}

// At returns the matrix entry at row i, column j.
func (rm *RotationMatrix) At(i, j int) float64 {
	return rm.mat[3*i+j]
}

// Row returns the ith row of the matrix as a vector.
func (rm *RotationMatrix) Row(i int) r3.Vector {
	return r3.Vector{X: rm.mat[3*i], Y: rm.mat[3*i+1], Z: rm.mat[3*i+2]}
}

// Mul returns the matrix product rm * other.
func (rm *RotationMatrix) Mul(other *RotationMatrix) *RotationMatrix {
	var out [9]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			sum := 0.
			for k := 0; k < 3; k++ {
				sum += rm.mat[3*i+k] * other.mat[3*k+j]
			}
			out[3*i+j] = sum
		}
	}
	return &RotationMatrix{out}
}

// MulVec rotates the given vector.
func (rm *RotationMatrix) MulVec(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: rm.mat[0]*v.X + rm.mat[1]*v.Y + rm.mat[2]*v.Z,
		Y: rm.mat[3]*v.X + rm.mat[4]*v.Y + rm.mat[5]*v.Z,
		Z: rm.mat[6]*v.X + rm.mat[7]*v.Y + rm.mat[8]*v.Z,
	}
}

// Transpose returns the transposed (inverse) rotation.
func (rm *RotationMatrix) Transpose() *RotationMatrix {
	m := rm.mat
	return &RotationMatrix{[9]float64{
		m[0], m[3], m[6],
		m[1], m[4], m[7],
		m[2], m[5], m[8],
	}}
}

// Pose represents a rigid transform: a rotation followed by a translation.
type Pose struct {
	rotation *RotationMatrix
	point    r3.Vector
}

// NewPose creates a pose from a rotation and a translation.
func NewPose(rotation *RotationMatrix, point r3.Vector) Pose {
	if rotation == nil {
		rotation = NewZeroRotation()
	}
	return Pose{rotation, point}
}

// NewPoseFromPoint creates a pose with identity orientation at the given point.
func NewPoseFromPoint(point r3.Vector) Pose {
	return Pose{NewZeroRotation(), point}
}

// NewZeroPose returns the identity pose.
func NewZeroPose() Pose {
	return Pose{NewZeroRotation(), r3.Vector{}}
}

// Point returns the translation component of the pose.
func (p Pose) Point() r3.Vector {
	return p.point
}

// Orientation returns the rotation component of the pose.
func (p Pose) Orientation() *RotationMatrix {
	if p.rotation == nil {
		return NewZeroRotation()
	}
	return p.rotation
}

// Compose returns the pose resulting from applying p first, then q in p's frame.
func Compose(p, q Pose) Pose {
	return Pose{
		rotation: p.Orientation().Mul(q.Orientation()),
		point:    p.point.Add(p.Orientation().MulVec(q.point)),
	}
}

// TransformPoint maps a point from the pose's local frame into the world frame.
func (p Pose) TransformPoint(v r3.Vector) r3.Vector {
	return p.point.Add(p.Orientation().MulVec(v))
}

// PoseAlmostEqual checks that two poses agree to within eps in every matrix
// entry and translation coordinate.
func PoseAlmostEqual(a, b Pose, eps float64) bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(a.Orientation().At(i, j)-b.Orientation().At(i, j)) > eps {
				return false
			}
		}
	}
	d := a.point.Sub(b.point)
	return math.Abs(d.X) <= eps && math.Abs(d.Y) <= eps && math.Abs(d.Z) <= eps
}

// SegmentDistanceToSegment returns the minimum distance between segments [ap1,ap2] and [bp1,bp2].
func SegmentDistanceToSegment(ap1, ap2, bp1, bp2 r3.Vector) float64 {
	bestA, bestB := SegmentClosestPoints(ap1, ap2, bp1, bp2)
	return bestA.Sub(bestB).Norm()
}

// SegmentClosestPoints computes the closest points on two segments.
// Reference: Ericson, Real-Time Collision Detection, closest point of two segments.
func SegmentClosestPoints(ap1, ap2, bp1, bp2 r3.Vector) (r3.Vector, r3.Vector) {
	d1 := ap2.Sub(ap1)
	d2 := bp2.Sub(bp1)
	r := ap1.Sub(bp1)
	a := d1.Norm2()
	e := d2.Norm2()
	f := d2.Dot(r)

	var s, t float64
	switch {
	case a <= floatEpsilon && e <= floatEpsilon:
		return ap1, bp1
	case a <= floatEpsilon:
		t = clamp(f/e, 0, 1)
	default:
		c := d1.Dot(r)
		if e <= floatEpsilon {
			s = clamp(-c/a, 0, 1)
		} else {
			b := d1.Dot(d2)
			denom := a*e - b*b
			if denom > floatEpsilon {
				s = clamp((b*f-c*e)/denom, 0, 1)
			}
			t = (b*s + f) / e
			if t < 0 {
				t = 0
				s = clamp(-c/a, 0, 1)
			} else if t > 1 {
				t = 1
				s = clamp((b-c)/a, 0, 1)
			}
		}
	}
	return ap1.Add(d1.Mul(s)), bp1.Add(d2.Mul(t))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
