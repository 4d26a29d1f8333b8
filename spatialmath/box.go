package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Ordered list of box vertices, as signs on the half sizes.
var boxVertices = [8]r3.Vector{
	{X: 1, Y: 1, Z: 1},
	{X: 1, Y: 1, Z: -1},
	{X: 1, Y: -1, Z: 1},
	{X: 1, Y: -1, Z: -1},
	{X: -1, Y: 1, Z: 1},
	{X: -1, Y: 1, Z: -1},
	{X: -1, Y: -1, Z: 1},
	{X: -1, Y: -1, Z: -1},
}

// The 12 edges of a box, as pairs of vertex indices (vertices differing in exactly one coordinate).
var boxEdgeIndices = [12][2]int{
	{0, 1}, {0, 2}, {0, 4},
	{1, 3}, {1, 5},
	{2, 3}, {2, 6},
	{3, 7},
	{4, 5}, {4, 6},
	{5, 7},
	{6, 7},
}

// Box is an oriented 3D rectangular prism, fully defined by a center pose and half sizes.
type Box struct {
	center          Pose
	halfSize        [3]float64
	boundingSphereR float64
	label           string
}

// NewBox instantiates a new Box. Negative dimensions are not allowed; zero
// dimensions are allowed for degenerate bounding boxes.
func NewBox(pose Pose, dims r3.Vector, label string) (*Box, error) {
	if dims.X < 0 || dims.Y < 0 || dims.Z < 0 {
		return nil, errors.Errorf("box dimensions can not be negative, got %v", dims)
	}
	halfSize := dims.Mul(0.5)
	return &Box{
		center:          pose,
		halfSize:        [3]float64{halfSize.X, halfSize.Y, halfSize.Z},
		boundingSphereR: halfSize.Norm(),
		label:           label,
	}, nil
}

// String returns a human readable string that represents the box.
func (b *Box) String() string {
	return fmt.Sprintf("Type: Box | Position: X:%.3f, Y:%.3f, Z:%.3f | Dims: X:%.3f, Y:%.3f, Z:%.3f",
		b.center.point.X, b.center.point.Y, b.center.point.Z, 2*b.halfSize[0], 2*b.halfSize[1], 2*b.halfSize[2])
}

// Label returns the label of this box.
func (b *Box) Label() string {
	return b.label
}

// Pose returns the pose of the box.
func (b *Box) Pose() Pose {
	return b.center
}

// Dims returns the full (not half) side lengths of the box.
func (b *Box) Dims() r3.Vector {
	return r3.Vector{X: 2 * b.halfSize[0], Y: 2 * b.halfSize[1], Z: 2 * b.halfSize[2]}
}

// Transform premultiplies the box pose with a transform, allowing the box to be moved in space.
func (b *Box) Transform(toPremultiply Pose) *Box {
	return &Box{
		center:          Compose(toPremultiply, b.center),
		halfSize:        b.halfSize,
		boundingSphereR: b.boundingSphereR,
		label:           b.label,
	}
}

// DistanceFrom returns the signed separation between two boxes. A positive
// value is the exact Euclidean distance between the boxes; a non-positive
// value means the boxes overlap and is the largest gap found by the
// separating axis test (an estimate of the negated penetration depth).
func (b *Box) DistanceFrom(other *Box) float64 {
	collides, satGap := boxVsBoxCollision(b, other)
	if collides {
		return satGap
	}
	return boxVsBoxSeparationDist(b, other)
}

// PenetrationDepth performs a contact query between two boxes. If they
// overlap it reports the penetration depth, the minimum translation that
// would separate them, and true. If no contact is found it reports 0 and false.
func (b *Box) PenetrationDepth(other *Box) (float64, bool) {
	centerDist := other.center.point.Sub(b.center.point)
	rmA := b.center.Orientation()
	rmB := other.center.Orientation()

	// Unlike the distance query there is no early exit: every axis must
	// show overlap for the boxes to be in contact.
	maxGap := math.Inf(-1)
	for i := 0; i < 3; i++ {
		for _, axis := range []r3.Vector{rmA.Row(i), rmB.Row(i)} {
			gap := separatingAxisTest(centerDist, axis, b.halfSize, other.halfSize, rmA, rmB)
			if gap > 0 {
				return 0, false
			}
			if gap > maxGap {
				maxGap = gap
			}
		}
		for j := 0; j < 3; j++ {
			cross := rmA.Row(i).Cross(rmB.Row(j))
			if cross.Norm() < floatEpsilon {
				// parallel edges, covered by a face projection
				continue
			}
			gap := separatingAxisTest(centerDist, cross.Normalize(), b.halfSize, other.halfSize, rmA, rmB)
			if gap > 0 {
				return 0, false
			}
			if gap > maxGap {
				maxGap = gap
			}
		}
	}
	return -maxGap, true
}

// closestPoint returns the closest point on the box to the given point.
// Reference: https://github.com/gszauer/GamePhysicsCookbook Geometry3D closest point on OBB.
func (b *Box) closestPoint(pt r3.Vector) r3.Vector {
	result := b.center.point
	direction := pt.Sub(result)
	rm := b.center.Orientation()
	for i := 0; i < 3; i++ {
		axis := rm.Row(i)
		distance := clamp(direction.Dot(axis), -b.halfSize[i], b.halfSize[i])
		result = result.Add(axis.Mul(distance))
	}
	return result
}

// vertices returns the world-frame vertices of the box.
func (b *Box) vertices() []r3.Vector {
	verts := make([]r3.Vector, 0, 8)
	for _, vert := range boxVertices {
		local := r3.Vector{X: vert.X * b.halfSize[0], Y: vert.Y * b.halfSize[1], Z: vert.Z * b.halfSize[2]}
		verts = append(verts, b.center.TransformPoint(local))
	}
	return verts
}

// boxVsBoxCollision returns whether two boxes collide, along with the largest
// separating gap seen before the test concluded. Since the separating axis
// test can exit early on the first separating plane found, a positive
// returned gap is a lower bound on the true distance, not the exact value.
func boxVsBoxCollision(a, b *Box) (bool, float64) {
	centerDist := b.center.point.Sub(a.center.point)

	// bounding sphere check to potentially exit early
	dist := centerDist.Norm() - (a.boundingSphereR + b.boundingSphereR)
	if dist > 0 {
		return false, dist
	}

	rmA := a.center.Orientation()
	rmB := b.center.Orientation()

	maxGap := math.Inf(-1)
	for i := 0; i < 3; i++ {
		dist = separatingAxisTest(centerDist, rmA.Row(i), a.halfSize, b.halfSize, rmA, rmB)
		if dist > 0 {
			return false, dist
		}
		if dist > maxGap {
			maxGap = dist
		}
		dist = separatingAxisTest(centerDist, rmB.Row(i), a.halfSize, b.halfSize, rmA, rmB)
		if dist > 0 {
			return false, dist
		}
		if dist > maxGap {
			maxGap = dist
		}
		for j := 0; j < 3; j++ {
			cross := rmA.Row(i).Cross(rmB.Row(j))
			// if edges are parallel, this check is already accounted for by one of the face projections
			if cross.Norm() < floatEpsilon {
				continue
			}
			dist = separatingAxisTest(centerDist, cross.Normalize(), a.halfSize, b.halfSize, rmA, rmB)
			if dist > 0 {
				return false, dist
			}
			if dist > maxGap {
				maxGap = dist
			}
		}
	}
	return true, maxGap
}

// boxVsBoxSeparationDist computes the exact Euclidean distance between two
// non-colliding boxes by checking all vertex-to-box and edge-to-edge feature pairs.
func boxVsBoxSeparationDist(a, b *Box) float64 {
	vertsA := a.vertices()
	vertsB := b.vertices()

	minDist := math.Inf(1)
	for i := range vertsA {
		if d := vertsA[i].Sub(b.closestPoint(vertsA[i])).Norm(); d < minDist {
			minDist = d
		}
	}
	for i := range vertsB {
		if d := vertsB[i].Sub(a.closestPoint(vertsB[i])).Norm(); d < minDist {
			minDist = d
		}
	}
	for _, ea := range boxEdgeIndices {
		for _, eb := range boxEdgeIndices {
			if d := SegmentDistanceToSegment(vertsA[ea[0]], vertsA[ea[1]], vertsB[eb[0]], vertsB[eb[1]]); d < minDist {
				minDist = d
			}
		}
	}
	return minDist
}

// separatingAxisTest projects two boxes onto the given plane and computes how much
// distance is between them along this plane. Per the separating hyperplane theorem,
// a positive return value proves there is no collision between the boxes.
// references: https://gamedev.stackexchange.com/questions/112883/simple-3d-obb-collision-directx9-c
//
//	https://www.cs.bgu.ac.il/~vgp192/wiki.files/Separating%20Axis%20Theorem%20for%20Oriented%20Bounding%20Boxes.pdf
func separatingAxisTest(positionDelta, plane r3.Vector, halfSizeA, halfSizeB [3]float64, rmA, rmB *RotationMatrix) float64 {
	sum := math.Abs(positionDelta.Dot(plane))
	for i := 0; i < 3; i++ {
		sum -= math.Abs(rmA.Row(i).Mul(halfSizeA[i]).Dot(plane))
		sum -= math.Abs(rmB.Row(i).Mul(halfSizeB[i]).Dot(plane))
	}
	return sum
}
