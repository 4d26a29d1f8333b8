package referenceframe

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/viam-labs/postureopt/spatialmath"
)

// defaultBoundingMargin is the half extent used for links without collision geometry.
const defaultBoundingMargin = 0.05

// Limit represents the lower and upper bounds of a movable joint.
type Limit struct {
	Min, Max float64
}

// CollisionGeometry is one collision primitive of a link, reduced to a
// local-frame box that conservatively encloses it.
type CollisionGeometry struct {
	Offset      spatialmath.Pose
	HalfExtents r3.Vector
}

// Link is a rigid body of the kinematic structure.
type Link struct {
	Name         string
	Mass         float64
	CenterOfMass r3.Vector
	Collisions   []CollisionGeometry
}

// BoundingBox returns the axis-aligned bounding box of the link in its local
// frame, enclosing every collision geometry and the center of mass. Links
// without collision geometry fall back to a margin box around the center of mass.
func (l *Link) BoundingBox() (r3.Vector, r3.Vector) {
	if len(l.Collisions) == 0 {
		margin := r3.Vector{X: defaultBoundingMargin, Y: defaultBoundingMargin, Z: defaultBoundingMargin}
		return l.CenterOfMass.Sub(margin), l.CenterOfMass.Add(margin)
	}
	bbMin := r3.Vector{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	bbMax := r3.Vector{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	for _, geom := range l.Collisions {
		// enclose the 8 corners of the (possibly rotated) primitive box
		for dx := -1.; dx <= 1; dx += 2 {
			for dy := -1.; dy <= 1; dy += 2 {
				for dz := -1.; dz <= 1; dz += 2 {
					corner := geom.Offset.TransformPoint(r3.Vector{
						X: dx * geom.HalfExtents.X,
						Y: dy * geom.HalfExtents.Y,
						Z: dz * geom.HalfExtents.Z,
					})
					bbMin = vecMin(bbMin, corner)
					bbMax = vecMax(bbMax, corner)
				}
			}
		}
	}
	bbMin = vecMin(bbMin, l.CenterOfMass)
	bbMax = vecMax(bbMax, l.CenterOfMass)
	return bbMin, bbMax
}

// Joint connects a parent link to a child link. In URDF convention the child
// link frame coincides with the joint frame.
type Joint struct {
	Name   string
	Type   string
	Parent string
	Child  string
	Origin spatialmath.Pose
	Axis   r3.Vector
	Limit  Limit
}

// Movable reports whether the joint contributes a degree of freedom.
func (j *Joint) Movable() bool {
	return j.Type != FixedJoint
}

// Model is an immutable kinematic model: ordered links and joints, joint
// limits, and pure forward kinematics.
type Model struct {
	name         string
	links        []*Link
	joints       []*Joint
	movable      []*Joint
	linkIndex    map[string]int
	parentJoint  map[string]*Joint // keyed by child link name
	jointToIndex map[string]int    // movable joint name to DoF index
	descendants  [][]bool          // [dof index][link index]: link moves with this joint
}

// NewModel assembles a model from parsed links and joints, validating that
// every joint references known links and that the structure is a rooted tree.
func NewModel(name string, links []*Link, joints []*Joint) (*Model, error) {
	if len(links) == 0 {
		return nil, ErrNoModelInformation
	}
	m := &Model{
		name:         name,
		links:        links,
		joints:       joints,
		linkIndex:    make(map[string]int, len(links)),
		parentJoint:  make(map[string]*Joint, len(joints)),
		jointToIndex: make(map[string]int),
	}
	for i, link := range links {
		if _, ok := m.linkIndex[link.Name]; ok {
			return nil, errors.Errorf("duplicate link name %q", link.Name)
		}
		m.linkIndex[link.Name] = i
	}
	for _, joint := range joints {
		if _, ok := m.linkIndex[joint.Parent]; !ok {
			return nil, errors.Errorf("joint %q references unknown parent link %q", joint.Name, joint.Parent)
		}
		if _, ok := m.linkIndex[joint.Child]; !ok {
			return nil, errors.Errorf("joint %q references unknown child link %q", joint.Name, joint.Child)
		}
		if _, ok := m.parentJoint[joint.Child]; ok {
			return nil, errors.Errorf("link %q has more than one parent joint", joint.Child)
		}
		m.parentJoint[joint.Child] = joint
		if joint.Movable() {
			m.jointToIndex[joint.Name] = len(m.movable)
			m.movable = append(m.movable, joint)
		}
	}

	m.descendants = make([][]bool, len(m.movable))
	for d, joint := range m.movable {
		m.descendants[d] = make([]bool, len(links))
		for i, link := range links {
			moves, err := m.movesWith(link.Name, joint)
			if err != nil {
				return nil, err
			}
			m.descendants[d][i] = moves
		}
	}
	return m, nil
}

// movesWith walks from the link to the root and reports whether the given joint is crossed.
func (m *Model) movesWith(linkName string, joint *Joint) (bool, error) {
	for depth := 0; depth <= len(m.links); depth++ {
		parent, ok := m.parentJoint[linkName]
		if !ok {
			return false, nil
		}
		if parent == joint {
			return true, nil
		}
		linkName = parent.Parent
	}
	return false, errors.Errorf("kinematic loop detected at link %q", linkName)
}

// Name returns the name of the model.
func (m *Model) Name() string {
	return m.name
}

// NumLinks returns the number of links in the model.
func (m *Model) NumLinks() int {
	return len(m.links)
}

// Links returns the ordered links of the model.
func (m *Model) Links() []*Link {
	return m.links
}

// Link returns the link at the given index.
func (m *Model) Link(i int) *Link {
	return m.links[i]
}

// LinkNames returns the ordered link names.
func (m *Model) LinkNames() []string {
	names := make([]string, 0, len(m.links))
	for _, link := range m.links {
		names = append(names, link.Name)
	}
	return names
}

// LinkIndex returns the index of the named link, or -1 if absent.
func (m *Model) LinkIndex(name string) int {
	if i, ok := m.linkIndex[name]; ok {
		return i
	}
	return -1
}

// Joints returns all joints of the model, fixed joints included.
func (m *Model) Joints() []*Joint {
	return m.joints
}

// JointNames returns the ordered names of the movable joints.
func (m *Model) JointNames() []string {
	names := make([]string, 0, len(m.movable))
	for _, joint := range m.movable {
		names = append(names, joint.Name)
	}
	return names
}

// DoF returns the limits of the movable joints, in order.
func (m *Model) DoF() []Limit {
	limits := make([]Limit, 0, len(m.movable))
	for _, joint := range m.movable {
		limits = append(limits, joint.Limit)
	}
	return limits
}

// JointLimits returns the limit of every movable joint keyed by joint name.
func (m *Model) JointLimits() map[string]Limit {
	limits := make(map[string]Limit, len(m.movable))
	for _, joint := range m.movable {
		limits[joint.Name] = joint.Limit
	}
	return limits
}

// MovesWithJoint reports whether the link at linkIdx is distal to the movable
// joint at dofIdx, i.e. whether it moves when that joint moves.
func (m *Model) MovesWithJoint(dofIdx, linkIdx int) bool {
	return m.descendants[dofIdx][linkIdx]
}

// LinkPoses computes the world pose of every link for the given joint angles.
// It is a pure function of its inputs; no model state is mutated, so callers
// may hold poses from different configurations at once.
func (m *Model) LinkPoses(q []float64) ([]spatialmath.Pose, error) {
	if len(q) != len(m.movable) {
		return nil, errors.Errorf("wanted %d joint angles, got %d", len(m.movable), len(q))
	}
	poses := make([]spatialmath.Pose, len(m.links))
	computed := make([]bool, len(m.links))
	for i := range m.links {
		if _, err := m.linkPose(i, q, poses, computed); err != nil {
			return nil, err
		}
	}
	return poses, nil
}

// linkPose recursively resolves the world pose of one link, memoizing results.
func (m *Model) linkPose(i int, q []float64, poses []spatialmath.Pose, computed []bool) (spatialmath.Pose, error) {
	if computed[i] {
		return poses[i], nil
	}
	joint, ok := m.parentJoint[m.links[i].Name]
	if !ok {
		// root link sits at the world origin
		poses[i] = spatialmath.NewZeroPose()
		computed[i] = true
		return poses[i], nil
	}
	parentPose, err := m.linkPose(m.linkIndex[joint.Parent], q, poses, computed)
	if err != nil {
		return spatialmath.Pose{}, err
	}
	pose := spatialmath.Compose(parentPose, joint.Origin)
	if joint.Movable() {
		angle := q[m.jointToIndex[joint.Name]]
		switch joint.Type {
		case PrismaticJoint:
			pose = spatialmath.Compose(pose, spatialmath.NewPoseFromPoint(joint.Axis.Mul(angle)))
		default:
			pose = spatialmath.Compose(pose, spatialmath.NewPose(
				spatialmath.NewRotationFromAxisAngle(joint.Axis, angle), r3.Vector{}))
		}
	}
	poses[i] = pose
	computed[i] = true
	return pose, nil
}

func vecMin(a, b r3.Vector) r3.Vector {
	return r3.Vector{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y), Z: math.Min(a.Z, b.Z)}
}

func vecMax(a, b r3.Vector) r3.Vector {
	return r3.Vector{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y), Z: math.Max(a.Z, b.Z)}
}
