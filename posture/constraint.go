package posture

import (
	"encoding/binary"
	"math"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/viam-labs/postureopt/referenceframe"
	"github.com/viam-labs/postureopt/spatialmath"
)

// clearPairValue is the trivially-feasible constraint value reported for link
// pairs that are ignored or can not physically collide. Joint range limits
// already keep kinematic neighbors apart, so no geometry is computed for them.
const clearPairValue = 10.0

// CollisionEvaluator computes, for one posture and one link pair, a signed
// clearance value: positive separation distance, or a negative value whose
// magnitude is the penetration depth when the links' bounding boxes overlap.
type CollisionEvaluator struct {
	model     *referenceframe.Model
	adjacency *AdjacencyGraph
	logger    golog.Logger

	// localBoxes[i] is link i's bounding box in its local frame, its pose
	// carrying the box-center offset from the link origin.
	localBoxes []*spatialmath.Box

	ignoreLinks map[string]bool
	ignorePairs map[pairKey]bool

	// last-configuration pose memo; safe because evaluations are sequential
	lastKey   string
	lastPoses []spatialmath.Pose
}

type pairKey struct {
	a, b string
}

// newPairKey normalizes a link pair so either order matches.
func newPairKey(a, b string) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a, b}
}

// NewCollisionEvaluator precomputes per-link bounding boxes and ignore sets.
func NewCollisionEvaluator(
	model *referenceframe.Model,
	adjacency *AdjacencyGraph,
	cfg *Config,
	logger golog.Logger,
) (*CollisionEvaluator, error) {
	e := &CollisionEvaluator{
		model:       model,
		adjacency:   adjacency,
		logger:      logger,
		localBoxes:  make([]*spatialmath.Box, model.NumLinks()),
		ignoreLinks: make(map[string]bool, len(cfg.IgnoreLinks)),
		ignorePairs: make(map[pairKey]bool, len(cfg.IgnorePairs)),
	}
	for _, name := range cfg.IgnoreLinks {
		e.ignoreLinks[name] = true
	}
	for _, pair := range cfg.IgnorePairs {
		e.ignorePairs[newPairKey(pair[0], pair[1])] = true
	}
	for i, link := range model.Links() {
		bbMin, bbMax := link.BoundingBox()
		center := bbMin.Add(bbMax).Mul(0.5)
		box, err := spatialmath.NewBox(spatialmath.NewPoseFromPoint(center), bbMax.Sub(bbMin), link.Name)
		if err != nil {
			return nil, errors.Wrapf(err, "bounding box of link %q", link.Name)
		}
		e.localBoxes[i] = box
	}
	return e, nil
}

// LinkDistance evaluates the clearance constraint for the links at indices l0
// and l1 (l0 != l1) with the robot held at joint angles q.
func (e *CollisionEvaluator) LinkDistance(q []float64, l0, l1 int) (float64, error) {
	if l0 == l1 {
		return 0, errors.Errorf("link can not be checked against itself, got index %d twice", l0)
	}
	name0 := e.model.Link(l0).Name
	name1 := e.model.Link(l1).Name

	if e.ignoreLinks[name0] || e.ignoreLinks[name1] {
		return clearPairValue, nil
	}
	if e.ignorePairs[newPairKey(name0, name1)] {
		return clearPairValue, nil
	}
	if e.adjacency.AreNeighbors(name0, name1) {
		return clearPairValue, nil
	}

	poses, err := e.linkPoses(q)
	if err != nil {
		return 0, err
	}
	box0 := e.localBoxes[l0].Transform(poses[l0])
	box1 := e.localBoxes[l1].Transform(poses[l1])

	distance := box0.DistanceFrom(box1)
	if distance < 0 {
		e.logger.Infof("collision of %s and %s", name0, name1)

		// refine the violation with a contact query so the optimizer knows
		// how deep the overlap is; sometimes no contact is found, in which
		// case the raw negative distance stands
		if depth, ok := box0.PenetrationDepth(box1); ok {
			distance = -depth
		}
	}
	return distance, nil
}

// linkPoses computes world link poses for q, reusing the previous result when
// the configuration is unchanged.
func (e *CollisionEvaluator) linkPoses(q []float64) ([]spatialmath.Pose, error) {
	key := floatsToKey(q)
	if e.lastPoses != nil && key == e.lastKey {
		return e.lastPoses, nil
	}
	poses, err := e.model.LinkPoses(q)
	if err != nil {
		return nil, err
	}
	e.lastKey = key
	e.lastPoses = poses
	return poses, nil
}

// WorldBox returns the bounding box of link l posed at joint angles q.
// Exposed for diagnostics and tests.
func (e *CollisionEvaluator) WorldBox(q []float64, l int) (*spatialmath.Box, error) {
	poses, err := e.linkPoses(q)
	if err != nil {
		return nil, err
	}
	return e.localBoxes[l].Transform(poses[l]), nil
}

// floatsToKey turns a float slice into a compact map/compare key.
// This is very fast, about 100ns per call.
func floatsToKey(values []float64) string {
	b := make([]byte, len(values)*8)
	for i, v := range values {
		binary.BigEndian.PutUint64(b[8*i:8*i+8], math.Float64bits(v))
	}
	return string(b)
}
