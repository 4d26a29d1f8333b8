package posture

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/viam-labs/postureopt/referenceframe"
	"github.com/viam-labs/postureopt/spatialmath"
)

// testChainModel is l0 -(rev)- l1 -(fix)- l2 -(fix)- l3, with l4 hanging off
// l1 by another revolute joint. l1, l2, l3 form one rigid component.
func testChainModel(t *testing.T) *referenceframe.Model {
	t.Helper()
	links := []*referenceframe.Link{
		{Name: "l0"}, {Name: "l1"}, {Name: "l2"}, {Name: "l3"}, {Name: "l4"},
	}
	limit := referenceframe.Limit{Min: -math.Pi, Max: math.Pi}
	origin := spatialmath.NewPoseFromPoint(r3.Vector{X: 0.2})
	joints := []*referenceframe.Joint{
		{Name: "j0", Type: referenceframe.RevoluteJoint, Parent: "l0", Child: "l1", Origin: origin, Axis: r3.Vector{Z: 1}, Limit: limit},
		{Name: "f1", Type: referenceframe.FixedJoint, Parent: "l1", Child: "l2", Origin: origin},
		{Name: "f2", Type: referenceframe.FixedJoint, Parent: "l2", Child: "l3", Origin: origin},
		{Name: "j1", Type: referenceframe.RevoluteJoint, Parent: "l1", Child: "l4", Origin: origin, Axis: r3.Vector{Z: 1}, Limit: limit},
	}
	m, err := referenceframe.NewModel("chain", links, joints)
	test.That(t, err, test.ShouldBeNil)
	return m
}

func TestDirectNeighbors(t *testing.T) {
	g := NewAdjacencyGraph(testChainModel(t))
	test.That(t, g.AreNeighbors("l0", "l1"), test.ShouldBeTrue)
	test.That(t, g.AreNeighbors("l1", "l0"), test.ShouldBeTrue)
	test.That(t, g.AreNeighbors("l1", "l4"), test.ShouldBeTrue)
	test.That(t, g.AreNeighbors("l0", "l4"), test.ShouldBeFalse)

	nb := g.Neighbors("l0")
	test.That(t, nb, test.ShouldNotBeNil)
	test.That(t, nb.Joints, test.ShouldContain, "j0")
}

func TestFixedJointClosure(t *testing.T) {
	g := NewAdjacencyGraph(testChainModel(t))

	// one hop across a fixed joint
	test.That(t, g.AreNeighbors("l1", "l2"), test.ShouldBeTrue)
	// two hops: the whole rigid component is merged
	test.That(t, g.AreNeighbors("l1", "l3"), test.ShouldBeTrue)

	// links jointed to any member of the component neighbor every member
	test.That(t, g.AreNeighbors("l0", "l2"), test.ShouldBeTrue)
	test.That(t, g.AreNeighbors("l0", "l3"), test.ShouldBeTrue)
	test.That(t, g.AreNeighbors("l4", "l3"), test.ShouldBeTrue)
}

func TestNeighborMapIsSymmetric(t *testing.T) {
	m := testChainModel(t)
	g := NewAdjacencyGraph(m)
	for _, a := range m.LinkNames() {
		for _, b := range g.Neighbors(a).Links {
			test.That(t, g.AreNeighbors(b, a), test.ShouldBeTrue)
		}
	}
}

func TestUnknownLinkHasNoNeighbors(t *testing.T) {
	g := NewAdjacencyGraph(testChainModel(t))
	test.That(t, g.Neighbors("nope"), test.ShouldBeNil)
	test.That(t, g.AreNeighbors("nope", "l0"), test.ShouldBeFalse)
}
