package posture

import (
	"sort"

	"github.com/viam-labs/postureopt/referenceframe"
)

// NeighborSet is the set of links kinematically adjacent to one link, along
// with the joints connecting them.
type NeighborSet struct {
	Links  []string
	Joints []string
}

// AdjacencyGraph records, per link, which other links it can never collide
// with because a joint connects them directly or a chain of fixed joints
// rigidly ties them together. The constraint evaluator uses it to suppress
// physically impossible collision checks.
type AdjacencyGraph struct {
	neighbors map[string]*NeighborSet
	linkSet   map[string]map[string]bool
}

// NewAdjacencyGraph derives the neighbor map from the model. Direct neighbors
// come from every joint's parent/child pair. Links connected through any
// chain of fixed joints form a rigid component: all members of a component
// become mutual neighbors, and any link jointed to one member becomes a
// neighbor of every member.
func NewAdjacencyGraph(model *referenceframe.Model) *AdjacencyGraph {
	g := &AdjacencyGraph{
		neighbors: make(map[string]*NeighborSet),
		linkSet:   make(map[string]map[string]bool),
	}
	for _, name := range model.LinkNames() {
		g.neighbors[name] = &NeighborSet{}
		g.linkSet[name] = make(map[string]bool)
	}

	// direct adjacency, both directions
	for _, joint := range model.Joints() {
		g.add(joint.Parent, joint.Child, joint.Name)
		g.add(joint.Child, joint.Parent, joint.Name)
	}

	// rigid components across chains of fixed joints
	parent := make(map[string]string)
	for _, name := range model.LinkNames() {
		parent[name] = name
	}
	var find func(string) string
	find = func(x string) string {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	for _, joint := range model.Joints() {
		if joint.Type == referenceframe.FixedJoint {
			parent[find(joint.Parent)] = find(joint.Child)
		}
	}
	components := make(map[string][]string)
	for _, name := range model.LinkNames() {
		root := find(name)
		components[root] = append(components[root], name)
	}

	// merge: component members neighbor each other, and every link adjacent
	// to a member neighbors the whole component
	for _, members := range components {
		if len(members) < 2 {
			continue
		}
		sort.Strings(members)
		outside := make(map[string]bool)
		for _, member := range members {
			for _, nb := range g.neighbors[member].Links {
				if find(nb) != find(member) {
					outside[nb] = true
				}
			}
		}
		for _, a := range members {
			for _, b := range members {
				if a != b {
					g.add(a, b, "")
				}
			}
			for nb := range outside {
				g.add(a, nb, "")
				g.add(nb, a, "")
			}
		}
	}
	return g
}

// add records b as a neighbor of a, optionally through the named joint.
func (g *AdjacencyGraph) add(a, b, joint string) {
	if a == b || g.linkSet[a][b] {
		return
	}
	g.linkSet[a][b] = true
	g.neighbors[a].Links = append(g.neighbors[a].Links, b)
	if joint != "" {
		g.neighbors[a].Joints = append(g.neighbors[a].Joints, joint)
	}
}

// Neighbors returns the neighbor set of the named link, or nil for unknown links.
func (g *AdjacencyGraph) Neighbors(link string) *NeighborSet {
	return g.neighbors[link]
}

// AreNeighbors reports whether two links are kinematic neighbors. The
// underlying map is symmetric, so argument order does not matter.
func (g *AdjacencyGraph) AreNeighbors(a, b string) bool {
	return g.linkSet[a][b] || g.linkSet[b][a]
}
