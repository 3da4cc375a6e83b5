package geom

import (
	"slices"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/taigrr/meshfix/pkg/models"
	"github.com/taigrr/meshfix/pkg/topology"
)

// Components groups faces connected through shared undirected edges. Each
// component lists its face indices in ascending order; components are
// ordered by their first face.
func Components(faces []models.Face) [][]int {
	g := simple.NewUndirectedGraph()
	for i := range faces {
		g.AddNode(simple.Node(i))
	}
	topology.BuildUndirected(faces).Each(func(_ topology.EdgeKey, incident []int) {
		first := incident[0]
		for _, f := range incident[1:] {
			if f != first {
				g.SetEdge(g.NewEdge(simple.Node(first), simple.Node(f)))
			}
		}
	})

	var comps [][]int
	for _, cc := range topo.ConnectedComponents(g) {
		ids := make([]int, len(cc))
		for i, n := range cc {
			ids[i] = int(n.ID())
		}
		slices.Sort(ids)
		comps = append(comps, ids)
	}
	slices.SortFunc(comps, func(a, b []int) int { return a[0] - b[0] })
	return comps
}

// KeepLargestComponents removes every component with fewer than threshold
// faces, then drops vertices left without faces (labels follow the remap).
// It returns the number of components removed.
func KeepLargestComponents(m *models.Mesh, threshold int) int {
	comps := Components(m.Faces)
	drop := make([]bool, len(m.Faces))
	removed := 0
	for _, c := range comps {
		if len(c) >= threshold {
			continue
		}
		removed++
		for _, f := range c {
			drop[f] = true
		}
	}
	if removed == 0 {
		return 0
	}

	kept := m.Faces[:0]
	for i, f := range m.Faces {
		if !drop[i] {
			kept = append(kept, f)
		}
	}
	m.Faces = kept
	m.RemoveUnreferencedVertices()
	return removed
}
