package geom

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/taigrr/meshfix/pkg/models"
	"github.com/taigrr/meshfix/pkg/topology"
)

// BoundaryLoops returns the closed vertex cycles formed by border edges,
// undirected edges with exactly one face. A border side a->b of a face
// contributes the hole half-edge b->a, so each loop runs opposite to the
// faces around it and a patch triangulated in loop order matches their
// winding. Loops are found in face order; chains that do not close are
// dropped.
func BoundaryLoops(faces []models.Face) [][]int {
	ix := topology.BuildUndirected(faces)

	type halfEdge struct{ from, to int }
	var order []halfEdge
	next := make(map[int][]int)
	for _, f := range faces {
		for s := 0; s < 3; s++ {
			a, b := f.Edge(s)
			if a == b || len(ix.Faces(topology.Undirected(a, b))) != 1 {
				continue
			}
			order = append(order, halfEdge{from: b, to: a})
			next[b] = append(next[b], a)
		}
	}

	used := make(map[halfEdge]bool, len(order))
	take := func(from int) (int, bool) {
		for _, to := range next[from] {
			if !used[halfEdge{from, to}] {
				used[halfEdge{from, to}] = true
				return to, true
			}
		}
		return 0, false
	}

	var loops [][]int
	for _, he := range order {
		if used[he] {
			continue
		}
		used[he] = true
		loop := []int{he.from}
		cur := he.to
		closed := false
		for steps := 0; steps <= len(order); steps++ {
			if cur == loop[0] {
				closed = true
				break
			}
			loop = append(loop, cur)
			nxt, ok := take(cur)
			if !ok {
				break
			}
			cur = nxt
		}
		if closed && len(loop) >= 3 {
			loops = append(loops, loop)
		}
	}
	return loops
}

// LoopBounds returns the bounding box of the loop's vertices.
func LoopBounds(vertices []r3.Vec, loop []int) r3.Box {
	pts := make([]r3.Vec, len(loop))
	for i, v := range loop {
		pts[i] = vertices[v]
	}
	return models.BoundsOf(pts)
}

// IsSmallHole reports whether a loop has at most maxEdges edges and a
// bounding-box diagonal of at most maxDiameter.
func IsSmallHole(vertices []r3.Vec, loop []int, maxEdges int, maxDiameter float64) bool {
	if len(loop) > maxEdges {
		return false
	}
	b := LoopBounds(vertices, loop)
	return r3.Norm(r3.Sub(b.Max, b.Min)) <= maxDiameter
}
