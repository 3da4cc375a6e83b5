// Package topology finds and removes non-manifold edges and vertices from a
// triangle soup. Everything here works on plain face arrays and rebuilds its
// adjacency from scratch on every call.
package topology

import "github.com/taigrr/meshfix/pkg/models"

// EdgeKey is a pair of vertex indices. Keys built by Undirected have A <= B.
type EdgeKey struct {
	A, B int
}

// Undirected returns the key of the unordered edge {a, b}.
func Undirected(a, b int) EdgeKey {
	if a > b {
		a, b = b, a
	}
	return EdgeKey{A: a, B: b}
}

// EdgeIndex maps edges to the faces that use them. Face lists are in face
// order and keep duplicates: a face that uses the same edge twice appears
// twice, since multiplicity is what the repair passes look at.
type EdgeIndex struct {
	faces map[EdgeKey][]int
	keys  []EdgeKey // first-seen order
}

func newEdgeIndex(faceCount int) *EdgeIndex {
	return &EdgeIndex{
		faces: make(map[EdgeKey][]int, faceCount*3/2),
		keys:  make([]EdgeKey, 0, faceCount*3/2),
	}
}

func (ix *EdgeIndex) add(k EdgeKey, face int) {
	list, ok := ix.faces[k]
	if !ok {
		ix.keys = append(ix.keys, k)
	}
	ix.faces[k] = append(list, face)
}

// BuildUndirected indexes every side of every face by its unordered vertex pair.
func BuildUndirected(faces []models.Face) *EdgeIndex {
	ix := newEdgeIndex(len(faces))
	for i, f := range faces {
		for s := 0; s < 3; s++ {
			a, b := f.Edge(s)
			ix.add(Undirected(a, b), i)
		}
	}
	return ix
}

// BuildDirected indexes every side of every face by its ordered vertex pair
// in winding order.
func BuildDirected(faces []models.Face) *EdgeIndex {
	ix := newEdgeIndex(len(faces))
	for i, f := range faces {
		for s := 0; s < 3; s++ {
			a, b := f.Edge(s)
			ix.add(EdgeKey{A: a, B: b}, i)
		}
	}
	return ix
}

// Faces returns the faces incident to k. The slice must not be modified.
func (ix *EdgeIndex) Faces(k EdgeKey) []int {
	return ix.faces[k]
}

// Len returns the number of distinct edges.
func (ix *EdgeIndex) Len() int {
	return len(ix.keys)
}

// Each calls fn for every edge in first-seen order.
func (ix *EdgeIndex) Each(fn func(k EdgeKey, faces []int)) {
	for _, k := range ix.keys {
		fn(k, ix.faces[k])
	}
}
