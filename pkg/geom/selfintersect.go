package geom

import (
	"cmp"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/taigrr/meshfix/pkg/models"
)

// Pair is two face indices with A < B.
type Pair struct {
	A, B int
}

// SelfIntersections returns every pair of faces that intersect, sorted.
// Faces sharing an edge are never reported. Faces sharing one corner are
// reported only when an edge opposite the shared corner crosses the other
// face. Faces over the same three vertices are reported. Candidates come
// from a sweep over face bounding boxes along X; the exact tests run on up
// to workers goroutines (0 means GOMAXPROCS).
func SelfIntersections(vertices []r3.Vec, faces []models.Face, workers int) []Pair {
	if len(faces) < 2 {
		return nil
	}
	tris := make([]Triangle, len(faces))
	boxes := make([]r3.Box, len(faces))
	for i, f := range faces {
		tris[i] = Triangle{vertices[f[0]], vertices[f[1]], vertices[f[2]]}
		boxes[i] = tris[i].Bounds()
	}

	candidates := sweepAndPrune(boxes)
	if len(candidates) == 0 {
		return nil
	}

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	chunks := min(workers*4, len(candidates))
	size := (len(candidates) + chunks - 1) / chunks
	found := make([][]Pair, chunks)

	var g errgroup.Group
	g.SetLimit(workers)
	for c := range chunks {
		lo := c * size
		hi := min(lo+size, len(candidates))
		if lo >= hi {
			continue
		}
		g.Go(func() error {
			for _, p := range candidates[lo:hi] {
				if facesIntersect(faces[p.A], faces[p.B], tris[p.A], tris[p.B]) {
					found[c] = append(found[c], p)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	pairs := slices.Concat(found...)
	slices.SortFunc(pairs, func(x, y Pair) int {
		if c := cmp.Compare(x.A, y.A); c != 0 {
			return c
		}
		return cmp.Compare(x.B, y.B)
	})
	return pairs
}

// sweepAndPrune returns the face pairs whose boxes overlap on all axes.
func sweepAndPrune(boxes []r3.Box) []Pair {
	order := make([]int, len(boxes))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(i, j int) int {
		return cmp.Compare(boxes[i].Min.X, boxes[j].Min.X)
	})

	var pairs []Pair
	for oi, i := range order {
		bi := boxes[i]
		for _, j := range order[oi+1:] {
			bj := boxes[j]
			if bj.Min.X > bi.Max.X {
				break
			}
			if bj.Min.Y > bi.Max.Y || bi.Min.Y > bj.Max.Y || bj.Min.Z > bi.Max.Z || bi.Min.Z > bj.Max.Z {
				continue
			}
			pairs = append(pairs, Pair{A: min(i, j), B: max(i, j)})
		}
	}
	return pairs
}

// facesIntersect applies the shared-corner rules before the exact test.
func facesIntersect(fa, fb models.Face, ta, tb Triangle) bool {
	if degenerate(fa) || degenerate(fb) {
		return false
	}
	shared := 0
	var ia, ib int // corner positions of the last shared vertex
	for i, v := range fa {
		for j, w := range fb {
			if v == w {
				shared++
				ia, ib = i, j
			}
		}
	}
	switch shared {
	case 0:
		return TrianglesIntersect(ta, tb)
	case 1:
		return SegmentCrossesTriangle(ta[(ia+1)%3], ta[(ia+2)%3], tb) ||
			SegmentCrossesTriangle(tb[(ib+1)%3], tb[(ib+2)%3], ta)
	case 2:
		return false
	}
	return true
}

func degenerate(f models.Face) bool {
	return f[0] == f[1] || f[1] == f[2] || f[0] == f[2]
}
