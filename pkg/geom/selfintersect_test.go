package geom

import (
	"slices"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/taigrr/meshfix/pkg/models"
)

// tetMesh returns a closed tetrahedron with its corner at o and edge length s.
func tetMesh(o r3.Vec, s float64) ([]r3.Vec, []models.Face) {
	vs := []r3.Vec{
		o,
		r3.Add(o, v(s, 0, 0)),
		r3.Add(o, v(0, s, 0)),
		r3.Add(o, v(0, 0, s)),
	}
	return vs, []models.Face{{0, 2, 1}, {0, 1, 3}, {1, 2, 3}, {0, 3, 2}}
}

// join concatenates two soups, shifting the second one's indices.
func join(va []r3.Vec, fa []models.Face, vb []r3.Vec, fb []models.Face) ([]r3.Vec, []models.Face) {
	vs := append(slices.Clone(va), vb...)
	fs := slices.Clone(fa)
	for _, f := range fb {
		fs = append(fs, models.Face{f[0] + len(va), f[1] + len(va), f[2] + len(va)})
	}
	return vs, fs
}

func TestSelfIntersectionsClean(t *testing.T) {
	vs, fs := tetMesh(v(0, 0, 0), 1)
	if got := SelfIntersections(vs, fs, 0); len(got) != 0 {
		t.Errorf("SelfIntersections(tetrahedron) = %v, want none", got)
	}

	// Two disjoint tetrahedra.
	vb, fb := tetMesh(v(5, 5, 5), 1)
	vs, fs = join(vs, fs, vb, fb)
	if got := SelfIntersections(vs, fs, 2); len(got) != 0 {
		t.Errorf("SelfIntersections(disjoint) = %v, want none", got)
	}
}

func TestSelfIntersectionsOverlapping(t *testing.T) {
	va, fa := tetMesh(v(0, 0, 0), 1)
	vb, fb := tetMesh(v(0.2, 0.2, 0.2), 1)
	vs, fs := join(va, fa, vb, fb)

	got := SelfIntersections(vs, fs, 3)
	if len(got) == 0 {
		t.Fatal("SelfIntersections(overlapping) found nothing")
	}
	for _, p := range got {
		if p.A >= p.B {
			t.Errorf("pair %v not ordered", p)
		}
		// Each pair must mix the two tetrahedra.
		if (p.A < 4) == (p.B < 4) {
			t.Errorf("pair %v lies within one tetrahedron", p)
		}
	}
	if !slices.IsSortedFunc(got, func(x, y Pair) int {
		if x.A != y.A {
			return x.A - y.A
		}
		return x.B - y.B
	}) {
		t.Errorf("pairs not sorted: %v", got)
	}

	// Worker count does not change the result.
	if again := SelfIntersections(vs, fs, 1); !slices.Equal(again, got) {
		t.Errorf("single worker = %v, want %v", again, got)
	}
}

func TestSelfIntersectionsSharedVertex(t *testing.T) {
	// Two triangles sharing vertex 0. In the first case the far edge of the
	// second triangle passes through the first.
	vs := []r3.Vec{
		v(0, 0, 0), v(2, 0, 0), v(0, 2, 0),
		v(0.5, 0.5, -1), v(0.5, 0.5, 1),
	}
	crossing := []models.Face{{0, 1, 2}, {0, 3, 4}}
	if got := SelfIntersections(vs, crossing, 1); !slices.Equal(got, []Pair{{0, 1}}) {
		t.Errorf("crossing fan = %v, want [{0 1}]", got)
	}

	vs[3] = v(-1, -1, -1)
	vs[4] = v(-1, -1, 1)
	if got := SelfIntersections(vs, crossing, 1); len(got) != 0 {
		t.Errorf("touching fan = %v, want none", got)
	}
}

func TestSelfIntersectionsSharedEdgeAndDuplicates(t *testing.T) {
	vs := []r3.Vec{v(0, 0, 0), v(1, 0, 0), v(0, 1, 0), v(0.2, 0.2, 0)}
	// Coplanar faces on a shared edge overlap but are not reported.
	shared := []models.Face{{0, 1, 2}, {1, 0, 3}}
	if got := SelfIntersections(vs, shared, 1); len(got) != 0 {
		t.Errorf("shared edge = %v, want none", got)
	}

	dup := []models.Face{{0, 1, 2}, {2, 1, 0}}
	if got := SelfIntersections(vs, dup, 1); !slices.Equal(got, []Pair{{0, 1}}) {
		t.Errorf("duplicate = %v, want [{0 1}]", got)
	}
}

func TestSweepAndPrune(t *testing.T) {
	boxes := []r3.Box{
		{Min: v(0, 0, 0), Max: v(1, 1, 1)},
		{Min: v(5, 0, 0), Max: v(6, 1, 1)},
		{Min: v(0.5, 0.5, 0.5), Max: v(2, 2, 2)},
		{Min: v(0.5, 3, 0), Max: v(1, 4, 1)},
	}
	got := sweepAndPrune(boxes)
	if !slices.Equal(got, []Pair{{0, 2}}) {
		t.Errorf("sweepAndPrune() = %v, want [{0 2}]", got)
	}
}
