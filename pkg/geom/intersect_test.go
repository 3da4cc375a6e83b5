package geom

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func v(x, y, z float64) r3.Vec { return r3.Vec{X: x, Y: y, Z: z} }

func TestTrianglesIntersect(t *testing.T) {
	base := Triangle{v(0, 0, 0), v(2, 0, 0), v(0, 2, 0)}
	tests := []struct {
		name string
		b    Triangle
		want bool
	}{
		{"piercing", Triangle{v(0.5, 0.5, -1), v(0.5, 0.5, 1), v(1.5, 0.2, 1)}, true},
		{"above", Triangle{v(0, 0, 1), v(1, 0, 1), v(0, 1, 2)}, false},
		{"straddles plane outside", Triangle{v(3, 3, -1), v(4, 3, 1), v(3, 4, 1)}, false},
		{"coplanar overlap", Triangle{v(0.5, 0.5, 0), v(3, 0.5, 0), v(0.5, 3, 0)}, true},
		{"coplanar apart", Triangle{v(3, 3, 0), v(4, 3, 0), v(3, 4, 0)}, false},
		{"coplanar contained", Triangle{v(0.2, 0.2, 0), v(0.5, 0.2, 0), v(0.2, 0.5, 0)}, true},
		{"degenerate", Triangle{v(0.5, 0.5, -1), v(0.5, 0.5, 0), v(0.5, 0.5, 1)}, false},
		{"perpendicular crossing edge", Triangle{v(-1, 1, -1), v(3, 1, -1), v(1, 1, 1)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TrianglesIntersect(base, tt.b); got != tt.want {
				t.Errorf("TrianglesIntersect(base, b) = %v, want %v", got, tt.want)
			}
			if got := TrianglesIntersect(tt.b, base); got != tt.want {
				t.Errorf("TrianglesIntersect(b, base) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSegmentCrossesTriangle(t *testing.T) {
	tri := Triangle{v(0, 0, 0), v(2, 0, 0), v(0, 2, 0)}
	tests := []struct {
		name string
		p, q r3.Vec
		want bool
	}{
		{"through", v(0.5, 0.5, -1), v(0.5, 0.5, 1), true},
		{"short", v(0.5, 0.5, 1), v(0.5, 0.5, 2), false},
		{"outside", v(3, 3, -1), v(3, 3, 1), false},
		{"in plane", v(-1, 0.5, 0), v(3, 0.5, 0), false},
	}
	for _, tt := range tests {
		if got := SegmentCrossesTriangle(tt.p, tt.q, tri); got != tt.want {
			t.Errorf("%s: SegmentCrossesTriangle() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestTriangleMeasures(t *testing.T) {
	tri := Triangle{v(0, 0, 0), v(3, 0, 0), v(0, 3, 0)}
	if got := tri.Area(); got != 4.5 {
		t.Errorf("Area() = %v, want 4.5", got)
	}
	if got := tri.Centroid(); got != v(1, 1, 0) {
		t.Errorf("Centroid() = %v, want {1 1 0}", got)
	}
	if got := tri.UnitNormal(); got != v(0, 0, 1) {
		t.Errorf("UnitNormal() = %v, want {0 0 1}", got)
	}
	b := tri.Bounds()
	if b.Min != v(0, 0, 0) || b.Max != v(3, 3, 0) {
		t.Errorf("Bounds() = %v", b)
	}
}
