// Package geom holds the geometric side of mesh repair: triangle
// intersection tests, boundary loops, hole filling and connected components.
package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// epsilon is the relative tolerance used for plane-side classification.
const epsilon = 1e-12

// Triangle is three corner positions.
type Triangle [3]r3.Vec

// Normal returns the unnormalized normal (b-a)x(c-a).
func (t Triangle) Normal() r3.Vec {
	return r3.Cross(r3.Sub(t[1], t[0]), r3.Sub(t[2], t[0]))
}

// UnitNormal returns the unit normal, or the zero vector for a degenerate triangle.
func (t Triangle) UnitNormal() r3.Vec {
	n := t.Normal()
	l := r3.Norm(n)
	if l == 0 {
		return r3.Vec{}
	}
	return r3.Scale(1/l, n)
}

// Area returns the triangle's area.
func (t Triangle) Area() float64 {
	return 0.5 * r3.Norm(t.Normal())
}

// Centroid returns the mean of the corners.
func (t Triangle) Centroid() r3.Vec {
	return r3.Scale(1.0/3, r3.Add(r3.Add(t[0], t[1]), t[2]))
}

// Bounds returns the axis-aligned box around the triangle.
func (t Triangle) Bounds() r3.Box {
	b := r3.Box{Min: t[0], Max: t[0]}
	for _, p := range t[1:] {
		b.Min = r3.Vec{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)}
		b.Max = r3.Vec{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)}
	}
	return b
}

// scale returns the longest edge length.
func (t Triangle) scale() float64 {
	return math.Max(r3.Norm(r3.Sub(t[1], t[0])), math.Max(r3.Norm(r3.Sub(t[2], t[1])), r3.Norm(r3.Sub(t[0], t[2]))))
}

// planeDistances returns the signed distances of p's corners to the plane of
// t, snapped to zero within tolerance.
func planeDistances(t, p Triangle) ([3]float64, bool) {
	n := t.UnitNormal()
	if n == (r3.Vec{}) {
		return [3]float64{}, false
	}
	tol := epsilon * math.Max(t.scale(), p.scale())
	var d [3]float64
	for i, v := range p {
		d[i] = r3.Dot(n, r3.Sub(v, t[0]))
		if math.Abs(d[i]) < tol {
			d[i] = 0
		}
	}
	return d, true
}

func sameSide(d [3]float64) bool {
	return (d[0] > 0 && d[1] > 0 && d[2] > 0) || (d[0] < 0 && d[1] < 0 && d[2] < 0)
}

// TrianglesIntersect reports whether two triangles touch or overlap. It is
// the interval test of Möller: each triangle must straddle the other's
// plane, and the two segments cut from the planes' common line must overlap.
// Coplanar triangles fall back to a separating-axis test in 2D. Degenerate
// triangles never intersect.
func TrianglesIntersect(a, b Triangle) bool {
	db, ok := planeDistances(a, b)
	if !ok || sameSide(db) {
		return false
	}
	da, ok := planeDistances(b, a)
	if !ok || sameSide(da) {
		return false
	}
	if da == [3]float64{} {
		return coplanarIntersect(a, b)
	}

	// Project onto the dominant axis of the intersection line.
	dir := r3.Cross(a.Normal(), b.Normal())
	axis := dominantAxis(dir)
	pa := [3]float64{component(a[0], axis), component(a[1], axis), component(a[2], axis)}
	pb := [3]float64{component(b[0], axis), component(b[1], axis), component(b[2], axis)}

	a0, a1, okA := interval(pa, da)
	b0, b1, okB := interval(pb, db)
	if !okA || !okB {
		return coplanarIntersect(a, b)
	}
	if a0 > a1 {
		a0, a1 = a1, a0
	}
	if b0 > b1 {
		b0, b1 = b1, b0
	}
	return !(a1 < b0 || b1 < a0)
}

// interval returns where the triangle with projections q and plane distances
// d crosses the other plane, as two parameters along the common line.
func interval(q, d [3]float64) (float64, float64, bool) {
	at := func(i, j int) float64 { return q[i] + (q[j]-q[i])*d[i]/(d[i]-d[j]) }
	switch {
	case d[0]*d[1] > 0: // 2 is alone
		return at(0, 2), at(1, 2), true
	case d[0]*d[2] > 0: // 1 is alone
		return at(0, 1), at(2, 1), true
	case d[1]*d[2] > 0 || d[0] != 0: // 0 is alone
		return at(1, 0), at(2, 0), true
	case d[1] != 0:
		return at(0, 1), at(2, 1), true
	case d[2] != 0:
		return at(0, 2), at(1, 2), true
	}
	return 0, 0, false
}

func dominantAxis(v r3.Vec) int {
	x, y, z := math.Abs(v.X), math.Abs(v.Y), math.Abs(v.Z)
	switch {
	case x >= y && x >= z:
		return 0
	case y >= z:
		return 1
	}
	return 2
}

func component(v r3.Vec, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	}
	return v.Z
}

// project2 drops the given axis.
func project2(v r3.Vec, axis int) [2]float64 {
	switch axis {
	case 0:
		return [2]float64{v.Y, v.Z}
	case 1:
		return [2]float64{v.Z, v.X}
	}
	return [2]float64{v.X, v.Y}
}

// coplanarIntersect projects both triangles onto the plane most aligned with
// their normal and looks for a separating edge axis.
func coplanarIntersect(a, b Triangle) bool {
	axis := dominantAxis(a.Normal())
	var ta, tb [3][2]float64
	for i := range 3 {
		ta[i] = project2(a[i], axis)
		tb[i] = project2(b[i], axis)
	}
	return !separated2(ta, tb) && !separated2(tb, ta)
}

// separated2 reports whether an edge normal of t separates t from o.
func separated2(t, o [3][2]float64) bool {
	for i := range 3 {
		p, q := t[i], t[(i+1)%3]
		axis := [2]float64{q[1] - p[1], p[0] - q[0]}
		tMin, tMax := project1(t, axis)
		oMin, oMax := project1(o, axis)
		if tMax < oMin || oMax < tMin {
			return true
		}
	}
	return false
}

func project1(t [3][2]float64, axis [2]float64) (float64, float64) {
	lo := math.Inf(1)
	hi := math.Inf(-1)
	for _, p := range t {
		d := p[0]*axis[0] + p[1]*axis[1]
		lo = math.Min(lo, d)
		hi = math.Max(hi, d)
	}
	return lo, hi
}

// SegmentCrossesTriangle reports whether the open segment pq passes through
// the interior of t (Möller–Trumbore). Segments parallel to the triangle's
// plane are not reported.
func SegmentCrossesTriangle(p, q r3.Vec, t Triangle) bool {
	e1 := r3.Sub(t[1], t[0])
	e2 := r3.Sub(t[2], t[0])
	dir := r3.Sub(q, p)
	h := r3.Cross(dir, e2)
	det := r3.Dot(e1, h)
	if math.Abs(det) < epsilon*r3.Norm(dir)*r3.Norm(e1)*r3.Norm(e2) || det == 0 {
		return false
	}
	f := 1 / det
	s := r3.Sub(p, t[0])
	u := f * r3.Dot(s, h)
	if u <= 0 || u >= 1 {
		return false
	}
	qv := r3.Cross(s, e1)
	v := f * r3.Dot(dir, qv)
	if v <= 0 || u+v >= 1 {
		return false
	}
	s2 := f * r3.Dot(e2, qv)
	return s2 > 0 && s2 < 1
}
