// Package models provides triangle mesh loading, saving and representation for meshfix.
package models

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Mesh errors.
var (
	ErrBadIndex  = errors.New("face references a vertex index out of range")
	ErrEmptyMesh = errors.New("mesh has no triangles")
)

// Mesh is a triangle soup: a flat vertex array plus an indexed triangle array.
// No adjacency is kept between operations.
type Mesh struct {
	Name     string
	Vertices []r3.Vec
	Faces    []Face

	// Labels is an optional per-vertex annotation, index-aligned with Vertices.
	// A nil slice means the mesh carries no labels.
	Labels []int

	// Bounding box (calculated on load)
	Bounds r3.Box
}

// Face is a triangle given by three vertex indices. The order is the winding
// order used on output; adjacency treats the indices as unordered.
type Face [3]int

// Edge returns side i of the face as an ordered vertex pair:
// 0 -> (f0, f1), 1 -> (f1, f2), 2 -> (f2, f0).
func (f Face) Edge(i int) (int, int) {
	return f[i%3], f[(i+1)%3]
}

// NewMesh creates an empty mesh.
func NewMesh(name string) *Mesh {
	return &Mesh{
		Name:     name,
		Vertices: make([]r3.Vec, 0),
		Faces:    make([]Face, 0),
	}
}

// CalculateBounds computes the axis-aligned bounding box.
func (m *Mesh) CalculateBounds() {
	if len(m.Vertices) == 0 {
		m.Bounds = r3.Box{}
		return
	}
	m.Bounds = BoundsOf(m.Vertices)
}

// BoundsOf returns the axis-aligned bounding box of pts.
func BoundsOf(pts []r3.Vec) r3.Box {
	if len(pts) == 0 {
		return r3.Box{}
	}
	b := r3.Box{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		b.Min = r3.Vec{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)}
		b.Max = r3.Vec{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)}
	}
	return b
}

// Center returns the center of the bounding box.
func (m *Mesh) Center() r3.Vec {
	return r3.Scale(0.5, r3.Add(m.Bounds.Min, m.Bounds.Max))
}

// Size returns the dimensions of the bounding box.
func (m *Mesh) Size() r3.Vec {
	return r3.Sub(m.Bounds.Max, m.Bounds.Min)
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Faces)
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices)
}

// HasLabels reports whether the mesh carries a per-vertex label channel.
func (m *Mesh) HasLabels() bool {
	return m.Labels != nil
}

// FaceNormal returns the unit normal of face i, or the zero vector for a
// degenerate face.
func (m *Mesh) FaceNormal(i int) r3.Vec {
	f := m.Faces[i]
	n := r3.Cross(r3.Sub(m.Vertices[f[1]], m.Vertices[f[0]]), r3.Sub(m.Vertices[f[2]], m.Vertices[f[0]]))
	l := r3.Norm(n)
	if l == 0 {
		return r3.Vec{}
	}
	return r3.Scale(1/l, n)
}

// Validate checks that every face index addresses an existing vertex and that
// the label channel, when present, is aligned with the vertex array.
func (m *Mesh) Validate() error {
	n := len(m.Vertices)
	for i, f := range m.Faces {
		for _, v := range f {
			if v < 0 || v >= n {
				return fmt.Errorf("face %d (%d, %d, %d): %w", i, f[0], f[1], f[2], ErrBadIndex)
			}
		}
	}
	if m.Labels != nil && len(m.Labels) != n {
		return fmt.Errorf("%d labels for %d vertices: %w", len(m.Labels), n, ErrLabelMismatch)
	}
	return nil
}

// Clone creates a deep copy of the mesh.
func (m *Mesh) Clone() *Mesh {
	clone := &Mesh{
		Name:     m.Name,
		Vertices: make([]r3.Vec, len(m.Vertices)),
		Faces:    make([]Face, len(m.Faces)),
		Bounds:   m.Bounds,
	}
	copy(clone.Vertices, m.Vertices)
	copy(clone.Faces, m.Faces)
	if m.Labels != nil {
		clone.Labels = make([]int, len(m.Labels))
		copy(clone.Labels, m.Labels)
	}
	return clone
}

// quantizedKey creates a hashable key from a position by quantizing to a grid.
// This handles floating point precision issues when comparing vertices.
type quantizedKey struct {
	x, y, z int64
}

func quantizePosition(pos r3.Vec, tolerance float64) quantizedKey {
	if tolerance <= 0 {
		return quantizedKey{
			x: int64(math.Float64bits(pos.X + 0)),
			y: int64(math.Float64bits(pos.Y + 0)),
			z: int64(math.Float64bits(pos.Z + 0)),
		}
	}
	scale := 1.0 / tolerance
	return quantizedKey{
		x: int64(math.Round(pos.X * scale)),
		y: int64(math.Round(pos.Y * scale)),
		z: int64(math.Round(pos.Z * scale)),
	}
}

// WeldVertices merges vertices that share a position. With tolerance 0 only
// bit-identical positions (treating -0 as 0) are merged; otherwise positions
// are snapped to a grid of the given spacing. The first occurrence of each
// position survives, along with its label. Returns the number of vertices removed.
func (m *Mesh) WeldVertices(tolerance float64) int {
	if len(m.Vertices) == 0 {
		return 0
	}

	vertexMap := make(map[quantizedKey]int, len(m.Vertices))
	newIndex := make([]int, len(m.Vertices))
	kept := make([]r3.Vec, 0, len(m.Vertices))
	var keptLabels []int
	if m.Labels != nil {
		keptLabels = make([]int, 0, len(m.Labels))
	}

	for i, v := range m.Vertices {
		key := quantizePosition(v, tolerance)
		if idx, exists := vertexMap[key]; exists {
			newIndex[i] = idx
			continue
		}
		idx := len(kept)
		vertexMap[key] = idx
		newIndex[i] = idx
		kept = append(kept, v)
		if m.Labels != nil {
			keptLabels = append(keptLabels, m.Labels[i])
		}
	}

	removed := len(m.Vertices) - len(kept)
	if removed == 0 {
		return 0
	}
	for i := range m.Faces {
		for j := range m.Faces[i] {
			m.Faces[i][j] = newIndex[m.Faces[i][j]]
		}
	}
	m.Vertices = kept
	if m.Labels != nil {
		m.Labels = keptLabels
	}
	return removed
}

// RemoveUnreferencedVertices removes vertices that are not referenced by any face.
// This compacts the vertex array, updates face indices and carries the label
// channel through the same remap. Returns the number of vertices removed.
func (m *Mesh) RemoveUnreferencedVertices() int {
	if len(m.Vertices) == 0 {
		return 0
	}

	// Mark referenced vertices
	referenced := make([]bool, len(m.Vertices))
	for _, f := range m.Faces {
		referenced[f[0]] = true
		referenced[f[1]] = true
		referenced[f[2]] = true
	}

	// Build compacted vertex list and index mapping
	newIndex := make([]int, len(m.Vertices))
	newVertices := make([]r3.Vec, 0, len(m.Vertices))
	var newLabels []int
	if m.Labels != nil {
		newLabels = make([]int, 0, len(m.Labels))
	}
	for i, v := range m.Vertices {
		if !referenced[i] {
			newIndex[i] = -1
			continue
		}
		newIndex[i] = len(newVertices)
		newVertices = append(newVertices, v)
		if m.Labels != nil {
			newLabels = append(newLabels, m.Labels[i])
		}
	}

	removed := len(m.Vertices) - len(newVertices)
	if removed == 0 {
		return 0
	}

	// Update face indices
	for i := range m.Faces {
		m.Faces[i][0] = newIndex[m.Faces[i][0]]
		m.Faces[i][1] = newIndex[m.Faces[i][1]]
		m.Faces[i][2] = newIndex[m.Faces[i][2]]
	}

	m.Vertices = newVertices
	if m.Labels != nil {
		m.Labels = newLabels
	}
	return removed
}

// AddVertex appends a vertex with the given label and returns its index. The
// label is ignored when the mesh carries no labels.
func (m *Mesh) AddVertex(p r3.Vec, label int) int {
	m.Vertices = append(m.Vertices, p)
	if m.Labels != nil {
		m.Labels = append(m.Labels, label)
	}
	return len(m.Vertices) - 1
}
