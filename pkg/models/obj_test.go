package models

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestLoadSimpleOBJ(t *testing.T) {
	// Simple triangle
	objData := `
# Simple triangle
v 0 0 0
v 1 0 0
v 0.5 1 0
f 1 2 3
`
	loader := NewOBJLoader()
	mesh, err := loader.Load(strings.NewReader(objData), "triangle")
	if err != nil {
		t.Fatalf("failed to load OBJ: %v", err)
	}

	if mesh.VertexCount() != 3 {
		t.Errorf("expected 3 vertices, got %d", mesh.VertexCount())
	}

	if mesh.TriangleCount() != 1 {
		t.Errorf("expected 1 triangle, got %d", mesh.TriangleCount())
	}

	if mesh.Faces[0] != (Face{0, 1, 2}) {
		t.Errorf("expected face [0 1 2], got %v", mesh.Faces[0])
	}
}

func TestLoadCubeOBJ(t *testing.T) {
	objData := `
# Cube
v -0.5 -0.5 -0.5
v  0.5 -0.5 -0.5
v  0.5  0.5 -0.5
v -0.5  0.5 -0.5
v -0.5 -0.5  0.5
v  0.5 -0.5  0.5
v  0.5  0.5  0.5
v -0.5  0.5  0.5

# Back face
f 1 2 3 4
# Front face
f 5 6 7 8
# Left face
f 1 4 8 5
# Right face
f 2 6 7 3
# Top face
f 4 3 7 8
# Bottom face
f 1 5 6 2
`
	loader := NewOBJLoader()
	mesh, err := loader.Load(strings.NewReader(objData), "cube")
	if err != nil {
		t.Fatalf("failed to load cube: %v", err)
	}

	// 6 faces * 2 triangles per quad = 12 triangles
	if mesh.TriangleCount() != 12 {
		t.Errorf("expected 12 triangles (6 quads), got %d", mesh.TriangleCount())
	}

	// Check bounds
	expectedMin := r3.Vec{X: -0.5, Y: -0.5, Z: -0.5}
	expectedMax := r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}

	if mesh.Bounds.Min != expectedMin {
		t.Errorf("expected min bounds %v, got %v", expectedMin, mesh.Bounds.Min)
	}
	if mesh.Bounds.Max != expectedMax {
		t.Errorf("expected max bounds %v, got %v", expectedMax, mesh.Bounds.Max)
	}

	// Quads fan out from their first corner in stored order.
	if mesh.Faces[1] != (Face{0, 2, 3}) {
		t.Errorf("expected second fan triangle [0 2 3], got %v", mesh.Faces[1])
	}
}

func TestParseFaceVertex(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"1", 1},
		{"1/2", 1},
		{"1/2/3", 1},
		{"1//3", 1},
		{"-1", -1},
		{"-3/-2/-1", -3},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseFaceVertex(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("parseFaceVertex(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestResolveIndex(t *testing.T) {
	tests := []struct {
		idx, count, want int
	}{
		{1, 10, 0},   // 1-indexed -> 0-indexed
		{5, 10, 4},   // 1-indexed -> 0-indexed
		{-1, 10, 9},  // Negative (last)
		{-10, 10, 0}, // Negative (first)
		{0, 10, -1},  // Not specified
	}

	for _, tt := range tests {
		got := resolveIndex(tt.idx, tt.count)
		if got != tt.want {
			t.Errorf("resolveIndex(%d, %d) = %d, want %d", tt.idx, tt.count, got, tt.want)
		}
	}
}

func TestLoadOBJBadIndex(t *testing.T) {
	objData := "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 4\n"
	_, err := NewOBJLoader().Load(strings.NewReader(objData), "bad")
	if !errors.Is(err, ErrBadIndex) {
		t.Errorf("expected ErrBadIndex, got %v", err)
	}
}

func TestWriteOBJRoundTrip(t *testing.T) {
	mesh := NewMesh("tri")
	mesh.Vertices = []r3.Vec{{}, {X: 1.5}, {Y: -2.25}}
	mesh.Faces = []Face{{0, 1, 2}}

	var buf bytes.Buffer
	if err := WriteOBJ(&buf, mesh, []r3.Vec{{X: 1}, {Y: 1}, {Z: 1}}); err != nil {
		t.Fatalf("WriteOBJ() error: %v", err)
	}
	if !strings.Contains(buf.String(), "v 1.5 0 0 0 1 0\n") {
		t.Errorf("missing colored vertex line in:\n%s", buf.String())
	}

	got, err := NewOBJLoader().Load(&buf, "tri")
	if err != nil {
		t.Fatalf("failed to reload OBJ: %v", err)
	}
	if got.VertexCount() != 3 || got.TriangleCount() != 1 {
		t.Fatalf("reloaded %d vertices %d triangles, want 3 and 1", got.VertexCount(), got.TriangleCount())
	}
	for i, v := range mesh.Vertices {
		if got.Vertices[i] != v {
			t.Errorf("vertex %d = %v, want %v", i, got.Vertices[i], v)
		}
	}
}
