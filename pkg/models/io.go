package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrUnsupportedFormat is returned for file extensions no loader or writer handles.
var ErrUnsupportedFormat = errors.New("unsupported mesh format")

// Format returns the lower-cased extension of path without the dot.
func Format(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Load reads a mesh by extension, validates its indices and welds vertices
// whose positions agree within tolerance (0 means bit-identical).
func Load(path string, tolerance float64) (*Mesh, error) {
	var (
		mesh *Mesh
		err  error
	)
	switch Format(path) {
	case "stl":
		mesh, err = LoadSTL(path)
	case "obj":
		mesh, err = LoadOBJ(path)
	case "ply":
		mesh, err = LoadPLY(path)
	case "gltf", "glb":
		mesh, err = LoadGLTF(path)
	default:
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, err
	}
	if err := mesh.Validate(); err != nil {
		return nil, err
	}
	if len(mesh.Faces) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyMesh)
	}
	mesh.WeldVertices(tolerance)
	mesh.CalculateBounds()
	return mesh, nil
}

// Save writes the mesh by extension. Meshes that carry labels are written
// with palette colors wherever the format supports per-vertex color.
func Save(m *Mesh, path string) error {
	var colors []r3.Vec
	if m.HasLabels() {
		colors = LabelColors(m.Labels)
	}

	switch Format(path) {
	case "stl":
		return WriteSTL(m, path, false)
	case "gltf", "glb":
		return WriteGLTF(m, path, colors)
	case "obj", "ply":
	default:
		return fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if Format(path) == "obj" {
		err = WriteOBJ(f, m, colors)
	} else {
		err = WritePLY(f, m, colors)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
