package models

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// OBJLoader loads Wavefront OBJ files. Only positions and faces are read;
// texture and normal indices are parsed and discarded so that faces address
// positions directly.
type OBJLoader struct{}

// NewOBJLoader creates a new OBJ loader with default settings.
func NewOBJLoader() *OBJLoader {
	return &OBJLoader{}
}

// LoadFile loads an OBJ file from disk.
func (l *OBJLoader) LoadFile(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open OBJ file: %w", err)
	}
	defer f.Close()

	return l.Load(f, path)
}

// Load parses an OBJ from a reader. Polygons with more than three corners
// are fan triangulated in their stored winding.
func (l *OBJLoader) Load(r io.Reader, name string) (*Mesh, error) {
	mesh := NewMesh(name)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if len(line) == 0 || line[0] == '#' {
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "v": // Vertex position
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: invalid vertex (need x y z)", lineNum)
			}
			pos, err := parseVec(fields[1:4])
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid vertex: %w", lineNum, err)
			}
			mesh.Vertices = append(mesh.Vertices, pos)

		case "f": // Face
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: face needs at least 3 vertices", lineNum)
			}

			faceVerts := make([]int, 0, len(fields)-1)
			for i := 1; i < len(fields); i++ {
				posIdx, err := parseFaceVertex(fields[i])
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNum, err)
				}
				posIdx = resolveIndex(posIdx, len(mesh.Vertices))
				if posIdx < 0 || posIdx >= len(mesh.Vertices) {
					return nil, fmt.Errorf("line %d: position index %s: %w", lineNum, fields[i], ErrBadIndex)
				}
				faceVerts = append(faceVerts, posIdx)
			}

			for i := 1; i < len(faceVerts)-1; i++ {
				mesh.Faces = append(mesh.Faces, Face{faceVerts[0], faceVerts[i], faceVerts[i+1]})
			}

		case "o", "g": // Object/group name (use as mesh name)
			if len(fields) > 1 {
				mesh.Name = fields[1]
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading OBJ: %w", err)
	}

	mesh.CalculateBounds()
	return mesh, nil
}

// parseFaceVertex parses the position part of a face vertex in format
// v, v/vt, v/vt/vn, or v//vn. Returns the 1-indexed (or negative) value.
func parseFaceVertex(s string) (int, error) {
	pos, _, _ := strings.Cut(s, "/")
	idx, err := strconv.Atoi(pos)
	if err != nil {
		return 0, fmt.Errorf("invalid vertex index: %s", pos)
	}
	return idx, nil
}

// resolveIndex converts OBJ 1-indexed (or negative) index to 0-indexed.
// Returns -1 if index was 0 (not specified).
func resolveIndex(idx, count int) int {
	if idx == 0 {
		return -1
	}
	if idx < 0 {
		return count + idx // Negative indices count from end
	}
	return idx - 1 // Convert 1-indexed to 0-indexed
}

// LoadOBJ is a convenience function to load an OBJ file with default settings.
func LoadOBJ(path string) (*Mesh, error) {
	return NewOBJLoader().LoadFile(path)
}

// WriteOBJ writes positions and faces as Wavefront OBJ. When colors is non-nil
// each vertex line carries an "r g b" extension.
func WriteOBJ(w io.Writer, m *Mesh, colors []r3.Vec) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# meshfix %d vertices %d faces\n", len(m.Vertices), len(m.Faces))
	for i, v := range m.Vertices {
		if colors != nil {
			c := colors[i]
			fmt.Fprintf(bw, "v %s %s %s %s %s %s\n", ftoa(v.X), ftoa(v.Y), ftoa(v.Z), ftoa(c.X), ftoa(c.Y), ftoa(c.Z))
			continue
		}
		fmt.Fprintf(bw, "v %s %s %s\n", ftoa(v.X), ftoa(v.Y), ftoa(v.Z))
	}
	for _, f := range m.Faces {
		fmt.Fprintf(bw, "f %d %d %d\n", f[0]+1, f[1]+1, f[2]+1)
	}
	return bw.Flush()
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
