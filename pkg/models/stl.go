package models

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/hschendel/stl"
	"gonum.org/v1/gonum/spatial/r3"
)

// STLLoader loads STL (stereolithography) files in both ASCII and binary formats.
// STL stores every triangle with its own corners, so positions are shared
// through an exact-match vertex map while loading.
type STLLoader struct{}

// NewSTLLoader creates a new STL loader with default settings.
func NewSTLLoader() *STLLoader {
	return &STLLoader{}
}

// LoadFile loads an STL file from disk.
func (l *STLLoader) LoadFile(path string) (*Mesh, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read STL file: %w", err)
	}

	return l.LoadBytes(data, path)
}

// LoadBytes parses STL from a byte slice.
func (l *STLLoader) LoadBytes(data []byte, name string) (*Mesh, error) {
	if isBinarySTL(data) {
		return l.loadBinary(data, name)
	}
	return l.loadASCII(data, name)
}

// Load parses STL from a reader.
// Note: This reads the entire content into memory to detect format.
func (l *STLLoader) Load(r io.Reader, name string) (*Mesh, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read STL data: %w", err)
	}
	return l.LoadBytes(data, name)
}

// isBinarySTL detects if the data is binary STL format.
// Binary STL starts with 80-byte header, then 4-byte triangle count.
// ASCII STL starts with "solid", but so do some binary headers, in which
// case the declared triangle count must match the file size.
func isBinarySTL(data []byte) bool {
	if len(data) < 84 {
		return false
	}

	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if !bytes.HasPrefix(trimmed, []byte("solid")) {
		return true
	}
	triCount := binary.LittleEndian.Uint32(data[80:84])
	return uint64(len(data)) == 84+uint64(triCount)*50
}

// vertexPool shares identical positions between triangles.
type vertexPool struct {
	mesh  *Mesh
	index map[r3.Vec]int
}

func newVertexPool(mesh *Mesh) *vertexPool {
	return &vertexPool{mesh: mesh, index: make(map[r3.Vec]int)}
}

func (p *vertexPool) add(pos r3.Vec) int {
	if idx, exists := p.index[pos]; exists {
		return idx
	}
	idx := len(p.mesh.Vertices)
	p.mesh.Vertices = append(p.mesh.Vertices, pos)
	p.index[pos] = idx
	return idx
}

// loadBinary parses binary STL format.
func (l *STLLoader) loadBinary(data []byte, name string) (*Mesh, error) {
	if len(data) < 84 {
		return nil, fmt.Errorf("binary STL too short: %d bytes", len(data))
	}

	// Skip 80-byte header
	triCount := binary.LittleEndian.Uint32(data[80:84])

	expectedSize := 84 + uint64(triCount)*50
	if uint64(len(data)) < expectedSize {
		return nil, fmt.Errorf("binary STL truncated: expected %d bytes, got %d", expectedSize, len(data))
	}

	mesh := NewMesh(name)
	mesh.Faces = make([]Face, 0, triCount)
	pool := newVertexPool(mesh)

	offset := 84
	for i := uint32(0); i < triCount; i++ {
		// Stored normals are recomputed on export.
		offset += 12

		var face Face
		for v := 0; v < 3; v++ {
			pos := r3.Vec{
				X: float64(readFloat32LE(data[offset:])),
				Y: float64(readFloat32LE(data[offset+4:])),
				Z: float64(readFloat32LE(data[offset+8:])),
			}
			offset += 12
			face[v] = pool.add(pos)
		}

		// Skip 2-byte attribute byte count
		offset += 2

		mesh.Faces = append(mesh.Faces, face)
	}

	mesh.CalculateBounds()
	return mesh, nil
}

// readFloat32LE reads a little-endian float32 from a byte slice.
func readFloat32LE(data []byte) float32 {
	bits := binary.LittleEndian.Uint32(data)
	return math.Float32frombits(bits)
}

// loadASCII parses ASCII STL format.
func (l *STLLoader) loadASCII(data []byte, name string) (*Mesh, error) {
	mesh := NewMesh(name)
	pool := newVertexPool(mesh)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNum := 0

	var faceVerts []int
	inFacet := false
	inLoop := false

	for scanner.Scan() {
		lineNum++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch strings.ToLower(fields[0]) {
		case "solid":
			if len(fields) > 1 {
				mesh.Name = fields[1]
			}

		case "facet":
			inFacet = true
			faceVerts = faceVerts[:0]

		case "outer":
			if len(fields) >= 2 && strings.ToLower(fields[1]) == "loop" {
				inLoop = true
			}

		case "vertex":
			if !inFacet || !inLoop {
				return nil, fmt.Errorf("line %d: vertex outside facet/loop", lineNum)
			}
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: vertex needs x y z", lineNum)
			}
			pos, err := parseVec(fields[1:4])
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid vertex: %w", lineNum, err)
			}
			faceVerts = append(faceVerts, pool.add(pos))

		case "endloop":
			inLoop = false

		case "endfacet":
			if len(faceVerts) >= 3 {
				mesh.Faces = append(mesh.Faces, Face{faceVerts[0], faceVerts[1], faceVerts[2]})
			}
			inFacet = false
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading ASCII STL: %w", err)
	}

	mesh.CalculateBounds()
	return mesh, nil
}

// parseVec parses three decimal fields into a position.
func parseVec(fields []string) (r3.Vec, error) {
	var c [3]float64
	for i, f := range fields[:3] {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return r3.Vec{}, err
		}
		c[i] = v
	}
	return r3.Vec{X: c[0], Y: c[1], Z: c[2]}, nil
}

// LoadSTL is a convenience function to load an STL file with default settings.
func LoadSTL(path string) (*Mesh, error) {
	return NewSTLLoader().LoadFile(path)
}

// toSolid converts the mesh into an STL solid with per-face normals.
func toSolid(m *Mesh, ascii bool) *stl.Solid {
	solid := &stl.Solid{
		Name:      strings.TrimSuffix(m.Name, ".stl"),
		IsAscii:   ascii,
		Triangles: make([]stl.Triangle, len(m.Faces)),
	}
	for i, f := range m.Faces {
		n := m.FaceNormal(i)
		tri := stl.Triangle{Normal: stl.Vec3{float32(n.X), float32(n.Y), float32(n.Z)}}
		for j, v := range f {
			p := m.Vertices[v]
			tri.Vertices[j] = stl.Vec3{float32(p.X), float32(p.Y), float32(p.Z)}
		}
		solid.Triangles[i] = tri
	}
	return solid
}

// WriteSTL writes the mesh as STL. Binary output is the default; ascii
// selects the text encoding.
func WriteSTL(m *Mesh, path string, ascii bool) error {
	if err := toSolid(m, ascii).WriteFile(path); err != nil {
		return fmt.Errorf("failed to write STL file: %w", err)
	}
	return nil
}
