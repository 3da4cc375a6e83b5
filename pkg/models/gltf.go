package models

import (
	"fmt"
	"path/filepath"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// GLTFLoader loads GLTF/GLB files into a single triangle soup. Every
// triangle primitive reachable from the default scene is baked into world
// space; primitives are concatenated in traversal order.
type GLTFLoader struct{}

// NewGLTFLoader creates a new GLTF loader with default options.
func NewGLTFLoader() *GLTFLoader {
	return &GLTFLoader{}
}

// LoadGLTF loads a .gltf or .glb file.
func LoadGLTF(path string) (*Mesh, error) {
	return NewGLTFLoader().Load(path)
}

// Load loads a GLTF or GLB file and returns a Mesh.
func (l *GLTFLoader) Load(path string) (*Mesh, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gltf: %w", err)
	}

	mesh := NewMesh(filepath.Base(path))

	if len(doc.Scenes) > 0 {
		sceneIdx := 0
		if doc.Scene != nil {
			sceneIdx = *doc.Scene
		}
		for _, nodeIdx := range doc.Scenes[sceneIdx].Nodes {
			if err := l.processNode(doc, nodeIdx, identity(), mesh); err != nil {
				return nil, err
			}
		}
	} else {
		// No scenes defined, process all root nodes
		child := make(map[int]bool)
		for _, n := range doc.Nodes {
			for _, c := range n.Children {
				child[c] = true
			}
		}
		for i := range doc.Nodes {
			if child[i] {
				continue
			}
			if err := l.processNode(doc, i, identity(), mesh); err != nil {
				return nil, err
			}
		}
	}

	mesh.CalculateBounds()
	return mesh, nil
}

// processNode recursively processes a node and its children, accumulating transforms.
func (l *GLTFLoader) processNode(doc *gltf.Document, nodeIdx int, parent transform, mesh *Mesh) error {
	node := doc.Nodes[nodeIdx]
	world := parent.mul(nodeTransform(node))

	if node.Mesh != nil {
		if err := l.processMesh(doc, doc.Meshes[*node.Mesh], mesh, world); err != nil {
			return fmt.Errorf("mesh %d: %w", *node.Mesh, err)
		}
	}

	for _, childIdx := range node.Children {
		if err := l.processNode(doc, childIdx, world, mesh); err != nil {
			return err
		}
	}
	return nil
}

// processMesh appends the triangle primitives of m, applying xf to positions.
func (l *GLTFLoader) processMesh(doc *gltf.Document, m *gltf.Mesh, mesh *Mesh, xf transform) error {
	for _, prim := range m.Primitives {
		if prim.Mode != gltf.PrimitiveTriangles {
			// Skip non-triangle primitives (lines, points, strips)
			continue
		}

		posIdx, ok := prim.Attributes[gltf.POSITION]
		if !ok {
			continue
		}

		positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
		if err != nil {
			return fmt.Errorf("read positions: %w", err)
		}

		baseVertex := len(mesh.Vertices)
		for _, p := range positions {
			mesh.Vertices = append(mesh.Vertices, xf.apply(r3.Vec{X: float64(p[0]), Y: float64(p[1]), Z: float64(p[2])}))
		}

		if prim.Indices == nil {
			// No indices, assume sequential triangles
			for i := 0; i+2 < len(positions); i += 3 {
				mesh.Faces = append(mesh.Faces, Face{baseVertex + i, baseVertex + i + 1, baseVertex + i + 2})
			}
			continue
		}

		indices, err := modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
		if err != nil {
			return fmt.Errorf("read indices: %w", err)
		}
		for i := 0; i+2 < len(indices); i += 3 {
			f := Face{baseVertex + int(indices[i]), baseVertex + int(indices[i+1]), baseVertex + int(indices[i+2])}
			for _, v := range f {
				if v >= len(mesh.Vertices) {
					return fmt.Errorf("index %d: %w", v-baseVertex, ErrBadIndex)
				}
			}
			mesh.Faces = append(mesh.Faces, f)
		}
	}

	return nil
}

// transform is a column-major 4x4 affine matrix, the layout glTF uses.
type transform [16]float64

func identity() transform {
	return transform{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}
}

func (t transform) mul(o transform) transform {
	var r transform
	for c := 0; c < 4; c++ {
		for row := 0; row < 4; row++ {
			var s float64
			for k := 0; k < 4; k++ {
				s += t[k*4+row] * o[c*4+k]
			}
			r[c*4+row] = s
		}
	}
	return r
}

func (t transform) apply(p r3.Vec) r3.Vec {
	return r3.Vec{
		X: t[0]*p.X + t[4]*p.Y + t[8]*p.Z + t[12],
		Y: t[1]*p.X + t[5]*p.Y + t[9]*p.Z + t[13],
		Z: t[2]*p.X + t[6]*p.Y + t[10]*p.Z + t[14],
	}
}

// nodeTransform returns the node's local matrix. An explicit matrix wins
// over the translation/rotation/scale properties.
func nodeTransform(node *gltf.Node) transform {
	if node.Matrix != [16]float64(identity()) && node.Matrix != [16]float64{} {
		return transform(node.Matrix)
	}

	scale := node.Scale
	if scale == [3]float64{} {
		scale = [3]float64{1, 1, 1}
	}
	rot := node.Rotation
	if rot == [4]float64{} {
		rot = [4]float64{0, 0, 0, 1}
	}
	q := quat.Number{Real: rot[3], Imag: rot[0], Jmag: rot[1], Kmag: rot[2]}

	// Columns are the rotated, scaled basis vectors.
	var t transform
	basis := [3]r3.Vec{{X: 1}, {Y: 1}, {Z: 1}}
	for i, e := range basis {
		c := r3.Scale(scale[i], rotate(q, e))
		t[i*4], t[i*4+1], t[i*4+2] = c.X, c.Y, c.Z
	}
	t[12], t[13], t[14], t[15] = node.Translation[0], node.Translation[1], node.Translation[2], 1
	return t
}

// rotate applies the unit quaternion q to v as q v q*.
func rotate(q quat.Number, v r3.Vec) r3.Vec {
	p := quat.Mul(quat.Mul(q, quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), quat.Conj(q))
	return r3.Vec{X: p.Imag, Y: p.Jmag, Z: p.Kmag}
}

// WriteGLTF writes the mesh as a single indexed triangle primitive. When
// colors is non-nil it is emitted as COLOR_0. A .glb path selects the binary
// container.
func WriteGLTF(m *Mesh, path string, colors []r3.Vec) error {
	doc := gltf.NewDocument()

	positions := make([][3]float32, len(m.Vertices))
	for i, v := range m.Vertices {
		positions[i] = [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
	}
	indices := make([]uint32, 0, 3*len(m.Faces))
	for _, f := range m.Faces {
		indices = append(indices, uint32(f[0]), uint32(f[1]), uint32(f[2]))
	}

	attrs := map[string]int{
		gltf.POSITION: modeler.WritePosition(doc, positions),
	}
	if colors != nil {
		rgb := make([][3]float32, len(colors))
		for i, c := range colors {
			rgb[i] = [3]float32{float32(c.X), float32(c.Y), float32(c.Z)}
		}
		attrs[gltf.COLOR_0] = modeler.WriteColor(doc, rgb)
	}

	doc.Meshes = []*gltf.Mesh{{
		Name: m.Name,
		Primitives: []*gltf.Primitive{{
			Indices:    gltf.Index(modeler.WriteIndices(doc, indices)),
			Attributes: attrs,
			Mode:       gltf.PrimitiveTriangles,
		}},
	}}
	doc.Nodes = []*gltf.Node{{Name: m.Name, Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)

	var err error
	if Format(path) == "glb" {
		err = gltf.SaveBinary(doc, path)
	} else {
		for _, b := range doc.Buffers {
			b.EmbeddedResource()
		}
		err = gltf.Save(doc, path)
	}
	if err != nil {
		return fmt.Errorf("save gltf: %w", err)
	}
	return nil
}
