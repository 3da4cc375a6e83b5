package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/taigrr/meshfix/pkg/models"
	"github.com/taigrr/meshfix/pkg/topology"
)

// refineRounds bounds the split/relax iterations of Refine.
const refineRounds = 16

// Refine densifies a hole patch so its triangles match the edge lengths
// around the hole. A patch triangle is split at its centroid while the
// centroid is farther from every corner than the local scale allows; after
// each round of splits, interior patch edges are flipped until they satisfy
// the Delaunay angle condition. New vertices are appended to m and take the
// most common label of the split triangle's corners. The loop's own edges
// are never flipped, so the patch stays attached to the mesh.
func Refine(m *models.Mesh, patch []models.Face, loop []int) []models.Face {
	if len(patch) == 0 {
		return patch
	}
	const alpha = math.Sqrt2

	// Scale per vertex: mean length of the two loop edges at each loop vertex.
	scale := make(map[int]float64, len(loop))
	n := len(loop)
	for i, v := range loop {
		prev := m.Vertices[loop[(i+n-1)%n]]
		next := m.Vertices[loop[(i+1)%n]]
		p := m.Vertices[v]
		scale[v] = 0.5 * (r3.Norm(r3.Sub(p, prev)) + r3.Norm(r3.Sub(next, p)))
	}
	rim := patchRim{
		edges:    make(map[topology.EdgeKey]bool, n),
		vertices: make(map[int]bool, n),
	}
	for i, v := range loop {
		rim.edges[topology.Undirected(v, loop[(i+1)%n])] = true
		rim.vertices[v] = true
	}

	faces := append([]models.Face(nil), patch...)
	for range refineRounds {
		split := false
		var next []models.Face
		for _, f := range faces {
			t := Triangle{m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]}
			c := t.Centroid()
			sc := (scale[f[0]] + scale[f[1]] + scale[f[2]]) / 3
			fits := false
			for j, v := range f {
				d := alpha * r3.Norm(r3.Sub(c, t[j]))
				if d <= sc || d <= scale[v] {
					fits = true
					break
				}
			}
			if fits {
				next = append(next, f)
				continue
			}
			ci := m.AddVertex(c, majorityLabel(m, f))
			scale[ci] = sc
			next = append(next,
				models.Face{f[0], f[1], ci},
				models.Face{f[1], f[2], ci},
				models.Face{f[2], f[0], ci},
			)
			split = true
		}
		faces = next
		relax(m.Vertices, faces, rim)
		if !split {
			break
		}
	}
	return faces
}

// majorityLabel returns the most common label among f's corners, the first
// corner's label on a tie, or 0 when m carries no labels.
func majorityLabel(m *models.Mesh, f models.Face) int {
	if !m.HasLabels() {
		return 0
	}
	a, b, c := m.Labels[f[0]], m.Labels[f[1]], m.Labels[f[2]]
	if b == c && b != a {
		return b
	}
	return a
}

// patchRim is the hole loop a patch hangs from.
type patchRim struct {
	edges    map[topology.EdgeKey]bool
	vertices map[int]bool
}

// relax flips interior edges of faces (in place) whose opposite angles sum
// to more than pi. Rim edges are never flipped, and no flip may fold the
// surface, duplicate a patch edge, or connect two rim vertices, which could
// already be joined outside the patch.
func relax(vertices []r3.Vec, faces []models.Face, rim patchRim) {
	for pass := 0; pass < 4*len(faces)+1; pass++ {
		if !flipOne(vertices, faces, rim) {
			return
		}
	}
}

func flipOne(vertices []r3.Vec, faces []models.Face, rim patchRim) bool {
	ix := topology.BuildUndirected(faces)
	flipped := false
	ix.Each(func(k topology.EdgeKey, incident []int) {
		if flipped || len(incident) != 2 || rim.edges[k] {
			return
		}
		i1, i2 := incident[0], incident[1]
		p, q := k.A, k.B
		r, ok := opposite(faces[i1], p, q)
		if !ok {
			p, q = q, p
			if r, ok = opposite(faces[i1], p, q); !ok {
				return
			}
		}
		s, ok := opposite(faces[i2], q, p)
		if !ok || r == s || (rim.vertices[r] && rim.vertices[s]) {
			return
		}
		if len(ix.Faces(topology.Undirected(r, s))) > 0 {
			return
		}
		vp, vq, vr, vs := vertices[p], vertices[q], vertices[r], vertices[s]
		if angle(vr, vp, vq)+angle(vs, vq, vp) <= math.Pi+1e-12 {
			return
		}
		n1 := Triangle{vp, vs, vr}.Normal()
		n2 := Triangle{vs, vq, vr}.Normal()
		if r3.Dot(n1, n2) <= 0 || r3.Norm(n1) == 0 || r3.Norm(n2) == 0 {
			return
		}
		faces[i1] = models.Face{p, s, r}
		faces[i2] = models.Face{s, q, r}
		flipped = true
	})
	return flipped
}

// opposite returns the corner of f across its side a->b, if f has that
// side in its winding.
func opposite(f models.Face, a, b int) (int, bool) {
	for side := 0; side < 3; side++ {
		if x, y := f.Edge(side); x == a && y == b {
			return f[(side+2)%3], true
		}
	}
	return 0, false
}

// angle returns the angle at apex between the directions to a and b.
func angle(apex, a, b r3.Vec) float64 {
	u := r3.Sub(a, apex)
	v := r3.Sub(b, apex)
	nu, nv := r3.Norm(u), r3.Norm(v)
	if nu == 0 || nv == 0 {
		return 0
	}
	c := r3.Dot(u, v) / (nu * nv)
	return math.Acos(math.Max(-1, math.Min(1, c)))
}
