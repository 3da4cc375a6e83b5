package geom

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/taigrr/meshfix/pkg/models"
	"github.com/taigrr/meshfix/pkg/topology"
)

// Weighting selects the cost minimized when triangulating a hole.
type Weighting int

const (
	// WeightAngle maximizes the smallest normal agreement between adjacent
	// triangles (the worst dihedral angle), then minimizes area (Liepa).
	WeightAngle Weighting = iota
	// WeightArea minimizes total patch area (Barequet and Sharir).
	WeightArea
)

func (w Weighting) String() string {
	if w == WeightArea {
		return "area"
	}
	return "angle"
}

// ParseWeighting converts "angle" or "area".
func ParseWeighting(s string) (Weighting, error) {
	switch s {
	case "angle", "":
		return WeightAngle, nil
	case "area":
		return WeightArea, nil
	}
	return 0, fmt.Errorf("unknown hole weighting %q", s)
}

// cell is the best triangulation found for the sub-polygon loop[i..k].
type cell struct {
	dot    float64 // worst normal agreement inside, higher is better
	area   float64
	split  int    // apex of the triangle on edge (i, k)
	normal r3.Vec // normal of that triangle
}

// better reports whether (dot, area) beats c under w.
func (c *cell) better(w Weighting, dot, area float64) bool {
	if c.split < 0 {
		return true
	}
	if w == WeightArea {
		return area < c.area
	}
	return dot > c.dot || (dot == c.dot && area < c.area)
}

// Triangulate fills the hole bounded by loop with len(loop)-2 triangles
// using a minimum-weight polygon triangulation. faces are the mesh faces
// around the hole; they supply the normals the angle weighting compares
// against. Patch triangles follow loop order, so a loop from BoundaryLoops
// gives a patch wound like its surroundings.
func Triangulate(vertices []r3.Vec, faces []models.Face, loop []int, w Weighting) []models.Face {
	n := len(loop)
	if n < 3 {
		return nil
	}
	tri := func(i, m, k int) Triangle {
		return Triangle{vertices[loop[i]], vertices[loop[m]], vertices[loop[k]]}
	}

	// Normals of the faces outside each loop edge (i, i+1), and of the
	// closing edge (n-1, 0) at index n-1.
	outside := make([]r3.Vec, n)
	if w == WeightAngle {
		ix := topology.BuildUndirected(faces)
		for i := range n {
			incident := ix.Faces(topology.Undirected(loop[i], loop[(i+1)%n]))
			if len(incident) > 0 {
				f := faces[incident[0]]
				outside[i] = Triangle{vertices[f[0]], vertices[f[1]], vertices[f[2]]}.UnitNormal()
			}
		}
	}

	table := make([][]cell, n)
	for i := range table {
		table[i] = make([]cell, n)
		for k := range table[i] {
			table[i][k].split = -1
		}
		if i+1 < n {
			table[i][i+1] = cell{dot: 1, split: i, normal: outside[i]}
		}
	}

	for span := 2; span < n; span++ {
		for i := 0; i+span < n; i++ {
			k := i + span
			c := &table[i][k]
			for m := i + 1; m < k; m++ {
				t := tri(i, m, k)
				left, right := &table[i][m], &table[m][k]
				area := left.area + right.area + t.Area()
				dot := 0.0
				normal := t.UnitNormal()
				if w == WeightAngle {
					dot = math.Min(r3.Dot(normal, left.normal), r3.Dot(normal, right.normal))
					if i == 0 && k == n-1 {
						dot = math.Min(dot, r3.Dot(normal, outside[n-1]))
					}
					dot = math.Min(dot, math.Min(left.dot, right.dot))
				}
				if c.better(w, dot, area) {
					*c = cell{dot: dot, area: area, split: m, normal: normal}
				}
			}
		}
	}

	patch := make([]models.Face, 0, n-2)
	stack := [][2]int{{0, n - 1}}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		i, k := s[0], s[1]
		m := table[i][k].split
		patch = append(patch, models.Face{loop[i], loop[m], loop[k]})
		if m-i > 1 {
			stack = append(stack, [2]int{i, m})
		}
		if k-m > 1 {
			stack = append(stack, [2]int{m, k})
		}
	}
	return patch
}
