package repair

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/taigrr/meshfix/pkg/geom"
	"github.com/taigrr/meshfix/pkg/models"
	"github.com/taigrr/meshfix/pkg/topology"
)

const tetOBJ = `v 0 0 0
v 1 0 0
v 0 1 0
v 0 0 1
f 1 3 2
f 1 2 4
f 2 3 4
f 1 4 3
`

// Two closed tetrahedra sharing only vertex 1.
const bowtieOBJ = `v 0 0 0
v 1 0 0
v 0 1 0
v 0 0 1
v -1 0 0
v 0 -1 0
v 0 0 -1
f 1 3 2
f 1 2 4
f 2 3 4
f 1 4 3
f 1 6 5
f 1 5 7
f 5 6 7
f 1 7 6
`

// A square pyramid with an open base.
const pyramidOBJ = `v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
v 0.5 0.5 1
f 1 2 5
f 2 3 5
f 3 4 5
f 4 1 5
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func defaults() Options {
	return Options{MaxRetry: 10, FillHoles: true, ComponentThreshold: 100, MaxHoleEdges: 100, MaxHoleDiameter: 1}
}

func TestRunTetrahedron(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "tet.obj", tetOBJ)
	out := filepath.Join(dir, "out.ply")

	res, err := New(defaults(), zaptest.NewLogger(t)).Run(in, out)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.Faces != 4 || res.Vertices != 4 || !res.Converged {
		t.Errorf("Run() = %+v, want 4 faces, 4 vertices, converged", res)
	}
	if res.NonManifold.Removed != 0 || res.HolesFound != 0 {
		t.Errorf("removed %d faces and found %d holes, want 0", res.NonManifold.Removed, res.HolesFound)
	}

	m, err := models.Load(out, 0)
	if err != nil {
		t.Fatalf("Load(output) error: %v", err)
	}
	if m.TriangleCount() != 4 {
		t.Errorf("output faces = %d, want 4", m.TriangleCount())
	}
}

func TestRunBowtie(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "bowtie.obj", bowtieOBJ)
	out := filepath.Join(dir, "out.obj")

	opts := defaults()
	opts.FillHoles = false
	res, err := New(opts, zaptest.NewLogger(t)).Run(in, out)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	// Every face on the shared vertex goes; the two far faces stay.
	if res.Faces != 2 || res.Vertices != 6 || res.IsolatedRemoved != 1 {
		t.Errorf("Run() = %d faces, %d vertices, %d isolated; want 2, 6, 1", res.Faces, res.Vertices, res.IsolatedRemoved)
	}
	if !res.Converged {
		t.Error("expected convergence")
	}
}

func TestRunFillsHoles(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "pyramid.obj", pyramidOBJ)
	out := filepath.Join(dir, "out.glb")

	for _, w := range []geom.Weighting{geom.WeightAngle, geom.WeightArea} {
		opts := defaults()
		opts.Weighting = w
		opts.Refine = true
		res, err := New(opts, zaptest.NewLogger(t)).Run(in, out)
		if err != nil {
			t.Fatalf("%v: Run() error: %v", w, err)
		}
		if res.HolesFound != 1 || res.HolesFilled != 1 || res.PatchFaces != 2 {
			t.Errorf("%v: holes = %d found, %d filled, %d patch faces; want 1, 1, 2", w, res.HolesFound, res.HolesFilled, res.PatchFaces)
		}

		m, err := models.Load(out, 0)
		if err != nil {
			t.Fatalf("Load(output) error: %v", err)
		}
		s := topology.Analyze(m.VertexCount(), m.Faces)
		if s.BorderEdges != 0 || s.NonManifoldEdges != 0 || s.RoundingDefects != 0 {
			t.Errorf("%v: output topology = %+v, want closed", w, s)
		}
	}
}

func TestRunHoleFilter(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "pyramid.obj", pyramidOBJ)

	tests := []struct {
		name          string
		maxEdges      int
		maxDiam       float64
		filled, faces int
	}{
		{"small enough", 4, 2, 1, 6},
		{"too many edges", 3, 2, 0, 4},
		{"too wide", 4, 1, 0, 4},
	}
	for _, tt := range tests {
		opts := defaults()
		opts.FilterSmallHoles = true
		opts.MaxHoleEdges = tt.maxEdges
		opts.MaxHoleDiameter = tt.maxDiam
		res, err := New(opts, nil).Run(in, filepath.Join(dir, tt.name+".stl"))
		if err != nil {
			t.Fatalf("%s: Run() error: %v", tt.name, err)
		}
		if res.HolesFilled != tt.filled || res.Faces != tt.faces {
			t.Errorf("%s: filled %d, faces %d; want %d, %d", tt.name, res.HolesFilled, res.Faces, tt.filled, tt.faces)
		}
		if res.HolesSkipped != 1-tt.filled {
			t.Errorf("%s: skipped %d, want %d", tt.name, res.HolesSkipped, 1-tt.filled)
		}
	}
}

func TestRunWithLabels(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "pyramid.obj", pyramidOBJ)
	labelIn := writeFile(t, dir, "in.json", `{"scan": "a-17", "labels": [1, 1, 1, 1, 2]}`)
	out := filepath.Join(dir, "out.obj")
	labelOut := filepath.Join(dir, "out.json")

	opts := defaults()
	opts.LabelResetValues = []int{2}
	res, err := New(opts, zaptest.NewLogger(t)).RunWithLabels(in, out, labelIn, labelOut)
	if err != nil {
		t.Fatalf("RunWithLabels() error: %v", err)
	}
	if res.LabelsReset != 1 {
		t.Errorf("LabelsReset = %d, want 1", res.LabelsReset)
	}

	lf, err := models.ReadLabelFile(labelOut)
	if err != nil {
		t.Fatalf("ReadLabelFile(output) error: %v", err)
	}
	if len(lf.Labels) != res.Vertices {
		t.Errorf("labels = %d, vertices = %d", len(lf.Labels), res.Vertices)
	}
	if lf.Labels[4] != 0 {
		t.Errorf("apex label = %d, want 0 after reset", lf.Labels[4])
	}
	raw, err := os.ReadFile(labelOut)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"scan":"a-17"`) {
		t.Errorf("label file lost its other keys: %s", raw)
	}
}

func TestRunLabelsFollowVertexRemoval(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "bowtie.obj", bowtieOBJ)
	labelIn := writeFile(t, dir, "in.json", `{"labels": [9, 1, 2, 3, 4, 5, 6]}`)
	labelOut := filepath.Join(dir, "out.json")

	opts := defaults()
	opts.FillHoles = false
	if _, err := New(opts, nil).RunWithLabels(in, filepath.Join(dir, "out.obj"), labelIn, labelOut); err != nil {
		t.Fatalf("RunWithLabels() error: %v", err)
	}
	lf, err := models.ReadLabelFile(labelOut)
	if err != nil {
		t.Fatal(err)
	}
	want := []int{1, 2, 3, 4, 5, 6}
	if len(lf.Labels) != len(want) {
		t.Fatalf("labels = %v, want %v", lf.Labels, want)
	}
	for i := range want {
		if lf.Labels[i] != want[i] {
			t.Errorf("labels = %v, want %v", lf.Labels, want)
			break
		}
	}
}

func TestRunErrors(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "pyramid.obj", pyramidOBJ)
	short := writeFile(t, dir, "short.json", `{"labels": [1, 2]}`)
	broken := writeFile(t, dir, "broken.json", `{"labels": "many"}`)
	xyz := writeFile(t, dir, "mesh.xyz", "")
	fixer := New(defaults(), nil)

	tests := []struct {
		name    string
		run     func(out string) error
		wantErr error
	}{
		{"missing input", func(out string) error {
			_, err := fixer.Run(filepath.Join(dir, "nope.obj"), out)
			return err
		}, ErrLoad},
		{"unsupported input", func(out string) error {
			_, err := fixer.Run(xyz, out)
			return err
		}, models.ErrUnsupportedFormat},
		{"label mismatch", func(out string) error {
			_, err := fixer.RunWithLabels(in, out, short, out+".json")
			return err
		}, models.ErrLabelMismatch},
		{"malformed labels", func(out string) error {
			_, err := fixer.RunWithLabels(in, out, broken, out+".json")
			return err
		}, ErrLabels},
		{"missing labels", func(out string) error {
			_, err := fixer.RunWithLabels(in, out, filepath.Join(dir, "nope.json"), out+".json")
			return err
		}, ErrLabels},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".obj")
			err := tt.run(out)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
				t.Errorf("output %s written on failure", out)
			}
		})
	}

	_, err := fixer.Run(in, filepath.Join(dir, "out.xyz"))
	if !errors.Is(err, ErrSave) || !errors.Is(err, models.ErrUnsupportedFormat) {
		t.Errorf("Run(.xyz output) error = %v, want ErrSave wrapping ErrUnsupportedFormat", err)
	}
}

// cascade is a disc fan around vertex 0 with one dangling face at vertices 2
// and 5. Each pass exposes a new non-manifold vertex.
func cascade() *models.Mesh {
	m := models.NewMesh("cascade")
	m.Vertices = make([]r3.Vec, 11)
	for i := 1; i <= 6; i++ {
		m.Faces = append(m.Faces, models.Face{0, i, i%6 + 1})
	}
	m.Faces = append(m.Faces, models.Face{2, 7, 8}, models.Face{5, 9, 10})
	return m
}

func TestRepairRetryBudget(t *testing.T) {
	tests := []struct {
		maxRetry  int
		passes    int
		faces     int
		converged bool
	}{
		{0, 1, 2, false},
		{1, 2, 0, false},
		{10, 3, 0, true},
	}
	for _, tt := range tests {
		opts := Options{MaxRetry: tt.maxRetry}
		res := New(opts, zaptest.NewLogger(t)).Repair(cascade())
		if len(res.NonManifold.Passes) != tt.passes || res.Faces != tt.faces || res.Converged != tt.converged {
			t.Errorf("maxRetry %d: passes %d, faces %d, converged %v; want %d, %d, %v",
				tt.maxRetry, len(res.NonManifold.Passes), res.Faces, res.Converged, tt.passes, tt.faces, tt.converged)
		}
	}
}

func TestRepairSelfIntersections(t *testing.T) {
	tet := func(o r3.Vec) ([]r3.Vec, []models.Face) {
		return []r3.Vec{o, r3.Add(o, r3.Vec{X: 1}), r3.Add(o, r3.Vec{Y: 1}), r3.Add(o, r3.Vec{Z: 1})},
			[]models.Face{{0, 2, 1}, {0, 1, 3}, {1, 2, 3}, {0, 3, 2}}
	}
	m := models.NewMesh("overlap")
	va, fa := tet(r3.Vec{})
	vb, fb := tet(r3.Vec{X: 0.2, Y: 0.2, Z: 0.2})
	m.Vertices = append(va, vb...)
	m.Faces = fa
	for _, f := range fb {
		m.Faces = append(m.Faces, models.Face{f[0] + 4, f[1] + 4, f[2] + 4})
	}
	if len(geom.SelfIntersections(m.Vertices, m.Faces, 1)) == 0 {
		t.Fatal("test mesh does not self intersect")
	}

	opts := Options{MaxRetry: 10, FixSelfIntersection: true, Workers: 2}
	res := New(opts, zaptest.NewLogger(t)).Repair(m)
	if res.SelfIntersectionRounds == 0 || res.SelfIntersectingRemoved == 0 {
		t.Errorf("rounds = %d, removed = %d, want both > 0", res.SelfIntersectionRounds, res.SelfIntersectingRemoved)
	}
	if !res.Converged || !res.NonManifold.Converged {
		t.Errorf("Converged = %v, NonManifold.Converged = %v, want both true", res.Converged, res.NonManifold.Converged)
	}
	removed := 0
	for _, p := range res.NonManifold.Passes {
		removed += p.Removed()
	}
	if removed != res.NonManifold.Removed {
		t.Errorf("NonManifold.Removed = %d, passes sum to %d", res.NonManifold.Removed, removed)
	}
	if got := geom.SelfIntersections(m.Vertices, m.Faces, 1); len(got) != 0 {
		t.Errorf("intersections left: %v", got)
	}
	if s := topology.Analyze(len(m.Vertices), m.Faces); s.NonManifoldEdges != 0 || s.NonManifoldVertices != 0 || s.IsolatedVertices != 0 {
		t.Errorf("Analyze() = %+v, want manifold with no isolated vertices", s)
	}
}

func TestRepairKeepsLargestComponents(t *testing.T) {
	m := models.NewMesh("parts")
	m.Vertices = []r3.Vec{{}, {X: 1}, {Y: 1}, {Z: 1}, {X: 5}, {X: 6}, {X: 5, Y: 1}}
	m.Faces = []models.Face{{0, 2, 1}, {0, 1, 3}, {1, 2, 3}, {0, 3, 2}, {4, 5, 6}}

	opts := Options{MaxRetry: 10, KeepLargest: true, ComponentThreshold: 2}
	res := New(opts, nil).Repair(m)
	if res.ComponentsRemoved != 1 || res.Faces != 4 || res.Vertices != 4 {
		t.Errorf("Repair() = %d components removed, %d faces, %d vertices; want 1, 4, 4",
			res.ComponentsRemoved, res.Faces, res.Vertices)
	}
}
