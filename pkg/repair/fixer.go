// Package repair sequences the topology and geometry passes that turn a
// triangle soup into a manifold mesh.
package repair

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/taigrr/meshfix/pkg/geom"
	"github.com/taigrr/meshfix/pkg/models"
	"github.com/taigrr/meshfix/pkg/topology"
)

// Run errors. Each wraps the underlying cause.
var (
	ErrLoad   = errors.New("load mesh")
	ErrLabels = errors.New("load labels")
	ErrSave   = errors.New("save output")
)

// Options select the repair steps.
type Options struct {
	MaxRetry int
	Workers  int

	FixSelfIntersection bool
	KeepLargest         bool
	ComponentThreshold  int

	FillHoles        bool
	FilterSmallHoles bool
	MaxHoleEdges     int
	MaxHoleDiameter  float64
	Refine           bool
	Weighting        geom.Weighting

	WeldTolerance    float64
	LabelResetBelow  int
	LabelResetValues []int
}

// Result reports what a run did.
type Result struct {
	InputVertices, InputFaces int

	RoundingRemoved int
	NonManifold     topology.Report
	IsolatedRemoved int

	SelfIntersectionRounds  int
	SelfIntersectingRemoved int

	ComponentsRemoved int

	HolesFound   int
	HolesFilled  int
	HolesSkipped int
	PatchFaces   int

	LabelsReset int

	Vertices, Faces int
	// Converged is false when a retry budget ran out while faces were still
	// being removed. The output is still written.
	Converged bool
}

// Fixer runs the repair pipeline.
type Fixer struct {
	opts Options
	log  *zap.Logger
}

// New returns a Fixer. A nil logger discards output.
func New(opts Options, log *zap.Logger) *Fixer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Fixer{opts: opts, log: log}
}

// Run repairs the mesh at in and writes it to out.
func (f *Fixer) Run(in, out string) (*Result, error) {
	m, err := f.load(in)
	if err != nil {
		return nil, err
	}
	res := f.Repair(m)
	if err := models.Save(m, out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSave, err)
	}
	f.log.Info("wrote mesh", zap.String("path", out), zap.Int("vertices", res.Vertices), zap.Int("faces", res.Faces))
	return res, nil
}

// RunWithLabels is Run for a mesh with a per-vertex label file. Labels are
// checked against the loaded vertices before anything is written, follow
// every vertex removal and insertion, and are written to labelOut.
func (f *Fixer) RunWithLabels(in, out, labelIn, labelOut string) (*Result, error) {
	m, err := f.load(in)
	if err != nil {
		return nil, err
	}
	lf, err := models.ReadLabelFile(labelIn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLabels, err)
	}
	reset := lf.Normalize(f.opts.LabelResetBelow, f.opts.LabelResetValues)
	if err := lf.Attach(m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLabels, err)
	}

	res := f.Repair(m)
	res.LabelsReset = reset
	if err := models.Save(m, out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSave, err)
	}
	if err := lf.WriteLabelFile(labelOut, m.Labels); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSave, err)
	}
	f.log.Info("wrote mesh and labels",
		zap.String("path", out),
		zap.String("labels", labelOut),
		zap.Int("vertices", res.Vertices),
		zap.Int("faces", res.Faces),
	)
	return res, nil
}

func (f *Fixer) load(path string) (*models.Mesh, error) {
	m, err := models.Load(path, f.opts.WeldTolerance)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	f.log.Info("loaded mesh", zap.String("path", path), zap.Int("vertices", m.VertexCount()), zap.Int("faces", m.TriangleCount()))
	return m, nil
}

// Repair runs the pipeline on m in place.
func (f *Fixer) Repair(m *models.Mesh) *Result {
	res := &Result{InputVertices: len(m.Vertices), InputFaces: len(m.Faces)}

	faces := topology.RepairRounding(m.Vertices, m.Faces)
	res.RoundingRemoved = len(m.Faces) - len(faces)
	f.log.Debug("rounding filter", zap.Int("removed", res.RoundingRemoved))

	m.Faces, res.NonManifold = f.nonManifold(len(m.Vertices), faces)
	res.Converged = res.NonManifold.Converged
	res.IsolatedRemoved = m.RemoveUnreferencedVertices()

	if f.opts.FixSelfIntersection {
		if !f.fixSelfIntersections(m, res) {
			res.Converged = false
		}
	}

	if f.opts.KeepLargest {
		res.ComponentsRemoved = geom.KeepLargestComponents(m, f.opts.ComponentThreshold)
		f.log.Debug("small components removed", zap.Int("components", res.ComponentsRemoved))
	}

	if f.opts.FillHoles {
		f.fillHoles(m, res)
	}

	m.CalculateBounds()
	res.Vertices, res.Faces = len(m.Vertices), len(m.Faces)
	if !res.Converged {
		f.log.Warn("retry budget exhausted, output may keep defects", zap.Int("max_retry", f.opts.MaxRetry))
	}
	return res
}

func (f *Fixer) nonManifold(vertexCount int, faces []models.Face) ([]models.Face, topology.Report) {
	out, rep := topology.Repair(vertexCount, faces, topology.Options{MaxRetry: f.opts.MaxRetry, Workers: f.opts.Workers})
	for i, p := range rep.Passes {
		f.log.Debug("non-manifold pass",
			zap.Int("pass", i+1),
			zap.Int("faces_in", p.In),
			zap.Int("faces_out", p.Out),
			zap.Int("non_manifold_edges", p.NonManifoldEdges),
			zap.Int("problem_vertices", p.ProblemVertices),
			zap.Int("non_manifold_vertices", p.NonManifoldVertices),
		)
	}
	return out, rep
}

// fixSelfIntersections removes both faces of every intersecting pair, then
// restores manifoldness, for at most MaxRetry+1 rounds. It reports whether
// the last round found no intersections.
func (f *Fixer) fixSelfIntersections(m *models.Mesh, res *Result) bool {
	rounds := max(f.opts.MaxRetry, 0) + 1
	for range rounds {
		pairs := geom.SelfIntersections(m.Vertices, m.Faces, f.opts.Workers)
		f.log.Debug("self intersections", zap.Int("round", res.SelfIntersectionRounds+1), zap.Int("pairs", len(pairs)))
		if len(pairs) == 0 {
			return true
		}
		res.SelfIntersectionRounds++

		drop := make([]bool, len(m.Faces))
		for _, p := range pairs {
			drop[p.A] = true
			drop[p.B] = true
		}
		kept := make([]models.Face, 0, len(m.Faces))
		for i, face := range m.Faces {
			if !drop[i] {
				kept = append(kept, face)
			}
		}
		res.SelfIntersectingRemoved += len(m.Faces) - len(kept)

		var rep topology.Report
		m.Faces, rep = f.nonManifold(len(m.Vertices), kept)
		res.NonManifold.Removed += rep.Removed
		res.NonManifold.Passes = append(res.NonManifold.Passes, rep.Passes...)
		res.NonManifold.Converged = rep.Converged
		res.IsolatedRemoved += m.RemoveUnreferencedVertices()
		if !rep.Converged {
			return false
		}
	}
	return len(geom.SelfIntersections(m.Vertices, m.Faces, f.opts.Workers)) == 0
}

// fillHoles triangulates each boundary loop, skipping large ones when
// FilterSmallHoles is set. Patches are computed against the faces present
// before any hole is filled.
func (f *Fixer) fillHoles(m *models.Mesh, res *Result) {
	base := m.Faces
	loops := geom.BoundaryLoops(base)
	res.HolesFound = len(loops)

	var patches []models.Face
	for _, loop := range loops {
		if f.opts.FilterSmallHoles && !geom.IsSmallHole(m.Vertices, loop, f.opts.MaxHoleEdges, f.opts.MaxHoleDiameter) {
			res.HolesSkipped++
			continue
		}
		patch := geom.Triangulate(m.Vertices, base, loop, f.opts.Weighting)
		if f.opts.Refine {
			patch = geom.Refine(m, patch, loop)
		}
		patches = append(patches, patch...)
		res.HolesFilled++
	}
	res.PatchFaces = len(patches)
	m.Faces = append(base, patches...)
	f.log.Debug("holes",
		zap.Int("found", res.HolesFound),
		zap.Int("filled", res.HolesFilled),
		zap.Int("skipped", res.HolesSkipped),
		zap.Int("patch_faces", res.PatchFaces),
	)
}
