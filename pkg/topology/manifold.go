package topology

import (
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/taigrr/meshfix/pkg/models"
)

// Options control the non-manifold fixed-point loop.
type Options struct {
	// MaxRetry bounds the loop to MaxRetry+1 passes. Negative values act as 0.
	MaxRetry int
	// Workers is the goroutine limit for the per-vertex scan. 0 means GOMAXPROCS.
	Workers int
}

// PassStats describes one repair pass.
type PassStats struct {
	In, Out             int
	NonManifoldEdges    int // undirected edges with more than two faces
	ProblemVertices     int // endpoints of those edges
	NonManifoldVertices int // vertices whose remaining star split into several clusters
}

// Removed returns the number of faces the pass dropped.
func (s PassStats) Removed() int {
	return s.In - s.Out
}

// Report summarizes a fixed-point run.
type Report struct {
	Passes    []PassStats
	Removed   int
	Converged bool // the last pass removed nothing
}

// RepairNonManifold runs repair passes until one removes nothing or
// maxRetry+1 passes have run. It returns the surviving faces in input order
// and the total number of faces removed. Vertices are never renumbered.
func RepairNonManifold(vertices []r3.Vec, faces []models.Face, maxRetry int) ([]models.Face, int) {
	out, rep := Repair(len(vertices), faces, Options{MaxRetry: maxRetry})
	return out, rep.Removed
}

// Repair is RepairNonManifold with a full report and a worker setting.
func Repair(vertexCount int, faces []models.Face, opts Options) ([]models.Face, Report) {
	maxPasses := max(opts.MaxRetry, 0) + 1
	var rep Report
	for range maxPasses {
		out, stats := Pass(vertexCount, faces, opts.Workers)
		rep.Passes = append(rep.Passes, stats)
		rep.Removed += stats.Removed()
		faces = out
		if stats.Removed() == 0 {
			rep.Converged = true
			break
		}
	}
	return faces, rep
}

// Pass runs a single repair pass:
//
//  1. every face on an edge with more than two faces is condemned and both
//     endpoints of the edge become problem vertices;
//  2. every face touching a problem vertex is condemned;
//  3. each vertex star is rebuilt from the faces still alive, and a star that
//     does not form one edge-connected cluster is condemned whole.
//
// The returned faces are the survivors in input order.
func Pass(vertexCount int, faces []models.Face, workers int) ([]models.Face, PassStats) {
	stats := PassStats{In: len(faces)}
	condemned := make([]bool, len(faces))

	problem := make([]bool, vertexCount)
	BuildUndirected(faces).Each(func(k EdgeKey, incident []int) {
		if len(incident) <= 2 {
			return
		}
		stats.NonManifoldEdges++
		for _, f := range incident {
			condemned[f] = true
		}
		for _, v := range [2]int{k.A, k.B} {
			if !problem[v] {
				problem[v] = true
				stats.ProblemVertices++
			}
		}
	})

	if stats.ProblemVertices > 0 {
		for i, f := range faces {
			if problem[f[0]] || problem[f[1]] || problem[f[2]] {
				condemned[i] = true
			}
		}
	}

	stars := buildStars(vertexCount, faces, condemned)
	split, nonManifold := scanStars(stars, faces, workers)
	stats.NonManifoldVertices = nonManifold
	for _, f := range split {
		condemned[f] = true
	}

	out := keepFaces(faces, condemned)
	stats.Out = len(out)
	return out, stats
}

// stars holds the live faces around each vertex in compressed rows:
// the star of v is faces[offset[v]:offset[v+1]].
type stars struct {
	offset []int
	faces  []int
}

func (s *stars) of(v int) []int {
	return s.faces[s.offset[v]:s.offset[v+1]]
}

func (s *stars) vertexCount() int {
	return len(s.offset) - 1
}

// buildStars collects, per vertex, the faces not yet condemned. A face with a
// repeated corner is listed once per distinct corner.
func buildStars(vertexCount int, faces []models.Face, condemned []bool) *stars {
	s := &stars{offset: make([]int, vertexCount+1)}
	each := func(fn func(v, face int)) {
		for i, f := range faces {
			if condemned[i] {
				continue
			}
			fn(f[0], i)
			if f[1] != f[0] {
				fn(f[1], i)
			}
			if f[2] != f[0] && f[2] != f[1] {
				fn(f[2], i)
			}
		}
	}

	each(func(v, _ int) { s.offset[v+1]++ })
	for v := 0; v < vertexCount; v++ {
		s.offset[v+1] += s.offset[v]
	}
	s.faces = make([]int, s.offset[vertexCount])
	fill := make([]int, vertexCount)
	copy(fill, s.offset[:vertexCount])
	each(func(v, face int) {
		s.faces[fill[v]] = face
		fill[v]++
	})
	return s
}

// scanChunks is the number of vertex ranges handed out per worker, so that
// uneven star sizes still spread across goroutines.
const scanChunks = 4

type chunkResult struct {
	condemned   []int
	nonManifold int
}

// scanStars checks every star for a single edge-connected cluster. Vertices
// are split into ranges scanned concurrently; each range writes only its own
// result slot, and results are merged after all ranges finish.
func scanStars(s *stars, faces []models.Face, workers int) ([]int, int) {
	n := s.vertexCount()
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	chunks := workers * scanChunks
	if chunks > n {
		chunks = n
	}
	if chunks <= 1 {
		r := scanRange(s, faces, 0, n)
		return r.condemned, r.nonManifold
	}

	results := make([]chunkResult, chunks)
	size := (n + chunks - 1) / chunks
	var g errgroup.Group
	g.SetLimit(workers)
	for c := range chunks {
		lo := c * size
		hi := min(lo+size, n)
		if lo >= hi {
			continue
		}
		g.Go(func() error {
			results[c] = scanRange(s, faces, lo, hi)
			return nil
		})
	}
	_ = g.Wait() // scans never fail

	var condemned []int
	nonManifold := 0
	for _, r := range results {
		condemned = append(condemned, r.condemned...)
		nonManifold += r.nonManifold
	}
	return condemned, nonManifold
}

func scanRange(s *stars, faces []models.Face, lo, hi int) chunkResult {
	var r chunkResult
	var scratch clusterScratch
	for v := lo; v < hi; v++ {
		star := s.of(v)
		if len(star) < 2 {
			continue
		}
		if !scratch.singleCluster(star, faces) {
			r.nonManifold++
			r.condemned = append(r.condemned, star...)
		}
	}
	return r
}

// clusterScratch reuses buffers across stars in one range.
type clusterScratch struct {
	remaining []int
	cluster   []int
}

// singleCluster grows a cluster from the first face of the star, absorbing
// every remaining face that shares an edge with a cluster member, and reports
// whether that cluster took the whole star.
func (c *clusterScratch) singleCluster(star []int, faces []models.Face) bool {
	c.remaining = append(c.remaining[:0], star[1:]...)
	c.cluster = append(c.cluster[:0], star[0])
	for i := 0; i < len(c.cluster) && len(c.remaining) > 0; i++ {
		seed := faces[c.cluster[i]]
		k := 0
		for _, f := range c.remaining {
			if shareEdge(seed, faces[f]) {
				c.cluster = append(c.cluster, f)
				continue
			}
			c.remaining[k] = f
			k++
		}
		c.remaining = c.remaining[:k]
	}
	return len(c.remaining) == 0
}

// clusterCount splits a star into share-an-edge clusters and returns how many
// there are.
func clusterCount(star []int, faces []models.Face) int {
	var c clusterScratch
	count := 0
	for len(star) > 0 {
		count++
		if c.singleCluster(star, faces) {
			break
		}
		star = append([]int(nil), c.remaining...)
	}
	return count
}

// shareEdge reports whether a and b have a side with the same unordered
// vertex pair. The side need not contain the star's pivot vertex.
func shareEdge(a, b models.Face) bool {
	for i := 0; i < 3; i++ {
		ea := Undirected(a.Edge(i))
		for j := 0; j < 3; j++ {
			if ea == Undirected(b.Edge(j)) {
				return true
			}
		}
	}
	return false
}
