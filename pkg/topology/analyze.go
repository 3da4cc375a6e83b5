package topology

import "github.com/taigrr/meshfix/pkg/models"

// Summary counts topological defects without changing anything.
type Summary struct {
	Edges               int
	BorderEdges         int // undirected edges with exactly one face
	NonManifoldEdges    int // undirected edges with more than two faces
	NonManifoldVertices int // vertices whose star splits into several clusters
	RoundingDefects     int // directed edges used by more than one face
	IsolatedVertices    int
}

// Analyze computes a Summary for the given faces over vertexCount vertices.
func Analyze(vertexCount int, faces []models.Face) Summary {
	var s Summary

	undirected := BuildUndirected(faces)
	s.Edges = undirected.Len()
	undirected.Each(func(_ EdgeKey, incident []int) {
		switch {
		case len(incident) == 1:
			s.BorderEdges++
		case len(incident) > 2:
			s.NonManifoldEdges++
		}
	})

	BuildDirected(faces).Each(func(_ EdgeKey, incident []int) {
		if len(incident) > 1 {
			s.RoundingDefects++
		}
	})

	st := buildStars(vertexCount, faces, make([]bool, len(faces)))
	for v := 0; v < vertexCount; v++ {
		star := st.of(v)
		switch {
		case len(star) == 0:
			s.IsolatedVertices++
		case clusterCount(star, faces) > 1:
			s.NonManifoldVertices++
		}
	}
	return s
}
