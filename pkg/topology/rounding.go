package topology

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/taigrr/meshfix/pkg/models"
)

// RepairRounding drops every face that has a side on a directed edge used by
// more than one face. Two faces with the same directed edge are either
// duplicates or have inconsistent winding, which import rounding produces and
// which cannot be fixed locally. The vertex array is not touched.
func RepairRounding(vertices []r3.Vec, faces []models.Face) []models.Face {
	out, _ := repairRounding(faces)
	return out
}

// repairRounding returns the filtered faces and the number of problematic
// directed edges.
func repairRounding(faces []models.Face) ([]models.Face, int) {
	ix := BuildDirected(faces)

	drop := make([]bool, len(faces))
	bad := 0
	ix.Each(func(_ EdgeKey, incident []int) {
		if len(incident) < 2 {
			return
		}
		bad++
		for _, f := range incident {
			drop[f] = true
		}
	})
	return keepFaces(faces, drop), bad
}

// keepFaces returns the faces whose drop flag is false, in order.
func keepFaces(faces []models.Face, drop []bool) []models.Face {
	out := make([]models.Face, 0, len(faces))
	for i, f := range faces {
		if !drop[i] {
			out = append(out, f)
		}
	}
	return out
}
