package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/taigrr/meshfix/pkg/geom"
	"github.com/taigrr/meshfix/pkg/models"
	"github.com/taigrr/meshfix/pkg/topology"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle   = lipgloss.NewStyle().Width(22)
	goodStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	badStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <model>",
		Short: "Display model information",
		Long:  "Display the format, size, bounding box and topology defects of a mesh file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(cmd.OutOrStdout(), args[0])
		},
	}
}

func runInfo(w io.Writer, modelPath string) error {
	info, err := os.Stat(modelPath)
	if err != nil {
		return fmt.Errorf("cannot access file: %w", err)
	}
	mesh, err := models.Load(modelPath, 0)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}

	size := mesh.Size()
	center := mesh.Center()
	s := topology.Analyze(mesh.VertexCount(), mesh.Faces)
	loops := geom.BoundaryLoops(mesh.Faces)
	comps := geom.Components(mesh.Faces)

	row := func(label, value string) string {
		return labelStyle.Render(label) + value
	}
	defect := func(label string, n int) string {
		style := goodStyle
		if n > 0 {
			style = badStyle
		}
		return row(label, style.Render(fmt.Sprint(n)))
	}

	lines := []string{
		headingStyle.Render(filepath.Base(modelPath)),
		row("Format:", strings.ToUpper(models.Format(modelPath))),
		row("Size:", fmt.Sprintf("%.2f KB", float64(info.Size())/1024)),
		"",
		row("Vertices:", fmt.Sprint(mesh.VertexCount())),
		row("Triangles:", fmt.Sprint(mesh.TriangleCount())),
		row("Edges:", fmt.Sprint(s.Edges)),
		"",
		row("Bounds Min:", fmt.Sprintf("(%.3f, %.3f, %.3f)", mesh.Bounds.Min.X, mesh.Bounds.Min.Y, mesh.Bounds.Min.Z)),
		row("Bounds Max:", fmt.Sprintf("(%.3f, %.3f, %.3f)", mesh.Bounds.Max.X, mesh.Bounds.Max.Y, mesh.Bounds.Max.Z)),
		row("Dimensions:", fmt.Sprintf("%.3f x %.3f x %.3f", size.X, size.Y, size.Z)),
		row("Center:", fmt.Sprintf("(%.3f, %.3f, %.3f)", center.X, center.Y, center.Z)),
		"",
		headingStyle.Render("Topology"),
		defect("Non-manifold edges:", s.NonManifoldEdges),
		defect("Non-manifold vertices:", s.NonManifoldVertices),
		defect("Rounding defects:", s.RoundingDefects),
		defect("Border edges:", s.BorderEdges),
		defect("Boundary loops:", len(loops)),
		defect("Isolated vertices:", s.IsolatedVertices),
		row("Components:", fmt.Sprint(len(comps))),
	}
	_, err = fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left, lines...))
	return err
}
