package models

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/goccy/go-json"
	"gonum.org/v1/gonum/spatial/r3"
)

// Label errors.
var (
	ErrLabelMismatch   = errors.New("label count does not match vertex count")
	ErrMalformedLabels = errors.New("malformed label file")
)

// labelsKey is the document key holding the per-vertex label array.
const labelsKey = "labels"

// LabelFile is a JSON label document. Keys other than "labels" are kept
// verbatim so that writing back only replaces the label array.
type LabelFile struct {
	Labels []int
	fields map[string]json.RawMessage
}

// ReadLabelFile parses a label document of the form {"labels": [int, ...], ...}.
func ReadLabelFile(path string) (*LabelFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	return ParseLabels(data)
}

// ParseLabels parses label document bytes.
func ParseLabels(data []byte) (*LabelFile, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLabels, err)
	}
	raw, ok := fields[labelsKey]
	if !ok {
		return nil, fmt.Errorf("%w: no %q key", ErrMalformedLabels, labelsKey)
	}
	var labels []int
	if err := json.Unmarshal(raw, &labels); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLabels, err)
	}
	if labels == nil {
		labels = []int{}
	}
	return &LabelFile{Labels: labels, fields: fields}, nil
}

// Normalize resets labels that are below resetBelow or equal to one of
// resetValues to 0. Returns how many labels changed.
func (lf *LabelFile) Normalize(resetBelow int, resetValues []int) int {
	n := 0
	for i, l := range lf.Labels {
		if l == 0 {
			continue
		}
		if l < resetBelow || slices.Contains(resetValues, l) {
			lf.Labels[i] = 0
			n++
		}
	}
	return n
}

// Attach installs the labels on m after checking they align with its vertices.
func (lf *LabelFile) Attach(m *Mesh) error {
	if len(lf.Labels) != len(m.Vertices) {
		return fmt.Errorf("%d labels for %d vertices: %w", len(lf.Labels), len(m.Vertices), ErrLabelMismatch)
	}
	m.Labels = slices.Clone(lf.Labels)
	return nil
}

// Marshal returns the document with its label array replaced by labels.
func (lf *LabelFile) Marshal(labels []int) ([]byte, error) {
	out := make(map[string]json.RawMessage, len(lf.fields)+1)
	for k, v := range lf.fields {
		out[k] = v
	}
	if labels == nil {
		labels = []int{}
	}
	raw, err := json.Marshal(labels)
	if err != nil {
		return nil, err
	}
	out[labelsKey] = raw
	return json.Marshal(out)
}

// WriteLabelFile writes the document to path with labels as its label array.
func (lf *LabelFile) WriteLabelFile(path string, labels []int) error {
	data, err := lf.Marshal(labels)
	if err != nil {
		return fmt.Errorf("encode labels: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write labels: %w", err)
	}
	return nil
}

// palette holds the label colors; label l uses palette[l mod 10].
var palette = [10][3]uint8{
	{142, 207, 201},
	{255, 190, 122},
	{250, 127, 111},
	{130, 176, 210},
	{190, 184, 220},
	{40, 120, 181},
	{248, 172, 140},
	{255, 136, 132},
	{84, 179, 69},
	{137, 131, 191},
}

// LabelColor returns the RGB color of label l with components in [0, 1].
func LabelColor(l int) r3.Vec {
	c := palette[((l%10)+10)%10]
	return r3.Vec{X: float64(c[0]) / 255, Y: float64(c[1]) / 255, Z: float64(c[2]) / 255}
}

// LabelColors maps every label to its palette color.
func LabelColors(labels []int) []r3.Vec {
	colors := make([]r3.Vec, len(labels))
	for i, l := range labels {
		colors[i] = LabelColor(l)
	}
	return colors
}
