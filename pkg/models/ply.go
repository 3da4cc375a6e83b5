package models

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

var errBadPLY = errors.New("malformed PLY")

// maxPLYList bounds the length of a single list property.
const maxPLYList = 1 << 16

// plyProperty is one scalar or list property of a PLY element.
type plyProperty struct {
	name      string
	typ       string // scalar type, or item type for lists
	countType string // non-empty for list properties
}

type plyElement struct {
	name  string
	count int
	props []plyProperty
}

// PLYLoader loads Stanford PLY files in ascii and binary_little_endian form.
// Only vertex x/y/z and the face vertex_indices list are kept.
type PLYLoader struct{}

// NewPLYLoader creates a new PLY loader.
func NewPLYLoader() *PLYLoader {
	return &PLYLoader{}
}

// LoadFile loads a PLY file from disk.
func (l *PLYLoader) LoadFile(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PLY file: %w", err)
	}
	defer f.Close()
	return l.Load(f, path)
}

// Load parses a PLY stream.
func (l *PLYLoader) Load(r io.Reader, name string) (*Mesh, error) {
	br := bufio.NewReader(r)
	format, elements, err := readPLYHeader(br)
	if err != nil {
		return nil, err
	}

	var read plyReader
	switch format {
	case "ascii":
		read = &plyASCII{r: br}
	case "binary_little_endian":
		read = &plyBinary{r: br}
	default:
		return nil, fmt.Errorf("PLY format %q: %w", format, ErrUnsupportedFormat)
	}

	mesh := NewMesh(name)
	for _, el := range elements {
		for i := 0; i < el.count; i++ {
			if err := read.startRecord(); err != nil {
				return nil, fmt.Errorf("%s %d: %w", el.name, i, err)
			}
			var pos r3.Vec
			for _, p := range el.props {
				if p.countType != "" {
					n, err := read.value(p.countType)
					if err != nil {
						return nil, fmt.Errorf("%s %d: %w", el.name, i, err)
					}
					if math.IsNaN(n) || n < 0 || n > maxPLYList || n != math.Trunc(n) {
						return nil, fmt.Errorf("%s %d: list count %v: %w", el.name, i, n, errBadPLY)
					}
					items := make([]int, int(n))
					for k := range items {
						v, err := read.value(p.typ)
						if err != nil {
							return nil, fmt.Errorf("%s %d: %w", el.name, i, err)
						}
						items[k] = int(v)
					}
					if el.name == "face" && (p.name == "vertex_indices" || p.name == "vertex_index") {
						for k := 1; k+1 < len(items); k++ {
							mesh.Faces = append(mesh.Faces, Face{items[0], items[k], items[k+1]})
						}
					}
					continue
				}
				v, err := read.value(p.typ)
				if err != nil {
					return nil, fmt.Errorf("%s %d: %w", el.name, i, err)
				}
				if el.name == "vertex" {
					switch p.name {
					case "x":
						pos.X = v
					case "y":
						pos.Y = v
					case "z":
						pos.Z = v
					}
				}
			}
			if el.name == "vertex" {
				mesh.Vertices = append(mesh.Vertices, pos)
			}
		}
	}

	mesh.CalculateBounds()
	return mesh, nil
}

func readPLYHeader(br *bufio.Reader) (string, []*plyElement, error) {
	magic, err := br.ReadString('\n')
	if err != nil || strings.TrimSpace(magic) != "ply" {
		return "", nil, fmt.Errorf("missing ply magic: %w", errBadPLY)
	}

	var format string
	var elements []*plyElement
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return "", nil, fmt.Errorf("header: %w", errBadPLY)
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "format":
			if len(fields) < 2 {
				return "", nil, fmt.Errorf("format line: %w", errBadPLY)
			}
			format = fields[1]
		case "element":
			if len(fields) < 3 {
				return "", nil, fmt.Errorf("element line: %w", errBadPLY)
			}
			n, err := strconv.Atoi(fields[2])
			if err != nil || n < 0 {
				return "", nil, fmt.Errorf("element count %q: %w", fields[2], errBadPLY)
			}
			elements = append(elements, &plyElement{name: fields[1], count: n})
		case "property":
			if len(elements) == 0 {
				return "", nil, fmt.Errorf("property before element: %w", errBadPLY)
			}
			el := elements[len(elements)-1]
			if len(fields) >= 5 && fields[1] == "list" {
				el.props = append(el.props, plyProperty{name: fields[4], typ: fields[3], countType: fields[2]})
			} else if len(fields) >= 3 {
				el.props = append(el.props, plyProperty{name: fields[2], typ: fields[1]})
			} else {
				return "", nil, fmt.Errorf("property line: %w", errBadPLY)
			}
		case "end_header":
			return format, elements, nil
		}
	}
}

type plyReader interface {
	startRecord() error
	value(typ string) (float64, error)
}

type plyASCII struct {
	r      *bufio.Reader
	fields []string
}

func (p *plyASCII) startRecord() error {
	for {
		line, err := p.r.ReadString('\n')
		if len(line) == 0 && err != nil {
			return fmt.Errorf("unexpected end of data: %w", errBadPLY)
		}
		p.fields = strings.Fields(line)
		if len(p.fields) > 0 {
			return nil
		}
	}
}

func (p *plyASCII) value(string) (float64, error) {
	if len(p.fields) == 0 {
		return 0, fmt.Errorf("short record: %w", errBadPLY)
	}
	v, err := strconv.ParseFloat(p.fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", p.fields[0], errBadPLY)
	}
	p.fields = p.fields[1:]
	return v, nil
}

type plyBinary struct {
	r   *bufio.Reader
	buf [8]byte
}

func (p *plyBinary) startRecord() error { return nil }

func (p *plyBinary) value(typ string) (float64, error) {
	size := plyTypeSize(typ)
	if size == 0 {
		return 0, fmt.Errorf("property type %q: %w", typ, errBadPLY)
	}
	b := p.buf[:size]
	if _, err := io.ReadFull(p.r, b); err != nil {
		return 0, fmt.Errorf("unexpected end of data: %w", errBadPLY)
	}
	le := binary.LittleEndian
	switch typ {
	case "char", "int8":
		return float64(int8(b[0])), nil
	case "uchar", "uint8":
		return float64(b[0]), nil
	case "short", "int16":
		return float64(int16(le.Uint16(b))), nil
	case "ushort", "uint16":
		return float64(le.Uint16(b)), nil
	case "int", "int32":
		return float64(int32(le.Uint32(b))), nil
	case "uint", "uint32":
		return float64(le.Uint32(b)), nil
	case "float", "float32":
		return float64(math.Float32frombits(le.Uint32(b))), nil
	default:
		return math.Float64frombits(le.Uint64(b)), nil
	}
}

func plyTypeSize(typ string) int {
	switch typ {
	case "char", "int8", "uchar", "uint8":
		return 1
	case "short", "int16", "ushort", "uint16":
		return 2
	case "int", "int32", "uint", "uint32", "float", "float32":
		return 4
	case "double", "float64":
		return 8
	}
	return 0
}

// LoadPLY is a convenience function to load a PLY file.
func LoadPLY(path string) (*Mesh, error) {
	return NewPLYLoader().LoadFile(path)
}

// WritePLY writes the mesh as binary little-endian PLY. When colors is non-nil
// each vertex carries uchar red/green/blue.
func WritePLY(w io.Writer, m *Mesh, colors []r3.Vec) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "ply")
	fmt.Fprintln(bw, "format binary_little_endian 1.0")
	fmt.Fprintln(bw, "comment meshfix")
	fmt.Fprintf(bw, "element vertex %d\n", len(m.Vertices))
	fmt.Fprintln(bw, "property float x")
	fmt.Fprintln(bw, "property float y")
	fmt.Fprintln(bw, "property float z")
	if colors != nil {
		fmt.Fprintln(bw, "property uchar red")
		fmt.Fprintln(bw, "property uchar green")
		fmt.Fprintln(bw, "property uchar blue")
	}
	fmt.Fprintf(bw, "element face %d\n", len(m.Faces))
	fmt.Fprintln(bw, "property list uchar int vertex_indices")
	fmt.Fprintln(bw, "end_header")

	le := binary.LittleEndian
	var buf [12]byte
	for i, v := range m.Vertices {
		le.PutUint32(buf[0:], math.Float32bits(float32(v.X)))
		le.PutUint32(buf[4:], math.Float32bits(float32(v.Y)))
		le.PutUint32(buf[8:], math.Float32bits(float32(v.Z)))
		bw.Write(buf[:12])
		if colors != nil {
			c := colors[i]
			bw.Write([]byte{colorByte(c.X), colorByte(c.Y), colorByte(c.Z)})
		}
	}
	for _, f := range m.Faces {
		bw.WriteByte(3)
		le.PutUint32(buf[0:], uint32(int32(f[0])))
		le.PutUint32(buf[4:], uint32(int32(f[1])))
		le.PutUint32(buf[8:], uint32(int32(f[2])))
		bw.Write(buf[:12])
	}
	return bw.Flush()
}

func colorByte(c float64) byte {
	return byte(math.Round(math.Max(0, math.Min(1, c)) * 255))
}
