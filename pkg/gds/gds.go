// Package gds reads GDSII stream files and flattens their cell hierarchy into
// layer-tagged polygons.
//
// Only the parts of the format that carry geometry are interpreted:
// boundaries, boxes, paths and cell references. Text labels, nodes and
// properties are parsed past. Coordinates are kept as integer database units
// until [Library.Flatten], which scales them to user units.
package gds

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// ContextInfoCell is the metadata cell some layout editors append to a
// library. It holds no geometry.
const ContextInfoCell = "$$$CONTEXT_INFO$$$"

// GDSII format errors.
var (
	ErrTruncated       = errors.New("truncated GDSII data")
	ErrBadRecord       = errors.New("malformed GDSII record")
	ErrNoHeader        = errors.New("missing GDSII HEADER record")
	ErrUnknownCell     = errors.New("reference to unknown cell")
	ErrReferenceCycle  = errors.New("cell reference cycle")
	ErrDuplicateCell   = errors.New("duplicate cell name")
	ErrUnexpectedEnd   = errors.New("unexpected end of GDSII stream")
	ErrUnsupportedPath = errors.New("unsupported path type")
)

// Point is a coordinate pair in database units.
type Point struct {
	X, Y int32
}

// Transform is the STRANS/MAG/ANGLE triple of a reference. It is applied as
// reflection about the x axis, then magnification, then a counterclockwise
// rotation, then the translation to the reference origin.
type Transform struct {
	Reflect  bool
	AbsMag   bool
	AbsAngle bool
	Mag      float64 // 0 means 1
	Angle    float64 // degrees
}

func (t Transform) mag() float64 {
	if t.Mag == 0 {
		return 1
	}
	return t.Mag
}

func (t Transform) isIdentity() bool {
	return !t.Reflect && !t.AbsMag && !t.AbsAngle && t.mag() == 1 && t.Angle == 0
}

// ElementKind tells which GDSII element an Element holds.
type ElementKind uint8

const (
	KindBoundary ElementKind = iota
	KindPath
	KindBox
	KindSRef
	KindARef
	KindText
	KindNode
)

var kindNames = [...]string{"boundary", "path", "box", "sref", "aref", "text", "node"}

func (k ElementKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Element is one GDSII element. Only the fields meaningful for Kind are set.
//
// Boundary and box outlines are stored without the repeated closing point.
type Element struct {
	Kind     ElementKind
	Layer    int
	Datatype int
	XY       []Point

	// Paths.
	Width    int32 // negative widths are absolute
	PathType int
	BgnExtn  int32
	EndExtn  int32

	// References.
	SName string
	Trans Transform
	Cols  int
	Rows  int

	// Text.
	String string
}

// Cell is a named structure.
type Cell struct {
	Name     string
	Elements []Element
}

// Library is a parsed GDSII file.
type Library struct {
	Name    string
	Version int

	// UserUnit is the size of a database unit in user units; MeterUnit is its
	// size in meters.
	UserUnit  float64
	MeterUnit float64

	Cells []*Cell

	// Dropped counts boundaries and boxes discarded for having fewer than
	// three distinct vertices.
	Dropped int

	index map[string]*Cell
}

// NewLibrary returns an empty library with the common 1nm/1um units.
func NewLibrary(name string) *Library {
	return &Library{
		Name:      name,
		Version:   600,
		UserUnit:  1e-3,
		MeterUnit: 1e-9,
		index:     make(map[string]*Cell),
	}
}

// AddCell appends a cell. Names must be unique.
func (l *Library) AddCell(c *Cell) error {
	if l.index == nil {
		l.index = make(map[string]*Cell)
	}
	if _, ok := l.index[c.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateCell, c.Name)
	}
	l.index[c.Name] = c
	l.Cells = append(l.Cells, c)
	return nil
}

// Cell returns the cell with the given name.
func (l *Library) Cell(name string) (*Cell, bool) {
	c, ok := l.index[name]
	return c, ok
}

// TopLevel returns the cells not referenced by any other cell, in file order.
func (l *Library) TopLevel() []*Cell {
	referenced := make(map[string]bool)
	for _, c := range l.Cells {
		for _, e := range c.Elements {
			if e.Kind == KindSRef || e.Kind == KindARef {
				referenced[e.SName] = true
			}
		}
	}
	var top []*Cell
	for _, c := range l.Cells {
		if !referenced[c.Name] {
			top = append(top, c)
		}
	}
	return top
}

// Load reads and parses the GDSII file at path.
func Load(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Read parses a GDSII stream.
func Read(r io.Reader) (*Library, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}
	return Parse(buf.Bytes())
}
