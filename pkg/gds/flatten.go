package gds

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Shape is a flattened polygon in user units.
type Shape struct {
	Layer    int
	Datatype int
	Ring     orb.Ring

	// FromPath marks outlines generated from a PATH element.
	FromPath bool
}

// Flatten resolves every reference below the named cell and returns its
// polygons in user units. Path outlines come first, followed by boundaries
// and boxes, each group in depth-first discovery order.
func (l *Library) Flatten(name string) ([]Shape, error) {
	c, ok := l.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCell, name)
	}
	unit := l.UserUnit
	if unit == 0 {
		unit = 1
	}
	f := &flattener{lib: l, unit: unit, active: make(map[string]bool)}
	if err := f.walk(c, identity); err != nil {
		return nil, err
	}
	return append(f.paths, f.polys...), nil
}

type flattener struct {
	lib    *Library
	unit   float64
	active map[string]bool
	paths  []Shape
	polys  []Shape
}

func (f *flattener) walk(c *Cell, m affine) error {
	if f.active[c.Name] {
		return fmt.Errorf("%w: %q", ErrReferenceCycle, c.Name)
	}
	f.active[c.Name] = true
	defer delete(f.active, c.Name)

	for _, e := range c.Elements {
		switch e.Kind {
		case KindBoundary, KindBox:
			ring := make(orb.Ring, len(e.XY))
			for i, pt := range e.XY {
				ring[i] = f.world(m, float64(pt.X), float64(pt.Y))
			}
			f.polys = append(f.polys, Shape{Layer: e.Layer, Datatype: e.Datatype, Ring: ring})

		case KindPath:
			for _, outline := range pathOutline(e, m.scale()) {
				ring := make(orb.Ring, len(outline))
				for i, pt := range outline {
					ring[i] = f.world(m, pt[0], pt[1])
				}
				f.paths = append(f.paths, Shape{Layer: e.Layer, Datatype: e.Datatype, Ring: ring, FromPath: true})
			}

		case KindSRef:
			child, err := f.child(c, e)
			if err != nil {
				return err
			}
			o := e.XY[0]
			if err := f.walk(child, m.mul(refAffine(e.Trans, float64(o.X), float64(o.Y)))); err != nil {
				return err
			}

		case KindARef:
			child, err := f.child(c, e)
			if err != nil {
				return err
			}
			o, pc, pr := e.XY[0], e.XY[1], e.XY[2]
			colDX := float64(pc.X-o.X) / float64(e.Cols)
			colDY := float64(pc.Y-o.Y) / float64(e.Cols)
			rowDX := float64(pr.X-o.X) / float64(e.Rows)
			rowDY := float64(pr.Y-o.Y) / float64(e.Rows)
			for col := 0; col < e.Cols; col++ {
				for row := 0; row < e.Rows; row++ {
					x := float64(o.X) + float64(col)*colDX + float64(row)*rowDX
					y := float64(o.Y) + float64(col)*colDY + float64(row)*rowDY
					if err := f.walk(child, m.mul(refAffine(e.Trans, x, y))); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

func (f *flattener) child(parent *Cell, e Element) (*Cell, error) {
	child, ok := f.lib.index[e.SName]
	if !ok {
		return nil, fmt.Errorf("%w: %q referenced from %q", ErrUnknownCell, e.SName, parent.Name)
	}
	return child, nil
}

func (f *flattener) world(m affine, x, y float64) orb.Point {
	p := m.apply(x, y)
	return orb.Point{p[0] * f.unit, p[1] * f.unit}
}

// affine maps (x, y) to (a·x + b·y + tx, c·x + d·y + ty).
type affine struct {
	a, b, c, d float64
	tx, ty     float64
}

var identity = affine{a: 1, d: 1}

func (m affine) apply(x, y float64) orb.Point {
	return orb.Point{m.a*x + m.b*y + m.tx, m.c*x + m.d*y + m.ty}
}

// mul returns the transform applying inner first and m second.
func (m affine) mul(inner affine) affine {
	return affine{
		a:  m.a*inner.a + m.b*inner.c,
		b:  m.a*inner.b + m.b*inner.d,
		c:  m.c*inner.a + m.d*inner.c,
		d:  m.c*inner.b + m.d*inner.d,
		tx: m.a*inner.tx + m.b*inner.ty + m.tx,
		ty: m.c*inner.tx + m.d*inner.ty + m.ty,
	}
}

// scale is the isotropic magnification of m.
func (m affine) scale() float64 {
	return math.Sqrt(math.Abs(m.a*m.d - m.b*m.c))
}

// refAffine builds the placement transform of a reference at (ox, oy).
// Absolute magnification and angle flags are treated as relative.
func refAffine(t Transform, ox, oy float64) affine {
	sin, cos := sinCos(t.Angle)
	mag := t.mag()
	s := 1.0
	if t.Reflect {
		s = -1
	}
	return affine{
		a: mag * cos, b: -mag * s * sin,
		c: mag * sin, d: mag * s * cos,
		tx: ox, ty: oy,
	}
}

// sinCos returns exact values for multiples of 90 degrees.
func sinCos(deg float64) (float64, float64) {
	if q := deg / 90; q == math.Trunc(q) {
		switch ((int(q) % 4) + 4) % 4 {
		case 0:
			return 0, 1
		case 1:
			return 1, 0
		case 2:
			return 0, -1
		default:
			return -1, 0
		}
	}
	return math.Sincos(deg * math.Pi / 180)
}
