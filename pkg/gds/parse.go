package gds

import (
	"fmt"
)

// Parse decodes a complete GDSII stream held in data.
func Parse(data []byte) (*Library, error) {
	p := &parser{data: data, lib: &Library{index: make(map[string]*Cell)}}
	if err := p.run(); err != nil {
		return nil, err
	}
	return p.lib, nil
}

type parser struct {
	data []byte
	off  int
	lib  *Library
}

func (p *parser) next() (record, error) {
	if p.off >= len(p.data) {
		return record{}, ErrUnexpectedEnd
	}
	r, off, err := readRecord(p.data, p.off)
	if err != nil {
		return record{}, err
	}
	p.off = off
	return r, nil
}

func (p *parser) run() error {
	r, err := p.next()
	if err != nil {
		return err
	}
	if r.Type != RecHeader {
		return ErrNoHeader
	}
	v, err := r.int16()
	if err != nil {
		return err
	}
	p.lib.Version = int(v)

	for {
		r, err := p.next()
		if err != nil {
			return err
		}
		switch r.Type {
		case RecLibName:
			p.lib.Name = r.str()
		case RecUnits:
			u := r.real8s()
			if len(u) != 2 {
				return fmt.Errorf("%w: UNITS holds %d values", ErrBadRecord, len(u))
			}
			p.lib.UserUnit, p.lib.MeterUnit = u[0], u[1]
		case RecBgnStr:
			c, err := p.cell()
			if err != nil {
				return err
			}
			if err := p.lib.AddCell(c); err != nil {
				return err
			}
		case RecEndLib:
			return nil
		}
	}
}

func (p *parser) cell() (*Cell, error) {
	c := &Cell{}
	for {
		r, err := p.next()
		if err != nil {
			return nil, err
		}
		switch r.Type {
		case RecStrName:
			c.Name = r.str()
		case RecEndStr:
			return c, nil
		case RecBoundary, RecPath, RecSRef, RecARef, RecText, RecNode, RecBox:
			e, err := p.element(kindOf(r.Type))
			if err != nil {
				return nil, fmt.Errorf("cell %q: %w", c.Name, err)
			}
			if (e.Kind == KindBoundary || e.Kind == KindBox) && distinct(e.XY) < 3 {
				p.lib.Dropped++
				continue
			}
			c.Elements = append(c.Elements, e)
		}
	}
}

func kindOf(t RecordType) ElementKind {
	switch t {
	case RecPath:
		return KindPath
	case RecSRef:
		return KindSRef
	case RecARef:
		return KindARef
	case RecText:
		return KindText
	case RecNode:
		return KindNode
	case RecBox:
		return KindBox
	}
	return KindBoundary
}

func (p *parser) element(kind ElementKind) (Element, error) {
	e := Element{Kind: kind}
	for {
		r, err := p.next()
		if err != nil {
			return e, err
		}
		switch r.Type {
		case RecEndEl:
			return e, p.finish(&e)
		case RecLayer:
			v, err := r.int16()
			if err != nil {
				return e, err
			}
			e.Layer = int(v)
		case RecDatatype, RecBoxType, RecTextType, RecNodeType:
			v, err := r.int16()
			if err != nil {
				return e, err
			}
			e.Datatype = int(v)
		case RecWidth:
			if e.Width, err = r.int32(); err != nil {
				return e, err
			}
		case RecPathType:
			v, err := r.int16()
			if err != nil {
				return e, err
			}
			e.PathType = int(v)
		case RecBgnExtn:
			if e.BgnExtn, err = r.int32(); err != nil {
				return e, err
			}
		case RecEndExtn:
			if e.EndExtn, err = r.int32(); err != nil {
				return e, err
			}
		case RecXY:
			v := r.int32s()
			if len(v)%2 != 0 {
				return e, fmt.Errorf("%w: XY with odd coordinate count", ErrBadRecord)
			}
			e.XY = make([]Point, len(v)/2)
			for i := range e.XY {
				e.XY[i] = Point{v[2*i], v[2*i+1]}
			}
		case RecSName:
			e.SName = r.str()
		case RecSTrans:
			v, err := r.int16()
			if err != nil {
				return e, err
			}
			flags := uint16(v)
			e.Trans.Reflect = flags&stransReflect != 0
			e.Trans.AbsMag = flags&stransAbsMag != 0
			e.Trans.AbsAngle = flags&stransAbsAngle != 0
		case RecMag:
			if e.Trans.Mag, err = r.real8(); err != nil {
				return e, err
			}
		case RecAngle:
			if e.Trans.Angle, err = r.real8(); err != nil {
				return e, err
			}
		case RecColRow:
			v := r.int16s()
			if len(v) != 2 {
				return e, fmt.Errorf("%w: COLROW holds %d values", ErrBadRecord, len(v))
			}
			e.Cols, e.Rows = int(v[0]), int(v[1])
		case RecString:
			e.String = r.str()
		}
	}
}

// finish validates e and normalizes its outline.
func (p *parser) finish(e *Element) error {
	switch e.Kind {
	case KindBoundary, KindBox:
		e.XY = openRing(e.XY)
	case KindPath:
		if len(e.XY) < 1 {
			return fmt.Errorf("%w: path without points", ErrBadRecord)
		}
	case KindSRef:
		if len(e.XY) != 1 {
			return fmt.Errorf("%w: SREF to %q has %d points", ErrBadRecord, e.SName, len(e.XY))
		}
	case KindARef:
		if len(e.XY) != 3 {
			return fmt.Errorf("%w: AREF to %q has %d points", ErrBadRecord, e.SName, len(e.XY))
		}
		if e.Cols < 1 || e.Rows < 1 {
			return fmt.Errorf("%w: AREF to %q has %dx%d instances", ErrBadRecord, e.SName, e.Cols, e.Rows)
		}
	}
	return nil
}

// openRing drops the repeated closing point.
func openRing(xy []Point) []Point {
	if len(xy) > 1 && xy[len(xy)-1] == xy[0] {
		return xy[:len(xy)-1]
	}
	return xy
}

func distinct(xy []Point) int {
	seen := make(map[Point]struct{}, len(xy))
	for _, pt := range xy {
		seen[pt] = struct{}{}
	}
	return len(seen)
}
