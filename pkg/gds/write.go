package gds

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Write encodes lib as a GDSII stream. Timestamps are written as zero so the
// output depends only on the library contents.
func Write(w io.Writer, lib *Library) error {
	enc := &encoder{w: bufio.NewWriter(w)}

	version := lib.Version
	if version == 0 {
		version = 600
	}
	enc.int16s(RecHeader, int16(version))
	enc.int16s(RecBgnLib, make([]int16, 12)...)
	enc.str(RecLibName, lib.Name)
	enc.real8s(RecUnits, lib.UserUnit, lib.MeterUnit)

	for _, c := range lib.Cells {
		enc.int16s(RecBgnStr, make([]int16, 12)...)
		enc.str(RecStrName, c.Name)
		for _, e := range c.Elements {
			enc.element(e)
		}
		enc.empty(RecEndStr)
	}
	enc.empty(RecEndLib)

	if enc.err != nil {
		return enc.err
	}
	return enc.w.Flush()
}

type encoder struct {
	w   *bufio.Writer
	err error
}

func (e *encoder) record(t RecordType, d DataType, body []byte) {
	if e.err != nil {
		return
	}
	n := recordHeaderSize + len(body)
	if n > math.MaxUint16 {
		e.err = fmt.Errorf("%w: record 0x%02x of %d bytes", ErrBadRecord, uint8(t), n)
		return
	}
	var hdr [recordHeaderSize]byte
	binary.BigEndian.PutUint16(hdr[:], uint16(n))
	hdr[2], hdr[3] = byte(t), byte(d)
	if _, err := e.w.Write(hdr[:]); err != nil {
		e.err = err
		return
	}
	if _, err := e.w.Write(body); err != nil {
		e.err = err
	}
}

func (e *encoder) empty(t RecordType) { e.record(t, DataNone, nil) }

func (e *encoder) int16s(t RecordType, v ...int16) {
	body := make([]byte, 2*len(v))
	for i, x := range v {
		binary.BigEndian.PutUint16(body[2*i:], uint16(x))
	}
	e.record(t, DataInt16, body)
}

func (e *encoder) bits(t RecordType, v uint16) {
	var body [2]byte
	binary.BigEndian.PutUint16(body[:], v)
	e.record(t, DataBitArray, body[:])
}

func (e *encoder) int32s(t RecordType, v ...int32) {
	body := make([]byte, 4*len(v))
	for i, x := range v {
		binary.BigEndian.PutUint32(body[4*i:], uint32(x))
	}
	e.record(t, DataInt32, body)
}

func (e *encoder) real8s(t RecordType, v ...float64) {
	body := make([]byte, 0, 8*len(v))
	for _, x := range v {
		b := encodeReal8(x)
		body = append(body, b[:]...)
	}
	e.record(t, DataReal8, body)
}

func (e *encoder) str(t RecordType, s string) {
	body := []byte(s)
	if len(body)%2 != 0 {
		body = append(body, 0)
	}
	e.record(t, DataASCII, body)
}

func (e *encoder) xy(pts []Point, closed bool) {
	v := make([]int32, 0, 2*len(pts)+2)
	for _, p := range pts {
		v = append(v, p.X, p.Y)
	}
	if closed && len(pts) > 0 {
		v = append(v, pts[0].X, pts[0].Y)
	}
	e.int32s(RecXY, v...)
}

func (e *encoder) strans(t Transform) {
	if t.isIdentity() {
		return
	}
	var flags uint16
	if t.Reflect {
		flags |= stransReflect
	}
	if t.AbsMag {
		flags |= stransAbsMag
	}
	if t.AbsAngle {
		flags |= stransAbsAngle
	}
	e.bits(RecSTrans, flags)
	if t.mag() != 1 {
		e.real8s(RecMag, t.Mag)
	}
	if t.Angle != 0 {
		e.real8s(RecAngle, t.Angle)
	}
}

func (e *encoder) element(el Element) {
	switch el.Kind {
	case KindBoundary:
		e.empty(RecBoundary)
		e.int16s(RecLayer, int16(el.Layer))
		e.int16s(RecDatatype, int16(el.Datatype))
		e.xy(el.XY, true)
	case KindBox:
		e.empty(RecBox)
		e.int16s(RecLayer, int16(el.Layer))
		e.int16s(RecBoxType, int16(el.Datatype))
		e.xy(el.XY, true)
	case KindPath:
		e.empty(RecPath)
		e.int16s(RecLayer, int16(el.Layer))
		e.int16s(RecDatatype, int16(el.Datatype))
		if el.PathType != 0 {
			e.int16s(RecPathType, int16(el.PathType))
		}
		e.int32s(RecWidth, el.Width)
		if el.PathType == PathCustom {
			e.int32s(RecBgnExtn, el.BgnExtn)
			e.int32s(RecEndExtn, el.EndExtn)
		}
		e.xy(el.XY, false)
	case KindSRef:
		e.empty(RecSRef)
		e.str(RecSName, el.SName)
		e.strans(el.Trans)
		e.xy(el.XY, false)
	case KindARef:
		e.empty(RecARef)
		e.str(RecSName, el.SName)
		e.strans(el.Trans)
		e.int16s(RecColRow, int16(el.Cols), int16(el.Rows))
		e.xy(el.XY, false)
	case KindText:
		e.empty(RecText)
		e.int16s(RecLayer, int16(el.Layer))
		e.int16s(RecTextType, int16(el.Datatype))
		e.xy(el.XY, false)
		e.str(RecString, el.String)
	case KindNode:
		e.empty(RecNode)
		e.int16s(RecLayer, int16(el.Layer))
		e.int16s(RecNodeType, int16(el.Datatype))
		e.xy(el.XY, false)
	default:
		e.err = fmt.Errorf("unknown element kind %v", el.Kind)
		return
	}
	e.empty(RecEndEl)
}
