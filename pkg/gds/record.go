package gds

import (
	"encoding/binary"
	"fmt"
	"math"
)

// RecordType identifies a GDSII record.
type RecordType uint8

// Record types used by the reader and writer.
const (
	RecHeader       RecordType = 0x00
	RecBgnLib       RecordType = 0x01
	RecLibName      RecordType = 0x02
	RecUnits        RecordType = 0x03
	RecEndLib       RecordType = 0x04
	RecBgnStr       RecordType = 0x05
	RecStrName      RecordType = 0x06
	RecEndStr       RecordType = 0x07
	RecBoundary     RecordType = 0x08
	RecPath         RecordType = 0x09
	RecSRef         RecordType = 0x0A
	RecARef         RecordType = 0x0B
	RecText         RecordType = 0x0C
	RecLayer        RecordType = 0x0D
	RecDatatype     RecordType = 0x0E
	RecWidth        RecordType = 0x0F
	RecXY           RecordType = 0x10
	RecEndEl        RecordType = 0x11
	RecSName        RecordType = 0x12
	RecColRow       RecordType = 0x13
	RecNode         RecordType = 0x15
	RecTextType     RecordType = 0x16
	RecPresentation RecordType = 0x17
	RecString       RecordType = 0x19
	RecSTrans       RecordType = 0x1A
	RecMag          RecordType = 0x1B
	RecAngle        RecordType = 0x1C
	RecPathType     RecordType = 0x21
	RecElFlags      RecordType = 0x26
	RecNodeType     RecordType = 0x2A
	RecPropAttr     RecordType = 0x2B
	RecPropValue    RecordType = 0x2C
	RecBox          RecordType = 0x2D
	RecBoxType      RecordType = 0x2E
	RecPlex         RecordType = 0x2F
	RecBgnExtn      RecordType = 0x30
	RecEndExtn      RecordType = 0x31
)

// DataType is the payload encoding of a record.
type DataType uint8

const (
	DataNone     DataType = 0
	DataBitArray DataType = 1
	DataInt16    DataType = 2
	DataInt32    DataType = 3
	DataReal4    DataType = 4
	DataReal8    DataType = 5
	DataASCII    DataType = 6
)

// STRANS flag bits.
const (
	stransReflect  = 0x8000
	stransAbsMag   = 0x0004
	stransAbsAngle = 0x0002
)

const recordHeaderSize = 4

type record struct {
	Type RecordType
	Data DataType
	Body []byte
}

// readRecord decodes the record at data[off:] and returns it with the offset
// of the next record.
func readRecord(data []byte, off int) (record, int, error) {
	if len(data)-off < recordHeaderSize {
		return record{}, off, fmt.Errorf("%w: record header at offset %d", ErrTruncated, off)
	}
	n := int(binary.BigEndian.Uint16(data[off:]))
	if n < recordHeaderSize || n%2 != 0 {
		return record{}, off, fmt.Errorf("%w: length %d at offset %d", ErrBadRecord, n, off)
	}
	if off+n > len(data) {
		return record{}, off, fmt.Errorf("%w: record of %d bytes at offset %d", ErrTruncated, n, off)
	}
	r := record{
		Type: RecordType(data[off+2]),
		Data: DataType(data[off+3]),
		Body: data[off+recordHeaderSize : off+n],
	}
	return r, off + n, nil
}

func (r record) int16s() []int16 {
	out := make([]int16, len(r.Body)/2)
	for i := range out {
		out[i] = int16(binary.BigEndian.Uint16(r.Body[2*i:]))
	}
	return out
}

func (r record) int16() (int16, error) {
	if len(r.Body) < 2 {
		return 0, fmt.Errorf("%w: record 0x%02x needs a 2-byte value", ErrBadRecord, uint8(r.Type))
	}
	return int16(binary.BigEndian.Uint16(r.Body)), nil
}

func (r record) int32s() []int32 {
	out := make([]int32, len(r.Body)/4)
	for i := range out {
		out[i] = int32(binary.BigEndian.Uint32(r.Body[4*i:]))
	}
	return out
}

func (r record) int32() (int32, error) {
	if len(r.Body) < 4 {
		return 0, fmt.Errorf("%w: record 0x%02x needs a 4-byte value", ErrBadRecord, uint8(r.Type))
	}
	return int32(binary.BigEndian.Uint32(r.Body)), nil
}

func (r record) real8s() []float64 {
	out := make([]float64, len(r.Body)/8)
	for i := range out {
		out[i] = decodeReal8(r.Body[8*i:])
	}
	return out
}

func (r record) real8() (float64, error) {
	if len(r.Body) < 8 {
		return 0, fmt.Errorf("%w: record 0x%02x needs an 8-byte real", ErrBadRecord, uint8(r.Type))
	}
	return decodeReal8(r.Body), nil
}

func (r record) str() string {
	b := r.Body
	for len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return string(b)
}

// decodeReal8 reads an excess-64, base-16 GDSII real.
func decodeReal8(b []byte) float64 {
	neg := b[0]&0x80 != 0
	exp := int(b[0]&0x7f) - 64

	var mant uint64
	for _, c := range b[1:8] {
		mant = mant<<8 | uint64(c)
	}
	v := math.Ldexp(float64(mant), 4*exp-56)
	if neg {
		return -v
	}
	return v
}

// encodeReal8 is the inverse of decodeReal8. It is exact for every float64 in
// the representable range.
func encodeReal8(v float64) [8]byte {
	var out [8]byte
	if v == 0 || math.IsNaN(v) {
		return out
	}
	var sign byte
	if v < 0 {
		sign = 0x80
		v = -v
	}

	exp := 0
	for v >= 1 {
		v /= 16
		exp++
	}
	for v < 1.0/16 {
		v *= 16
		exp--
	}
	mant := uint64(math.Ldexp(v, 56))
	if mant >= 1<<56 {
		mant >>= 4
		exp++
	}

	out[0] = sign | byte(exp+64)&0x7f
	for i := 7; i >= 1; i-- {
		out[i] = byte(mant)
		mant >>= 8
	}
	return out
}
