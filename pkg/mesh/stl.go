package mesh

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/matzehuels/gdsmesh/pkg/geom"
)

// Format selects the STL encoding.
type Format string

const (
	FormatBinary Format = "binary"
	FormatASCII  Format = "ascii"
)

// Formats lists the supported encodings.
var Formats = []Format{FormatBinary, FormatASCII}

// ParseFormat maps a user supplied name to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatBinary, "":
		return FormatBinary, nil
	case FormatASCII:
		return FormatASCII, nil
	}
	return "", fmt.Errorf("unknown STL format %q (want binary or ascii)", s)
}

const (
	headerSize   = 80
	triangleSize = 4*3*4 + 2
)

// WriteSTL writes m to w. The output depends only on the mesh, so equal
// meshes produce identical bytes.
func WriteSTL(w io.Writer, m *Mesh, f Format) error {
	switch f {
	case FormatBinary, "":
		return writeBinary(w, m)
	case FormatASCII:
		return writeASCII(w, m)
	}
	return fmt.Errorf("unknown STL format %q", f)
}

func writeBinary(w io.Writer, m *Mesh) error {
	bw := bufio.NewWriter(w)

	var header [headerSize]byte
	for i := range header {
		header[i] = ' '
	}
	copy(header[:], "gdsmesh "+m.Name)
	if _, err := bw.Write(header[:]); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(m.Triangles))); err != nil {
		return err
	}

	buf := make([]byte, triangleSize)
	for _, t := range m.Triangles {
		n := Normal(t)
		putVec(buf[0:], n)
		putVec(buf[12:], t[0])
		putVec(buf[24:], t[1])
		putVec(buf[36:], t[2])
		binary.LittleEndian.PutUint16(buf[48:], 0)
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func putVec(b []byte, v geom.Vertex3) {
	for c := 0; c < 3; c++ {
		binary.LittleEndian.PutUint32(b[4*c:], math.Float32bits(float32(v[c])))
	}
}

func writeASCII(w io.Writer, m *Mesh) error {
	bw := bufio.NewWriter(w)
	name := strings.ReplaceAll(m.Name, " ", "_")

	fmt.Fprintf(bw, "solid %s\n", name)
	for _, t := range m.Triangles {
		n := Normal(t)
		fmt.Fprintf(bw, "  facet normal %s\n", fmtVec(n))
		bw.WriteString("    outer loop\n")
		for _, v := range t {
			fmt.Fprintf(bw, "      vertex %s\n", fmtVec(v))
		}
		bw.WriteString("    endloop\n")
		bw.WriteString("  endfacet\n")
	}
	fmt.Fprintf(bw, "endsolid %s\n", name)
	return bw.Flush()
}

func fmtVec(v geom.Vertex3) string {
	return strconv.FormatFloat(v[0], 'e', 6, 32) + " " +
		strconv.FormatFloat(v[1], 'e', 6, 32) + " " +
		strconv.FormatFloat(v[2], 'e', 6, 32)
}

// maxPrealloc bounds the triangle buffer sized from an STL header before any
// triangle has been read.
const maxPrealloc = 1 << 16

// ReadSTL decodes a binary STL stream. Normals are recomputed from the
// vertex order and not read back. A header count larger than the stream is
// reported as a short read.
func ReadSTL(r io.Reader) (*Mesh, error) {
	var header struct {
		H    [headerSize]byte
		NTri uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("read STL header: %w", err)
	}

	m := &Mesh{
		Name:      strings.TrimPrefix(strings.TrimRight(string(header.H[:]), " "), "gdsmesh "),
		Triangles: make([]geom.Triangle, 0, min(int(header.NTri), maxPrealloc)),
	}
	buf := make([]byte, triangleSize)
	for i := 0; i < int(header.NTri); i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("read triangle %d of %d: %w", i, header.NTri, err)
		}
		var t geom.Triangle
		for v := 0; v < 3; v++ {
			const start = 3 * 4 // skip normal
			for c := 0; c < 3; c++ {
				bits := binary.LittleEndian.Uint32(buf[start+12*v+4*c:])
				t[v][c] = float64(math.Float32frombits(bits))
			}
		}
		m.Triangles = append(m.Triangles, t)
	}
	return m, nil
}
