package mesh

import (
	"fmt"
	"math"

	"github.com/matzehuels/gdsmesh/pkg/geom"
)

// Mesh is the triangle soup of one exported layer.
type Mesh struct {
	Name      string
	Triangles []geom.Triangle
}

// AccountingError reports a mismatch between the counting and filling passes
// of Assemble. It is raised as a panic: a mismatch means the extruder and its
// count disagree, which no input can cause.
type AccountingError struct {
	Name     string
	Counted  int
	Written  int
	Position string
}

func (e *AccountingError) Error() string {
	return fmt.Sprintf("mesh %s: %s wrote %d triangles, counted %d", e.Name, e.Position, e.Written, e.Counted)
}

// Assemble extrudes every polygon between zMin and zMax into one mesh. The
// triangle buffer is allocated exactly once, sized by a counting pass.
func Assemble(name string, polys []*geom.Polygon, zMin, zMax float64, opts ExtrudeOptions) *Mesh {
	total := 0
	for _, p := range polys {
		total += TriangleCount(p)
	}

	buf := make([]geom.Triangle, total)
	off := 0
	for i, p := range polys {
		want := TriangleCount(p)
		if off+want > total {
			panic(&AccountingError{Name: name, Counted: total, Written: off + want, Position: "buffer"})
		}
		got := ExtrudeInto(buf[off:off+want], p, zMin, zMax, opts)
		if got != want {
			panic(&AccountingError{Name: name, Counted: want, Written: got, Position: fmt.Sprintf("polygon %d", i)})
		}
		off += got
	}
	if off != total {
		panic(&AccountingError{Name: name, Counted: total, Written: off, Position: "layer"})
	}
	return &Mesh{Name: name, Triangles: buf}
}

// Len returns the number of triangles.
func (m *Mesh) Len() int { return len(m.Triangles) }

// Bounds returns the axis-aligned bounding box of the mesh. An empty mesh
// returns zero vectors.
func (m *Mesh) Bounds() (lo, hi geom.Vertex3) {
	if len(m.Triangles) == 0 {
		return lo, hi
	}
	lo = geom.Vertex3{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi = geom.Vertex3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for _, t := range m.Triangles {
		for _, v := range t {
			for c := 0; c < 3; c++ {
				lo[c] = math.Min(lo[c], v[c])
				hi[c] = math.Max(hi[c], v[c])
			}
		}
	}
	return lo, hi
}

// Volume returns the signed volume enclosed by the mesh, positive when the
// triangles face outward. Only meaningful for closed meshes.
func (m *Mesh) Volume() float64 {
	var v float64
	for _, t := range m.Triangles {
		a, b, c := t[0], t[1], t[2]
		v += a[0]*(b[1]*c[2]-b[2]*c[1]) -
			a[1]*(b[0]*c[2]-b[2]*c[0]) +
			a[2]*(b[0]*c[1]-b[1]*c[0])
	}
	return v / 6
}

// Normal returns the unit normal of t following the right-hand rule.
// Degenerate triangles return the zero vector.
func Normal(t geom.Triangle) geom.Vertex3 {
	u := geom.Vertex3{t[1][0] - t[0][0], t[1][1] - t[0][1], t[1][2] - t[0][2]}
	w := geom.Vertex3{t[2][0] - t[0][0], t[2][1] - t[0][1], t[2][2] - t[0][2]}
	n := geom.Vertex3{
		u[1]*w[2] - u[2]*w[1],
		u[2]*w[0] - u[0]*w[2],
		u[0]*w[1] - u[1]*w[0],
	}
	l := math.Sqrt(n[0]*n[0] + n[1]*n[1] + n[2]*n[2])
	if l == 0 {
		return geom.Vertex3{}
	}
	return geom.Vertex3{n[0] / l, n[1] / l, n[2] / l}
}
