// Package triangulate fills polygon interiors with triangles.
//
// The [Triangulator] interface is the seam to the actual algorithm. [Earcut]
// is the default implementation; [Adapter] wraps any triangulator with the
// per-polygon contract the mesh pipeline relies on: it submits the inset ring,
// optionally with hole markers, normalizes the result, and turns every
// failure, including panics, into a plain error.
package triangulate

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/matzehuels/gdsmesh/pkg/geom"
)

// Triangulator performs a boundary-constrained triangulation. Segments are
// index pairs into vertices that must appear as edges of the result; the
// adapter passes the closed ring {i, i+1 mod n}. Holes, when non-empty, are
// marker points: every region that contains one and is enclosed by segments
// must be left empty.
//
// Implementations may add vertices. An empty result is valid.
type Triangulator interface {
	Triangulate(vertices []orb.Point, segments [][2]int, holes []orb.Point) (*geom.Triangulation, error)
}

// RingSegments returns the closing segments {i, (i+1) mod n} of an n-vertex
// ring.
func RingSegments(n int) [][2]int {
	if n < 2 {
		return nil
	}
	segs := make([][2]int, n)
	for i := 0; i < n; i++ {
		segs[i] = [2]int{i, (i + 1) % n}
	}
	return segs
}

// Name identifies t in cache keys. Implementations whose settings change
// their output should implement fmt.Stringer.
func Name(t Triangulator) string {
	switch v := t.(type) {
	case nil, Earcut, *Earcut:
		return "earcut"
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprintf("%T", t)
}

// Adapter applies a Triangulator to enriched polygons.
type Adapter struct {
	Triangulator Triangulator

	// ExplicitHoles passes the polygon's hole markers to the triangulator.
	// Off by default: the inset alone separates seam edges in practice.
	ExplicitHoles bool
}

// NewAdapter returns an adapter around the earcut triangulator.
func NewAdapter(explicitHoles bool) *Adapter {
	return &Adapter{Triangulator: Earcut{}, ExplicitHoles: explicitHoles}
}

// Triangulate computes p.Triangulation from p.Inset. On error the polygon
// gets an empty triangulation over its boundary, so it still extrudes to
// side walls.
func (a *Adapter) Triangulate(p *geom.Polygon) (err error) {
	boundary := p.Inset
	if len(boundary) == 0 {
		boundary = p.Ring
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("triangulator panic: %v", r)
		}
		if err != nil {
			p.Triangulation = &geom.Triangulation{Vertices: boundary}
		}
	}()

	var holes []orb.Point
	if a.ExplicitHoles {
		holes = p.Holes
	}

	t := a.Triangulator
	if t == nil {
		t = Earcut{}
	}
	tri, err := t.Triangulate(boundary, RingSegments(len(boundary)), holes)
	if err != nil {
		return err
	}
	if tri == nil {
		tri = &geom.Triangulation{Vertices: boundary}
	}
	if err := normalize(tri); err != nil {
		return err
	}
	p.Triangulation = tri
	return nil
}

// normalize checks index bounds and rewinds every triangle counterclockwise.
func normalize(t *geom.Triangulation) error {
	n := len(t.Vertices)
	for i, tr := range t.Triangles {
		for _, idx := range tr {
			if idx < 0 || idx >= n {
				return fmt.Errorf("triangle %d references vertex %d of %d", i, idx, n)
			}
		}
		if cross(t.Vertices[tr[0]], t.Vertices[tr[1]], t.Vertices[tr[2]]) < 0 {
			t.Triangles[i] = [3]int{tr[0], tr[2], tr[1]}
		}
	}
	return nil
}

// cross is twice the signed area of abc, positive when counterclockwise.
func cross(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}
