// Package geom holds the planar data model of the mesh pipeline and the two
// pure geometric passes applied to every polygon before triangulation:
// winding classification and edge inset.
//
// A [Polygon] starts as an implicitly closed ring of at least three vertices.
// It is enriched exactly once (see [Polygon.Enriched]) with its winding flag,
// its inset ring, optional hole markers and a [Triangulation]. The original
// ring is never modified; later stages read the enrichment only.
package geom

import (
	"github.com/paulmach/orb"
)

// Vertex3 is a point lifted out of the layout plane.
type Vertex3 [3]float64

// Triangle is three ordered 3D vertices. The order defines the facing:
// counterclockwise when seen from outside the solid.
type Triangle [3]Vertex3

// Lift returns p placed at height z.
func Lift(p orb.Point, z float64) Vertex3 {
	return Vertex3{p[0], p[1], z}
}

// Triangulation is the output of a constrained triangulator.
//
// Vertices may extend the submitted ring with extra points. Every entry of
// Triangles indexes Vertices and is wound counterclockwise in the plane.
type Triangulation struct {
	Vertices  []orb.Point
	Triangles [][3]int
}

// Len returns the number of triangles, treating a nil triangulation as empty.
func (t *Triangulation) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Triangles)
}

// Polygon is a single closed boundary from the layout plus the data attached
// to it during enrichment.
type Polygon struct {
	// Ring is the boundary as loaded. The closing edge from the last vertex
	// back to the first is implicit.
	Ring orb.Ring

	// Clockwise is derived from Ring before any other pass and is
	// authoritative for inset and extrusion.
	Clockwise bool

	// Inset is Ring moved inward by the inset distance.
	Inset orb.Ring

	// Holes are seam marker points passed to the triangulator when explicit
	// holes are enabled.
	Holes []orb.Point

	// Triangulation fills the interior of Inset.
	Triangulation *Triangulation

	enriched bool
}

// NewPolygon wraps ring in a Polygon. The ring is used as is; callers must
// drop any repeated closing vertex.
func NewPolygon(ring orb.Ring) *Polygon {
	return &Polygon{Ring: ring}
}

// Len returns the number of boundary vertices.
func (p *Polygon) Len() int { return len(p.Ring) }

// Enriched reports whether the one-time enrichment has been applied.
func (p *Polygon) Enriched() bool { return p.enriched }

// MarkEnriched records that enrichment is complete.
func (p *Polygon) MarkEnriched() { p.enriched = true }

// Boundary returns the ring used for side walls, ordered counterclockwise.
// When inset is true and an inset ring exists, that ring is used instead of
// the original one. The returned slice is a copy.
func (p *Polygon) Boundary(inset bool) orb.Ring {
	src := p.Ring
	if inset && len(p.Inset) == len(p.Ring) {
		src = p.Inset
	}
	out := make(orb.Ring, len(src))
	if p.Clockwise {
		for i, v := range src {
			out[len(src)-1-i] = v
		}
		return out
	}
	copy(out, src)
	return out
}
