// Package mesh turns enriched polygons into closed triangle solids and
// serializes them as STL.
//
// Every polygon contributes 2V side wall triangles for its V boundary
// vertices plus 2T cap triangles for its T interior triangles. [Assemble]
// relies on that count being exact: it sizes the layer buffer once from a
// counting pass and then fills it in place.
package mesh

import (
	"github.com/matzehuels/gdsmesh/pkg/geom"
)

// ExtrudeOptions controls how polygons are lifted into solids.
type ExtrudeOptions struct {
	// InsetWalls builds side walls from the inset ring instead of the
	// original one. Walls and caps then share their outline, which closes
	// the seam between them at the cost of shrinking the solid by the
	// inset distance.
	InsetWalls bool
}

// TriangleCount returns the number of triangles Extrude emits for p.
// Polygons without a triangulation still contribute their side walls.
func TriangleCount(p *geom.Polygon) int {
	return 2*p.Len() + 2*p.Triangulation.Len()
}

// Extrude returns the solid of p between zMin and zMax.
func Extrude(p *geom.Polygon, zMin, zMax float64, opts ExtrudeOptions) []geom.Triangle {
	out := make([]geom.Triangle, TriangleCount(p))
	n := ExtrudeInto(out, p, zMin, zMax, opts)
	return out[:n]
}

// ExtrudeInto writes the solid of p to dst and returns the number of
// triangles written. dst must hold at least TriangleCount(p) triangles.
//
// Each boundary edge i->j is a quad split into a left triangle
// (j_max, i_max, i_min) and a right triangle (i_min, j_min, j_max). All
// lefts come first, then all rights, then the top cap at zMax in
// triangulation order, then the bottom cap at zMin with reversed
// orientation.
func ExtrudeInto(dst []geom.Triangle, p *geom.Polygon, zMin, zMax float64, opts ExtrudeOptions) int {
	ring := p.Boundary(opts.InsetWalls)
	n := len(ring)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		iMin, iMax := geom.Lift(ring[i], zMin), geom.Lift(ring[i], zMax)
		jMin, jMax := geom.Lift(ring[j], zMin), geom.Lift(ring[j], zMax)

		dst[i] = geom.Triangle{jMax, iMax, iMin}
		dst[n+i] = geom.Triangle{iMin, jMin, jMax}
	}
	k := 2 * n

	tri := p.Triangulation
	if tri.Len() == 0 {
		return k
	}
	caps := tri.Len()
	for i, t := range tri.Triangles {
		a, b, c := tri.Vertices[t[0]], tri.Vertices[t[1]], tri.Vertices[t[2]]
		dst[k+i] = geom.Triangle{geom.Lift(a, zMax), geom.Lift(b, zMax), geom.Lift(c, zMax)}
		dst[k+caps+i] = geom.Triangle{geom.Lift(a, zMin), geom.Lift(c, zMin), geom.Lift(b, zMin)}
	}
	return k + 2*caps
}
