package geom

import (
	"math"

	"github.com/paulmach/orb"
)

// Inset defaults. The distance is in layout user units and was tuned on real
// layouts: smaller values left hole seams touching, larger ones erode small
// features. Recalibrate for layouts with very different scales.
const (
	DefaultDelta     = 0.01
	DefaultEpsilon   = 1e-8
	DefaultHoleDelta = 0.001
)

// InsetOptions controls the edge inset pass.
type InsetOptions struct {
	// Delta is the distance each vertex moves along each adjacent edge normal.
	Delta float64

	// Epsilon is added to every normal length before normalizing.
	Epsilon float64

	// HoleDelta places hole markers at HoleDelta*Delta inside each edge.
	HoleDelta float64
}

// DefaultInsetOptions returns the tuned defaults.
func DefaultInsetOptions() InsetOptions {
	return InsetOptions{
		Delta:     DefaultDelta,
		Epsilon:   DefaultEpsilon,
		HoleDelta: DefaultHoleDelta,
	}
}

// edgeNormals returns, for every vertex i, the unit normal of the edge to its
// successor and of the edge from its predecessor. For a counterclockwise ring
// both point outward; clockwise rings are flipped so they do as well.
func edgeNormals(ring orb.Ring, clockwise bool, eps float64) (nij, nik []orb.Point) {
	n := len(ring)
	nij = make([]orb.Point, n)
	nik = make([]orb.Point, n)

	sign := 1.0
	if clockwise {
		sign = -1
	}
	for i, pi := range ring {
		pj := ring[(i+1)%n]
		pk := ring[(i-1+n)%n]

		a := orb.Point{pj[1] - pi[1], pi[0] - pj[0]}
		b := orb.Point{pi[1] - pk[1], pk[0] - pi[0]}

		la := math.Hypot(a[0], a[1]) + eps
		lb := math.Hypot(b[0], b[1]) + eps

		nij[i] = orb.Point{sign * a[0] / la, sign * a[1] / la}
		nik[i] = orb.Point{sign * b[0] / lb, sign * b[1] / lb}
	}
	return nij, nik
}

// Inset moves every vertex of ring inward by opts.Delta along both adjacent
// edge normals. Coincident edges of a hole slit end up about 2·Delta apart.
//
// The result always has the same number of vertices as ring; it may be
// degenerate or self-overlapping for features smaller than 2·Delta.
func Inset(ring orb.Ring, clockwise bool, opts InsetOptions) orb.Ring {
	nij, nik := edgeNormals(ring, clockwise, opts.Epsilon)
	d := opts.Delta

	out := make(orb.Ring, len(ring))
	for i, p := range ring {
		out[i] = orb.Point{
			p[0] - d*nij[i][0] - d*nik[i][0],
			p[1] - d*nij[i][1] - d*nik[i][1],
		}
	}
	return out
}

// HoleMarkers returns one point per edge, just inside the edge midpoint and
// between the original and the inset boundary. On a zero-width seam the
// marker of one side lands inside the other side's inset region, which lets a
// triangulator carve the hole.
func HoleMarkers(ring orb.Ring, clockwise bool, opts InsetOptions) []orb.Point {
	nij, _ := edgeNormals(ring, clockwise, opts.Epsilon)
	n := len(ring)
	off := opts.HoleDelta * opts.Delta

	out := make([]orb.Point, n)
	for i, pi := range ring {
		pj := ring[(i+1)%n]
		out[i] = orb.Point{
			0.5*(pj[0]+pi[0]) - off*nij[i][0],
			0.5*(pj[1]+pi[1]) - off*nij[i][1],
		}
	}
	return out
}
