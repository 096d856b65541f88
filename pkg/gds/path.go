package gds

import (
	"math"

	clipper "github.com/ctessum/go.clipper"
	"github.com/paulmach/orb"
)

// Path end styles (PATHTYPE).
const (
	PathFlush    = 0
	PathRound    = 1
	PathHalfWide = 2
	PathCustom   = 4
)

// pathScale subdivides database units so offsets of half a unit and round
// caps stay exact enough on the integer grid.
const pathScale = 4

// pathMiterLimit bounds spikes at acute corners, in multiples of the half
// width.
const pathMiterLimit = 10

// pathOutline converts a path into closed outlines in local database units.
// scale is the accumulated magnification, used to keep negative (absolute)
// widths unmagnified. Zero-width and single-point paths produce nothing.
func pathOutline(e Element, scale float64) [][]orb.Point {
	w := float64(e.Width)
	if w < 0 {
		w = -w
		if scale > 0 {
			w /= scale
		}
	}
	if w == 0 {
		return nil
	}

	pts := make([]orb.Point, 0, len(e.XY))
	for _, p := range e.XY {
		q := orb.Point{float64(p.X), float64(p.Y)}
		if len(pts) > 0 && pts[len(pts)-1] == q {
			continue
		}
		pts = append(pts, q)
	}
	if len(pts) < 2 {
		return nil
	}

	end := clipper.EtOpenButt
	switch e.PathType {
	case PathRound:
		end = clipper.EtOpenRound
	case PathHalfWide:
		end = clipper.EtOpenSquare
	case PathCustom:
		pts[0] = extend(pts[1], pts[0], float64(e.BgnExtn))
		n := len(pts)
		pts[n-1] = extend(pts[n-2], pts[n-1], float64(e.EndExtn))
	}

	src := make(clipper.Path, len(pts))
	for i, p := range pts {
		src[i] = &clipper.IntPoint{
			X: clipper.CInt(math.Round(p[0] * pathScale)),
			Y: clipper.CInt(math.Round(p[1] * pathScale)),
		}
	}

	co := clipper.NewClipperOffset()
	co.MiterLimit = pathMiterLimit
	co.AddPath(src, clipper.JtMiter, end)
	solution := co.Execute(w * pathScale / 2)

	var out [][]orb.Point
	for _, path := range solution {
		// holes of self-overlapping paths are not representable as rings
		if len(path) < 3 || !clipper.Orientation(path) {
			continue
		}
		ring := make([]orb.Point, len(path))
		for i, ip := range path {
			ring[i] = orb.Point{float64(ip.X) / pathScale, float64(ip.Y) / pathScale}
		}
		out = append(out, ring)
	}
	return out
}

// extend moves to past from along the direction from -> to by d.
func extend(from, to orb.Point, d float64) orb.Point {
	if d == 0 {
		return to
	}
	dx, dy := to[0]-from[0], to[1]-from[1]
	l := math.Hypot(dx, dy)
	if l == 0 {
		return to
	}
	return orb.Point{to[0] + d*dx/l, to[1] + d*dy/l}
}
