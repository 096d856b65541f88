package triangulate

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/rclancey/earcut"

	"github.com/matzehuels/gdsmesh/pkg/geom"
)

// Earcut triangulates by ear clipping over the vertices in order, so the
// segments must describe the closed ring. Every ring edge appears in the
// result for simple rings. Hole markers remove the connected set of
// triangles reachable from the triangle containing the marker without
// crossing a segment.
type Earcut struct{}

// Triangulate implements Triangulator.
func (Earcut) Triangulate(vertices []orb.Point, segments [][2]int, holes []orb.Point) (*geom.Triangulation, error) {
	verts := make([]orb.Point, len(vertices))
	copy(verts, vertices)
	out := &geom.Triangulation{Vertices: verts}
	if len(verts) < 3 {
		return out, nil
	}

	coords := make([]float64, 0, 2*len(verts))
	for _, p := range verts {
		coords = append(coords, p[0], p[1])
	}
	idx, err := earcut.Earcut(coords, nil, 2)
	if err != nil {
		return nil, fmt.Errorf("earcut: %w", err)
	}
	if len(idx)%3 != 0 {
		return nil, fmt.Errorf("earcut: %d indices is not a multiple of 3", len(idx))
	}

	out.Triangles = make([][3]int, 0, len(idx)/3)
	for i := 0; i < len(idx); i += 3 {
		out.Triangles = append(out.Triangles, [3]int{idx[i], idx[i+1], idx[i+2]})
	}
	if len(holes) > 0 {
		out.Triangles = carveHoles(segments, out.Triangles, verts, holes)
	}
	return out, nil
}

type edgeKey struct{ a, b int }

func makeEdge(a, b int) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a, b}
}

// carveHoles drops every triangle in a region seeded by a hole marker.
// Regions are bounded by segments.
func carveHoles(segments [][2]int, tris [][3]int, verts []orb.Point, holes []orb.Point) [][3]int {
	boundary := make(map[edgeKey]bool, len(segments))
	for _, s := range segments {
		boundary[makeEdge(s[0], s[1])] = true
	}

	adj := make(map[edgeKey][]int, 3*len(tris))
	for ti, tr := range tris {
		for k := 0; k < 3; k++ {
			e := makeEdge(tr[k], tr[(k+1)%3])
			adj[e] = append(adj[e], ti)
		}
	}

	removed := make([]bool, len(tris))
	var queue []int
	for _, h := range holes {
		for ti, tr := range tris {
			if !removed[ti] && containsPoint(verts[tr[0]], verts[tr[1]], verts[tr[2]], h) {
				removed[ti] = true
				queue = append(queue, ti)
			}
		}
	}

	for len(queue) > 0 {
		ti := queue[0]
		queue = queue[1:]
		tr := tris[ti]
		for k := 0; k < 3; k++ {
			e := makeEdge(tr[k], tr[(k+1)%3])
			if boundary[e] {
				continue
			}
			for _, nb := range adj[e] {
				if !removed[nb] {
					removed[nb] = true
					queue = append(queue, nb)
				}
			}
		}
	}

	kept := tris[:0]
	for ti, tr := range tris {
		if !removed[ti] {
			kept = append(kept, tr)
		}
	}
	return kept
}

// containsPoint reports whether p lies strictly inside triangle abc.
func containsPoint(a, b, c, p orb.Point) bool {
	d1 := cross(a, b, p)
	d2 := cross(b, c, p)
	d3 := cross(c, a, p)
	return (d1 > 0 && d2 > 0 && d3 > 0) || (d1 < 0 && d2 < 0 && d3 < 0)
}
