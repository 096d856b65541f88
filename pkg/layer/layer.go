// Package layer groups flattened layout geometry by layer number and runs the
// one-time per-polygon enrichment (winding, inset, triangulation) that the
// extruder consumes.
package layer

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb"

	"github.com/matzehuels/gdsmesh/pkg/gds"
	"github.com/matzehuels/gdsmesh/pkg/geom"
)

// Source is a flattenable cell hierarchy, typically a *gds.Library.
type Source interface {
	TopLevel() []*gds.Cell
	Flatten(name string) ([]gds.Shape, error)
}

// Layers maps layer numbers to their polygons in discovery order. It is built
// once per run and owned by the pipeline.
type Layers struct {
	polys map[int][]*geom.Polygon
}

// New returns an empty collection.
func New() *Layers {
	return &Layers{polys: make(map[int][]*geom.Polygon)}
}

// Aggregate flattens every top-level cell of src and groups the result by
// layer. The layout metadata cell is skipped. Datatypes are merged.
func Aggregate(src Source) (*Layers, error) {
	l := New()
	for _, c := range src.TopLevel() {
		if c.Name == gds.ContextInfoCell {
			continue
		}
		shapes, err := src.Flatten(c.Name)
		if err != nil {
			return nil, fmt.Errorf("flatten %q: %w", c.Name, err)
		}
		for _, s := range shapes {
			l.Add(s.Layer, s.Ring)
		}
	}
	return l, nil
}

// Add appends a polygon to layer n.
func (l *Layers) Add(n int, ring orb.Ring) {
	l.polys[n] = append(l.polys[n], geom.NewPolygon(ring))
}

// Numbers returns the layer numbers in ascending order.
func (l *Layers) Numbers() []int {
	out := make([]int, 0, len(l.polys))
	for n := range l.polys {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// Has reports whether layer n holds geometry.
func (l *Layers) Has(n int) bool {
	_, ok := l.polys[n]
	return ok
}

// Polygons returns the polygons of layer n.
func (l *Layers) Polygons(n int) []*geom.Polygon {
	return l.polys[n]
}

// Len returns the number of layers.
func (l *Layers) Len() int { return len(l.polys) }

// PolygonCount returns the total number of polygons across all layers.
func (l *Layers) PolygonCount() int {
	total := 0
	for _, ps := range l.polys {
		total += len(ps)
	}
	return total
}

// VertexCount returns the number of boundary vertices of layer n.
func (l *Layers) VertexCount(n int) int {
	total := 0
	for _, p := range l.polys[n] {
		total += p.Len()
	}
	return total
}

// Bound returns the planar extent of layer n.
func (l *Layers) Bound(n int) orb.Bound {
	ps := l.polys[n]
	if len(ps) == 0 {
		return orb.Bound{}
	}
	b := ps[0].Ring.Bound()
	for _, p := range ps[1:] {
		b = b.Union(p.Ring.Bound())
	}
	return b
}
