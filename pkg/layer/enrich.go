package layer

import (
	"context"
	"errors"
	"fmt"

	"github.com/matzehuels/gdsmesh/pkg/geom"
	"github.com/matzehuels/gdsmesh/pkg/triangulate"
)

// EnrichOptions configures the per-polygon passes.
type EnrichOptions struct {
	Inset geom.InsetOptions

	// ExplicitHoles computes hole markers and hands them to the triangulator.
	ExplicitHoles bool

	// Triangulator defaults to earcut.
	Triangulator triangulate.Triangulator
}

// Warning records a polygon that could not be triangulated. The polygon
// keeps its side walls but gets no caps; the rest of the layer is unaffected.
type Warning struct {
	Layer   int
	Polygon int
	Err     error
}

func (w Warning) String() string {
	return fmt.Sprintf("layer %d polygon %d: %v", w.Layer, w.Polygon, w.Err)
}

var errTooFewVertices = errors.New("fewer than 3 vertices")

// cancelEvery is how many polygons are enriched between context checks.
const cancelEvery = 256

// Enrich classifies, insets and triangulates every polygon of layer n that
// has not been enriched yet. Failures are isolated per polygon and returned
// as warnings; the only error is context cancellation.
func (l *Layers) Enrich(ctx context.Context, n int, opts EnrichOptions) ([]Warning, error) {
	adapter := &triangulate.Adapter{
		Triangulator:  opts.Triangulator,
		ExplicitHoles: opts.ExplicitHoles,
	}
	if opts.Inset == (geom.InsetOptions{}) {
		opts.Inset = geom.DefaultInsetOptions()
	}

	var warnings []Warning
	for i, p := range l.polys[n] {
		if i%cancelEvery == 0 {
			if err := ctx.Err(); err != nil {
				return warnings, err
			}
		}
		if p.Enriched() {
			continue
		}
		if err := enrich(p, adapter, opts); err != nil {
			warnings = append(warnings, Warning{Layer: n, Polygon: i, Err: err})
		}
		p.MarkEnriched()
	}
	return warnings, nil
}

func enrich(p *geom.Polygon, a *triangulate.Adapter, opts EnrichOptions) error {
	if p.Len() < 3 {
		return errTooFewVertices
	}
	p.Clockwise = geom.IsClockwise(p.Ring)
	p.Inset = geom.Inset(p.Ring, p.Clockwise, opts.Inset)
	if opts.ExplicitHoles {
		p.Holes = geom.HoleMarkers(p.Ring, p.Clockwise, opts.Inset)
	}
	return a.Triangulate(p)
}
