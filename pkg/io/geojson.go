package io

import (
	"fmt"
	"io"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/matzehuels/gdsmesh/pkg/geom"
	"github.com/matzehuels/gdsmesh/pkg/layer"
)

// FeatureCollection converts the aggregated layers into GeoJSON features,
// layer by layer in ascending order and polygons in discovery order. When
// only is non-empty, other layers are left out.
func FeatureCollection(l *layer.Layers, only ...int) *geojson.FeatureCollection {
	keep := make(map[int]bool, len(only))
	for _, n := range only {
		keep[n] = true
	}

	fc := geojson.NewFeatureCollection()
	for _, n := range l.Numbers() {
		if len(keep) > 0 && !keep[n] {
			continue
		}
		for _, p := range l.Polygons(n) {
			f := geojson.NewFeature(orb.Polygon{closed(p.Ring)})
			f.Properties["layer"] = n
			f.Properties["clockwise"] = geom.IsClockwise(p.Ring)
			f.Properties["vertices"] = p.Len()
			fc.Append(f)
		}
	}
	return fc
}

// WriteGeoJSON encodes the layers as a FeatureCollection.
func WriteGeoJSON(l *layer.Layers, w io.Writer, only ...int) error {
	data, err := FeatureCollection(l, only...).MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// ExportGeoJSON writes the layers to a GeoJSON file at path.
func ExportGeoJSON(l *layer.Layers, path string, only ...int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteGeoJSON(l, f, only...); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// closed returns ring with its first point repeated at the end, as GeoJSON
// requires. Layout rings are stored open.
func closed(ring orb.Ring) orb.Ring {
	out := make(orb.Ring, len(ring), len(ring)+1)
	copy(out, ring)
	if len(ring) > 0 && !ring.Closed() {
		out = append(out, ring[0])
	}
	return out
}
