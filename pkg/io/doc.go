// Package io writes the side outputs of a conversion run: the JSON manifest
// that describes the generated meshes, and a GeoJSON dump of the aggregated
// layer geometry.
//
// # Manifest
//
// The manifest sits next to the STL files and lets downstream tools pick up
// the meshes without re-reading the layer stack:
//
//	{
//	  "run_id": "0b6f4c1e-...",
//	  "version": "v0.3.0",
//	  "input": "chip.gds",
//	  "format": "binary",
//	  "layers": [
//	    {
//	      "number": 1,
//	      "name": "metal1",
//	      "material": "Gold",
//	      "zmin": 0,
//	      "zmax": 100,
//	      "file": "metal1.stl",
//	      "triangles": 1284,
//	      "warnings": 0
//	    }
//	  ]
//	}
//
// Layers are listed in ascending layer number. Layers that failed are listed
// with an "error" field and no file.
//
// # GeoJSON
//
// [WriteGeoJSON] emits one Polygon feature per layout polygon. Coordinates
// are layout user units, not longitude/latitude; the output is meant for
// inspection in generic GeoJSON viewers. Each feature carries the "layer"
// number, the "clockwise" winding flag, and the "vertices" count.
package io
