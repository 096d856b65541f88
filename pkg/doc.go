// Package pkg provides the libraries behind gdsmesh, which turns GDSII chip
// layouts into per-layer STL meshes.
//
// # Overview
//
// The pkg directory is organized by pipeline stage:
//
//  1. [gds] - GDSII stream reader and writer, hierarchy flattening, path outlines
//  2. [layer] - Grouping of flattened polygons by layer and per-polygon enrichment
//  3. [geom] - Polygon model, winding classification, edge inset, hole markers
//  4. [triangulate] - Triangulation adapter over earcut, with optional hole carving
//  5. [mesh] - Extrusion, mesh assembly, STL encoding
//  6. [stack] - Layer export configuration (heights, names, materials)
//  7. [pipeline] - Orchestration with caching and per-layer concurrency
//
// Supporting packages: [cache] (file, Redis and null backends), [io]
// (manifest and GeoJSON outputs), [observability] (hooks), [errors]
// (structured error codes) and [buildinfo].
//
// # Architecture
//
//	GDSII file
//	     ↓
//	[gds] Load, TopLevel, Flatten
//	     ↓
//	[layer] Aggregate (layer number → polygons)
//	     ↓
//	[layer] Enrich: [geom] winding + inset, [triangulate] triangles
//	     ↓
//	[mesh] Assemble (walls + caps per polygon, one buffer per layer)
//	     ↓
//	<name>.stl per exported layer
//
// # Quick Start
//
//	st, err := stack.FromSpecs([]string{"1:0:100:metal1"})
//	if err != nil {
//	    return err
//	}
//	runner := pipeline.NewRunner(nil, nil, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{Input: "chip.gds", Stack: st})
//
// [gds]: github.com/matzehuels/gdsmesh/pkg/gds
// [layer]: github.com/matzehuels/gdsmesh/pkg/layer
// [geom]: github.com/matzehuels/gdsmesh/pkg/geom
// [triangulate]: github.com/matzehuels/gdsmesh/pkg/triangulate
// [mesh]: github.com/matzehuels/gdsmesh/pkg/mesh
// [stack]: github.com/matzehuels/gdsmesh/pkg/stack
// [pipeline]: github.com/matzehuels/gdsmesh/pkg/pipeline
// [cache]: github.com/matzehuels/gdsmesh/pkg/cache
// [io]: github.com/matzehuels/gdsmesh/pkg/io
// [observability]: github.com/matzehuels/gdsmesh/pkg/observability
// [errors]: github.com/matzehuels/gdsmesh/pkg/errors
// [buildinfo]: github.com/matzehuels/gdsmesh/pkg/buildinfo
package pkg
