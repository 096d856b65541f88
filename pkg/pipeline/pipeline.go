// Package pipeline runs a complete GDSII to STL conversion.
//
// The pipeline loads a layout, groups its geometry by layer, and for every
// layer named in the export stack enriches the polygons (winding, inset,
// triangulation), extrudes them between the configured heights, and writes
// one STL file per layer. Layers run concurrently; each layer's output only
// depends on its own geometry and parameters, so the files are identical no
// matter how many workers are used.
//
// # Usage
//
//	st, _ := stack.FromSpecs([]string{"1:0:100:metal1", "2:100:150:via"})
//	runner := pipeline.NewRunner(cache, nil, logger)
//	defer runner.Close()
//
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    Input: "chip.gds",
//	    Stack: st,
//	})
//
// Execute returns a partial result together with an error when some layers
// failed to write; every other layer is still produced.
package pipeline

import (
	"io"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/gdsmesh/pkg/buildinfo"
	"github.com/matzehuels/gdsmesh/pkg/cache"
	errs "github.com/matzehuels/gdsmesh/pkg/errors"
	"github.com/matzehuels/gdsmesh/pkg/geom"
	"github.com/matzehuels/gdsmesh/pkg/layer"
	"github.com/matzehuels/gdsmesh/pkg/mesh"
	"github.com/matzehuels/gdsmesh/pkg/stack"
	"github.com/matzehuels/gdsmesh/pkg/triangulate"
)

// Options configures one conversion run.
type Options struct {
	// Input is the GDSII file.
	Input string `json:"input"`

	// Stack selects the exported layers. Required.
	Stack *stack.Stack `json:"-"`

	// OutDir defaults to the directory of Input.
	OutDir string `json:"out_dir,omitempty"`

	// Format is "binary" (default) or "ascii".
	Format string `json:"format,omitempty"`

	// Inset parameters; zero selects the geom defaults.
	Delta     float64 `json:"delta,omitempty"`
	Epsilon   float64 `json:"epsilon,omitempty"`
	HoleDelta float64 `json:"hole_delta,omitempty"`

	ExplicitHoles bool `json:"explicit_holes,omitempty"`
	InsetWalls    bool `json:"inset_walls,omitempty"`

	// Workers bounds the number of layers meshed at once. Defaults to the
	// number of CPUs.
	Workers int `json:"workers,omitempty"`

	// Refresh ignores cached meshes and overwrites them.
	Refresh bool `json:"refresh,omitempty"`

	// Manifest writes manifest.json next to the meshes.
	Manifest bool `json:"manifest,omitempty"`

	// RunID tags logs and the manifest. Generated when empty.
	RunID string `json:"run_id,omitempty"`

	// Runtime options (not serialized)
	Logger       *log.Logger              `json:"-"`
	Triangulator triangulate.Triangulator `json:"-"`

	format    mesh.Format
	validated bool
}

// Result describes a finished run.
type Result struct {
	RunID string

	// Layers has one entry per exported layer, in ascending layer order.
	Layers []LayerResult

	// Warnings collects the per-polygon failures of the layers meshed in
	// this run. Layers served from the cache only carry a count; see
	// WarningCount.
	Warnings []layer.Warning

	// ManifestPath is set when a manifest was written.
	ManifestPath string

	Stats     Stats
	CacheInfo CacheInfo
}

// WarningCount returns the number of polygons that could not be
// triangulated across all layers, cached ones included.
func (r *Result) WarningCount() int {
	n := 0
	for _, lr := range r.Layers {
		n += lr.Warnings
	}
	return n
}

// LayerResult is the outcome of one exported layer.
type LayerResult struct {
	Layer    int
	Params   stack.ExportParams
	Path     string
	Polygons int

	Triangles int
	Warnings  int
	Cached    bool
	Duration  time.Duration

	// Err is set when the layer could not be written.
	Err error
}

// Stats contains run statistics.
type Stats struct {
	Layers    int
	Polygons  int
	Triangles int
	LoadTime  time.Duration
	MeshTime  time.Duration
}

// CacheInfo tracks cache use.
type CacheInfo struct {
	Hits   int
	Misses int

	// LoadSkipped is true when every layer came from the cache and the
	// layout was never parsed.
	LoadSkipped bool
}

// ValidateAndSetDefaults checks required fields and applies defaults.
// Calling it more than once has no further effect.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if err := errs.ValidatePath(o.Input); err != nil {
		return err
	}
	if o.Stack == nil || o.Stack.Len() == 0 {
		return errs.New(errs.ErrCodeInvalidStack, "no layers selected for export")
	}
	if err := o.Stack.Validate(); err != nil {
		return err
	}

	f, err := mesh.ParseFormat(o.Format)
	if err != nil {
		return errs.Wrap(errs.ErrCodeInvalidFormat, err, "output format")
	}
	o.format = f
	o.Format = string(f)

	if o.Delta < 0 || o.Epsilon < 0 || o.HoleDelta < 0 {
		return errs.New(errs.ErrCodeInvalidInput, "inset parameters must not be negative")
	}
	if o.Workers < 0 {
		return errs.New(errs.ErrCodeInvalidInput, "workers must not be negative")
	}
	o.SetDefaults()
	o.validated = true
	return nil
}

// SetDefaults fills in zero values.
func (o *Options) SetDefaults() {
	def := geom.DefaultInsetOptions()
	if o.Delta == 0 {
		o.Delta = def.Delta
	}
	if o.Epsilon == 0 {
		o.Epsilon = def.Epsilon
	}
	if o.HoleDelta == 0 {
		o.HoleDelta = def.HoleDelta
	}
	if o.Workers == 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.Format == "" {
		o.Format = string(mesh.FormatBinary)
		o.format = mesh.FormatBinary
	}
	if o.RunID == "" {
		o.RunID = uuid.NewString()
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// InsetOptions returns the inset parameters of the run.
func (o *Options) InsetOptions() geom.InsetOptions {
	return geom.InsetOptions{Delta: o.Delta, Epsilon: o.Epsilon, HoleDelta: o.HoleDelta}
}

// MeshKeyOpts returns the cache key options of one layer.
func (o *Options) MeshKeyOpts(n int, p stack.ExportParams) cache.MeshKeyOpts {
	return cache.MeshKeyOpts{
		Layer:         n,
		ZMin:          p.ZMin,
		ZMax:          p.ZMax,
		Name:          p.Name,
		Format:        o.Format,
		Delta:         o.Delta,
		Epsilon:       o.Epsilon,
		HoleDelta:     o.HoleDelta,
		ExplicitHoles: o.ExplicitHoles,
		InsetWalls:    o.InsetWalls,
		Triangulator:  triangulate.Name(o.Triangulator),
		Version:       buildinfo.Resolved(),
	}
}
