package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/gdsmesh/pkg/buildinfo"
	"github.com/matzehuels/gdsmesh/pkg/cache"
	errs "github.com/matzehuels/gdsmesh/pkg/errors"
	pkgio "github.com/matzehuels/gdsmesh/pkg/io"
	"github.com/matzehuels/gdsmesh/pkg/layer"
	"github.com/matzehuels/gdsmesh/pkg/mesh"
	"github.com/matzehuels/gdsmesh/pkg/observability"
	"github.com/matzehuels/gdsmesh/pkg/stack"
)

// Runner executes conversions with caching.
//
// The Runner holds no per-run state; multiple goroutines can share one
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// meshEntry is the cached form of one encoded layer.
type meshEntry struct {
	Polygons  int    `json:"polygons"`
	Triangles int    `json:"triangles"`
	Warnings  int    `json:"warnings"`
	Data      []byte `json:"data"`
}

// job is one exported layer scheduled on a worker.
type job struct {
	layer  int
	params stack.ExportParams
	key    string
	cached *meshEntry
}

// Execute converts opts.Input into one STL file per exported layer.
//
// Input errors are fatal and nothing is written. A layer that fails to
// encode or write is reported in its LayerResult; the other layers are still
// produced and Execute returns the result together with an error joining
// every failed layer.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	logger := opts.Logger.With("run", opts.RunID)

	outDir := opts.OutDir
	if outDir == "" {
		outDir = filepath.Dir(opts.Input)
	}

	result := &Result{RunID: opts.RunID}

	// A hash failure is reported by Load with a proper code.
	inputHash, _ := cache.HashFile(opts.Input)

	var (
		layers  *layer.Layers
		summary *Summary
		jobs    []job
	)
	if inputHash != "" && !opts.Refresh {
		if s, ok := r.cachedSummary(ctx, inputHash); ok {
			summary = s
			jobs = r.plan(ctx, &opts, summary, inputHash, logger)
			if allCached(jobs) {
				result.CacheInfo.LoadSkipped = true
				logger.Debug("all layers cached, skipping layout load")
			}
		}
	}

	if !result.CacheInfo.LoadSkipped {
		start := time.Now()
		var (
			dropped int
			err     error
		)
		layers, dropped, err = Load(ctx, opts.Input)
		if err != nil {
			return nil, err
		}
		result.Stats.LoadTime = time.Since(start)
		logger.Info("loaded layout",
			"layers", layers.Len(),
			"polygons", layers.PolygonCount(),
			"dropped", dropped,
			"duration", result.Stats.LoadTime)

		fresh := Summarize(layers, dropped)
		if inputHash != "" {
			r.storeSummary(ctx, inputHash, fresh)
		}
		if summary == nil {
			jobs = r.plan(ctx, &opts, fresh, inputHash, logger)
		}
		summary = fresh
		for _, n := range layers.Numbers() {
			if _, ok := opts.Stack.Lookup(n); !ok {
				logger.Debug("layer not in stack, skipping", "layer", n)
			}
		}
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidPath, err, "create output directory")
	}
	if opts.ExplicitHoles {
		logger.Warn("explicit hole markers enabled; triangulation may be unstable on some inputs")
	}

	start := time.Now()
	results := make([]LayerResult, len(jobs))
	warnings := make([][]layer.Warning, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, warns, err := r.meshLayer(gctx, layers, j, &opts, outDir, logger)
			results[i], warnings[i] = res, warns
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	result.Stats.MeshTime = time.Since(start)

	var failed []error
	for i, res := range results {
		result.Layers = append(result.Layers, res)
		result.Warnings = append(result.Warnings, warnings[i]...)
		result.Stats.Layers++
		result.Stats.Polygons += res.Polygons
		result.Stats.Triangles += res.Triangles
		if res.Cached {
			result.CacheInfo.Hits++
		} else {
			result.CacheInfo.Misses++
		}
		if res.Err != nil {
			failed = append(failed, res.Err)
		}
	}

	if opts.Manifest {
		path := filepath.Join(outDir, pkgio.ManifestName)
		if err := pkgio.ExportManifest(manifest(&opts, result), path); err != nil {
			failed = append(failed, fmt.Errorf("manifest: %w", err))
		} else {
			result.ManifestPath = path
		}
	}

	logger.Info("conversion finished",
		"layers", result.Stats.Layers,
		"triangles", result.Stats.Triangles,
		"warnings", result.WarningCount(),
		"cached", result.CacheInfo.Hits,
		"duration", result.Stats.MeshTime)

	if len(failed) > 0 {
		return result, errors.Join(failed...)
	}
	return result, nil
}

// plan lists the configured layers present in the layout, in ascending
// order. With a usable input hash it also looks up cached meshes.
func (r *Runner) plan(ctx context.Context, opts *Options, s *Summary, inputHash string, logger *log.Logger) []job {
	var jobs []job
	for _, n := range opts.Stack.Numbers() {
		p, _ := opts.Stack.Lookup(n)
		if _, ok := s.Layer(n); !ok {
			logger.Debug("layer not in layout, skipping", "layer", n, "name", p.Name)
			continue
		}
		j := job{layer: n, params: p}
		if inputHash != "" {
			j.key = r.Keyer.MeshKey(inputHash, opts.MeshKeyOpts(n, p))
			if !opts.Refresh {
				j.cached, _ = r.cachedMesh(ctx, j.key)
			}
		}
		jobs = append(jobs, j)
	}
	return jobs
}

func allCached(jobs []job) bool {
	for _, j := range jobs {
		if j.cached == nil {
			return false
		}
	}
	return true
}

// meshLayer produces the STL of one layer and writes it to outDir. The
// returned error is only set on cancellation; layer failures are recorded
// in the result.
func (r *Runner) meshLayer(ctx context.Context, layers *layer.Layers, j job, opts *Options, outDir string, logger *log.Logger) (LayerResult, []layer.Warning, error) {
	hooks := observability.Pipeline()
	start := time.Now()
	res := LayerResult{
		Layer:  j.layer,
		Params: j.params,
		Path:   filepath.Join(outDir, j.params.Name+".stl"),
	}

	var (
		data     []byte
		warnings []layer.Warning
	)
	if j.cached != nil {
		hooks.OnLayerStart(ctx, j.layer, j.params.Name, j.cached.Polygons)
		res.Cached = true
		res.Polygons = j.cached.Polygons
		res.Triangles = j.cached.Triangles
		res.Warnings = j.cached.Warnings
		data = j.cached.Data
	} else {
		polys := layers.Polygons(j.layer)
		hooks.OnLayerStart(ctx, j.layer, j.params.Name, len(polys))

		var err error
		warnings, err = layers.Enrich(ctx, j.layer, layer.EnrichOptions{
			Inset:         opts.InsetOptions(),
			ExplicitHoles: opts.ExplicitHoles,
			Triangulator:  opts.Triangulator,
		})
		if err != nil {
			return res, nil, err
		}
		for _, w := range warnings {
			logger.Warn("polygon not triangulated, side walls only", "layer", w.Layer, "polygon", w.Polygon, "err", w.Err)
		}

		m := mesh.Assemble(j.params.Name, polys, j.params.ZMin, j.params.ZMax, mesh.ExtrudeOptions{InsetWalls: opts.InsetWalls})
		res.Polygons = len(polys)
		res.Triangles = m.Len()
		res.Warnings = len(warnings)

		var buf bytes.Buffer
		if err := mesh.WriteSTL(&buf, m, opts.format); err != nil {
			res.Err = &errs.LayerError{Layer: j.layer, Name: j.params.Name, Err: err}
			hooks.OnLayerComplete(ctx, j.layer, j.params.Name, res.Triangles, res.Warnings, time.Since(start), res.Err)
			return res, warnings, nil
		}
		data = buf.Bytes()
		if j.key != "" {
			r.storeMesh(ctx, j.key, &meshEntry{
				Polygons:  res.Polygons,
				Triangles: res.Triangles,
				Warnings:  res.Warnings,
				Data:      data,
			})
		}
	}

	if err := os.WriteFile(res.Path, data, 0o644); err != nil {
		res.Err = &errs.LayerError{Layer: j.layer, Name: j.params.Name, Err: err}
		logger.Error("layer write failed", "layer", j.layer, "name", j.params.Name, "err", err)
	} else {
		hooks.OnWrite(ctx, res.Path, len(data))
		logger.Info("wrote layer",
			"layer", j.layer,
			"name", j.params.Name,
			"triangles", res.Triangles,
			"cached", res.Cached,
			"duration", time.Since(start))
	}
	res.Duration = time.Since(start)
	hooks.OnLayerComplete(ctx, j.layer, j.params.Name, res.Triangles, res.Warnings, res.Duration, res.Err)
	return res, warnings, nil
}

func (r *Runner) cachedMesh(ctx context.Context, key string) (*meshEntry, bool) {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil || !hit {
		observability.Cache().OnCacheMiss(ctx, "mesh")
		return nil, false
	}
	var e meshEntry
	if err := json.Unmarshal(data, &e); err != nil {
		observability.Cache().OnCacheMiss(ctx, "mesh")
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, "mesh")
	return &e, true
}

func (r *Runner) storeMesh(ctx context.Context, key string, e *meshEntry) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := r.Cache.Set(ctx, key, data, cache.DefaultTTL); err != nil {
		r.Logger.Debug("cache write failed", "key", "mesh", "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, "mesh", len(data))
}

func manifest(opts *Options, result *Result) *pkgio.Manifest {
	m := &pkgio.Manifest{
		RunID:   result.RunID,
		Version: buildinfo.Resolved(),
		Input:   filepath.Base(opts.Input),
		Format:  opts.Format,
	}
	for _, res := range result.Layers {
		ml := pkgio.ManifestLayer{
			Number:    res.Layer,
			Name:      res.Params.Name,
			Material:  res.Params.Material,
			ZMin:      res.Params.ZMin,
			ZMax:      res.Params.ZMax,
			Triangles: res.Triangles,
			Warnings:  res.Warnings,
			Cached:    res.Cached,
		}
		if res.Err != nil {
			ml.Error = res.Err.Error()
		} else {
			ml.File = filepath.Base(res.Path)
		}
		m.Layers = append(m.Layers, ml)
	}
	return m
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}
