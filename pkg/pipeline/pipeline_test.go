package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/matzehuels/gdsmesh/pkg/cache"
	errs "github.com/matzehuels/gdsmesh/pkg/errors"
	"github.com/matzehuels/gdsmesh/pkg/gds"
	"github.com/matzehuels/gdsmesh/pkg/geom"
	pkgio "github.com/matzehuels/gdsmesh/pkg/io"
	"github.com/matzehuels/gdsmesh/pkg/mesh"
	"github.com/matzehuels/gdsmesh/pkg/observability"
	"github.com/matzehuels/gdsmesh/pkg/stack"
	"github.com/matzehuels/gdsmesh/pkg/triangulate"
)

func boundary(layer int, pts ...gds.Point) gds.Element {
	return gds.Element{Kind: gds.KindBoundary, Layer: layer, XY: pts}
}

// writeLayout writes a layout with a 10x10 square on layer 1, two
// triangles on layer 2, a collinear polygon on layer 3 and a square on
// layer 4 placed through a reference.
func writeLayout(t *testing.T, dir string) string {
	t.Helper()
	lib := gds.NewLibrary("PIPELINE")
	lib.UserUnit = 1

	child := &gds.Cell{Name: "VIA", Elements: []gds.Element{
		boundary(4, gds.Point{X: 0, Y: 0}, gds.Point{X: 2, Y: 0}, gds.Point{X: 2, Y: 2}, gds.Point{X: 0, Y: 2}),
	}}
	top := &gds.Cell{Name: "TOP", Elements: []gds.Element{
		boundary(1, gds.Point{X: 0, Y: 0}, gds.Point{X: 10, Y: 0}, gds.Point{X: 10, Y: 10}, gds.Point{X: 0, Y: 10}),
		boundary(2, gds.Point{X: 0, Y: 0}, gds.Point{X: 4, Y: 0}, gds.Point{X: 0, Y: 4}),
		boundary(2, gds.Point{X: 20, Y: 20}, gds.Point{X: 20, Y: 24}, gds.Point{X: 24, Y: 20}),
		boundary(3, gds.Point{X: 0, Y: 0}, gds.Point{X: 1, Y: 0}, gds.Point{X: 2, Y: 0}, gds.Point{X: 3, Y: 0}),
		{Kind: gds.KindSRef, SName: "VIA", XY: []gds.Point{{X: 5, Y: 5}}},
	}}
	for _, c := range []*gds.Cell{child, top} {
		if err := lib.AddCell(c); err != nil {
			t.Fatal(err)
		}
	}

	path := filepath.Join(dir, "chip.gds")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := gds.Write(f, lib); err != nil {
		t.Fatal(err)
	}
	return path
}

func testStack(t *testing.T, specs ...string) *stack.Stack {
	t.Helper()
	st, err := stack.FromSpecs(specs)
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func readMesh(t *testing.T, path string) *mesh.Mesh {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	m, err := mesh.ReadSTL(f)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestOptionsValidateAndSetDefaults(t *testing.T) {
	st := testStack(t, "1")

	tests := []struct {
		name     string
		opts     Options
		wantCode errs.Code
	}{
		{"valid", Options{Input: "chip.gds", Stack: st}, ""},
		{"no input", Options{Stack: st}, errs.ErrCodeInvalidPath},
		{"no stack", Options{Input: "chip.gds"}, errs.ErrCodeInvalidStack},
		{"empty stack", Options{Input: "chip.gds", Stack: stack.New()}, errs.ErrCodeInvalidStack},
		{"bad format", Options{Input: "chip.gds", Stack: st, Format: "obj"}, errs.ErrCodeInvalidFormat},
		{"negative delta", Options{Input: "chip.gds", Stack: st, Delta: -1}, errs.ErrCodeInvalidInput},
		{"negative workers", Options{Input: "chip.gds", Stack: st, Workers: -2}, errs.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateAndSetDefaults()
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errs.Is(err, tt.wantCode) {
				t.Errorf("error = %v, want code %s", err, tt.wantCode)
			}
		})
	}

	opts := Options{Input: "chip.gds", Stack: st}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	if opts.Delta != 0.01 || opts.Epsilon != 1e-8 || opts.HoleDelta != 0.001 {
		t.Errorf("inset defaults = %v %v %v", opts.Delta, opts.Epsilon, opts.HoleDelta)
	}
	if opts.Format != "binary" || opts.Workers < 1 || opts.RunID == "" || opts.Logger == nil {
		t.Errorf("defaults not applied: %+v", opts)
	}
}

func TestExecuteUnitSquare(t *testing.T) {
	dir := t.TempDir()
	input := writeLayout(t, dir)

	r := NewRunner(nil, nil, nil)
	res, err := r.Execute(context.Background(), Options{
		Input: input,
		Stack: testStack(t, "1:0:5:metal1"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Layers) != 1 {
		t.Fatalf("layers = %d, want 1", len(res.Layers))
	}
	lr := res.Layers[0]
	if lr.Triangles != 12 || lr.Polygons != 1 || lr.Err != nil {
		t.Errorf("layer result = %+v", lr)
	}
	if lr.Path != filepath.Join(dir, "metal1.stl") {
		t.Errorf("path = %s, want next to the input", lr.Path)
	}

	info, err := os.Stat(lr.Path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 84+50*12 {
		t.Errorf("file size = %d", info.Size())
	}

	m := readMesh(t, lr.Path)
	if m.Len() != 12 {
		t.Errorf("read back %d triangles", m.Len())
	}
	lo, hi := m.Bounds()
	if lo[2] != 0 || hi[2] != 5 {
		t.Errorf("z range = %v..%v, want 0..5", lo[2], hi[2])
	}
	if v := m.Volume(); v < 490 || v > 500 {
		t.Errorf("volume = %v, want close to 500", v)
	}
}

func TestExecuteDeterministic(t *testing.T) {
	dir := t.TempDir()
	input := writeLayout(t, dir)
	specs := []string{"1:0:5:metal1", "2:5:10:poly", "4:10:12:via"}

	run := func(workers int, format string) map[string][]byte {
		out := t.TempDir()
		r := NewRunner(nil, nil, nil)
		res, err := r.Execute(context.Background(), Options{
			Input:   input,
			Stack:   testStack(t, specs...),
			OutDir:  out,
			Workers: workers,
			Format:  format,
		})
		if err != nil {
			t.Fatal(err)
		}
		files := make(map[string][]byte)
		for _, lr := range res.Layers {
			data, err := os.ReadFile(lr.Path)
			if err != nil {
				t.Fatal(err)
			}
			files[filepath.Base(lr.Path)] = data
		}
		return files
	}

	for _, format := range []string{"binary", "ascii"} {
		a, b := run(1, format), run(4, format)
		if len(a) != 3 {
			t.Fatalf("%s: files = %d, want 3", format, len(a))
		}
		for name, data := range a {
			if !bytes.Equal(data, b[name]) {
				t.Errorf("%s: %s differs between runs", format, name)
			}
		}
	}
}

func TestExecuteMissingLayerIsolation(t *testing.T) {
	dir := t.TempDir()
	input := writeLayout(t, dir)

	outA, outB := t.TempDir(), t.TempDir()
	r := NewRunner(nil, nil, nil)
	if _, err := r.Execute(context.Background(), Options{
		Input: input, Stack: testStack(t, "1:0:5:metal1"), OutDir: outA,
	}); err != nil {
		t.Fatal(err)
	}
	res, err := r.Execute(context.Background(), Options{
		Input: input, Stack: testStack(t, "1:0:5:metal1", "2:5:10:poly", "99:0:1:ghost"), OutDir: outB,
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Layers) != 2 {
		t.Errorf("layers = %d, want 2 (layer 99 has no geometry)", len(res.Layers))
	}
	if _, err := os.Stat(filepath.Join(outB, "ghost.stl")); !os.IsNotExist(err) {
		t.Error("a layer without geometry should produce no file")
	}

	a, _ := os.ReadFile(filepath.Join(outA, "metal1.stl"))
	b, _ := os.ReadFile(filepath.Join(outB, "metal1.stl"))
	if len(a) == 0 || !bytes.Equal(a, b) {
		t.Error("exporting more layers changed metal1.stl")
	}

	// Layer 3 and 4 exist in the layout but were not selected.
	for _, name := range []string{"gdsii_3.stl", "gdsii_4.stl"} {
		if _, err := os.Stat(filepath.Join(outB, name)); !os.IsNotExist(err) {
			t.Errorf("%s should not be written", name)
		}
	}
}

func TestExecuteCollapsedPolygon(t *testing.T) {
	dir := t.TempDir()
	input := writeLayout(t, dir)

	r := NewRunner(nil, nil, nil)
	res, err := r.Execute(context.Background(), Options{
		Input: input,
		Stack: testStack(t, "3:0:1:flat"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Layers) != 1 || res.Layers[0].Err != nil {
		t.Fatalf("layers = %+v", res.Layers)
	}
	if _, err := os.Stat(res.Layers[0].Path); err != nil {
		t.Errorf("collapsed layer should still be written: %v", err)
	}
}

func TestExecuteReference(t *testing.T) {
	dir := t.TempDir()
	input := writeLayout(t, dir)

	r := NewRunner(nil, nil, nil)
	res, err := r.Execute(context.Background(), Options{
		Input: input,
		Stack: testStack(t, "4:10:12:via"),
	})
	if err != nil {
		t.Fatal(err)
	}
	m := readMesh(t, res.Layers[0].Path)
	lo, hi := m.Bounds()
	if lo[0] < 5 || hi[0] > 7 || lo[1] < 5 || hi[1] > 7 {
		t.Errorf("referenced square bounds = %v..%v, want within 5..7", lo, hi)
	}
	if lo[2] != 10 || hi[2] != 12 {
		t.Errorf("z range = %v..%v", lo[2], hi[2])
	}
}

func TestExecuteInputErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.gds")
	if err := os.WriteFile(bad, []byte{0x00, 0x06, 0x00, 0x02}, 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		input string
		code  errs.Code
	}{
		{"missing", filepath.Join(dir, "missing.gds"), errs.ErrCodeFileNotFound},
		{"malformed", bad, errs.ErrCodeMalformedLayout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := t.TempDir()
			r := NewRunner(nil, nil, nil)
			res, err := r.Execute(context.Background(), Options{
				Input: tt.input, Stack: testStack(t, "1"), OutDir: out,
			})
			if res != nil || !errs.Is(err, tt.code) {
				t.Errorf("Execute() = %v, %v; want code %s", res, err, tt.code)
			}
			entries, _ := os.ReadDir(out)
			if len(entries) != 0 {
				t.Error("nothing should be written on input errors")
			}
		})
	}
}

func TestExecuteWriteFailureIsolated(t *testing.T) {
	dir := t.TempDir()
	input := writeLayout(t, dir)
	out := t.TempDir()

	// A directory in the way of metal1.stl makes that write fail.
	if err := os.Mkdir(filepath.Join(out, "metal1.stl"), 0o755); err != nil {
		t.Fatal(err)
	}

	r := NewRunner(nil, nil, nil)
	res, err := r.Execute(context.Background(), Options{
		Input:    input,
		Stack:    testStack(t, "1:0:5:metal1", "2:5:10:poly"),
		OutDir:   out,
		Manifest: true,
	})
	if err == nil {
		t.Fatal("expected an error for the failed layer")
	}
	var le *errs.LayerError
	if !errors.As(err, &le) || le.Layer != 1 {
		t.Errorf("error = %v, want LayerError for layer 1", err)
	}
	if res == nil || len(res.Layers) != 2 {
		t.Fatalf("partial result = %+v", res)
	}
	if _, err := os.Stat(filepath.Join(out, "poly.stl")); err != nil {
		t.Errorf("other layers should still be written: %v", err)
	}

	m, err := pkgio.ImportManifest(res.ManifestPath)
	if err != nil {
		t.Fatal(err)
	}
	if m.Layers[0].Error == "" || m.Layers[0].File != "" {
		t.Errorf("manifest should record the failed layer: %+v", m.Layers[0])
	}
	if m.Layers[1].File != "poly.stl" {
		t.Errorf("manifest layer 2 = %+v", m.Layers[1])
	}
}

func TestExecuteManifest(t *testing.T) {
	dir := t.TempDir()
	input := writeLayout(t, dir)

	st := stack.New()
	if err := st.Set(1, stack.ExportParams{ZMin: 0, ZMax: 5, Name: "metal1", Material: "Gold"}); err != nil {
		t.Fatal(err)
	}

	r := NewRunner(nil, nil, nil)
	res, err := r.Execute(context.Background(), Options{
		Input: input, Stack: st, Manifest: true, RunID: "run-42",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.ManifestPath != filepath.Join(dir, pkgio.ManifestName) {
		t.Errorf("manifest path = %s", res.ManifestPath)
	}
	m, err := pkgio.ImportManifest(res.ManifestPath)
	if err != nil {
		t.Fatal(err)
	}
	if m.RunID != "run-42" || m.Input != "chip.gds" || m.Format != "binary" {
		t.Errorf("manifest header = %+v", m)
	}
	want := pkgio.ManifestLayer{Number: 1, Name: "metal1", Material: "Gold", ZMax: 5, File: "metal1.stl", Triangles: 12}
	if len(m.Layers) != 1 || m.Layers[0] != want {
		t.Errorf("manifest layers = %+v, want %+v", m.Layers, want)
	}
}

func TestExecuteCache(t *testing.T) {
	dir := t.TempDir()
	input := writeLayout(t, dir)
	c, err := cache.NewFileCache(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatal(err)
	}
	r := NewRunner(c, nil, nil)
	ctx := context.Background()

	run := func(refresh bool) (*Result, []byte) {
		out := t.TempDir()
		res, err := r.Execute(ctx, Options{
			Input: input, Stack: testStack(t, "1:0:5:metal1", "2:5:10:poly", "99"),
			OutDir: out, Refresh: refresh,
		})
		if err != nil {
			t.Fatal(err)
		}
		data, err := os.ReadFile(filepath.Join(out, "metal1.stl"))
		if err != nil {
			t.Fatal(err)
		}
		return res, data
	}

	first, a := run(false)
	if first.CacheInfo.Hits != 0 || first.CacheInfo.Misses != 2 || first.CacheInfo.LoadSkipped {
		t.Errorf("first run cache info = %+v", first.CacheInfo)
	}

	second, b := run(false)
	if second.CacheInfo.Hits != 2 || !second.CacheInfo.LoadSkipped {
		t.Errorf("second run cache info = %+v", second.CacheInfo)
	}
	if !bytes.Equal(a, b) {
		t.Error("cached mesh differs from the computed one")
	}
	if second.Layers[0].Triangles != 12 || !second.Layers[0].Cached {
		t.Errorf("cached layer = %+v", second.Layers[0])
	}

	third, _ := run(true)
	if third.CacheInfo.Hits != 0 || third.CacheInfo.LoadSkipped {
		t.Errorf("refresh run cache info = %+v", third.CacheInfo)
	}
}

func TestExecuteCanceled(t *testing.T) {
	dir := t.TempDir()
	input := writeLayout(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner(nil, nil, nil)
	_, err := r.Execute(ctx, Options{Input: input, Stack: testStack(t, "1")})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestRunnerSummary(t *testing.T) {
	dir := t.TempDir()
	input := writeLayout(t, dir)
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := NewRunner(c, nil, nil)
	ctx := context.Background()

	s, layers, err := r.Summary(ctx, input, false)
	if err != nil {
		t.Fatal(err)
	}
	if layers == nil {
		t.Error("first summary should load the layout")
	}
	if len(s.Layers) != 4 || s.PolygonCount() != 5 {
		t.Errorf("summary = %+v", s)
	}
	l2, ok := s.Layer(2)
	if !ok || l2.Polygons != 2 || l2.Vertices != 6 || l2.MaxX != 24 {
		t.Errorf("layer 2 = %+v", l2)
	}

	cached, layers, err := r.Summary(ctx, input, false)
	if err != nil {
		t.Fatal(err)
	}
	if layers != nil || len(cached.Layers) != 4 {
		t.Errorf("second summary should come from the cache: %+v", cached)
	}
}

func TestExecuteHooks(t *testing.T) {
	observability.Reset()
	t.Cleanup(observability.Reset)
	h := &recordingHooks{}
	observability.SetPipelineHooks(h)

	dir := t.TempDir()
	input := writeLayout(t, dir)
	r := NewRunner(nil, nil, nil)
	if _, err := r.Execute(context.Background(), Options{
		Input: input, Stack: testStack(t, "1:0:5:metal1", "2:5:10:poly"),
	}); err != nil {
		t.Fatal(err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.loads != 1 || h.layers != 2 || h.writes != 2 {
		t.Errorf("hooks = loads %d, layers %d, writes %d", h.loads, h.layers, h.writes)
	}
}

type recordingHooks struct {
	observability.NoopPipelineHooks
	mu                    sync.Mutex
	loads, layers, writes int
}

func (h *recordingHooks) OnLoadComplete(context.Context, string, int, int, time.Duration, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loads++
}

func (h *recordingHooks) OnLayerComplete(context.Context, int, string, int, int, time.Duration, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.layers++
}

func (h *recordingHooks) OnWrite(context.Context, string, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.writes++
}

type failingTriangulator struct{}

func (failingTriangulator) Triangulate([]orb.Point, [][2]int, []orb.Point) (*geom.Triangulation, error) {
	return nil, errors.New("no fill")
}

func TestExecuteCachedWarnings(t *testing.T) {
	dir := t.TempDir()
	input := writeLayout(t, dir)
	c, err := cache.NewFileCache(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatal(err)
	}
	r := NewRunner(c, nil, nil)
	ctx := context.Background()

	run := func(tri triangulate.Triangulator) *Result {
		res, err := r.Execute(ctx, Options{
			Input: input, Stack: testStack(t, "1:0:5:metal1"),
			OutDir: t.TempDir(), Triangulator: tri,
		})
		if err != nil {
			t.Fatal(err)
		}
		return res
	}

	first := run(failingTriangulator{})
	if first.WarningCount() != 1 || len(first.Warnings) != 1 {
		t.Errorf("first run warnings = %d (%d detailed), want 1", first.WarningCount(), len(first.Warnings))
	}
	// the square keeps its 8 side wall triangles
	if got := first.Layers[0].Triangles; got != 8 {
		t.Errorf("triangles = %d, want 8", got)
	}

	second := run(failingTriangulator{})
	if !second.CacheInfo.LoadSkipped || second.CacheInfo.Hits != 1 {
		t.Fatalf("second run cache info = %+v", second.CacheInfo)
	}
	if second.WarningCount() != 1 {
		t.Errorf("cached run WarningCount() = %d, want 1", second.WarningCount())
	}

	// a different triangulator must not reuse the cached mesh
	third := run(nil)
	if third.CacheInfo.Hits != 0 || third.Layers[0].Cached {
		t.Errorf("earcut run served from cache: %+v", third.CacheInfo)
	}
	if third.Layers[0].Triangles != 12 || third.WarningCount() != 0 {
		t.Errorf("earcut run layer = %+v", third.Layers[0])
	}
}

func TestMeshKeyOptsTriangulator(t *testing.T) {
	p := stack.ExportParams{ZMax: 1, Name: "m"}
	def := (&Options{}).MeshKeyOpts(1, p)
	if def.Triangulator != "earcut" {
		t.Errorf("default triangulator key = %q, want earcut", def.Triangulator)
	}
	custom := (&Options{Triangulator: failingTriangulator{}}).MeshKeyOpts(1, p)
	if custom.Triangulator == def.Triangulator {
		t.Error("custom triangulator should change the key options")
	}
}
