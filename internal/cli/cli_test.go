package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	errs "github.com/matzehuels/gdsmesh/pkg/errors"
	"github.com/matzehuels/gdsmesh/pkg/gds"
	"github.com/matzehuels/gdsmesh/pkg/observability"
	"github.com/matzehuels/gdsmesh/pkg/pipeline"
	"github.com/matzehuels/gdsmesh/pkg/stack"
)

// writeChip writes a layout with a square on layer 1 and a triangle on
// layer 2 and returns its path.
func writeChip(t *testing.T, dir string) string {
	t.Helper()
	lib := gds.NewLibrary("CLI")
	lib.UserUnit = 1
	top := &gds.Cell{Name: "TOP", Elements: []gds.Element{
		{Kind: gds.KindBoundary, Layer: 1, XY: []gds.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}},
		{Kind: gds.KindBoundary, Layer: 2, XY: []gds.Point{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 0, Y: 4}}},
	}}
	if err := lib.AddCell(top); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := gds.Write(&buf, lib); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "chip.gds")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// runCLI executes the root command with args and an isolated cache dir.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv("GDSMESH_CACHE_URL", "")
	t.Cleanup(observability.Reset)

	var logs bytes.Buffer
	c := New(&logs, LogInfo)
	defer c.Close()

	root := c.RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String() + logs.String(), err
}

func TestRootCommandHasSubcommands(t *testing.T) {
	c := New(&bytes.Buffer{}, LogInfo)
	root := c.RootCommand()

	want := map[string]bool{"convert": false, "layers": false, "cache": false, "completion": false}
	for _, cmd := range root.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
	for _, flag := range []string{"verbose", "log-file"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("missing persistent flag --%s", flag)
		}
	}
}

func TestConvertCommand(t *testing.T) {
	dir := t.TempDir()
	input := writeChip(t, dir)
	out := filepath.Join(dir, "meshes")

	_, err := runCLI(t, "convert", input,
		"--layer", "1:0:5:metal1",
		"--layer", "2:5:10",
		"--out-dir", out,
		"--manifest",
		"--workers", "2")
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"metal1.stl", "gdsii_2.stl", "manifest.json"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
	info, err := os.Stat(filepath.Join(out, "metal1.stl"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 84+50*12 {
		t.Errorf("metal1.stl size = %d", info.Size())
	}
}

func TestConvertCommandStackFile(t *testing.T) {
	dir := t.TempDir()
	input := writeChip(t, dir)
	stackPath := filepath.Join(dir, "stack.yaml")
	stackYAML := `layers:
  - number: 1
    zmin: 0
    zmax: 2
    name: base
  - number: 2
    zmin: 2
    zmax: 4
    name: top
`
	if err := os.WriteFile(stackPath, []byte(stackYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	// --layer overrides the stack entry of layer 2.
	if _, err := runCLI(t, "convert", input, "--stack", stackPath, "--layer", "2:2:4:cap", "--format", "ascii", "--no-cache"); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"base.stl", "cap.stl"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !bytes.HasPrefix(data, []byte("solid ")) {
			t.Errorf("%s is not ASCII STL", name)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "top.stl")); !os.IsNotExist(err) {
		t.Error("overridden stack name should not be written")
	}
}

func TestConvertCommandErrors(t *testing.T) {
	dir := t.TempDir()
	input := writeChip(t, dir)

	tests := []struct {
		name string
		args []string
		code errs.Code
	}{
		{"no layers", []string{"convert", input}, errs.ErrCodeInvalidStack},
		{"bad spec", []string{"convert", input, "--layer", "x"}, errs.ErrCodeInvalidInput},
		{"bad format", []string{"convert", input, "--layer", "1", "--format", "obj"}, errs.ErrCodeInvalidFormat},
		{"missing input", []string{"convert", filepath.Join(dir, "nope.gds"), "--layer", "1"}, errs.ErrCodeFileNotFound},
		{"duplicate names", []string{"convert", input, "--layer", "1:0:1:a", "--layer", "2:0:1:a"}, errs.ErrCodeInvalidStack},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, tt.args...)
			if !errs.Is(err, tt.code) {
				t.Errorf("error = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestLayersCommand(t *testing.T) {
	dir := t.TempDir()
	input := writeChip(t, dir)
	geo := filepath.Join(dir, "chip.geojson")

	if _, err := runCLI(t, "layers", input, "--geojson", geo); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(geo)
	if err != nil {
		t.Fatal(err)
	}
	var fc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal(data, &fc); err != nil {
		t.Fatal(err)
	}
	if fc.Type != "FeatureCollection" || len(fc.Features) != 2 {
		t.Errorf("geojson = %s with %d features", fc.Type, len(fc.Features))
	}
}

func TestCachePathCommand(t *testing.T) {
	out, err := runCLI(t, "cache", "path")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, filepath.Join(os.Getenv("XDG_CACHE_HOME"), appName)) {
		t.Errorf("cache path output = %q", out)
	}
}

func TestCacheClearCommand(t *testing.T) {
	dir := t.TempDir()
	input := writeChip(t, dir)
	cacheHome := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", cacheHome)
	t.Setenv("GDSMESH_CACHE_URL", "")
	t.Cleanup(observability.Reset)

	c := New(&bytes.Buffer{}, LogInfo)
	run := func(args ...string) {
		root := c.RootCommand()
		root.SetArgs(args)
		if err := root.ExecuteContext(context.Background()); err != nil {
			t.Fatal(err)
		}
	}

	run("convert", input, "--layer", "1")
	if countEntries(filepath.Join(cacheHome, appName)) == 0 {
		t.Fatal("convert should populate the cache")
	}
	run("cache", "clear")
	if n := countEntries(filepath.Join(cacheHome, appName)); n != 0 {
		t.Errorf("cache clear left %d entries", n)
	}
}

func TestCacheDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")
	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}
	home, _ := os.UserHomeDir()
	if want := filepath.Join(home, ".cache", appName); dir != want {
		t.Errorf("cacheDir() = %q, want %q", dir, want)
	}

	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg")
	if dir, _ := cacheDir(); dir != filepath.Join("/tmp/xdg", appName) {
		t.Errorf("cacheDir() with XDG = %q", dir)
	}
}

func TestBuildStack(t *testing.T) {
	st, err := buildStack("", []string{"1:0:5:metal1", "7"})
	if err != nil {
		t.Fatal(err)
	}
	if st.Len() != 2 {
		t.Errorf("Len() = %d, want 2", st.Len())
	}
	p, ok := st.Lookup(7)
	if !ok || p.Name != "gdsii_7" || p.ZMax != stack.DefaultZMax {
		t.Errorf("layer 7 = %+v, %v", p, ok)
	}

	if _, err := buildStack(filepath.Join(t.TempDir(), "missing.toml"), nil); !errs.Is(err, errs.ErrCodeFileNotFound) {
		t.Errorf("missing stack file error = %v", err)
	}
}

func TestLayerRows(t *testing.T) {
	s := &pipeline.Summary{Layers: []pipeline.LayerSummary{
		{Number: 1, Polygons: 2, Vertices: 8, MaxX: 10, MaxY: 10},
		{Number: 3, Polygons: 1, Vertices: 3, MinX: -1, MaxX: 1, MaxY: 1},
	}}
	st := stack.New()
	if err := st.Set(1, stack.ExportParams{ZMax: 5, Name: "metal1"}); err != nil {
		t.Fatal(err)
	}

	rows := layerRows(s, st)
	if len(rows) != 2 {
		t.Fatalf("rows = %d", len(rows))
	}
	if rows[0][5] != "metal1 (0..5)" {
		t.Errorf("export column = %q", rows[0][5])
	}
	if rows[1][5] != "-" || rows[1][3] != "(-1, 0)" {
		t.Errorf("row 2 = %v", rows[1])
	}
	if got := layerRows(s, nil)[0][5]; got != "-" {
		t.Errorf("nil stack export column = %q", got)
	}
}

func TestLayerStatsLine(t *testing.T) {
	line := layerStatsLine(12, 2, true)
	for _, want := range []string{"12 triangles", "2 skipped", iconCached} {
		if !strings.Contains(line, want) {
			t.Errorf("stats line %q missing %q", line, want)
		}
	}
	if strings.Contains(layerStatsLine(12, 0, false), "skipped") {
		t.Error("zero warnings should not be shown")
	}
}

func TestFormatLayerList(t *testing.T) {
	if got := formatLayerList([]int{1, 2, 10}); got != "1, 2, 10" {
		t.Errorf("formatLayerList() = %q", got)
	}
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	h := logHooks{logger: newLogger(&buf, log.DebugLevel)}
	ctx := context.Background()

	h.OnLoadComplete(ctx, "chip.gds", 2, 3, time.Millisecond, nil)
	h.OnLayerComplete(ctx, 1, "metal1", 12, 0, time.Millisecond, nil)
	h.OnCacheHit(ctx, "mesh")

	out := buf.String()
	for _, want := range []string{"layout loaded", "metal1", "cache hit"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestAttachLogFile(t *testing.T) {
	var stderr bytes.Buffer
	c := New(&stderr, LogInfo)
	path := filepath.Join(t.TempDir(), "gdsmesh.log")

	if err := c.attachLogFile(path); err != nil {
		t.Fatal(err)
	}
	c.Logger.Info("hello file")
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hello file") {
		t.Errorf("log file = %q", data)
	}
	if !strings.Contains(stderr.String(), "hello file") {
		t.Error("stderr should still receive logs")
	}
}

func TestCompletion(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"layout argument", []string{"__complete", "convert", ""}, []string{"gds", "gdsii", ":8"}},
		{"layers argument", []string{"__complete", "layers", ""}, []string{"gds2", ":8"}},
		{"stack flag", []string{"__complete", "convert", "chip.gds", "--stack", ""}, []string{"toml", "yml", ":8"}},
		{"format flag", []string{"__complete", "convert", "chip.gds", "--format", ""}, []string{"binary", "ascii", ":4"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, tt.args...)
			if err != nil {
				t.Fatal(err)
			}
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("completion output missing %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestCompletionScripts(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		out, err := runCLI(t, "completion", shell)
		if err != nil {
			t.Fatalf("%s: %v", shell, err)
		}
		if !strings.Contains(out, "gdsmesh") {
			t.Errorf("%s script does not mention gdsmesh", shell)
		}
	}
}
