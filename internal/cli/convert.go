package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	errs "github.com/matzehuels/gdsmesh/pkg/errors"
	"github.com/matzehuels/gdsmesh/pkg/mesh"
	"github.com/matzehuels/gdsmesh/pkg/observability"
	"github.com/matzehuels/gdsmesh/pkg/pipeline"
	"github.com/matzehuels/gdsmesh/pkg/stack"
)

// convertFlags holds the flag values of the convert command.
type convertFlags struct {
	stackFile     string
	layers        []string
	outDir        string
	format        string
	delta         float64
	epsilon       float64
	holeDelta     float64
	explicitHoles bool
	insetWalls    bool
	workers       int
	noCache       bool
	refresh       bool
	cacheURL      string
	manifest      bool
}

// convertCommand creates the convert command.
func (c *CLI) convertCommand() *cobra.Command {
	var flags convertFlags

	cmd := &cobra.Command{
		Use:   "convert FILE",
		Short: "Extrude the layers of a GDSII layout into STL meshes",
		Long: `Convert reads a GDSII layout and writes one STL mesh per exported layer.

Layers are selected with a stack file (TOML or YAML) and/or --layer specs of
the form NUMBER[:ZMIN:ZMAX[:NAME]]. Layers without heights span 0..100 and
unnamed layers are written as gdsii_<number>.stl. --layer entries override
the stack file.

Meshes are written next to the input file unless --out-dir is given.`,
		Example: `  gdsmesh convert chip.gds --layer 1:0:100:metal1 --layer 2:100:150:via
  gdsmesh convert chip.gds --stack stack.toml --out-dir meshes --manifest`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeLayout,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runConvert(cmd, args[0], flags)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.stackFile, "stack", "s", "", "layer stack file (.toml, .yaml)")
	f.StringArrayVarP(&flags.layers, "layer", "l", nil, "layer spec NUMBER[:ZMIN:ZMAX[:NAME]] (repeatable)")
	f.StringVarP(&flags.outDir, "out-dir", "o", "", "output directory (default: next to the input)")
	f.StringVarP(&flags.format, "format", "f", string(mesh.FormatBinary), "STL encoding: binary or ascii")
	f.Float64Var(&flags.delta, "delta", 0, "cap inset distance (default 0.01)")
	f.Float64Var(&flags.epsilon, "epsilon", 0, "normal length guard (default 1e-8)")
	f.Float64Var(&flags.holeDelta, "hole-delta", 0, "hole marker offset factor (default 0.001)")
	f.BoolVar(&flags.explicitHoles, "explicit-holes", false, "pass hole markers to the triangulator (experimental)")
	f.BoolVar(&flags.insetWalls, "inset-walls", false, "build side walls from the inset outline")
	f.IntVarP(&flags.workers, "workers", "j", 0, "layers meshed in parallel (default: number of CPUs)")
	f.BoolVar(&flags.noCache, "no-cache", false, "disable the mesh cache")
	f.BoolVar(&flags.refresh, "refresh", false, "recompute and overwrite cached meshes")
	f.StringVar(&flags.cacheURL, "cache-url", "", "redis://host:port/db for a shared cache (default $GDSMESH_CACHE_URL)")
	f.BoolVar(&flags.manifest, "manifest", false, "write manifest.json next to the meshes")

	_ = cmd.RegisterFlagCompletionFunc("format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		names := make([]string, len(mesh.Formats))
		for i, f := range mesh.Formats {
			names[i] = string(f)
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	})
	completeStackFlag(cmd)

	return cmd
}

func (c *CLI) runConvert(cmd *cobra.Command, input string, flags convertFlags) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	st, err := buildStack(flags.stackFile, flags.layers)
	if err != nil {
		return err
	}

	cacheURL := flags.cacheURL
	if cacheURL == "" {
		cacheURL = cacheURLFromEnv()
	}
	runner, err := c.newRunner(ctx, flags.noCache, cacheURL)
	if err != nil {
		return err
	}
	defer runner.Close()

	opts := pipeline.Options{
		Input:         input,
		Stack:         st,
		OutDir:        flags.outDir,
		Format:        flags.format,
		Delta:         flags.delta,
		Epsilon:       flags.epsilon,
		HoleDelta:     flags.holeDelta,
		ExplicitHoles: flags.explicitHoles,
		InsetWalls:    flags.insetWalls,
		Workers:       flags.workers,
		Refresh:       flags.refresh,
		Manifest:      flags.manifest,
		Logger:        logger,
	}

	printInfo("Exporting layers %s", formatLayerList(st.Numbers()))
	msg := fmt.Sprintf("Converting %s", filepath.Base(input))
	spinner := newSpinnerWithContext(ctx, msg)
	prev := observability.Pipeline()
	observability.SetPipelineHooks(&spinnerHooks{PipelineHooks: prev, spinner: spinner, prefix: msg, total: st.Len()})
	defer observability.SetPipelineHooks(prev)

	spinner.Start()
	prog := newProgress(logger)
	result, err := runner.Execute(ctx, opts)
	spinner.Stop()

	if result == nil {
		return err
	}
	prog.done(fmt.Sprintf("Converted %d layers", result.Stats.Layers))
	printResult(result)
	if err != nil {
		return fmt.Errorf("%d of %d layers failed: %w", countFailed(result), len(result.Layers), err)
	}
	return nil
}

// buildStack merges the stack file and the --layer specs. Specs win.
func buildStack(stackFile string, specs []string) (*stack.Stack, error) {
	st := stack.New()
	if stackFile != "" {
		loaded, err := stack.Load(stackFile)
		if err != nil {
			return nil, err
		}
		st.Merge(loaded)
	}
	if len(specs) > 0 {
		fromSpecs, err := stack.FromSpecs(specs)
		if err != nil {
			return nil, err
		}
		st.Merge(fromSpecs)
	}
	if st.Len() == 0 {
		return nil, errs.New(errs.ErrCodeInvalidStack, "no layers selected; use --stack or --layer")
	}
	if err := st.Validate(); err != nil {
		return nil, err
	}
	return st, nil
}

func printResult(result *pipeline.Result) {
	if len(result.Layers) == 0 {
		printWarning("None of the selected layers has geometry in this layout")
		return
	}
	for _, lr := range result.Layers {
		if lr.Err != nil {
			printError("layer %d (%s): %s", lr.Layer, lr.Params.Name, errs.UserMessage(unwrapLayer(lr.Err)))
			continue
		}
		printFile(lr.Path)
		printLayerStats(lr.Triangles, lr.Warnings, lr.Cached)
	}
	if n := result.WarningCount(); n > 0 {
		printWarning("%d polygons could not be triangulated and have side walls only", n)
	}
	if result.ManifestPath != "" {
		printKeyValue("Manifest", result.ManifestPath)
	}
}

func countFailed(result *pipeline.Result) int {
	n := 0
	for _, lr := range result.Layers {
		if lr.Err != nil {
			n++
		}
	}
	return n
}

// unwrapLayer strips the layer prefix already shown by printResult.
func unwrapLayer(err error) error {
	var le *errs.LayerError
	if errors.As(err, &le) {
		return le.Err
	}
	return err
}

// formatLayerList renders layer numbers as "1, 2, 5".
func formatLayerList(nums []int) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ", ")
}
