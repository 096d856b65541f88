package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	pkgio "github.com/matzehuels/gdsmesh/pkg/io"
	"github.com/matzehuels/gdsmesh/pkg/pipeline"
	"github.com/matzehuels/gdsmesh/pkg/stack"
)

// layersCommand creates the layers command.
func (c *CLI) layersCommand() *cobra.Command {
	var (
		geojsonOut string
		stackFile  string
		noCache    bool
		refresh    bool
	)

	cmd := &cobra.Command{
		Use:   "layers FILE",
		Short: "List the layers of a GDSII layout",
		Long: `Layers prints the polygon count, vertex count and extent of every layer in a
GDSII layout. With --stack, the export name of configured layers is shown.
With --geojson, the flattened polygons are also written as a GeoJSON
FeatureCollection for inspection.`,
		Example: `  gdsmesh layers chip.gds
  gdsmesh layers chip.gds --stack stack.toml --geojson chip.geojson`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeLayout,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			input := args[0]

			var st *stack.Stack
			if stackFile != "" {
				loaded, err := stack.Load(stackFile)
				if err != nil {
					return err
				}
				st = loaded
			}

			runner, err := c.newRunner(ctx, noCache, cacheURLFromEnv())
			if err != nil {
				return err
			}
			defer runner.Close()

			// The GeoJSON export needs the geometry, which the cached summary lacks.
			summary, layers, err := runner.Summary(ctx, input, refresh || geojsonOut != "")
			if err != nil {
				return err
			}

			printLayerTable(summary, st)
			printLayerTotals(summary)

			if geojsonOut != "" {
				if err := pkgio.ExportGeoJSON(layers, geojsonOut); err != nil {
					return err
				}
				printSuccess("Wrote GeoJSON")
				printFile(geojsonOut)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&geojsonOut, "geojson", "", "write the flattened polygons to a GeoJSON file")
	cmd.Flags().StringVarP(&stackFile, "stack", "s", "", "layer stack file to annotate exported layers")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the summary cache")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "re-read the layout even if a summary is cached")
	completeStackFlag(cmd)

	return cmd
}

func printLayerTotals(s *pipeline.Summary) {
	line := fmt.Sprintf("%d layers · %d polygons", len(s.Layers), s.PolygonCount())
	if s.Dropped > 0 {
		line += fmt.Sprintf(" · %d degenerate boundaries dropped", s.Dropped)
	}
	printDetail("%s", line)
}
