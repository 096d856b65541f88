package pipeline

import (
	"context"
	"errors"
	"io/fs"
	"time"

	errs "github.com/matzehuels/gdsmesh/pkg/errors"
	"github.com/matzehuels/gdsmesh/pkg/gds"
	"github.com/matzehuels/gdsmesh/pkg/layer"
	"github.com/matzehuels/gdsmesh/pkg/observability"
)

// Load reads the layout at path and groups its geometry by layer. It also
// returns the number of boundaries the parser dropped as degenerate.
func Load(ctx context.Context, path string) (*layer.Layers, int, error) {
	hooks := observability.Pipeline()
	hooks.OnLoadStart(ctx, path)
	start := time.Now()

	layers, dropped, err := load(ctx, path)
	nl, np := 0, 0
	if layers != nil {
		nl, np = layers.Len(), layers.PolygonCount()
	}
	hooks.OnLoadComplete(ctx, path, nl, np, time.Since(start), err)
	return layers, dropped, err
}

func load(ctx context.Context, path string) (*layer.Layers, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	lib, err := gds.Load(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, 0, errs.Wrap(errs.ErrCodeFileNotFound, err, "layout %s", path)
	case err != nil:
		return nil, 0, errs.Wrap(errs.ErrCodeMalformedLayout, err, "read %s", path)
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	layers, err := layer.Aggregate(lib)
	if err != nil {
		return nil, 0, errs.Wrap(errs.ErrCodeMalformedLayout, err, "flatten %s", path)
	}
	return layers, lib.Dropped, nil
}
