package cli

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/gdsmesh/pkg/observability"
)

// logHooks reports pipeline and cache events at debug level.
type logHooks struct {
	logger *log.Logger
}

func (h logHooks) OnLoadStart(_ context.Context, path string) {
	h.logger.Debug("loading layout", "path", path)
}

func (h logHooks) OnLoadComplete(_ context.Context, path string, layers, polygons int, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("layout load failed", "path", path, "err", err)
		return
	}
	h.logger.Debug("layout loaded", "path", path, "layers", layers, "polygons", polygons, "duration", d)
}

func (h logHooks) OnLayerStart(_ context.Context, layer int, name string, polygons int) {
	h.logger.Debug("meshing layer", "layer", layer, "name", name, "polygons", polygons)
}

func (h logHooks) OnLayerComplete(_ context.Context, layer int, name string, triangles, warnings int, d time.Duration, err error) {
	h.logger.Debug("layer done", "layer", layer, "name", name, "triangles", triangles, "warnings", warnings, "duration", d, "err", err)
}

func (h logHooks) OnWrite(_ context.Context, path string, size int) {
	h.logger.Debug("wrote file", "path", path, "bytes", size)
}

func (h logHooks) OnCacheHit(_ context.Context, keyType string) {
	h.logger.Debug("cache hit", "type", keyType)
}

func (h logHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.logger.Debug("cache miss", "type", keyType)
}

func (h logHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "type", keyType, "bytes", size)
}

var (
	_ observability.PipelineHooks = logHooks{}
	_ observability.CacheHooks    = logHooks{}
)
