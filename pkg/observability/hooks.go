// Package observability provides hooks for metrics, tracing and logging of
// conversion runs.
//
// Libraries call the registered hooks; the binary decides what they do. The
// defaults are no-ops, so the pipeline carries no dependency on a particular
// metrics backend.
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetPipelineHooks(&myPipelineHooks{})
//	    observability.SetCacheHooks(&myCacheHooks{})
//	    // ... run application
//	}
//
// Libraries emit events:
//
//	observability.Pipeline().OnLoadStart(ctx, path)
//	// ... parse ...
//	observability.Pipeline().OnLoadComplete(ctx, path, layers, polygons, time.Since(start), err)
package observability

import (
	"context"
	"sync"
	"time"
)

// PipelineHooks receives events from the conversion pipeline.
type PipelineHooks interface {
	// Layout loading and aggregation.
	OnLoadStart(ctx context.Context, path string)
	OnLoadComplete(ctx context.Context, path string, layers, polygons int, duration time.Duration, err error)

	// Per exported layer, called from worker goroutines.
	OnLayerStart(ctx context.Context, layer int, name string, polygons int)
	OnLayerComplete(ctx context.Context, layer int, name string, triangles, warnings int, duration time.Duration, err error)

	// One mesh artifact written.
	OnWrite(ctx context.Context, path string, size int)
}

// CacheHooks receives events from cache lookups. keyType is "mesh" or
// "summary".
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType string)
	OnCacheMiss(ctx context.Context, keyType string)
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// NoopPipelineHooks ignores every event.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnLoadStart(context.Context, string)                                    {}
func (NoopPipelineHooks) OnLoadComplete(context.Context, string, int, int, time.Duration, error) {}
func (NoopPipelineHooks) OnLayerStart(context.Context, int, string, int)                         {}
func (NoopPipelineHooks) OnWrite(context.Context, string, int)                                   {}
func (NoopPipelineHooks) OnLayerComplete(context.Context, int, string, int, int, time.Duration, error) {
}

// NoopCacheHooks ignores every event.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

var (
	pipelineHooks PipelineHooks = NoopPipelineHooks{}
	cacheHooks    CacheHooks    = NoopCacheHooks{}
	hooksMu       sync.RWMutex
)

// SetPipelineHooks registers pipeline hooks. nil is ignored.
func SetPipelineHooks(h PipelineHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		pipelineHooks = h
	}
}

// SetCacheHooks registers cache hooks. nil is ignored.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// Pipeline returns the registered pipeline hooks.
func Pipeline() PipelineHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return pipelineHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Reset restores the no-op defaults.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	pipelineHooks = NoopPipelineHooks{}
	cacheHooks = NoopCacheHooks{}
}
