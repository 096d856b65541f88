package pipeline

import (
	"context"
	"encoding/json"

	"github.com/matzehuels/gdsmesh/pkg/cache"
	"github.com/matzehuels/gdsmesh/pkg/layer"
	"github.com/matzehuels/gdsmesh/pkg/observability"
)

// Summary lists the layers found in a layout. It is cached per input hash so
// a fully cached run can tell which configured layers exist without parsing.
type Summary struct {
	Layers  []LayerSummary `json:"layers"`
	Dropped int            `json:"dropped"`
}

// LayerSummary holds the statistics of one layer.
type LayerSummary struct {
	Number   int     `json:"number"`
	Polygons int     `json:"polygons"`
	Vertices int     `json:"vertices"`
	MinX     float64 `json:"min_x"`
	MinY     float64 `json:"min_y"`
	MaxX     float64 `json:"max_x"`
	MaxY     float64 `json:"max_y"`
}

// Summarize computes the summary of aggregated layers.
func Summarize(l *layer.Layers, dropped int) *Summary {
	s := &Summary{Layers: make([]LayerSummary, 0, l.Len()), Dropped: dropped}
	for _, n := range l.Numbers() {
		b := l.Bound(n)
		s.Layers = append(s.Layers, LayerSummary{
			Number:   n,
			Polygons: len(l.Polygons(n)),
			Vertices: l.VertexCount(n),
			MinX:     b.Min.X(),
			MinY:     b.Min.Y(),
			MaxX:     b.Max.X(),
			MaxY:     b.Max.Y(),
		})
	}
	return s
}

// Layer returns the summary of layer n.
func (s *Summary) Layer(n int) (LayerSummary, bool) {
	for _, ls := range s.Layers {
		if ls.Number == n {
			return ls, true
		}
	}
	return LayerSummary{}, false
}

// PolygonCount returns the total number of polygons.
func (s *Summary) PolygonCount() int {
	total := 0
	for _, ls := range s.Layers {
		total += ls.Polygons
	}
	return total
}

func (r *Runner) cachedSummary(ctx context.Context, inputHash string) (*Summary, bool) {
	data, hit, err := r.Cache.Get(ctx, r.Keyer.SummaryKey(inputHash))
	if err != nil || !hit {
		observability.Cache().OnCacheMiss(ctx, "summary")
		return nil, false
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		observability.Cache().OnCacheMiss(ctx, "summary")
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, "summary")
	return &s, true
}

func (r *Runner) storeSummary(ctx context.Context, inputHash string, s *Summary) {
	data, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := r.Cache.Set(ctx, r.Keyer.SummaryKey(inputHash), data, cache.DefaultTTL); err != nil {
		r.Logger.Debug("cache write failed", "key", "summary", "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, "summary", len(data))
}

// Summary loads the layout at path, or its cached summary, and returns the
// per-layer statistics. The layers are nil when the summary came from the
// cache.
func (r *Runner) Summary(ctx context.Context, path string, refresh bool) (*Summary, *layer.Layers, error) {
	inputHash, err := cache.HashFile(path)
	if err == nil && !refresh {
		if s, ok := r.cachedSummary(ctx, inputHash); ok {
			return s, nil, nil
		}
	}

	layers, dropped, err := Load(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	s := Summarize(layers, dropped)
	if inputHash != "" {
		r.storeSummary(ctx, inputHash, s)
	}
	return s, layers, nil
}
