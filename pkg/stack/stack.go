// Package stack holds the layer export configuration: which layout layers
// become meshes, at what heights, and under which file names.
//
// A layer absent from the stack is still aggregated but never meshed.
// [Stack.Lookup] makes that branch explicit.
package stack

import (
	"fmt"
	"sort"

	errs "github.com/matzehuels/gdsmesh/pkg/errors"
)

// Defaults applied to layers given without explicit heights or names.
const (
	DefaultZMin = 0.0
	DefaultZMax = 100.0
)

// DefaultName returns the export name used when none is configured.
func DefaultName(layer int) string {
	return fmt.Sprintf("gdsii_%d", layer)
}

// ExportParams describes how one layer is exported.
type ExportParams struct {
	ZMin float64 `json:"zmin" toml:"zmin" yaml:"zmin"`
	ZMax float64 `json:"zmax" toml:"zmax" yaml:"zmax"`
	Name string  `json:"name" toml:"name" yaml:"name"`

	// Material is passed through to the manifest for downstream tools.
	Material string `json:"material,omitempty" toml:"material" yaml:"material"`
}

// Validate checks heights and the export name.
func (p ExportParams) Validate() error {
	if p.ZMin > p.ZMax {
		return errs.New(errs.ErrCodeInvalidStack, "zmin %g is above zmax %g", p.ZMin, p.ZMax)
	}
	return errs.ValidateExportName(p.Name)
}

// Stack maps layer numbers to export parameters.
type Stack struct {
	layers map[int]ExportParams
}

// New returns an empty stack.
func New() *Stack {
	return &Stack{layers: make(map[int]ExportParams)}
}

// Set adds or replaces the parameters of a layer. An empty name is replaced
// by DefaultName.
func (s *Stack) Set(layer int, p ExportParams) error {
	if err := errs.ValidateLayerNumber(layer); err != nil {
		return err
	}
	if p.Name == "" {
		p.Name = DefaultName(layer)
	}
	if err := p.Validate(); err != nil {
		return errs.Wrap(errs.ErrCodeInvalidStack, err, "layer %d", layer)
	}
	s.layers[layer] = p
	return nil
}

// Lookup returns the export parameters of a layer and whether it is
// configured at all.
func (s *Stack) Lookup(layer int) (ExportParams, bool) {
	p, ok := s.layers[layer]
	return p, ok
}

// Numbers returns the configured layers in ascending order.
func (s *Stack) Numbers() []int {
	out := make([]int, 0, len(s.layers))
	for n := range s.layers {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// Len returns the number of configured layers.
func (s *Stack) Len() int { return len(s.layers) }

// Merge copies every layer of other into s, replacing existing entries.
func (s *Stack) Merge(other *Stack) {
	for n, p := range other.layers {
		s.layers[n] = p
	}
}

// Validate checks cross-layer constraints: export names must be unique since
// they become file names in one directory.
func (s *Stack) Validate() error {
	seen := make(map[string]int, len(s.layers))
	for _, n := range s.Numbers() {
		p := s.layers[n]
		if other, ok := seen[p.Name]; ok {
			return errs.New(errs.ErrCodeInvalidStack, "layers %d and %d both export as %q", other, n, p.Name)
		}
		seen[p.Name] = n
	}
	return nil
}
