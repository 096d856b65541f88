package stack

import (
	"strconv"
	"strings"

	errs "github.com/matzehuels/gdsmesh/pkg/errors"
)

// ParseSpec parses a command line layer spec of the form
// NUMBER[:ZMIN:ZMAX[:NAME]].
func ParseSpec(spec string) (int, ExportParams, error) {
	parts := strings.SplitN(strings.TrimSpace(spec), ":", 4)

	n, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, ExportParams{}, errs.New(errs.ErrCodeInvalidInput, "layer spec %q: bad layer number", spec)
	}
	p := ExportParams{ZMin: DefaultZMin, ZMax: DefaultZMax}

	switch len(parts) {
	case 1:
	case 2:
		return 0, ExportParams{}, errs.New(errs.ErrCodeInvalidInput, "layer spec %q: give both zmin and zmax", spec)
	default:
		if p.ZMin, err = strconv.ParseFloat(parts[1], 64); err != nil {
			return 0, ExportParams{}, errs.New(errs.ErrCodeInvalidInput, "layer spec %q: bad zmin", spec)
		}
		if p.ZMax, err = strconv.ParseFloat(parts[2], 64); err != nil {
			return 0, ExportParams{}, errs.New(errs.ErrCodeInvalidInput, "layer spec %q: bad zmax", spec)
		}
		if len(parts) == 4 {
			p.Name = parts[3]
		}
	}
	if p.Name == "" {
		p.Name = DefaultName(n)
	}
	return n, p, nil
}

// FromSpecs builds a stack from command line layer specs.
func FromSpecs(specs []string) (*Stack, error) {
	s := New()
	for _, spec := range specs {
		n, p, err := ParseSpec(spec)
		if err != nil {
			return nil, err
		}
		if err := s.Set(n, p); err != nil {
			return nil, err
		}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
