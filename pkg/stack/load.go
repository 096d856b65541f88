package stack

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	errs "github.com/matzehuels/gdsmesh/pkg/errors"
)

type layerEntry struct {
	Number   *int     `toml:"number" yaml:"number"`
	ZMin     *float64 `toml:"zmin" yaml:"zmin"`
	ZMax     *float64 `toml:"zmax" yaml:"zmax"`
	Name     string   `toml:"name" yaml:"name"`
	Material string   `toml:"material" yaml:"material"`
}

type stackFile struct {
	Layers []layerEntry `toml:"layer" yaml:"layers"`
}

// Load reads a stack file. The format follows the extension: .toml, or
// .yaml/.yml.
func Load(path string) (*Stack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.ErrCodeFileNotFound, err, "stack file %s", path)
		}
		return nil, err
	}

	var f stackFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, &f)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &f)
	default:
		return nil, errs.New(errs.ErrCodeInvalidFormat, "unknown stack file type %q (want .toml, .yaml or .yml)", ext)
	}
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidStack, err, "parse %s", path)
	}
	return f.build()
}

func (f stackFile) build() (*Stack, error) {
	s := New()
	for i, e := range f.Layers {
		if e.Number == nil {
			return nil, errs.New(errs.ErrCodeInvalidStack, "entry %d has no layer number", i+1)
		}
		if _, dup := s.Lookup(*e.Number); dup {
			return nil, errs.New(errs.ErrCodeInvalidStack, "layer %d listed twice", *e.Number)
		}
		p := ExportParams{ZMin: DefaultZMin, ZMax: DefaultZMax, Name: e.Name, Material: e.Material}
		if e.ZMin != nil {
			p.ZMin = *e.ZMin
		}
		if e.ZMax != nil {
			p.ZMax = *e.ZMax
		}
		if err := s.Set(*e.Number, p); err != nil {
			return nil, err
		}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
