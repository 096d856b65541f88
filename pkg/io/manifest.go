package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
)

// ManifestName is the file name used by [ExportManifest].
const ManifestName = "manifest.json"

// Manifest describes the meshes produced by one run.
type Manifest struct {
	RunID   string          `json:"run_id"`
	Version string          `json:"version,omitempty"`
	Input   string          `json:"input"`
	Format  string          `json:"format"`
	Layers  []ManifestLayer `json:"layers"`
}

// ManifestLayer is one exported layer.
type ManifestLayer struct {
	Number    int     `json:"number"`
	Name      string  `json:"name"`
	Material  string  `json:"material,omitempty"`
	ZMin      float64 `json:"zmin"`
	ZMax      float64 `json:"zmax"`
	File      string  `json:"file,omitempty"`
	Triangles int     `json:"triangles"`
	Warnings  int     `json:"warnings"`
	Cached    bool    `json:"cached,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// WriteManifest encodes m as indented JSON. Layers are sorted by number
// first so the output does not depend on worker scheduling.
func WriteManifest(m *Manifest, w io.Writer) error {
	out := *m
	out.Layers = append([]ManifestLayer(nil), m.Layers...)
	sort.Slice(out.Layers, func(i, j int) bool { return out.Layers[i].Number < out.Layers[j].Number })
	if out.Layers == nil {
		out.Layers = []ManifestLayer{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportManifest writes m to path.
func ExportManifest(m *Manifest, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteManifest(m, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadManifest decodes a manifest written by [WriteManifest].
func ReadManifest(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &m, nil
}

// ImportManifest reads the manifest at path.
func ImportManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadManifest(f)
}
