package cache

// Keyer builds cache keys. Swapping the keyer changes the namespace without
// touching the backends.
type Keyer interface {
	// MeshKey addresses the encoded STL bytes of one layer.
	MeshKey(inputHash string, opts MeshKeyOpts) string

	// SummaryKey addresses the per-layer statistics of one input file.
	SummaryKey(inputHash string) string
}

// MeshKeyOpts lists everything that changes the bytes of a layer mesh.
type MeshKeyOpts struct {
	Layer         int     `json:"layer"`
	ZMin          float64 `json:"zmin"`
	ZMax          float64 `json:"zmax"`
	Name          string  `json:"name"`
	Format        string  `json:"format"`
	Delta         float64 `json:"delta"`
	Epsilon       float64 `json:"epsilon"`
	HoleDelta     float64 `json:"hole_delta"`
	ExplicitHoles bool    `json:"explicit_holes"`
	InsetWalls    bool    `json:"inset_walls"`
	Triangulator  string  `json:"triangulator"`

	// Version invalidates entries written by other releases.
	Version string `json:"version"`
}

// DefaultKeyer hashes key options into fixed-length keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// MeshKey returns "mesh:<sha256>".
func (DefaultKeyer) MeshKey(inputHash string, opts MeshKeyOpts) string {
	return hashKey("mesh", inputHash, opts)
}

// SummaryKey returns "summary:<input hash>".
func (DefaultKeyer) SummaryKey(inputHash string) string {
	return "summary:" + inputHash
}

var _ Keyer = DefaultKeyer{}
