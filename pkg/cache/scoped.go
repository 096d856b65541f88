package cache

// ScopedKeyer prefixes every key of an inner keyer. A shared Redis instance
// serving several projects or tool versions uses one scope per tenant:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "gdsmesh:ci:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer wraps inner, or the default keyer when inner is nil.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// MeshKey returns the prefixed mesh key.
func (k *ScopedKeyer) MeshKey(inputHash string, opts MeshKeyOpts) string {
	return k.prefix + k.inner.MeshKey(inputHash, opts)
}

// SummaryKey returns the prefixed summary key.
func (k *ScopedKeyer) SummaryKey(inputHash string) string {
	return k.prefix + k.inner.SummaryKey(inputHash)
}
