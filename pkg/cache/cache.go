// Package cache stores generated layer meshes so repeated conversions of an
// unchanged layout skip parsing, triangulation and extrusion.
//
// Entries are opaque byte slices addressed by string keys. Keys are built by
// a [Keyer] from a content hash of the input file plus every option that
// influences the output, so a changed file or flag is simply a miss.
//
// Three backends are provided:
//   - [FileCache]: one JSON file per entry below a directory, for local use
//   - [RedisCache]: a shared Redis instance, for build farms and CI runners
//   - [NullCache]: stores nothing, used when caching is disabled
package cache

import (
	"context"
	"time"
)

// DefaultTTL is how long mesh entries stay valid.
const DefaultTTL = 7 * 24 * time.Hour

// Cache is a byte-oriented key/value store with expiry.
//
// Get reports a miss as (nil, false, nil); errors are reserved for backend
// failures. Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
