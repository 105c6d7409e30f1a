// Package hash fingerprints records so unchanged writes can be skipped.
package hash

import (
	"fmt"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/zeebo/xxh3"

	"github.com/arloliu/helmsman/store"
	"github.com/arloliu/helmsman/types"
)

// Record returns the xxh3 hash of the canonical encoding of rec.
//
// The encoding orders map keys, so records with equal content hash equally
// regardless of how they were built.
//
// Parameters:
//   - rec: Record to hash
//
// Returns:
//   - uint64: Content fingerprint
//   - error: Encoding failure (nil record)
func Record(rec *types.Record) (uint64, error) {
	data, err := store.EncodeRecord(rec)
	if err != nil {
		return 0, fmt.Errorf("fingerprint record: %w", err)
	}

	return xxh3.Hash(data), nil
}

// Cache remembers the fingerprint of the last successful write per path.
//
// Cache is safe for concurrent use.
type Cache struct {
	sums *xsync.Map[string, uint64]
}

// NewCache creates an empty fingerprint cache.
func NewCache() *Cache {
	return &Cache{sums: xsync.NewMap[string, uint64]()}
}

// Unchanged reports whether sum is the fingerprint last stored for path.
func (c *Cache) Unchanged(path string, sum uint64) bool {
	prev, ok := c.sums.Load(path)
	return ok && prev == sum
}

// Store records sum as the fingerprint last written to path.
func (c *Cache) Store(path string, sum uint64) {
	c.sums.Store(path, sum)
}

// Forget drops the fingerprint of path.
func (c *Cache) Forget(path string) {
	c.sums.Delete(path)
}

// Reset drops every fingerprint.
func (c *Cache) Reset() {
	c.sums.Clear()
}

// Len returns the number of remembered paths.
func (c *Cache) Len() int {
	return c.sums.Size()
}
