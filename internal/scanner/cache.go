package scanner

import (
	"github.com/cespare/xxhash/v2"
	"github.com/maypok86/otter"

	"github.com/mvp-joe/pymetrix/internal/metrics"
)

// Cache memoizes analysis results by path and content hash. Analysis is a
// pure function of both, so an entry never goes stale; unchanged files are
// served without reparsing. A nil *Cache is valid and caches nothing.
type Cache struct {
	entries otter.Cache[uint64, metrics.Record]
}

// NewCache creates a cache holding up to capacity records. A capacity of
// zero or less returns a nil cache.
func NewCache(capacity int) (*Cache, error) {
	if capacity <= 0 {
		return nil, nil
	}

	entries, err := otter.MustBuilder[uint64, metrics.Record](capacity).Build()
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries}, nil
}

// Key derives the cache key of a file from its path and content.
func Key(path string, src []byte) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(path)
	_, _ = d.Write([]byte{0})
	_, _ = d.Write(src)
	return d.Sum64()
}

// Get returns the cached record for key.
func (c *Cache) Get(key uint64) (metrics.Record, bool) {
	if c == nil {
		return metrics.Record{}, false
	}
	return c.entries.Get(key)
}

// Set stores rec under key.
func (c *Cache) Set(key uint64, rec metrics.Record) {
	if c == nil {
		return
	}
	c.entries.Set(key, rec)
}

// Len returns the number of cached records.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Size()
}

// Close releases the cache's background resources.
func (c *Cache) Close() {
	if c == nil {
		return
	}
	c.entries.Close()
}
