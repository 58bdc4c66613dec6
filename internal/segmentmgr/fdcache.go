package segmentmgr

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/flashq/flashq/internal/segment"
)

// DefaultFDCacheSize is how many sealed segments a manager keeps open at
// once by default.
const DefaultFDCacheSize = 64

// fdCache holds reopened sealed segments, closing the least recently used
// one whenever a new segment would push it past capacity. The active
// segment never lives here: it's held directly by the manager and is
// always open.
type fdCache struct {
	cache *lru.Cache
}

func newFDCache(size int) (*fdCache, error) {
	if size <= 0 {
		size = DefaultFDCacheSize
	}
	c := &fdCache{}
	cache, err := lru.NewWithEvict(size, func(_ interface{}, value interface{}) {
		_ = value.(*segment.Segment).Close()
	})
	if err != nil {
		return nil, err
	}
	c.cache = cache
	return c, nil
}

func (c *fdCache) get(baseOffset uint64) (*segment.Segment, bool) {
	v, ok := c.cache.Get(baseOffset)
	if !ok {
		return nil, false
	}
	return v.(*segment.Segment), true
}

func (c *fdCache) add(baseOffset uint64, seg *segment.Segment) {
	c.cache.Add(baseOffset, seg)
}

// purge closes every cached segment, used when the manager itself closes.
func (c *fdCache) purge() {
	c.cache.Purge()
}
