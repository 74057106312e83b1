package api

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pietrospam/pietrosoft-notes-sub000/internal/db"
)

// DefaultStatusTTL is how long row counts are served from the cache.
const DefaultStatusTTL = 2 * time.Second

// countsCache provides a TTL-based cache for CountAll results, with
// singleflight coalescing so concurrent status requests share one query.
type countsCache struct {
	mu       sync.RWMutex
	counts   *db.Counts
	loadedAt time.Time
	ttl      time.Duration
	group    singleflight.Group
	load     func(ctx context.Context) (db.Counts, error)
}

func newCountsCache(load func(ctx context.Context) (db.Counts, error), ttl time.Duration) *countsCache {
	return &countsCache{load: load, ttl: ttl}
}

func (c *countsCache) cached() (db.Counts, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.counts != nil && time.Since(c.loadedAt) < c.ttl {
		return *c.counts, true
	}
	return db.Counts{}, false
}

// Counts returns cached counts or loads them. Errors are never cached.
func (c *countsCache) Counts(ctx context.Context) (db.Counts, error) {
	if counts, ok := c.cached(); ok {
		return counts, nil
	}

	result, err, _ := c.group.Do("counts", func() (any, error) {
		// Double-check cache after acquiring singleflight slot
		if counts, ok := c.cached(); ok {
			return counts, nil
		}

		counts, err := c.load(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.counts = &counts
		c.loadedAt = time.Now()
		c.mu.Unlock()
		return counts, nil
	})
	if err != nil {
		return db.Counts{}, err
	}
	return result.(db.Counts), nil
}

// Invalidate clears the cache, forcing the next Counts call to reload.
func (c *countsCache) Invalidate() {
	c.mu.Lock()
	c.counts = nil
	c.loadedAt = time.Time{}
	c.mu.Unlock()
}
