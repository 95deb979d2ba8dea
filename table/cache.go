package table

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache events reported through Cache.OnEvent.
const (
	CacheHit        = "hit"
	CacheMiss       = "miss"
	CacheInvalidate = "invalidate"
)

// DefaultTTL matches how long a full-table read stays fresh.
const DefaultTTL = 5 * time.Minute

// DefaultLoadTimeout bounds a shared load once it no longer follows any caller's context.
const DefaultLoadTimeout = 30 * time.Second

// Cache memoizes LoadAll results per table with a time-based expiry.
// Any successful write invalidates every table; there is no per-row invalidation.
// Concurrent misses on the same table share one load. The load is detached from the
// caller that started it, so one cancelled request does not fail the others; each caller
// still stops waiting when its own context ends.
type Cache struct {
	Store       Store
	TTL         time.Duration
	LoadTimeout time.Duration
	Now         func() time.Time

	// OnEvent, when set, is told about hits, misses and invalidations.
	OnEvent func(t Name, event string)

	mu         sync.Mutex
	entries    map[Name]cacheEntry
	generation uint64
	group      singleflight.Group
}

type cacheEntry struct {
	rows     []Row
	loadedAt time.Time
}

// NewCache wraps s with a TTL read cache.
func NewCache(s Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{Store: s, TTL: ttl, LoadTimeout: DefaultLoadTimeout, Now: time.Now, entries: make(map[Name]cacheEntry)}
}

// All returns every row of t, from cache when fresh.
// The returned rows are shared; callers must not mutate them.
func (c *Cache) All(ctx context.Context, t Name) ([]Row, error) {
	c.mu.Lock()
	if e, ok := c.entries[t]; ok && c.now().Sub(e.loadedAt) < c.TTL {
		c.mu.Unlock()
		c.emit(t, CacheHit)
		return e.rows, nil
	}
	gen := c.generation
	c.mu.Unlock()

	c.emit(t, CacheMiss)
	ch := c.group.DoChan(string(t), func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout())
		defer cancel()
		rows, err := LoadAll(loadCtx, c.Store, t)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		// A write that landed while loading makes this result stale; don't keep it.
		if c.generation == gen {
			c.entries[t] = cacheEntry{rows: rows, loadedAt: c.now()}
		}
		c.mu.Unlock()
		return rows, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]Row), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops every cached table.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[Name]cacheEntry)
	c.generation++
	c.mu.Unlock()
	for t := range Columns {
		c.emit(t, CacheInvalidate)
	}
}

func (c *Cache) loadTimeout() time.Duration {
	if c.LoadTimeout <= 0 {
		return DefaultLoadTimeout
	}
	return c.LoadTimeout
}

func (c *Cache) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func (c *Cache) emit(t Name, event string) {
	if c.OnEvent != nil {
		c.OnEvent(t, event)
	}
}
