package livedeals

import (
	"sync/atomic"
	"time"

	"github.com/pauljones0/live-deals/internal/models"
)

// Cache states.
const (
	StateEmpty = "empty"
	StateFresh = "fresh"
	StateStale = "stale"
)

type entry struct {
	deals     []models.Deal
	fetchedAt time.Time
}

// Cache is a single-slot store whose entry is fresh while younger than the
// TTL. Writers publish a complete entry with one atomic swap.
type Cache struct {
	ttl  time.Duration
	now  func() time.Time
	slot atomic.Pointer[entry]
}

// NewCache returns an empty cache. A nil clock means time.Now.
func NewCache(ttl time.Duration, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{ttl: ttl, now: now}
}

// Get returns the batch only while it is fresh.
func (c *Cache) Get() ([]models.Deal, time.Time, bool) {
	e := c.slot.Load()
	if e == nil || c.now().Sub(e.fetchedAt) >= c.ttl {
		return nil, time.Time{}, false
	}
	return e.deals, e.fetchedAt, true
}

// Peek returns whatever batch is held, fresh or stale.
func (c *Cache) Peek() ([]models.Deal, time.Time, bool) {
	e := c.slot.Load()
	if e == nil {
		return nil, time.Time{}, false
	}
	return e.deals, e.fetchedAt, true
}

// Put replaces the held batch.
func (c *Cache) Put(deals []models.Deal, fetchedAt time.Time) {
	c.slot.Store(&entry{deals: deals, fetchedAt: fetchedAt})
}

// Invalidate drops the held batch so the next Get misses.
func (c *Cache) Invalidate() {
	c.slot.Store(nil)
}

// State reports whether the cache is empty, fresh or stale.
func (c *Cache) State() string {
	e := c.slot.Load()
	switch {
	case e == nil:
		return StateEmpty
	case c.now().Sub(e.fetchedAt) < c.ttl:
		return StateFresh
	default:
		return StateStale
	}
}
