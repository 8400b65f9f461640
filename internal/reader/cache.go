// File path: internal/reader/cache.go
package reader

import (
	"container/list"
	"sync"
	"time"

	"github.com/brettcrane/sessionindex/internal/session"
)

// Clock supplies the current time; injectable so cache expiry is testable.
type Clock func() time.Time

type cacheEntry struct {
	key       string
	value     []session.Summary
	expiresAt time.Time
}

// summaryCache is a bounded TTL cache with LRU eviction for pre-parsed
// session summaries, keyed by filter combination. It only serves list queries
// while the index is unavailable, so staleness within the TTL is acceptable.
type summaryCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      Clock
	items    map[string]*list.Element
	ll       *list.List
}

func newSummaryCache(capacity int, ttl time.Duration, now Clock) *summaryCache {
	if capacity <= 0 {
		capacity = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &summaryCache{
		capacity: capacity,
		ttl:      ttl,
		now:      now,
		items:    make(map[string]*list.Element, capacity),
		ll:       list.New(),
	}
}

func (c *summaryCache) Get(key string) ([]session.Summary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(cacheEntry)
	if c.now().After(entry.expiresAt) {
		c.ll.Remove(elem)
		delete(c.items, key)
		return nil, false
	}
	c.ll.MoveToFront(elem)
	return entry.value, true
}

func (c *summaryCache) Set(key string, value []session.Summary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := cacheEntry{key: key, value: value, expiresAt: c.now().Add(c.ttl)}
	if elem, ok := c.items[key]; ok {
		elem.Value = entry
		c.ll.MoveToFront(elem)
		return
	}
	elem := c.ll.PushFront(entry)
	c.items[key] = elem
	if c.ll.Len() > c.capacity {
		tail := c.ll.Back()
		if tail != nil {
			c.ll.Remove(tail)
			delete(c.items, tail.Value.(cacheEntry).key)
		}
	}
}

func (c *summaryCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element, c.capacity)
	c.ll = list.New()
}
