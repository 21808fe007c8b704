package summary

import (
	"sync"
	"time"

	"github.com/graphweave/graphweave/internal/core/model"
)

// summaryCache is a bounded TTL cache keyed by stable community id.
// Eviction is insertion-order (oldest inserted entry goes first), not
// access-order. Guarded by a mutex: batch generation writes from several
// goroutines.
type summaryCache struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	entries map[string]cacheEntry
	order   []string
}

type cacheEntry struct {
	summary    *model.CommunitySummary
	insertedAt time.Time
}

func newSummaryCache(maxSize int, ttl time.Duration) *summaryCache {
	return &summaryCache{
		maxSize: maxSize,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (c *summaryCache) Get(id string) (*model.CommunitySummary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	if time.Since(entry.insertedAt) >= c.ttl {
		delete(c.entries, id)
		return nil, false
	}
	return entry.summary, true
}

func (c *summaryCache) Set(id string, summary *model.CommunitySummary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[id]; exists {
		// Re-insertion refreshes the entry's age and slot in the order.
		c.removeFromOrder(id)
	}
	c.entries[id] = cacheEntry{summary: summary, insertedAt: time.Now()}
	c.order = append(c.order, id)

	for len(c.entries) > c.maxSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		if _, ok := c.entries[oldest]; ok {
			delete(c.entries, oldest)
		}
	}
}

// Snapshot returns the unexpired entries.
func (c *summaryCache) Snapshot() map[string]*model.CommunitySummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]*model.CommunitySummary, len(c.entries))
	for id, entry := range c.entries {
		if time.Since(entry.insertedAt) < c.ttl {
			out[id] = entry.summary
		}
	}
	return out
}

func (c *summaryCache) removeFromOrder(id string) {
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
