package verbs

import (
	"sort"
	"sync"
	"time"
)

// Usage is one verb's observed-use statistics.
type Usage struct {
	Verb     string    `json:"verb"`
	Count    int64     `json:"count"`
	LastUsed time.Time `json:"last_used"`
}

// usageCache is a bounded in-memory verb-usage counter. When the entry
// count exceeds the cap, the least-recently-used 10% of entries are
// evicted.
type usageCache struct {
	mu      sync.Mutex
	cap     int
	seq     uint64
	entries map[string]*usageEntry
}

// usageEntry tracks recency with a monotonic sequence; wall-clock
// timestamps are too coarse to order touches within the same instant.
type usageEntry struct {
	Usage
	touched uint64
}

const defaultUsageCap = 10000

func newUsageCache(cap int) *usageCache {
	if cap <= 0 {
		cap = defaultUsageCap
	}
	return &usageCache{
		cap:     cap,
		entries: make(map[string]*usageEntry),
	}
}

func (c *usageCache) track(verbID string) {
	if verbID == "" {
		return
	}
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	if u, ok := c.entries[verbID]; ok {
		u.Count++
		u.LastUsed = now
		u.touched = c.seq
		return
	}
	c.entries[verbID] = &usageEntry{
		Usage:   Usage{Verb: verbID, Count: 1, LastUsed: now},
		touched: c.seq,
	}

	if len(c.entries) > c.cap {
		c.evictLocked()
	}
}

// evictLocked drops the least-recently-touched 10% of entries.
func (c *usageCache) evictLocked() {
	all := make([]*usageEntry, 0, len(c.entries))
	for _, u := range c.entries {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].touched < all[j].touched
	})

	drop := len(all) / 10
	if drop < 1 {
		drop = 1
	}
	for _, u := range all[:drop] {
		delete(c.entries, u.Verb)
	}
}

func (c *usageCache) snapshot() []Usage {
	c.mu.Lock()
	out := make([]Usage, 0, len(c.entries))
	for _, u := range c.entries {
		out = append(out, u.Usage)
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Verb < out[j].Verb
	})
	return out
}
