package resolver

import (
	"net"
	"sync"
	"time"
)

// answer is the decoded answer section of one query. Values handed out of the
// cache are shared, so callers copy slices before returning them.
type answer struct {
	mx    []*net.MX
	txt   []string
	addrs []net.IPAddr
	ptr   []string
	cname string // owner name of the first address record
	ttl   uint32 // smallest TTL among the records read
}

type cacheEntry struct {
	ans     *answer
	expires time.Time
}

// answerCache holds positive answers until their TTL, capped by maxAge,
// runs out. A zero maxAge disables caching.
type answerCache struct {
	mu      sync.Mutex
	maxAge  time.Duration
	entries map[string]cacheEntry
}

const sweepThreshold = 4096

func (c *answerCache) get(key string, now time.Time) *answer {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil
	}
	if !now.Before(e.expires) {
		delete(c.entries, key)
		return nil
	}
	return e.ans
}

func (c *answerCache) put(key string, a *answer, now time.Time) {
	ttl := time.Duration(a.ttl) * time.Second
	if ttl > c.maxAge {
		ttl = c.maxAge
	}
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string]cacheEntry)
	}
	if len(c.entries) >= sweepThreshold {
		for k, e := range c.entries {
			if !now.Before(e.expires) {
				delete(c.entries, k)
			}
		}
	}
	c.entries[key] = cacheEntry{ans: a, expires: now.Add(ttl)}
}

func (c *answerCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
