package resolver

import (
	"sync"
	"time"

	"chronoguard/internal/domain"
)

type cacheState int

const (
	cacheMiss cacheState = iota
	cacheHit
	cacheExpired
)

func (s cacheState) String() string {
	switch s {
	case cacheHit:
		return "hit"
	case cacheExpired:
		return "expired"
	default:
		return "miss"
	}
}

// ttlCache remembers Confirmed verdicts for a bounded interval. Only positive
// verdicts are cached: a stale Confirmed is the correctness risk here, since
// entities can be deleted after being confirmed, so nothing is ever served
// past its TTL. NotFound and Unreachable are never cached.
type ttlCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[domain.ForeignReference]time.Time
}

func newTTLCache(ttl time.Duration, clock func() time.Time) *ttlCache {
	return &ttlCache{
		ttl:     ttl,
		now:     clock,
		entries: make(map[domain.ForeignReference]time.Time),
	}
}

func (c *ttlCache) lookup(ref domain.ForeignReference) cacheState {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires, ok := c.entries[ref]
	if !ok {
		return cacheMiss
	}
	if c.now().After(expires) {
		delete(c.entries, ref)
		return cacheExpired
	}
	return cacheHit
}

func (c *ttlCache) store(ref domain.ForeignReference) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[ref] = c.now().Add(c.ttl)
}
