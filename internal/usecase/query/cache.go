package query

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/biorag/internal/domain"
)

// ResponseCache memoizes complete query results by normalized question.
// Process-lifetime only: no TTL, no size bound, no invalidation. Staleness
// against a re-ingested corpus is an accepted tradeoff.
type ResponseCache struct {
	mu         sync.RWMutex
	entries    map[string]domain.QueryResult
	cacheTotal *prometheus.CounterVec
}

// NewResponseCache creates an empty cache.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"); may be nil.
func NewResponseCache(cacheTotal *prometheus.CounterVec) *ResponseCache {
	return &ResponseCache{
		entries:    make(map[string]domain.QueryResult),
		cacheTotal: cacheTotal,
	}
}

// Get returns the cached result for a normalized question key.
func (c *ResponseCache) Get(key string) (domain.QueryResult, bool) {
	c.mu.RLock()
	res, ok := c.entries[key]
	c.mu.RUnlock()

	if c.cacheTotal != nil {
		if ok {
			c.cacheTotal.WithLabelValues("hit").Inc()
		} else {
			c.cacheTotal.WithLabelValues("miss").Inc()
		}
	}
	return res, ok
}

// Put stores a result. Concurrent writers for the same key race and the
// last one wins; both computed the same complete response, so duplicate
// work on a miss race is accepted rather than serialized.
func (c *ResponseCache) Put(key string, res domain.QueryResult) {
	c.mu.Lock()
	c.entries[key] = res
	c.mu.Unlock()
}

// Len reports the number of cached responses.
func (c *ResponseCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
