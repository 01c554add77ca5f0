package core

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type pairKey struct {
	low, high int64
}

func newPairKey(a, b int64) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{low: a, high: b}
}

// RelationshipCache memoizes pair classifications. Lineage fields never change
// after creation and ids are never reused, so entries stay valid until they
// expire or are evicted.
type RelationshipCache struct {
	lru    *expirable.LRU[pairKey, Relationship]
	hits   prometheus.Counter
	misses prometheus.Counter
}

// NewRelationshipCache returns a cache of at most size pairs that expire
// after ttl (never when ttl <= 0). Hit and miss counters are registered with
// reg when it is non-nil.
func NewRelationshipCache(size int, ttl time.Duration, reg prometheus.Registerer) *RelationshipCache {
	factory := promauto.With(reg)
	return &RelationshipCache{
		lru: expirable.NewLRU[pairKey, Relationship](size, nil, ttl),
		hits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "herdbook",
			Subsystem: "relationship_cache",
			Name:      "hits_total",
			Help:      "Relationship classifications served from cache.",
		}),
		misses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "herdbook",
			Subsystem: "relationship_cache",
			Name:      "misses_total",
			Help:      "Relationship classifications computed on demand.",
		}),
	}
}

// Get returns the cached classification for the unordered pair (a, b).
func (c *RelationshipCache) Get(a, b int64) (Relationship, bool) {
	rel, ok := c.lru.Get(newPairKey(a, b))
	if ok {
		c.hits.Inc()
	} else {
		c.misses.Inc()
	}
	return rel, ok
}

// Add stores rel for the unordered pair (a, b). NotFound results are not cached.
func (c *RelationshipCache) Add(a, b int64, rel Relationship) {
	if rel.Class == ClassNotFound {
		return
	}
	c.lru.Add(newPairKey(a, b), rel)
}

// Forget drops every cached pair involving id.
func (c *RelationshipCache) Forget(id int64) {
	for _, key := range c.lru.Keys() {
		if key.low == id || key.high == id {
			c.lru.Remove(key)
		}
	}
}

// Len reports the number of cached pairs.
func (c *RelationshipCache) Len() int {
	return c.lru.Len()
}
