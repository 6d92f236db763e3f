// Package bus carries inbound work frames from the gateway to the
// scheduler. Its dedupe cache absorbs coordinator redelivery: after a
// reconnect the coordinator may replay recent agent:work frames, and
// replays must not reach an agent twice.
package bus

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Dedupe defaults.
const (
	DefaultDedupeTTL  = 20 * time.Minute
	DefaultDedupeSize = 5000
)

// DedupeCache is a TTL-bounded set of recently seen correlation IDs.
type DedupeCache struct {
	cache *expirable.LRU[string, struct{}]
}

// NewDedupeCache creates a cache. Non-positive arguments take the
// defaults.
func NewDedupeCache(ttl time.Duration, size int) *DedupeCache {
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}
	if size <= 0 {
		size = DefaultDedupeSize
	}
	return &DedupeCache{cache: expirable.NewLRU[string, struct{}](size, nil, ttl)}
}

// IsDuplicate reports whether key was seen within the TTL window and,
// when it was not, records it for future checks.
func (d *DedupeCache) IsDuplicate(key string) bool {
	if _, ok := d.cache.Get(key); ok {
		return true
	}
	d.cache.Add(key, struct{}{})
	return false
}

// Forget un-records a key, letting a later resubmit through. Used when
// an item was rejected rather than accepted.
func (d *DedupeCache) Forget(key string) {
	d.cache.Remove(key)
}

// Len returns the number of live entries.
func (d *DedupeCache) Len() int {
	return d.cache.Len()
}
