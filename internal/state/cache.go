package state

import (
	"github.com/elliotchance/orderedmap/v3"
	"github.com/matheus3301/tgtriage/internal/metrics"
)

// boundedCache evicts in insertion order once it grows past max.
// Updating an existing key keeps its original position.
type boundedCache[K comparable, V any] struct {
	name    string
	limit   int
	entries *orderedmap.OrderedMap[K, V]
}

func newBoundedCache[K comparable, V any](name string, limit int) *boundedCache[K, V] {
	return &boundedCache[K, V]{
		name:    name,
		limit:   limit,
		entries: orderedmap.NewOrderedMap[K, V](),
	}
}

func (c *boundedCache[K, V]) get(key K) (V, bool) {
	return c.entries.Get(key)
}

// put stores v and returns the number of evicted entries.
func (c *boundedCache[K, V]) put(key K, v V) int {
	c.entries.Set(key, v)
	return c.evict()
}

// update replaces v only when key is already cached.
func (c *boundedCache[K, V]) update(key K, fn func(V) V) {
	if v, ok := c.entries.Get(key); ok {
		c.entries.Set(key, fn(v))
	}
}

func (c *boundedCache[K, V]) evict() int {
	if c.limit <= 0 {
		return 0
	}
	evicted := 0
	for c.entries.Len() > c.limit {
		oldest := c.entries.Front()
		if oldest == nil {
			break
		}
		c.entries.Delete(oldest.Key)
		evicted++
	}
	if evicted > 0 {
		metrics.CacheEvictions.WithLabelValues(c.name).Add(float64(evicted))
	}
	return evicted
}

func (c *boundedCache[K, V]) len() int {
	return c.entries.Len()
}

// keys returns cached keys oldest first.
func (c *boundedCache[K, V]) keys() []K {
	out := make([]K, 0, c.entries.Len())
	for el := c.entries.Front(); el != nil; el = el.Next() {
		out = append(out, el.Key)
	}
	return out
}
