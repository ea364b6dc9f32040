package cache

import "sync"

// Cache is a thread-safe LRU cache bounded by the total cost of its entries.
// When an insertion pushes the total over the limit, least recently used
// entries are evicted until it fits again. The most recent entry is never
// evicted, even when its own cost exceeds the limit.
//
// Cache must not be copied after creation (has mutex).
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*node[K, V]
	order   list[K, V]
	limit   int64
	cost    int64
	onEvict func(K, V)

	hits, misses, evictions uint64
}

// New creates a cache holding at most limit cost units.
// A limit of 0 means unlimited.
func New[K comparable, V any](limit int64) *Cache[K, V] {
	return &Cache[K, V]{
		entries: make(map[K]*node[K, V]),
		limit:   limit,
	}
}

// OnEvict registers fn to be called for entries removed by eviction,
// Delete or Clear. fn runs with the cache lock held and must not call back
// into the cache.
func (c *Cache[K, V]) OnEvict(fn func(K, V)) {
	c.mu.Lock()
	c.onEvict = fn
	c.mu.Unlock()
}

// Get retrieves a value and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	c.order.moveToFront(n)
	return n.value, true
}

// Set stores a value with the given cost, replacing any previous entry.
func (c *Cache[K, V]) Set(key K, value V, cost int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(key, value, cost)
}

func (c *Cache[K, V]) set(key K, value V, cost int64) {
	if old, ok := c.entries[key]; ok {
		c.remove(old)
	}
	n := &node[K, V]{key: key, value: value, cost: cost}
	c.entries[key] = n
	c.order.pushFront(n)
	c.cost += cost
	c.evict()
}

// GetOrCreate returns the cached value or stores the result of create.
// create runs under the lock so concurrent callers never build a key twice.
func (c *Cache[K, V]) GetOrCreate(key K, create func() (V, int64, error)) (V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.entries[key]; ok {
		c.hits++
		c.order.moveToFront(n)
		return n.value, nil
	}
	c.misses++
	v, cost, err := create()
	if err != nil {
		var zero V
		return zero, err
	}
	c.set(key, v, cost)
	return v, nil
}

// Delete removes an entry. It reports whether the entry existed.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.entries[key]
	if ok {
		c.remove(n)
	}
	return ok
}

// Clear removes every entry.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.order.tail != nil {
		c.remove(c.order.tail)
	}
}

// Len returns the number of entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Len:       len(c.entries),
		Cost:      c.cost,
		Limit:     c.limit,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

// evict drops least recently used entries until the cost fits.
// Caller must hold c.mu.
func (c *Cache[K, V]) evict() {
	if c.limit <= 0 {
		return
	}
	for c.cost > c.limit && c.order.tail != nil && c.order.tail != c.order.head {
		c.remove(c.order.tail)
		c.evictions++
	}
}

// remove unlinks n and reports it to the eviction callback.
// Caller must hold c.mu.
func (c *Cache[K, V]) remove(n *node[K, V]) {
	c.order.unlink(n)
	delete(c.entries, n.key)
	c.cost -= n.cost
	if c.onEvict != nil {
		c.onEvict(n.key, n.value)
	}
}

// Stats contains cache statistics.
type Stats struct {
	// Len is the current number of entries.
	Len int
	// Cost is the summed cost of all entries.
	Cost int64
	// Limit is the cost limit, 0 when unlimited.
	Limit int64
	// Hits and Misses count Get and GetOrCreate lookups.
	Hits, Misses uint64
	// Evictions counts entries dropped to respect the limit.
	Evictions uint64
}

// HitRate returns hits / lookups, or 0 before the first lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
