// Package lru provides a generic cache with least-recently-used
// eviction, an optional byte-size bound, and an optional Bloom
// pre-filter that short-circuits definite misses before the lock.
package lru

import (
	"sync"
	"sync/atomic"

	"github.com/axonworks/axon/pkg/alg/bloom"
)

// bloomFPRate sizes the optional pre-filter. At 1%, almost every
// definite miss skips lock acquisition.
const bloomFPRate = 0.01

// entry is a node of the recency list, most recent at the head.
type entry[K comparable, V any] struct {
	key   K
	value V
	size  int64
	prev  *entry[K, V]
	next  *entry[K, V]
}

// Cache is a thread-safe LRU cache. Construct with New.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*entry[K, V]
	head    *entry[K, V]
	tail    *entry[K, V]

	maxEntries int
	maxSize    int64
	curSize    int64

	filter     *bloom.Filter
	keyToBytes func(K) []byte
	sizeFunc   func(V) int64

	hits         atomic.Int64
	misses       atomic.Int64
	bloomSkipped atomic.Int64
}

// Option configures a Cache.
type Option[K comparable, V any] func(*Cache[K, V])

// WithMaxEntries bounds the entry count.
func WithMaxEntries[K comparable, V any](n int) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.maxEntries = n
	}
}

// WithMaxBytes bounds the total value size. sizeFunc prices each value;
// values larger than the whole bound are never cached.
func WithMaxBytes[K comparable, V any](maxBytes int64, sizeFunc func(V) int64) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.maxSize = maxBytes
		c.sizeFunc = sizeFunc
	}
}

// WithBloomFilter puts a Bloom pre-filter in front of Get. keyToBytes
// feeds the filter; expectedN sizes it. Evicted keys stay in the filter
// until Clear, so stale positives fall through to an ordinary miss.
func WithBloomFilter[K comparable, V any](keyToBytes func(K) []byte, expectedN uint) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.keyToBytes = keyToBytes

		f, err := bloom.NewWithEstimates(max(expectedN, 1), bloomFPRate)
		if err != nil {
			panic("lru: bloom sizing: " + err.Error())
		}

		c.filter = f
	}
}

// New builds a cache. At least one bound, WithMaxEntries or
// WithMaxBytes, is required; New panics without one.
func New[K comparable, V any](opts ...Option[K, V]) *Cache[K, V] {
	c := &Cache[K, V]{entries: make(map[K]*entry[K, V])}

	for _, opt := range opts {
		opt(c)
	}

	if c.maxEntries <= 0 && c.maxSize <= 0 {
		panic("lru: a capacity bound is required")
	}

	return c
}

// Get returns the cached value and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	var zero V

	if c.filter != nil && !c.filter.Test(c.keyToBytes(key)) {
		c.bloomSkipped.Add(1)
		c.misses.Add(1)

		return zero, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)

		return zero, false
	}

	c.hits.Add(1)
	c.moveToFront(ent)

	return ent.value, true
}

// Put inserts or replaces the value for key, evicting from the least
// recently used end until the bounds hold.
func (c *Cache[K, V]) Put(key K, value V) {
	size := c.valueSize(value)
	if c.maxSize > 0 && size > c.maxSize {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.entries[key]; ok {
		c.curSize += size - ent.size
		ent.value = value
		ent.size = size
		c.moveToFront(ent)

		return
	}

	for c.maxEntries > 0 && len(c.entries) >= c.maxEntries && c.tail != nil {
		c.evictTail()
	}

	for c.maxSize > 0 && c.curSize+size > c.maxSize && c.tail != nil {
		c.evictTail()
	}

	ent := &entry[K, V]{key: key, value: value, size: size}
	c.entries[key] = ent
	c.curSize += size
	c.addToFront(ent)

	if c.filter != nil {
		c.filter.Add(c.keyToBytes(key))
	}
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Clear drops every entry and resets the Bloom pre-filter.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[K]*entry[K, V])
	c.head = nil
	c.tail = nil
	c.curSize = 0

	if c.filter != nil {
		c.filter.Reset()
	}
}

func (c *Cache[K, V]) valueSize(value V) int64 {
	if c.sizeFunc != nil {
		return c.sizeFunc(value)
	}

	return 1
}

func (c *Cache[K, V]) evictTail() {
	victim := c.tail
	c.removeFromList(victim)
	delete(c.entries, victim.key)
	c.curSize -= victim.size
}

func (c *Cache[K, V]) moveToFront(ent *entry[K, V]) {
	if ent == c.head {
		return
	}

	c.removeFromList(ent)
	c.addToFront(ent)
}

func (c *Cache[K, V]) addToFront(ent *entry[K, V]) {
	ent.prev = nil
	ent.next = c.head

	if c.head != nil {
		c.head.prev = ent
	}

	c.head = ent

	if c.tail == nil {
		c.tail = ent
	}
}

func (c *Cache[K, V]) removeFromList(ent *entry[K, V]) {
	if ent.prev != nil {
		ent.prev.next = ent.next
	} else {
		c.head = ent.next
	}

	if ent.next != nil {
		ent.next.prev = ent.prev
	} else {
		c.tail = ent.prev
	}
}
