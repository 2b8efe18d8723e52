// Package cache provides the bounded LRU result cache for blurred buffers.
//
// Keys combine the source buffer's content hash with the blur intensity
// quantized to 0.1 steps, so a slider wobbling around the same value reuses
// one entry. The cache is bounded both by entry count and by a byte budget;
// exceeding either evicts least-recently-used entries.
//
// All operations are serialized by a single mutex. They are short and O(1)
// amortized, so coarse locking is the whole concurrency story here.
package cache

import (
	"container/list"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/blurkit/blurkit/pkg/pixbuf"
)

const (
	// MinBytes is the smallest accepted byte budget. A cache that cannot
	// hold a single small image is a misconfiguration, not a valid cache.
	MinBytes = 1 << 20

	// entryOverhead approximates per-entry bookkeeping (list element, map
	// slot, struct) charged against the byte budget.
	entryOverhead = 96
)

// ErrBadConfig reports a rejected cache configuration.
var ErrBadConfig = errors.New("invalid cache configuration")

// Key identifies a cached result: source identity plus deci-intensity.
type Key struct {
	Hash uint64
	Deci int // intensity * 10, rounded half away from zero
}

// Quantize maps an intensity to its 0.1-step bucket. Ties round away from
// zero (math.Round), so 2.25 -> 23 and 2.24 -> 22.
func Quantize(intensity float64) int {
	return int(math.Round(intensity * 10))
}

type entry struct {
	key        Key
	buf        *pixbuf.Buffer
	size       int64
	lastAccess time.Time
}

// Stats is a point-in-time snapshot of the cache counters.
type Stats struct {
	Entries   int
	Bytes     int64
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Cache is a bounded LRU mapping (hash, intensity) to blurred buffers.
type Cache struct {
	mu         sync.Mutex
	maxEntries int
	maxBytes   int64
	bytes      int64
	ll         *list.List // front = most recently used
	index      map[Key]*list.Element
	hits       uint64
	misses     uint64
	evictions  uint64
}

// New validates the bounds and builds an empty cache.
func New(maxEntries int, maxBytes int64) (*Cache, error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("%w: maxEntries must be > 0", ErrBadConfig)
	}
	if maxBytes < MinBytes {
		return nil, fmt.Errorf("%w: maxBytes %d below floor %d", ErrBadConfig, maxBytes, int64(MinBytes))
	}
	return &Cache{
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		ll:         list.New(),
		index:      make(map[Key]*list.Element),
	}, nil
}

// Get returns the cached buffer for (hash, intensity), promoting it to most
// recently used. The returned buffer is shared and must not be mutated.
func (c *Cache) Get(hash uint64, intensity float64) (*pixbuf.Buffer, bool) {
	key := Key{Hash: hash, Deci: Quantize(intensity)}

	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.index[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.ll.MoveToFront(el)
	e := el.Value.(*entry)
	e.lastAccess = time.Now()
	return e.buf, true
}

// Put inserts a blurred buffer, evicting least-recently-used entries until
// both bounds hold. It returns false only when the entry alone exceeds the
// byte budget and can never fit. Re-putting an existing key is a no-op
// success.
func (c *Cache) Put(hash uint64, intensity float64, buf *pixbuf.Buffer) bool {
	if buf == nil {
		return false
	}
	key := Key{Hash: hash, Deci: Quantize(intensity)}
	size := int64(buf.ByteSize()) + entryOverhead

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.index[key]; ok {
		return true
	}
	if size > c.maxBytes {
		return false
	}
	for c.ll.Len() >= c.maxEntries || c.bytes+size > c.maxBytes {
		c.evictOldest()
	}
	e := &entry{key: key, buf: buf, size: size, lastAccess: time.Now()}
	c.index[key] = c.ll.PushFront(e)
	c.bytes += size
	return true
}

// Remove evicts every entry derived from the given source image. It returns
// the number of entries removed.
func (c *Cache) Remove(hash uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for el := c.ll.Front(); el != nil; {
		next := el.Next()
		if e := el.Value.(*entry); e.key.Hash == hash {
			c.removeElement(el)
			removed++
		}
		el = next
	}
	return removed
}

// Clear evicts everything. Counters are preserved.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for el := c.ll.Front(); el != nil; {
		next := el.Next()
		c.removeElement(el)
		el = next
	}
}

// Stats snapshots the counters under the lock.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:   c.ll.Len(),
		Bytes:     c.bytes,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

// evictOldest drops the least-recently-used entry. Caller holds the lock and
// guarantees the list is non-empty (Put never loops on an empty cache because
// oversize entries are rejected up front).
func (c *Cache) evictOldest() {
	if el := c.ll.Back(); el != nil {
		c.removeElement(el)
		c.evictions++
	}
}

func (c *Cache) removeElement(el *list.Element) {
	e := el.Value.(*entry)
	c.ll.Remove(el)
	delete(c.index, e.key)
	c.bytes -= e.size
}
