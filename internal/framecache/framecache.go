// Package framecache implements the image buffer cache: a keyed,
// refcounted store of materialized DNG frame bytes with an at-most-one-
// concurrent-build-per-key guarantee and byte-budget-based LRU eviction.
package framecache

import (
	"container/list"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/cmhamiche/mlvfs/internal/mlverr"
)

// Builder produces the bytes for a cache key on a miss.
type Builder func() ([]byte, error)

// entry is one cached buffer plus its refcount and LRU position.
type entry struct {
	key     string
	data    []byte
	refs    int
	element *list.Element
}

// Cache is the refcounted, budget-limited image buffer cache. Gets route
// through a singleflight.Group so concurrent requests for the same key
// share one Builder call, matching the "at-most-one concurrent build per
// key" contract.
type Cache struct {
	mu        sync.Mutex
	entries   map[string]*entry
	lru       *list.List // front = most recently used
	budget    int64
	used      int64
	group     singleflight.Group
}

// NewCache creates a cache that evicts unreferenced entries once the total
// buffer size exceeds budgetBytes.
func NewCache(budgetBytes int64) *Cache {
	return &Cache{
		entries: make(map[string]*entry),
		lru:     list.New(),
		budget:  budgetBytes,
	}
}

// Get returns the cached buffer for key, building it via build on a miss.
// The returned release func MUST be called exactly once when the caller is
// done reading the buffer; until then the entry is pinned and cannot be
// evicted.
func (c *Cache) Get(key string, build Builder) (data []byte, release func(), err error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		e.refs++
		c.lru.MoveToFront(e.element)
		data = e.data
		c.mu.Unlock()
		return data, c.releaseFunc(key), nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(key, func() (any, error) {
		return build()
	})
	if err != nil {
		return nil, nil, err
	}
	built := v.([]byte)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		// Another goroutine inserted it between our singleflight return and
		// acquiring the lock (e.g. via Put); reuse that entry instead.
		e.refs++
		c.lru.MoveToFront(e.element)
		data = e.data
		c.mu.Unlock()
		return data, c.releaseFunc(key), nil
	}

	e := &entry{key: key, data: built, refs: 1}
	e.element = c.lru.PushFront(e)
	c.entries[key] = e
	c.used += int64(len(built))
	c.evictLocked()
	c.mu.Unlock()

	return built, c.releaseFunc(key), nil
}

func (c *Cache) releaseFunc(key string) func() {
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		e, ok := c.entries[key]
		if !ok {
			return
		}
		e.refs--
		if e.refs < 0 {
			e.refs = 0
		}
		c.evictLocked()
	}
}

// evictLocked removes least-recently-used, unreferenced entries until the
// cache is back within budget or no evictable entry remains. It never
// fails: when every entry is pinned, usage stays above budget until later
// releases let it catch up. Get does not return ErrOutOfMemory; CheckBudget
// is the only method that reports it.
func (c *Cache) evictLocked() {
	if c.budget <= 0 {
		return
	}
	elem := c.lru.Back()
	for c.used > c.budget && elem != nil {
		prev := elem.Prev()
		e := elem.Value.(*entry)
		if e.refs == 0 {
			c.lru.Remove(elem)
			delete(c.entries, e.key)
			c.used -= int64(len(e.data))
		}
		elem = prev
	}
}

// Invalidate drops a cached entry immediately if it is unreferenced. An
// entry that is still referenced stays cached: it is not marked, and later
// releases treat it like any other entry. Used when a recording's
// underlying bytes change (e.g. a correction-option toggle changes output).
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return
	}
	if e.refs == 0 {
		c.lru.Remove(e.element)
		delete(c.entries, key)
		c.used -= int64(len(e.data))
	}
}

// Stats reports the cache's current size and entry count, for diagnostics.
type Stats struct {
	UsedBytes   int64
	BudgetBytes int64
	EntryCount  int
}

// Stats returns a snapshot of cache occupancy.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{UsedBytes: c.used, BudgetBytes: c.budget, EntryCount: len(c.entries)}
}

// ensureBudget returns mlverr.ErrOutOfMemory if a buffer of the given size
// could never fit even with every evictable entry removed. Builders that
// know their output size in advance should call this before doing
// expensive work.
func (c *Cache) ensureBudget(size int64) error {
	if c.budget <= 0 {
		return nil
	}
	if size > c.budget {
		return fmt.Errorf("framecache: buffer of %d bytes exceeds cache budget %d: %w", size, c.budget, mlverr.ErrOutOfMemory)
	}
	return nil
}

// CheckBudget exposes ensureBudget for callers that want to fail fast
// before invoking an expensive Builder.
func (c *Cache) CheckBudget(size int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureBudget(size)
}
