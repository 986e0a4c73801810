package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRUCache bounds the total number of entries across partitions and expires
// each entry ttl after it was set.
type LRUCache[T any] struct {
	mu         sync.Mutex
	maxSize    int
	ttl        time.Duration
	partitions map[string]map[string]*list.Element
	lru        *list.List
	stats      Stats
	now        func() time.Time
}

var (
	_ Cache[int] = (*LRUCache[int])(nil)
	_ Cleaner    = (*LRUCache[int])(nil)
)

type entry[T any] struct {
	partition string
	key       string
	data      T
	expiresAt time.Time
}

func NewLRUCache[T any](maxSize int, ttl time.Duration) *LRUCache[T] {
	if maxSize < 1 {
		maxSize = 1
	}
	return &LRUCache[T]{
		maxSize:    maxSize,
		ttl:        ttl,
		partitions: make(map[string]map[string]*list.Element),
		lru:        list.New(),
		now:        time.Now,
	}
}

func (c *LRUCache[T]) Get(partition, key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, ok := c.partitions[partition][key]
	if !ok {
		c.stats.Misses++
		return zero, false
	}
	e := elem.Value.(*entry[T])
	if !c.now().Before(e.expiresAt) {
		c.remove(elem)
		c.stats.Expired++
		c.stats.Misses++
		return zero, false
	}

	c.lru.MoveToFront(elem)
	c.stats.Hits++
	return e.data, true
}

func (c *LRUCache[T]) Set(partition, key string, data T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry[T]{partition: partition, key: key, data: data, expiresAt: c.now().Add(c.ttl)}
	keys := c.partitions[partition]
	if keys == nil {
		keys = make(map[string]*list.Element)
		c.partitions[partition] = keys
	}
	if elem, ok := keys[key]; ok {
		elem.Value = e
		c.lru.MoveToFront(elem)
		return
	}

	keys[key] = c.lru.PushFront(e)
	for c.lru.Len() > c.maxSize {
		c.remove(c.lru.Back())
		c.stats.Evictions++
	}
}

func (c *LRUCache[T]) Invalidate(partition string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := c.partitions[partition]
	n := len(keys)
	for _, elem := range keys {
		c.lru.Remove(elem)
	}
	delete(c.partitions, partition)
	return n
}

func (c *LRUCache[T]) remove(elem *list.Element) {
	e := elem.Value.(*entry[T])
	c.lru.Remove(elem)
	keys := c.partitions[e.partition]
	delete(keys, e.key)
	if len(keys) == 0 {
		delete(c.partitions, e.partition)
	}
}

// CleanExpired removes expired entries and returns how many were removed.
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for elem := c.lru.Back(); elem != nil; {
		prev := elem.Prev()
		if !now.Before(elem.Value.(*entry[T]).expiresAt) {
			c.remove(elem)
			removed++
		}
		elem = prev
	}
	c.stats.Expired += int64(removed)
	return removed
}

func (c *LRUCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *LRUCache[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
