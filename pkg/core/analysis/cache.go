package analysis

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"policy_compass/pkg/models"
)

// Cache is an LRU cache of parsed analyses with a per-entry TTL.
// A nil or zero-capacity cache is a no-op.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*list.Element
	order    *list.List
	now      func() time.Time
}

type cacheEntry struct {
	key       string
	analysis  *models.FullAnalysis
	createdAt time.Time
}

func NewCache(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		return nil
	}
	return &Cache{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*list.Element),
		order:    list.New(),
		now:      time.Now,
	}
}

// CacheKey hashes the provider and model names together with the rendered prompt.
func CacheKey(provider, model, prompt string) string {
	sum := sha256.Sum256([]byte(provider + "\x00" + model + "\x00" + prompt))
	return hex.EncodeToString(sum[:])
}

// Get returns a copy of the cached analysis. Expired entries are dropped.
func (c *Cache) Get(key string) (*models.FullAnalysis, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*cacheEntry)
	if c.ttl > 0 && c.now().Sub(entry.createdAt) > c.ttl {
		c.order.Remove(elem)
		delete(c.items, key)
		return nil, false
	}
	c.order.MoveToFront(elem)
	return Clone(entry.analysis), true
}

// Put stores a copy of the analysis, evicting the least recently used entry at capacity.
func (c *Cache) Put(key string, a *models.FullAnalysis) {
	if c == nil || a == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		entry := elem.Value.(*cacheEntry)
		entry.analysis = Clone(a)
		entry.createdAt = c.now()
		return
	}

	if c.order.Len() >= c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*cacheEntry).key)
		}
	}

	entry := &cacheEntry{key: key, analysis: Clone(a), createdAt: c.now()}
	c.items[key] = c.order.PushFront(entry)
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
