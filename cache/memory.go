package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type cacheItem struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is the in-process Cache used when no Redis is configured.
type MemoryCache struct {
	mu      sync.Mutex
	items   map[string]cacheItem
	maxSize int
	stats   CacheStats
	now     func() time.Time
}

func CreateMemoryCache(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = 1024
	}
	return &MemoryCache{
		items:   make(map[string]cacheItem),
		maxSize: maxSize,
		now:     time.Now,
	}
}

func (c *MemoryCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	item, ok := c.items[key]
	if ok && !c.now().Before(item.expiresAt) {
		delete(c.items, key)
		c.stats.Evictions++
		ok = false
	}
	if !ok {
		c.stats.Misses++
		c.mu.Unlock()
		return ErrCacheMiss
	}
	c.stats.Hits++
	c.mu.Unlock()

	return json.Unmarshal(item.value, dest)
}

func (c *MemoryCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxSize {
		c.evictOne()
	}
	c.items[key] = cacheItem{value: data, expiresAt: c.now().Add(ttl)}
	c.stats.Sets++
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[key]; ok {
		delete(c.items, key)
		c.stats.Deletes++
	}
	return nil
}

func (c *MemoryCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// evictOne drops the entry closest to expiry. Caller holds mu.
func (c *MemoryCache) evictOne() {
	var oldestKey string
	var oldest time.Time
	for key, item := range c.items {
		if oldestKey == "" || item.expiresAt.Before(oldest) {
			oldestKey = key
			oldest = item.expiresAt
		}
	}
	if oldestKey != "" {
		delete(c.items, oldestKey)
		c.stats.Evictions++
	}
}
