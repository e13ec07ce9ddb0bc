package utils

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CacheItem wraps a cached value and its expiry.
type CacheItem struct {
	Data      interface{}
	ExpiresAt time.Time
}

// Cache is a size-bounded LRU whose entries expire after their TTL.
type Cache struct {
	mu       sync.Mutex
	lruCache *lru.Cache[string, CacheItem]
	now      func() time.Time
}

func NewCache(size int) (*Cache, error) {
	l, err := lru.New[string, CacheItem](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lruCache: l, now: time.Now}, nil
}

// SetClock replaces the time source, used by tests.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Set stores value for ttl.
func (c *Cache) Set(key string, data interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lruCache.Add(key, CacheItem{
		Data:      data,
		ExpiresAt: c.now().Add(ttl),
	})
}

// Get returns nil when the key is missing or expired.
func (c *Cache) Get(key string) interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	val, ok := c.lruCache.Get(key)
	if !ok {
		return nil
	}

	// Expired
	if c.now().After(val.ExpiresAt) {
		c.lruCache.Remove(key)
		return nil
	}

	return val.Data
}

// Increment bumps the counter stored at key and returns the new value.
// A missing or expired counter restarts at 1 with a fresh window of ttl.
func (c *Cache) Increment(key string, ttl time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	val, ok := c.lruCache.Get(key)
	if !ok || now.After(val.ExpiresAt) {
		c.lruCache.Add(key, CacheItem{Data: 1, ExpiresAt: now.Add(ttl)})
		return 1
	}
	count, _ := val.Data.(int)
	count++
	val.Data = count
	c.lruCache.Add(key, val)
	return count
}
