package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memoryItem struct {
	value    []byte
	expireAt time.Time
}

// MemoryCache is the single-process Cache used when no Redis is configured.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	now   func() time.Time
}

// NewMemoryCache returns an empty cache. Expired entries are swept every
// interval until ctx is cancelled; a non-positive interval disables sweeping.
func NewMemoryCache(ctx context.Context, interval time.Duration) *MemoryCache {
	c := &MemoryCache{
		items: make(map[string]memoryItem),
		now:   time.Now,
	}
	if interval > 0 {
		go c.sweep(ctx, interval)
	}
	return c
}

func (c *MemoryCache) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()

	if !ok || c.now().After(item.expireAt) {
		return false, nil
	}
	if err := json.Unmarshal(item.value, dst); err != nil {
		return false, nil
	}
	return true, nil
}

func (c *MemoryCache) SetJSON(_ context.Context, key string, val any, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.items[key] = memoryItem{value: b, expireAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.items, k)
	}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := c.now()
			c.mu.Lock()
			for k, item := range c.items {
				if now.After(item.expireAt) {
					delete(c.items, k)
				}
			}
			c.mu.Unlock()
		}
	}
}
