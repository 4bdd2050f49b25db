package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MemoryCache is an in-process TTL cache. Values are stored JSON-encoded so
// callers never share memory with cached entries, matching RedisCache.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	nowFn   func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewMemoryCache creates a cache whose entries expire after ttl
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return NewMemoryCacheWithClock(ttl, time.Now)
}

// NewMemoryCacheWithClock creates a cache reading time from nowFn
func NewMemoryCacheWithClock(ttl time.Duration, nowFn func() time.Time) *MemoryCache {
	return &MemoryCache{
		ttl:     ttl,
		nowFn:   nowFn,
		entries: make(map[string]memoryEntry),
	}
}

// Get decodes a live entry into dest, or returns ErrCacheMiss
func (c *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok && !c.nowFn().Before(entry.expiresAt) {
		delete(c.entries, key)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		return ErrCacheMiss
	}

	if err := json.Unmarshal(entry.data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return nil
}

// Set stores value until the TTL elapses
func (c *MemoryCache) Set(_ context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	c.mu.Lock()
	c.entries[key] = memoryEntry{data: data, expiresAt: c.nowFn().Add(c.ttl)}
	c.mu.Unlock()

	return nil
}

// Delete removes one entry
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// Clear removes every entry
func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]memoryEntry)
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
