package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/sentinelguard/actiongate/internal/domain/cache"
)

// cacheShardCount mirrors the rate limiter's sharding choice: one lock per
// shard instead of one lock for the whole table.
const cacheShardCount = 32

type cacheEntry struct {
	value   []byte
	expires time.Time
}

type cacheShard struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// Cache is an in-memory, TTL-bound implementation of cache.Cache. It is a
// process-local substitute for an external cache such as Redis: identical
// contract (get/set/delete/delete_matching, optional, best-effort), no
// persistence.
type Cache struct {
	shards          [cacheShardCount]*cacheShard
	stopChan        chan struct{}
	wg              sync.WaitGroup
	once            sync.Once
	sweepInterval   time.Duration
}

// NewCache constructs an in-memory cache with a default expired-entry sweep
// interval of one minute.
func NewCache() *Cache {
	return NewCacheWithConfig(time.Minute)
}

func NewCacheWithConfig(sweepInterval time.Duration) *Cache {
	c := &Cache{stopChan: make(chan struct{}), sweepInterval: sweepInterval}
	for i := range c.shards {
		c.shards[i] = &cacheShard{entries: make(map[string]cacheEntry)}
	}
	return c
}

func (c *Cache) shardFor(key string) *cacheShard {
	return c.shards[xxhash.Sum64String(key)%cacheShardCount]
}

// Get returns the cached bytes for key if present and unexpired.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	s := c.shardFor(key)
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok || time.Now().After(entry.expires) {
		return nil, false
	}
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, true
}

// Set stores value under key with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = time.Minute
	}
	stored := make([]byte, len(value))
	copy(stored, value)

	s := c.shardFor(key)
	s.mu.Lock()
	s.entries[key] = cacheEntry{value: stored, expires: time.Now().Add(ttl)}
	s.mu.Unlock()
}

// Delete removes key.
func (c *Cache) Delete(ctx context.Context, key string) {
	s := c.shardFor(key)
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// DeleteMatching removes every key with the given prefix across all shards
// and reports how many were removed. O(n) in the total entry count, which
// spec §4.7 explicitly accepts for write-path invalidation.
func (c *Cache) DeleteMatching(ctx context.Context, prefix string) int {
	removed := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for key := range s.entries {
			if strings.HasPrefix(key, prefix) {
				delete(s.entries, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// StartSweep runs a background goroutine that periodically evicts expired
// entries so memory is bounded even for keys nobody reads again. It stops
// when stop is closed or Stop is called.
func (c *Cache) StartSweep(stop <-chan struct{}) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-c.stopChan:
				return
			case <-ticker.C:
				c.sweep()
			}
		}
	}()
}

func (c *Cache) sweep() {
	now := time.Now()
	for _, s := range c.shards {
		s.mu.Lock()
		for key, entry := range s.entries {
			if now.After(entry.expires) {
				delete(s.entries, key)
			}
		}
		s.mu.Unlock()
	}
}

// Stop gracefully stops the sweep goroutine. Safe to call multiple times.
func (c *Cache) Stop() {
	c.once.Do(func() {
		close(c.stopChan)
	})
	c.wg.Wait()
}

var _ cache.Cache = (*Cache)(nil)
