// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/sentinelguard/actiongate/internal/domain/ratelimit"
)

// shardCount is the number of independent lock-protected buckets the
// rate-limit table is split across. A sharded lock-map keeps unrelated keys
// from serializing on one mutex while still giving every key a single,
// consistently-chosen owner (spec §9: "prefer a sharded lock-map to a
// single lock to keep parallelism").
const shardCount = 64

type shard struct {
	mu   sync.Mutex
	keys map[string][]time.Time
}

// RateLimiter implements ratelimit.Limiter as a sliding window over
// wall-clock timestamps, sharded by key. Entries are pruned lazily on
// Allow and periodically by a background cleanup goroutine so that keys
// which go quiet do not hold memory forever.
type RateLimiter struct {
	shards          [shardCount]*shard
	stopChan        chan struct{}
	wg              sync.WaitGroup
	once            sync.Once
	cleanupInterval time.Duration
	maxIdle         time.Duration
}

// NewRateLimiter creates a sliding-window rate limiter with default
// background cleanup settings (interval 5m, idle eviction after 1h of no
// activity for a key).
func NewRateLimiter() *RateLimiter {
	return NewRateLimiterWithConfig(5*time.Minute, 1*time.Hour)
}

// NewRateLimiterWithConfig creates a rate limiter with custom cleanup
// settings.
func NewRateLimiterWithConfig(cleanupInterval, maxIdle time.Duration) *RateLimiter {
	r := &RateLimiter{
		stopChan:        make(chan struct{}),
		cleanupInterval: cleanupInterval,
		maxIdle:         maxIdle,
	}
	for i := range r.shards {
		r.shards[i] = &shard{keys: make(map[string][]time.Time)}
	}
	return r
}

func (r *RateLimiter) shardFor(key string) *shard {
	return r.shards[xxhash.Sum64String(key)%shardCount]
}

// Allow implements the sliding-window check of spec §4.3: prune timestamps
// older than now-window, reject without recording if the remaining count is
// already at the limit, otherwise append now and allow. Prune and append
// are atomic with respect to one another because both happen under the
// owning shard's lock.
func (r *RateLimiter) Allow(key string, cfg ratelimit.Config) ratelimit.Result {
	s := r.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-time.Duration(cfg.WindowSeconds) * time.Second)

	ts := s.keys[key]
	pruned := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			pruned = append(pruned, t)
		}
	}

	if len(pruned) >= cfg.MaxRequests {
		s.keys[key] = pruned
		return ratelimit.Result{Allowed: false, Count: len(pruned)}
	}

	pruned = append(pruned, now)
	s.keys[key] = pruned
	return ratelimit.Result{Allowed: true, Count: len(pruned)}
}

// Size returns the total number of distinct keys currently tracked across
// all shards.
func (r *RateLimiter) Size() int {
	total := 0
	for _, s := range r.shards {
		s.mu.Lock()
		total += len(s.keys)
		s.mu.Unlock()
	}
	return total
}

// StartCleanup starts the background goroutine that evicts keys whose most
// recent timestamp is older than maxIdle, bounding memory growth from keys
// that have gone permanently quiet. It stops when stop is closed or Stop
// is called.
func (r *RateLimiter) StartCleanup(stop <-chan struct{}) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-r.stopChan:
				return
			case <-ticker.C:
				r.cleanup()
			}
		}
	}()
}

func (r *RateLimiter) cleanup() {
	now := time.Now()
	cutoff := now.Add(-r.maxIdle)
	cleaned := 0
	for _, s := range r.shards {
		s.mu.Lock()
		for key, ts := range s.keys {
			if len(ts) == 0 || ts[len(ts)-1].Before(cutoff) {
				delete(s.keys, key)
				cleaned++
			}
		}
		s.mu.Unlock()
	}
	if cleaned > 0 {
		slog.Debug("rate limiter cleanup completed", "cleaned_keys", cleaned)
	}
}

// Stop gracefully stops the cleanup goroutine and waits for it to exit.
// Safe to call multiple times.
func (r *RateLimiter) Stop() {
	r.once.Do(func() {
		close(r.stopChan)
	})
	r.wg.Wait()
}

// Compile-time interface verification.
var _ ratelimit.Limiter = (*RateLimiter)(nil)
