package ratelimit

// Limiter is the sliding-window rate limiter capability (C2). Implementations
// must serialize prune+append per key so the check is atomic with respect to
// itself (spec §4.3, §5).
type Limiter interface {
	// Allow computes cutoff = now - cfg.WindowSeconds, prunes timestamps
	// older than cutoff from key's sequence, and rejects without recording
	// if the remaining count is already >= cfg.MaxRequests. Otherwise it
	// appends now and allows.
	Allow(key string, cfg Config) Result
	// Size reports the number of distinct keys currently tracked, for
	// table-size-cap enforcement and metrics.
	Size() int
}
