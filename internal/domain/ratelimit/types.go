// Package ratelimit implements the sliding-window rate limiter (C2): a
// per-key counter over wall-clock time that records an attempt only when it
// is accepted, so a burst of rejections never poisons the counter itself.
package ratelimit

import "fmt"

// Config is one rule's rate limit: at most MaxRequests events within any
// WindowSeconds-wide trailing window.
type Config struct {
	MaxRequests   int
	WindowSeconds int
}

// Result carries the outcome of one Allow check plus enough state for the
// caller to build the spec's deterministic reject message.
type Result struct {
	Allowed bool
	// Count is the number of timestamps retained for the key immediately
	// after this check (post-prune, and including the new entry if
	// allowed).
	Count int
}

// FormatKey builds the rate limiter's key (principal_name, action_type),
// exactly as documented in spec §4.3/§9: this is node-local and
// deliberately *not* scoped by tenant.
func FormatKey(principalName, actionType string) string {
	return fmt.Sprintf("%s:%s", principalName, actionType)
}
