package aggregate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sentinelguard/actiongate/internal/domain/cache"
)

// Filter narrows a Source.Compute call to the records relevant to one
// scope bucket.
type Filter struct {
	Scope         Scope
	PrincipalName string
	ActionType    string
}

// Source computes the current total for a window from the audit log: the
// sum (for a sum measure, resolving ParamPath on each record's params and
// coercing to number, absent/non-numeric contributing 0) or count (for a
// count measure) of allowed records for tenantID matching filter with
// timestamp >= since.
type Source interface {
	Compute(ctx context.Context, tenantID string, filter Filter, since time.Time, measure Measure, paramPath string) (float64, error)
}

// Limit is the subset of a rule's aggregate_limit configuration the
// accountant needs.
type Limit struct {
	MaxValue  float64
	Window    string
	ParamPath string
	Measure   Measure
	Scope     Scope
}

// Accountant is the aggregate accountant (C3): it answers "what is the
// current total for this window" (cache-assisted per spec §4.4) and lets
// the validator (C5) perform the pre-decision boundary test itself.
type Accountant struct {
	Source Source
	Cache  cache.Cache
}

// NewAccountant constructs an Accountant. cache may be cache.NoOp{}.
func NewAccountant(source Source, c cache.Cache) *Accountant {
	return &Accountant{Source: source, Cache: c}
}

// CurrentTotal returns the current total for the window/scope named by
// limit, trying the cache first for non-rolling windows and recomputing
// from the audit log on a miss.
func (a *Accountant) CurrentTotal(ctx context.Context, tenantID string, limit Limit, principalName, actionType string) (float64, error) {
	window, err := ParseWindow(limit.Window)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	scopeKey := ScopeKey(limit.Scope, principalName, actionType)

	var cacheKey string
	if window.Cacheable() {
		cacheKey = CacheKey(tenantID, scopeKey, window.BucketID(now))
		if raw, ok := a.Cache.Get(ctx, cacheKey); ok {
			if total, err := strconv.ParseFloat(string(raw), 64); err == nil {
				return total, nil
			}
		}
	}

	total, err := a.Source.Compute(ctx, tenantID, Filter{
		Scope:         limit.Scope,
		PrincipalName: principalName,
		ActionType:    actionType,
	}, window.Start(now), limit.Measure, limit.ParamPath)
	if err != nil {
		return 0, err
	}

	if window.Cacheable() {
		a.Cache.Set(ctx, cacheKey, []byte(strconv.FormatFloat(total, 'f', -1, 64)), window.TTL())
	}
	return total, nil
}

// Invalidate evicts every aggregate cache entry for tenantID. Spec §4.4
// calls this coarser than necessary but cheap and correct; it runs on every
// persisted allow decision that touched an aggregate limit.
func (a *Accountant) Invalidate(ctx context.Context, tenantID string) int {
	return a.Cache.DeleteMatching(ctx, cache.KeyPrefixAggregate+tenantID+":")
}

// CacheKey builds the "agg:{tenant_id}:{scope-key}:{bucket-id}" cache key
// of spec §4.7.
func CacheKey(tenantID, scopeKey, bucketID string) string {
	return fmt.Sprintf("%s%s:%s:%s", cache.KeyPrefixAggregate, tenantID, scopeKey, bucketID)
}
