// Package aggregate implements the aggregate accountant (C3): windowed
// sum/count limits over historical allowed decisions, cache-assisted for
// non-rolling windows (spec §4.4).
package aggregate

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Scope is the aggregation dimension, mirroring policy.Scope so this
// package does not need to import the policy package.
type Scope string

const (
	ScopePrincipal Scope = "principal"
	ScopeAction    Scope = "action"
	ScopeTenant    Scope = "tenant"
)

// Measure names how a window's total accumulates.
type Measure string

const (
	MeasureSum   Measure = "sum"
	MeasureCount Measure = "count"
)

// Window describes one of the four window kinds of spec §4.4.
type Window struct {
	kind         string
	rollingHours int
}

const (
	kindHourly  = "hourly"
	kindDaily   = "daily"
	kindWeekly  = "weekly"
	kindRolling = "rolling_hours"
)

// ParseWindow parses "hourly", "daily", "weekly", or "rolling_hours:N".
func ParseWindow(s string) (Window, error) {
	if strings.HasPrefix(s, kindRolling+":") {
		n, err := strconv.Atoi(strings.TrimPrefix(s, kindRolling+":"))
		if err != nil || n <= 0 {
			return Window{}, fmt.Errorf("aggregate: invalid rolling window %q", s)
		}
		return Window{kind: kindRolling, rollingHours: n}, nil
	}
	switch s {
	case kindHourly, kindDaily, kindWeekly:
		return Window{kind: s}, nil
	default:
		return Window{}, fmt.Errorf("aggregate: unknown window %q", s)
	}
}

// Start returns the start of the window containing now.
func (w Window) Start(now time.Time) time.Time {
	now = now.UTC()
	switch w.kind {
	case kindHourly:
		return time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, time.UTC)
	case kindDaily:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	case kindWeekly:
		// Most recent Monday 00:00 UTC. time.Monday == 1; Sunday == 0.
		weekday := int(now.Weekday())
		daysSinceMonday := (weekday + 6) % 7
		monday := now.AddDate(0, 0, -daysSinceMonday)
		return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, time.UTC)
	case kindRolling:
		return now.Add(-time.Duration(w.rollingHours) * time.Hour)
	default:
		return now
	}
}

// Cacheable reports whether this window kind may have its current total
// cached. Rolling windows move continuously and must not be cached.
func (w Window) Cacheable() bool {
	return w.kind != kindRolling
}

// TTL is the cache TTL for this window kind: 1 minute for hourly, 5 minutes
// for daily/weekly, zero (meaning "never cache") for rolling.
func (w Window) TTL() time.Duration {
	switch w.kind {
	case kindHourly:
		return time.Minute
	case kindDaily, kindWeekly:
		return 5 * time.Minute
	default:
		return 0
	}
}

// BucketID is the window's calendar identifier used in the cache key, e.g.
// "2026072914" for hourly, "20260729" for daily, "2026W31" for weekly.
// Rolling windows have no stable bucket id and are never cached.
func (w Window) BucketID(now time.Time) string {
	now = now.UTC()
	switch w.kind {
	case kindHourly:
		return now.Format("2006010215")
	case kindDaily:
		return now.Format("20060102")
	case kindWeekly:
		year, week := now.ISOWeek()
		return fmt.Sprintf("%04dW%02d", year, week)
	default:
		return ""
	}
}

// ScopeKey builds the scope-specific portion of the aggregation key (spec
// §4.4's "Scope → aggregation key" table), excluding the tenant dimension:
// the caller folds tenant_id in separately when building the cache key
// (spec §4.7: "agg:{tenant_id}:{scope-key}:{bucket-id}").
func ScopeKey(scope Scope, principalName, actionType string) string {
	switch scope {
	case ScopePrincipal:
		return fmt.Sprintf("principal:%s:%s", principalName, actionType)
	case ScopeAction:
		return fmt.Sprintf("action:%s", actionType)
	case ScopeTenant:
		return "tenant"
	default:
		return "tenant"
	}
}
