package aggregate

import (
	"context"
	"testing"
	"time"

	"github.com/sentinelguard/actiongate/internal/domain/cache"
)

func TestParseWindow(t *testing.T) {
	cases := []struct {
		in        string
		wantErr   bool
		cacheable bool
	}{
		{"hourly", false, true},
		{"daily", false, true},
		{"weekly", false, true},
		{"rolling_hours:6", false, false},
		{"rolling_hours:0", true, false},
		{"rolling_hours:abc", true, false},
		{"monthly", true, false},
	}
	for _, c := range cases {
		w, err := ParseWindow(c.in)
		if (err != nil) != c.wantErr {
			t.Errorf("ParseWindow(%q) err = %v, wantErr %v", c.in, err, c.wantErr)
			continue
		}
		if err == nil && w.Cacheable() != c.cacheable {
			t.Errorf("ParseWindow(%q).Cacheable() = %v, want %v", c.in, w.Cacheable(), c.cacheable)
		}
	}
}

func TestWindow_DailyStart(t *testing.T) {
	w, _ := ParseWindow("daily")
	now := time.Date(2026, 7, 29, 15, 30, 0, 0, time.UTC)
	start := w.Start(now)
	want := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	if !start.Equal(want) {
		t.Errorf("daily Start = %v, want %v", start, want)
	}
}

func TestWindow_WeeklyStart(t *testing.T) {
	w, _ := ParseWindow("weekly")
	// Wednesday 2026-07-29 -> most recent Monday is 2026-07-27.
	now := time.Date(2026, 7, 29, 15, 30, 0, 0, time.UTC)
	start := w.Start(now)
	want := time.Date(2026, 7, 27, 0, 0, 0, 0, time.UTC)
	if !start.Equal(want) {
		t.Errorf("weekly Start = %v, want %v", start, want)
	}
}

func TestWindow_RollingNotSnapped(t *testing.T) {
	w, _ := ParseWindow("rolling_hours:6")
	now := time.Date(2026, 7, 29, 15, 30, 0, 0, time.UTC)
	start := w.Start(now)
	want := now.Add(-6 * time.Hour)
	if !start.Equal(want) {
		t.Errorf("rolling Start = %v, want %v", start, want)
	}
}

type fakeSource struct {
	total float64
	calls int
}

func (f *fakeSource) Compute(ctx context.Context, tenantID string, filter Filter, since time.Time, measure Measure, paramPath string) (float64, error) {
	f.calls++
	return f.total, nil
}

func TestAccountant_CachesNonRollingWindow(t *testing.T) {
	src := &fakeSource{total: 600}
	acc := NewAccountant(src, newMemCache())
	ctx := context.Background()

	limit := Limit{MaxValue: 1000, Window: "daily", ParamPath: "amount", Measure: MeasureSum, Scope: ScopePrincipal}

	total, err := acc.CurrentTotal(ctx, "t1", limit, "a", "pay")
	if err != nil || total != 600 {
		t.Fatalf("CurrentTotal = (%v, %v)", total, err)
	}
	total, err = acc.CurrentTotal(ctx, "t1", limit, "a", "pay")
	if err != nil || total != 600 {
		t.Fatalf("cached CurrentTotal = (%v, %v)", total, err)
	}
	if src.calls != 1 {
		t.Errorf("Source.Compute called %d times, want 1 (second call should hit cache)", src.calls)
	}
}

func TestAccountant_RollingWindowNeverCached(t *testing.T) {
	src := &fakeSource{total: 10}
	acc := NewAccountant(src, newMemCache())
	ctx := context.Background()

	limit := Limit{MaxValue: 100, Window: "rolling_hours:6", ParamPath: "amount", Measure: MeasureSum, Scope: ScopeTenant}

	acc.CurrentTotal(ctx, "t1", limit, "a", "pay")
	acc.CurrentTotal(ctx, "t1", limit, "a", "pay")
	if src.calls != 2 {
		t.Errorf("Source.Compute called %d times, want 2 (rolling windows must never be cached)", src.calls)
	}
}

func TestAccountant_Invalidate(t *testing.T) {
	src := &fakeSource{total: 1}
	c := newMemCache()
	acc := NewAccountant(src, c)
	ctx := context.Background()

	limit := Limit{MaxValue: 100, Window: "daily", Measure: MeasureCount, Scope: ScopeTenant}
	acc.CurrentTotal(ctx, "t1", limit, "a", "pay")

	removed := acc.Invalidate(ctx, "t1")
	if removed == 0 {
		t.Fatal("expected at least one cache entry to be invalidated")
	}

	acc.CurrentTotal(ctx, "t1", limit, "a", "pay")
	if src.calls != 2 {
		t.Errorf("expected recompute after invalidation, calls = %d", src.calls)
	}
}

// newMemCache is a tiny, non-TTL-aware cache.Cache used only to exercise
// the accountant's cache-aside logic in isolation from the TTL machinery
// the real in-memory adapter provides.
type memCache struct{ m map[string][]byte }

func newMemCache() *memCache { return &memCache{m: map[string][]byte{}} }

func (c *memCache) Get(ctx context.Context, key string) ([]byte, bool) {
	v, ok := c.m[key]
	return v, ok
}
func (c *memCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	c.m[key] = value
}
func (c *memCache) Delete(ctx context.Context, key string) { delete(c.m, key) }
func (c *memCache) DeleteMatching(ctx context.Context, prefix string) int {
	n := 0
	for k := range c.m {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.m, k)
			n++
		}
	}
	return n
}

var _ cache.Cache = (*memCache)(nil)
