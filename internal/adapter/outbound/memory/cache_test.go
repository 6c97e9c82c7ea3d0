package memory

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestCache_SetGet(t *testing.T) {
	t.Parallel()
	c := NewCache()
	ctx := context.Background()

	c.Set(ctx, "policy:t1", []byte("payload"), time.Minute)
	v, ok := c.Get(ctx, "policy:t1")
	if !ok || string(v) != "payload" {
		t.Fatalf("Get() = (%q, %v), want (\"payload\", true)", v, ok)
	}
}

func TestCache_MissOnUnknownKey(t *testing.T) {
	t.Parallel()
	c := NewCache()
	if _, ok := c.Get(context.Background(), "missing"); ok {
		t.Fatal("expected miss for unknown key")
	}
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	t.Parallel()
	c := NewCache()
	ctx := context.Background()
	c.Set(ctx, "k", []byte("v"), 50*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("expected miss after TTL expiry")
	}
}

func TestCache_DeleteMatching(t *testing.T) {
	t.Parallel()
	c := NewCache()
	ctx := context.Background()
	c.Set(ctx, "agg:t1:a:1", []byte("1"), time.Minute)
	c.Set(ctx, "agg:t1:b:1", []byte("2"), time.Minute)
	c.Set(ctx, "policy:t1", []byte("3"), time.Minute)

	removed := c.DeleteMatching(ctx, "agg:t1:")
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	if _, ok := c.Get(ctx, "policy:t1"); !ok {
		t.Fatal("unrelated key should survive DeleteMatching")
	}
}

func TestCache_SweepRemovesExpiredEntries(t *testing.T) {
	t.Parallel()
	c := NewCacheWithConfig(30 * time.Millisecond)
	stop := make(chan struct{})
	defer close(stop)
	c.StartSweep(stop)
	defer c.Stop()

	ctx := context.Background()
	c.Set(ctx, "k", []byte("v"), 20*time.Millisecond)
	time.Sleep(150 * time.Millisecond)

	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("expected entry to be gone after sweep")
	}
}

func TestCacheNoGoroutineLeak(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := NewCacheWithConfig(20 * time.Millisecond)
	stop := make(chan struct{})
	c.StartSweep(stop)

	c.Set(context.Background(), "k", []byte("v"), time.Minute)
	time.Sleep(60 * time.Millisecond)

	close(stop)
	c.Stop()
}
