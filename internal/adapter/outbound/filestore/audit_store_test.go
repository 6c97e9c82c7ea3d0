package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sentinelguard/actiongate/internal/domain/aggregate"
	"github.com/sentinelguard/actiongate/internal/domain/audit"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func makeRecord(ts time.Time, actionID string) audit.Record {
	return audit.Record{
		ActionID:      actionID,
		TenantID:      "tenant-1",
		PrincipalName: "agent-1",
		ActionType:    "test_action",
		Allowed:       true,
		Timestamp:     ts,
	}
}

func TestNewAuditStore_CreatesDirectory(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "subdir", "audit")
	cfg := Config{Dir: dir, RetentionDays: 7, MaxFileSizeMB: 100, CacheSize: 100}

	store, err := NewAuditStore(cfg, testLogger())
	if err != nil {
		t.Fatalf("NewAuditStore() error: %v", err)
	}
	defer func() { _ = store.Close() }()

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("directory not created: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("expected directory, got file")
	}
	if perm := info.Mode().Perm(); perm != 0700 {
		t.Errorf("directory permissions = %o, want 0700", perm)
	}
}

func TestAuditStore_AppendWritesJSONLines(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewAuditStore(Config{Dir: dir, CacheSize: 100}, testLogger())
	if err != nil {
		t.Fatalf("NewAuditStore() error: %v", err)
	}

	ctx := context.Background()
	now := time.Now().UTC()
	records := []audit.Record{
		makeRecord(now, "act-1"),
		makeRecord(now, "act-2"),
		makeRecord(now, "act-3"),
	}

	if err := store.Append(ctx, records...); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	if err := store.Flush(ctx); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	filename := filepath.Join(dir, fmt.Sprintf("audit-%s.log", now.Format("2006-01-02")))
	data, err := os.ReadFile(filename)
	if err != nil {
		t.Fatalf("read audit file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	for i, line := range lines {
		var decoded audit.Record
		if err := json.Unmarshal([]byte(line), &decoded); err != nil {
			t.Errorf("line %d is not valid JSON: %v", i, err)
			continue
		}
		expected := fmt.Sprintf("act-%d", i+1)
		if decoded.ActionID != expected {
			t.Errorf("line %d ActionID = %q, want %q", i, decoded.ActionID, expected)
		}
	}
}

func TestAuditStore_DateRotation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewAuditStore(Config{Dir: dir, CacheSize: 100}, testLogger())
	if err != nil {
		t.Fatalf("NewAuditStore() error: %v", err)
	}

	ctx := context.Background()
	day1 := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)

	if err := store.Append(ctx, makeRecord(day1, "act-day1")); err != nil {
		t.Fatalf("Append() day1: %v", err)
	}
	if err := store.Append(ctx, makeRecord(day2, "act-day2")); err != nil {
		t.Fatalf("Append() day2: %v", err)
	}
	_ = store.Flush(ctx)
	_ = store.Close()

	file1 := filepath.Join(dir, "audit-2026-02-01.log")
	file2 := filepath.Join(dir, "audit-2026-02-02.log")
	if _, err := os.Stat(file1); err != nil {
		t.Errorf("day1 file not found: %v", err)
	}
	if _, err := os.Stat(file2); err != nil {
		t.Errorf("day2 file not found: %v", err)
	}
}

func TestAuditStore_SizeRotation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewAuditStore(Config{Dir: dir, MaxFileSizeMB: 0, CacheSize: 100}, testLogger())
	if err != nil {
		t.Fatalf("NewAuditStore() error: %v", err)
	}
	store.maxFileSize = 500

	ctx := context.Background()
	now := time.Now().UTC()
	dateStr := now.Format("2006-01-02")

	for i := 0; i < 20; i++ {
		rec := makeRecord(now, fmt.Sprintf("act-%03d", i))
		rec.Params = map[string]any{"data": strings.Repeat("x", 50)}
		if err := store.Append(ctx, rec); err != nil {
			t.Fatalf("Append() error at record %d: %v", i, err)
		}
	}
	_ = store.Close()

	baseFile := filepath.Join(dir, fmt.Sprintf("audit-%s.log", dateStr))
	suffixFile := filepath.Join(dir, fmt.Sprintf("audit-%s-1.log", dateStr))
	if _, err := os.Stat(baseFile); err != nil {
		t.Errorf("base file not found: %v", err)
	}
	if _, err := os.Stat(suffixFile); err != nil {
		t.Errorf("suffixed file not found: %v", err)
	}
}

func TestAuditStore_RetentionCleanup(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	oldDate := time.Now().UTC().AddDate(0, 0, -10)
	recentDate := time.Now().UTC().AddDate(0, 0, -3)

	oldFile := filepath.Join(dir, fmt.Sprintf("audit-%s.log", oldDate.Format("2006-01-02")))
	recentFile := filepath.Join(dir, fmt.Sprintf("audit-%s.log", recentDate.Format("2006-01-02")))
	_ = os.WriteFile(oldFile, []byte(`{"action_id":"old"}`+"\n"), 0600)
	_ = os.WriteFile(recentFile, []byte(`{"action_id":"recent"}`+"\n"), 0600)

	store, err := NewAuditStore(Config{Dir: dir, RetentionDays: 7, CacheSize: 100}, testLogger())
	if err != nil {
		t.Fatalf("NewAuditStore() error: %v", err)
	}
	defer func() { _ = store.Close() }()

	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Error("old file should have been deleted by retention cleanup")
	}
	if _, err := os.Stat(recentFile); err != nil {
		t.Error("recent file should not have been deleted")
	}
}

func TestAuditStore_GetRecentReturnsNewestFirst(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewAuditStore(Config{Dir: dir, CacheSize: 100}, testLogger())
	if err != nil {
		t.Fatalf("NewAuditStore() error: %v", err)
	}

	ctx := context.Background()
	now := time.Now().UTC()
	for i := 0; i < 10; i++ {
		ts := now.Add(time.Duration(i) * time.Second)
		if err := store.Append(ctx, makeRecord(ts, fmt.Sprintf("act-%d", i))); err != nil {
			t.Fatalf("Append() error: %v", err)
		}
	}

	recent := store.GetRecent(5)
	if len(recent) != 5 {
		t.Fatalf("GetRecent(5) returned %d entries, want 5", len(recent))
	}
	for i, r := range recent {
		expected := fmt.Sprintf("act-%d", 9-i)
		if r.ActionID != expected {
			t.Errorf("GetRecent[%d].ActionID = %q, want %q", i, r.ActionID, expected)
		}
	}
	_ = store.Close()
}

func TestAuditStore_ConcurrentAppend(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewAuditStore(Config{Dir: dir, CacheSize: 1000}, testLogger())
	if err != nil {
		t.Fatalf("NewAuditStore() error: %v", err)
	}

	ctx := context.Background()
	now := time.Now().UTC()

	var wg sync.WaitGroup
	errCh := make(chan error, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			rec := makeRecord(now, fmt.Sprintf("concurrent-%d", idx))
			if err := store.Append(ctx, rec); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Errorf("concurrent Append() error: %v", err)
	}

	_ = store.Flush(ctx)
	_ = store.Close()

	if store.cache.Len() != 100 {
		t.Errorf("cache.Len() = %d, want 100", store.cache.Len())
	}
}

func TestAuditStore_Compute_SumOverPrincipalScope(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewAuditStore(Config{Dir: dir, CacheSize: 100}, testLogger())
	if err != nil {
		t.Fatalf("NewAuditStore() error: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	rec1 := makeRecord(base.Add(time.Minute), "act-1")
	rec1.Params = map[string]any{"amount": 100.0}
	rec2 := makeRecord(base.Add(2*time.Minute), "act-2")
	rec2.Params = map[string]any{"amount": 50.0}
	rec2.Allowed = false // rejected: must not contribute
	rec3 := makeRecord(base.Add(3*time.Minute), "act-3")
	rec3.Params = map[string]any{"amount": 25.0}
	rec3.PrincipalName = "agent-2" // different scope bucket

	if err := store.Append(ctx, rec1, rec2, rec3); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	filter := aggregate.Filter{Scope: aggregate.ScopePrincipal, PrincipalName: "agent-1", ActionType: "test_action"}
	total, err := store.Compute(ctx, "tenant-1", filter, base, aggregate.MeasureSum, "amount")
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}
	if total != 100.0 {
		t.Errorf("Compute() = %v, want 100.0", total)
	}
}

func TestAuditStore_Close(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewAuditStore(Config{Dir: dir, CacheSize: 100}, testLogger())
	if err != nil {
		t.Fatalf("NewAuditStore() error: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("double Close() error: %v", err)
	}
}
