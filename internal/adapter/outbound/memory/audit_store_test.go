// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sentinelguard/actiongate/internal/domain/aggregate"
	"github.com/sentinelguard/actiongate/internal/domain/audit"
)

func TestAuditStore_Append(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	buf := &bytes.Buffer{}
	store := NewAuditStoreWithWriter(buf)

	record := audit.Record{
		ActionID:      "act-1",
		TenantID:      "t1",
		PrincipalName: "finance",
		ActionType:    "pay",
		Allowed:       true,
		Timestamp:     time.Now().UTC(),
	}
	if err := store.Append(ctx, record); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	var decoded audit.Record
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.ActionID != "act-1" {
		t.Errorf("ActionID = %q, want %q", decoded.ActionID, "act-1")
	}
}

func TestAuditStore_AppendMultiple(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	buf := &bytes.Buffer{}
	store := NewAuditStoreWithWriter(buf)

	records := []audit.Record{
		{ActionID: "act-1", Allowed: true, Timestamp: time.Now().UTC()},
		{ActionID: "act-2", Allowed: false, Timestamp: time.Now().UTC()},
		{ActionID: "act-3", Allowed: true, Timestamp: time.Now().UTC()},
	}
	if err := store.Append(ctx, records...); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Errorf("expected 3 JSON lines, got %d", len(lines))
	}
}

func TestAuditStore_Close(t *testing.T) {
	t.Parallel()
	buf := &bytes.Buffer{}
	store := NewAuditStoreWithWriter(buf)
	if err := store.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}

func TestAuditStore_AppendEmpty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	buf := &bytes.Buffer{}
	store := NewAuditStoreWithWriter(buf)
	if err := store.Append(ctx); err != nil {
		t.Errorf("Append() with no records error: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("buffer should be empty, got %d bytes", buf.Len())
	}
}

func TestAuditStore_ConcurrentAppend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	buf := &bytes.Buffer{}
	store := NewAuditStoreWithWriter(buf)

	var wg sync.WaitGroup
	errCh := make(chan error, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if err := store.Append(ctx, audit.Record{ActionID: "act", Allowed: true, Timestamp: time.Now().UTC()}); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Errorf("concurrent Append() error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 100 {
		t.Errorf("expected 100 JSON lines, got %d", len(lines))
	}
}

func TestAuditStore_QueryFiltersByTenantAndAllowed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewAuditStoreWithWriter(&bytes.Buffer{})

	now := time.Now().UTC()
	store.Append(ctx,
		audit.Record{ActionID: "a1", TenantID: "t1", PrincipalName: "p1", ActionType: "pay", Allowed: true, Timestamp: now},
		audit.Record{ActionID: "a2", TenantID: "t1", PrincipalName: "p1", ActionType: "pay", Allowed: false, Timestamp: now},
		audit.Record{ActionID: "a3", TenantID: "t2", PrincipalName: "p1", ActionType: "pay", Allowed: true, Timestamp: now},
	)

	allowed := true
	records, _, err := store.Query(ctx, audit.Filter{TenantID: "t1", Allowed: &allowed})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(records) != 1 || records[0].ActionID != "a1" {
		t.Fatalf("Query() = %+v, want only a1", records)
	}
}

func TestAuditStore_ComputeSumForPrincipalScope(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewAuditStoreWithWriter(&bytes.Buffer{})

	now := time.Now().UTC()
	store.Append(ctx,
		audit.Record{TenantID: "t1", PrincipalName: "a", ActionType: "pay", Allowed: true, Timestamp: now, Params: map[string]any{"amount": float64(600)}},
		audit.Record{TenantID: "t1", PrincipalName: "a", ActionType: "pay", Allowed: false, Timestamp: now, Params: map[string]any{"amount": float64(999)}},
		audit.Record{TenantID: "t1", PrincipalName: "b", ActionType: "pay", Allowed: true, Timestamp: now, Params: map[string]any{"amount": float64(400)}},
	)

	total, err := store.Compute(ctx, "t1", aggregate.Filter{Scope: aggregate.ScopePrincipal, PrincipalName: "a", ActionType: "pay"}, now.Add(-time.Hour), aggregate.MeasureSum, "amount")
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}
	if total != 600 {
		t.Errorf("total = %v, want 600 (rejected record and other principal excluded)", total)
	}
}

func TestAuditStore_DefaultStdout(t *testing.T) {
	store := NewAuditStore()
	if store == nil {
		t.Fatal("NewAuditStore() returned nil")
	}
	if err := store.Close(); err != nil {
		t.Errorf("Close() on default store error: %v", err)
	}
}
