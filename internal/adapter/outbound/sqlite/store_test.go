package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sentinelguard/actiongate/internal/domain/tenant"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "actiongate.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// newTestStoreWithTenants opens a test store and inserts a tenant row for
// each ID, so policy and audit rows satisfy their tenant foreign keys.
func newTestStoreWithTenants(t *testing.T, tenantIDs ...string) *Store {
	t.Helper()
	store := newTestStore(t)
	tenants := NewTenantStore(store)
	for _, id := range tenantIDs {
		if err := tenants.Create(context.Background(), &tenant.Tenant{TenantID: id, CredentialHash: "hash-" + id, Active: true}); err != nil {
			t.Fatalf("seed tenant %s: %v", id, err)
		}
	}
	return store
}

func TestOpen_CreatesSchema(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	var tableCount int
	row := store.DB().QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('tenants', 'policies', 'audit_events')`)
	if err := row.Scan(&tableCount); err != nil {
		t.Fatalf("scan table count: %v", err)
	}
	if tableCount != 3 {
		t.Errorf("table count = %d, want 3", tableCount)
	}
}

func TestOpen_CreatesDatabaseDirectory(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "dir", "actiongate.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer store.Close()
}

func TestVacuum_Succeeds(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	if err := store.Vacuum(); err != nil {
		t.Errorf("Vacuum() error: %v", err)
	}
}
