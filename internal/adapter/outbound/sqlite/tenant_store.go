package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sentinelguard/actiongate/internal/domain/tenant"
)

// TenantStore implements tenant.Store against the shared database.
type TenantStore struct {
	store *Store
}

// NewTenantStore wraps store for tenant persistence.
func NewTenantStore(store *Store) *TenantStore { return &TenantStore{store: store} }

func (s *TenantStore) Create(ctx context.Context, t *tenant.Tenant) error {
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO tenants (tenant_id, display_name, credential_hash, argon_hash, active, notify_endpoint, notify_enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.TenantID, t.DisplayName, t.CredentialHash, t.ArgonHash, boolToInt(t.Active), t.NotifyEndpoint, boolToInt(t.NotifyEnabled),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if isUniqueConstraint(err, "tenants.credential_hash") {
		return tenant.ErrCredentialTaken
	}
	if err != nil {
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

func (s *TenantStore) Get(ctx context.Context, tenantID string) (*tenant.Tenant, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT tenant_id, display_name, credential_hash, argon_hash, active, notify_endpoint, notify_enabled, created_at, updated_at
		FROM tenants WHERE tenant_id = ?
	`, tenantID)
	return scanTenant(row)
}

func (s *TenantStore) GetByCredentialHash(ctx context.Context, credentialHash string) (*tenant.Tenant, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT tenant_id, display_name, credential_hash, argon_hash, active, notify_endpoint, notify_enabled, created_at, updated_at
		FROM tenants WHERE credential_hash = ?
	`, credentialHash)
	return scanTenant(row)
}

func (s *TenantStore) SetActive(ctx context.Context, tenantID string, active bool) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE tenants SET active = ?, updated_at = ? WHERE tenant_id = ?
	`, boolToInt(active), time.Now().UTC().Format(time.RFC3339Nano), tenantID)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	return requireRowsAffected(res)
}

func (s *TenantStore) Update(ctx context.Context, t *tenant.Tenant) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE tenants
		SET display_name = ?, credential_hash = ?, argon_hash = ?, notify_endpoint = ?, notify_enabled = ?, updated_at = ?
		WHERE tenant_id = ?
	`, t.DisplayName, t.CredentialHash, t.ArgonHash, t.NotifyEndpoint, boolToInt(t.NotifyEnabled),
		time.Now().UTC().Format(time.RFC3339Nano), t.TenantID)
	if isUniqueConstraint(err, "tenants.credential_hash") {
		return tenant.ErrCredentialTaken
	}
	if err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}
	return requireRowsAffected(res)
}

func scanTenant(row *sql.Row) (*tenant.Tenant, error) {
	var t tenant.Tenant
	var active, notifyEnabled int
	var createdAt, updatedAt string

	err := row.Scan(&t.TenantID, &t.DisplayName, &t.CredentialHash, &t.ArgonHash, &active, &t.NotifyEndpoint, &notifyEnabled, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tenant.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan tenant: %w", err)
	}

	t.Active = active != 0
	t.NotifyEnabled = notifyEnabled != 0
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	t.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &t, nil
}

func requireRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return tenant.ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ tenant.Store = (*TenantStore)(nil)
