package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sentinelguard/actiongate/internal/domain/policy"
)

// PolicyStore implements policy.Store against the shared database. A
// policy's ordered rule list does not map cleanly onto normalized rows (see
// policy.Rule's ConstraintOrder field, which exists only to recover
// deterministic iteration over a Go map), so it is stored as a single JSON
// column and only the fields needed for lookup/activation are normalized.
type PolicyStore struct {
	store *Store
}

// NewPolicyStore wraps store for policy persistence.
func NewPolicyStore(store *Store) *PolicyStore { return &PolicyStore{store: store} }

func (s *PolicyStore) GetActive(ctx context.Context, tenantID string) (*policy.Policy, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT tenant_id, name, version, default_verdict, active, rules_json, created_at, updated_at
		FROM policies WHERE tenant_id = ? AND active = 1
	`, tenantID)
	return scanPolicy(row)
}

func (s *PolicyStore) Create(ctx context.Context, p *policy.Policy) error {
	rulesJSON, err := json.Marshal(p.Rules)
	if err != nil {
		return fmt.Errorf("marshal rules: %w", err)
	}

	now := time.Now().UTC()
	p.Active = false
	p.CreatedAt, p.UpdatedAt = now, now

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO policies (tenant_id, name, version, default_verdict, active, rules_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?)
	`, p.TenantID, p.Name, p.Version, string(p.DefaultVerdict), string(rulesJSON),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert policy: %w", err)
	}
	return nil
}

// Activate deactivates every other version for tenantID and activates
// version, inside one transaction so a reader never observes zero or two
// active policies for a tenant.
func (s *PolicyStore) Activate(ctx context.Context, tenantID, version string) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)

	if _, err := tx.ExecContext(ctx, `
		UPDATE policies SET active = 0, updated_at = ? WHERE tenant_id = ?
	`, now, tenantID); err != nil {
		return fmt.Errorf("deactivate existing: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE policies SET active = 1, updated_at = ? WHERE tenant_id = ? AND version = ?
	`, now, tenantID, version)
	if err != nil {
		return fmt.Errorf("activate version: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return policy.ErrNotFound
	}

	return tx.Commit()
}

func scanPolicy(row *sql.Row) (*policy.Policy, error) {
	var p policy.Policy
	var defaultVerdict string
	var active int
	var rulesJSON, createdAt, updatedAt string

	err := row.Scan(&p.TenantID, &p.Name, &p.Version, &defaultVerdict, &active, &rulesJSON, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, policy.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan policy: %w", err)
	}

	if err := json.Unmarshal([]byte(rulesJSON), &p.Rules); err != nil {
		return nil, fmt.Errorf("unmarshal rules: %w", err)
	}
	p.DefaultVerdict = policy.Verdict(defaultVerdict)
	p.Active = active != 0
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &p, nil
}

var _ policy.Store = (*PolicyStore)(nil)
