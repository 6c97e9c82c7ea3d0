package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sentinelguard/actiongate/internal/domain/aggregate"
	"github.com/sentinelguard/actiongate/internal/domain/audit"
	"github.com/sentinelguard/actiongate/internal/domain/policy"
)

// AuditStore implements audit.Store, audit.QueryStore, and aggregate.Source
// against the shared database's audit_events table.
type AuditStore struct {
	store *Store
}

// NewAuditStore wraps store for audit persistence.
func NewAuditStore(store *Store) *AuditStore { return &AuditStore{store: store} }

// Append inserts records inside one transaction, per call. A partial
// failure rolls the whole batch back rather than leaving some records
// durable and some not.
func (s *AuditStore) Append(ctx context.Context, records ...audit.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO audit_events (
			action_id, tenant_id, principal_name, action_type, params_json,
			allowed, reason, policy_version, eval_duration_ms, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if r.ActionID == "" {
			r.ActionID = uuid.NewString()
		}
		paramsJSON, err := json.Marshal(r.Params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			r.ActionID, r.TenantID, r.PrincipalName, r.ActionType, string(paramsJSON),
			boolToInt(r.Allowed), r.Reason, r.PolicyVersion, r.EvalDurationMs,
			r.Timestamp.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("insert audit event: %w", err)
		}
	}

	return tx.Commit()
}

// Flush is a no-op: every Append call already commits its transaction.
func (s *AuditStore) Flush(ctx context.Context) error { return nil }

// Close is a no-op: the shared *Store owns the connection lifecycle.
func (s *AuditStore) Close() error { return nil }

// Query retrieves records matching filter, newest first.
func (s *AuditStore) Query(ctx context.Context, filter audit.Filter) ([]audit.Record, string, error) {
	if !filter.StartTime.IsZero() && !filter.EndTime.IsZero() && filter.EndTime.Sub(filter.StartTime) > 31*24*time.Hour {
		return nil, "", audit.ErrDateRangeExceeded
	}

	query := `SELECT action_id, tenant_id, principal_name, action_type, params_json, allowed, reason, policy_version, eval_duration_ms, timestamp FROM audit_events WHERE 1=1`
	var args []any

	if !filter.StartTime.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.StartTime.UTC().Format(time.RFC3339Nano))
	}
	if !filter.EndTime.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, filter.EndTime.UTC().Format(time.RFC3339Nano))
	}
	if filter.TenantID != "" {
		query += " AND tenant_id = ?"
		args = append(args, filter.TenantID)
	}
	if filter.PrincipalName != "" {
		query += " AND principal_name = ?"
		args = append(args, filter.PrincipalName)
	}
	if filter.ActionType != "" {
		query += " AND action_type = ?"
		args = append(args, filter.ActionType)
	}
	if filter.Allowed != nil {
		query += " AND allowed = ?"
		args = append(args, boolToInt(*filter.Allowed))
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	query += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var records []audit.Record
	for rows.Next() {
		rec, err := scanAuditRow(rows)
		if err != nil {
			return nil, "", err
		}
		records = append(records, rec)
	}
	return records, "", rows.Err()
}

// QueryStats aggregates records in [start, end).
func (s *AuditStore) QueryStats(ctx context.Context, start, end time.Time) (*audit.Stats, error) {
	stats := &audit.Stats{ByActionType: map[string]int64{}}

	row := s.store.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(allowed), 0), COUNT(DISTINCT principal_name)
		FROM audit_events WHERE timestamp >= ? AND timestamp < ?
	`, start.UTC().Format(time.RFC3339Nano), end.UTC().Format(time.RFC3339Nano))
	if err := row.Scan(&stats.TotalRecords, &stats.AllowedCount, &stats.UniquePrincipals); err != nil {
		return nil, fmt.Errorf("query stats totals: %w", err)
	}
	stats.RejectedCount = stats.TotalRecords - stats.AllowedCount

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT action_type, COUNT(*) FROM audit_events
		WHERE timestamp >= ? AND timestamp < ?
		GROUP BY action_type
	`, start.UTC().Format(time.RFC3339Nano), end.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("query stats by action: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var actionType string
		var count int64
		if err := rows.Scan(&actionType, &count); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}
		stats.ByActionType[actionType] = count
	}
	return stats, rows.Err()
}

// Compute implements aggregate.Source. It narrows to allowed rows in scope
// with SQL, then resolves paramPath/coerces to number in Go exactly as the
// in-memory and file-based stores do, since param_path is an arbitrary
// dotted path into opaque JSON that SQLite's json_extract cannot be handed
// without re-deriving policy.ResolveParamPath's semantics in SQL.
func (s *AuditStore) Compute(ctx context.Context, tenantID string, filter aggregate.Filter, since time.Time, measure aggregate.Measure, paramPath string) (float64, error) {
	query := `SELECT params_json FROM audit_events WHERE tenant_id = ? AND allowed = 1 AND timestamp >= ?`
	args := []any{tenantID, since.UTC().Format(time.RFC3339Nano)}

	switch filter.Scope {
	case aggregate.ScopePrincipal:
		query += " AND principal_name = ? AND action_type = ?"
		args = append(args, filter.PrincipalName, filter.ActionType)
	case aggregate.ScopeAction:
		query += " AND action_type = ?"
		args = append(args, filter.ActionType)
	}

	if measure == aggregate.MeasureCount {
		countQuery := "SELECT COUNT(*) FROM (" + query + ")"
		var count int64
		if err := s.store.db.QueryRowContext(ctx, countQuery, args...).Scan(&count); err != nil {
			return 0, fmt.Errorf("count audit events: %w", err)
		}
		return float64(count), nil
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var total float64
	for rows.Next() {
		var paramsJSON string
		if err := rows.Scan(&paramsJSON); err != nil {
			return 0, fmt.Errorf("scan params: %w", err)
		}
		var params map[string]any
		if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
			continue
		}
		if v, ok := policy.ResolveParamPath(params, paramPath); ok {
			if n, err := policy.ToNumber(v); err == nil {
				total += n
			}
		}
	}
	return total, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuditRow(rows rowScanner) (audit.Record, error) {
	var rec audit.Record
	var paramsJSON, timestamp string
	var allowed int

	if err := rows.Scan(&rec.ActionID, &rec.TenantID, &rec.PrincipalName, &rec.ActionType, &paramsJSON,
		&allowed, &rec.Reason, &rec.PolicyVersion, &rec.EvalDurationMs, &timestamp); err != nil {
		return audit.Record{}, fmt.Errorf("scan audit event: %w", err)
	}

	rec.Allowed = allowed != 0
	rec.Timestamp, _ = time.Parse(time.RFC3339Nano, timestamp)
	_ = json.Unmarshal([]byte(paramsJSON), &rec.Params)
	return rec, nil
}

var (
	_ audit.Store      = (*AuditStore)(nil)
	_ audit.QueryStore = (*AuditStore)(nil)
	_ aggregate.Source = (*AuditStore)(nil)
)
